package recurring

import (
	"mission-control/pkg/httpapi"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("recurring.service",
	fx.Provide(
		NewService,
		httpapi.AsRoute(NewHandler),
	),
	fx.Invoke(Migrate),
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Task{})
}

var Store = fx.Module("recurring.store",
	fx.Provide(NewService),
	fx.Invoke(Migrate),
)
