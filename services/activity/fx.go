package activity

import (
	"mission-control/pkg/httpapi"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("activity.service",
	fx.Provide(
		NewService,
		httpapi.AsRoute(NewHandler),
	),
	fx.Invoke(Migrate),
)

var Store = fx.Module("activity.store",
	fx.Provide(NewService),
	fx.Invoke(Migrate),
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Activity{})
}
