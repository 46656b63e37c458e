package cronjob

import (
	"mission-control/pkg/httpapi"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("cronjob.service",
	fx.Provide(
		NewService,
		httpapi.AsRoute(NewHandler),
	),
	fx.Invoke(Migrate),
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Job{})
}
