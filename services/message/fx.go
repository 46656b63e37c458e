package message

import (
	"mission-control/pkg/httpapi"
	"mission-control/services/task"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("message.service",
	fx.Provide(
		NewService,
		func(s *task.Service) TaskChecker { return s },
		httpapi.AsRoute(NewHandler),
	),
	fx.Invoke(Migrate),
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Message{})
}
