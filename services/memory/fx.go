package memory

import (
	"mission-control/pkg/httpapi"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("memory.service",
	fx.Provide(
		NewService,
		httpapi.AsRoute(NewHandler),
	),
	fx.Invoke(Migrate),
)

// Worker wires the memory jobs into an asynq server.
var Worker = fx.Module("memory.worker",
	fx.Provide(NewService),
	fx.Invoke(Migrate, RegisterHandlers),
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Memory{})
}
