package agent

import (
	"mission-control/pkg/httpapi"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("agent.service",
	fx.Provide(
		NewService,
		func(s *Service) Directory { return s },
		httpapi.AsRoute(NewHandler),
	),
	fx.Invoke(Migrate),
)

// Store is the persistence-only subset, for binaries without an HTTP surface.
var Store = fx.Module("agent.store",
	fx.Provide(
		NewService,
		func(s *Service) Directory { return s },
	),
	fx.Invoke(Migrate),
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Agent{})
}
