package gen

import (
	"fmt"

	"mission-control/pkg/config"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// epoch is 2024-01-01T00:00:00Z in unix milliseconds.
const epoch int64 = 1704067200000

var Module = fx.Module("snowflake", fx.Provide(NewSnowflakeNode))

// NewSnowflakeNode returns the id generator for this process. Processes that
// write concurrently (api, worker, seed) must use distinct SNOWFLAKE.NODE values.
func NewSnowflakeNode(cfg *config.Config) (*snowflake.Node, error) {
	snowflake.Epoch = epoch

	node, err := snowflake.NewNode(cfg.Snowflake.Node)
	if err != nil {
		return nil, fmt.Errorf("failed to init snowflake node %d: %w", cfg.Snowflake.Node, err)
	}

	zap.L().Debug("snowflake node ready", zap.Int64("node", cfg.Snowflake.Node))
	return node, nil
}
