package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"mission-control/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func HandleEmbed(svc *Service) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload embedPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode %s payload: %v: %w", taskname.MemoryEmbed, err, asynq.SkipRetry)
		}

		if err := svc.EmbedOne(ctx, payload.MemoryID); err != nil {
			zap.L().Warn("memory embed job failed", zap.String("memory_id", payload.MemoryID), zap.Error(err))
			return err
		}
		return nil
	}
}

func HandleBackfill(svc *Service) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload backfillPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return fmt.Errorf("decode %s payload: %v: %w", taskname.MemoryEmbedBackfill, err, asynq.SkipRetry)
			}
		}

		n, err := svc.Backfill(ctx, payload.BatchSize)
		if err != nil {
			return err
		}
		zap.L().Info("memory backfill job done", zap.Int("filled", n))
		return nil
	}
}

// RegisterHandlers mounts the memory jobs on the worker mux.
func RegisterHandlers(mux *asynq.ServeMux, svc *Service) {
	mux.Handle(taskname.MemoryEmbed, HandleEmbed(svc))
	mux.Handle(taskname.MemoryEmbedBackfill, HandleBackfill(svc))
}
