package taskname

const (
	// Memory tasks
	MemoryEmbed         = "memory:embed"
	MemoryEmbedBackfill = "memory:embed:backfill"
)
