package memory

import "mission-control/services/agent"

type Category string

const (
	CategoryPreference Category = "preference"
	CategoryFact       Category = "fact"
	CategoryDecision   Category = "decision"
	CategoryEntity     Category = "entity"
	CategoryOther      Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryPreference, CategoryFact, CategoryDecision, CategoryEntity, CategoryOther:
		return true
	default:
		return false
	}
}

type Memory struct {
	ID        string   `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	Content   string   `gorm:"column:content;type:text;not null" json:"content"`
	Category  Category `gorm:"column:category;type:varchar(32);not null;index" json:"category"`
	AgentID   *string  `gorm:"column:agent_id;type:varchar(32);index" json:"agentId,omitempty"`
	Embedding Vector   `gorm:"column:embedding" json:"-"`
	CreatedAt int64    `gorm:"column:created_at;not null;index" json:"createdAt"`
}

func (Memory) TableName() string {
	return "memories"
}

type Item struct {
	*Memory
	HasEmbedding bool           `json:"hasEmbedding"`
	Agent        *agent.Summary `json:"agent,omitempty"`
}

type Result struct {
	*Memory
	Score float64 `json:"score"`
}

type CreateRequest struct {
	Content   string    `json:"content"`
	Category  Category  `json:"category"`
	AgentID   *string   `json:"agentId"`
	Embedding []float32 `json:"embedding"`
}

type ListFilter struct {
	Category Category
	AgentID  string
	Limit    int
}

type Mode string

const (
	ModeText   Mode = "text"
	ModeVector Mode = "vector"
	ModeHybrid Mode = "hybrid"
)

type SearchRequest struct {
	Query        string
	Mode         Mode
	Category     Category
	Limit        int
	VectorWeight *float64
}

type embedPayload struct {
	MemoryID string `json:"memoryId"`
}

type backfillPayload struct {
	BatchSize int `json:"batchSize"`
}
