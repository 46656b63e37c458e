package activity

import (
	"encoding/json"

	"mission-control/services/agent"

	"gorm.io/datatypes"
)

type Activity struct {
	ID        string         `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	AgentID   string         `gorm:"column:agent_id;type:varchar(32);not null;index" json:"agentId"`
	Type      string         `gorm:"column:type;type:varchar(64);not null;index" json:"type"`
	Action    string         `gorm:"column:action;type:text;not null" json:"action"`
	Details   *string        `gorm:"column:details;type:text" json:"details,omitempty"`
	Metadata  datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	Timestamp int64          `gorm:"column:ts;not null;index" json:"timestamp"`
}

func (Activity) TableName() string {
	return "activities"
}

// Item is an activity enriched with its agent for feed rendering.
type Item struct {
	*Activity
	Agent *agent.Summary `json:"agent"`
}

type CreateRequest struct {
	AgentID   string          `json:"agentId"`
	AgentName string          `json:"agentName"`
	Type      string          `json:"type"`
	Action    string          `json:"action"`
	Details   *string         `json:"details"`
	Metadata  json.RawMessage `json:"metadata"`
	Timestamp *int64          `json:"timestamp"`
}

type CreateResponse struct {
	Success    bool   `json:"success"`
	ActivityID string `json:"activityId"`
}

type Stats struct {
	Total   int64            `json:"total"`
	ByType  map[string]int64 `json:"byType"`
	ByAgent map[string]int64 `json:"byAgent"`
	Since   int64            `json:"since"`
}
