package session

import (
	"encoding/json"

	"mission-control/services/agent"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive     Status = "active"
	StatusIdle       Status = "idle"
	StatusSleeping   Status = "sleeping"
	StatusTerminated Status = "terminated"
)

var Statuses = []Status{StatusActive, StatusIdle, StatusSleeping, StatusTerminated}

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusIdle, StatusSleeping, StatusTerminated:
		return true
	default:
		return false
	}
}

type Session struct {
	ID             string         `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	SessionID      string         `gorm:"column:session_id;type:varchar(191);uniqueIndex;not null" json:"sessionId"`
	AgentName      string         `gorm:"column:agent_name;type:varchar(255);not null" json:"agentName"`
	AgentID        *string        `gorm:"column:agent_id;type:varchar(32);index" json:"agentId,omitempty"`
	Channel        *string        `gorm:"column:channel;type:varchar(100)" json:"channel,omitempty"`
	Model          *string        `gorm:"column:model;type:varchar(100)" json:"model,omitempty"`
	Status         Status         `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	LastActivityAt int64          `gorm:"column:last_activity_at;not null;index" json:"lastActivityAt"`
	StartedAt      int64          `gorm:"column:started_at;not null" json:"startedAt"`
	Metadata       datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
}

func (Session) TableName() string {
	return "sessions"
}

type Item struct {
	*Session
	Agent *agent.Summary `json:"agent"`
}

type UpsertRequest struct {
	SessionID string          `json:"sessionId"`
	AgentName string          `json:"agentName"`
	AgentID   *string         `json:"agentId"`
	Channel   *string         `json:"channel"`
	Model     *string         `json:"model"`
	Status    Status          `json:"status"`
	Metadata  json.RawMessage `json:"metadata"`
}

type StatusRequest struct {
	Status Status `json:"status"`
}

type Summary struct {
	Total    int64            `json:"total"`
	ByStatus map[Status]int64 `json:"byStatus"`
}
