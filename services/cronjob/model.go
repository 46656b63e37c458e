package cronjob

import (
	"encoding/json"

	"mission-control/services/agent"

	"gorm.io/datatypes"
)

type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailure RunStatus = "failure"
	RunRunning RunStatus = "running"
)

func (s RunStatus) Valid() bool {
	switch s {
	case RunSuccess, RunFailure, RunRunning:
		return true
	default:
		return false
	}
}

// Job mirrors a cron job owned by the external scheduler. OpenclawID is that
// scheduler's key.
type Job struct {
	ID         string         `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	OpenclawID string         `gorm:"column:openclaw_id;type:varchar(191);uniqueIndex;not null" json:"openclawId"`
	Name       string         `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Schedule   string         `gorm:"column:schedule;type:varchar(255);not null" json:"schedule"`
	Product    *string        `gorm:"column:product;type:varchar(100)" json:"product,omitempty"`
	AgentID    *string        `gorm:"column:agent_id;type:varchar(32);index" json:"agentId,omitempty"`
	Payload    datatypes.JSON `gorm:"column:payload" json:"payload,omitempty"`
	NextRunAt  *int64         `gorm:"column:next_run_at;index" json:"nextRunAt,omitempty"`
	LastRunAt  *int64         `gorm:"column:last_run_at" json:"lastRunAt,omitempty"`
	LastStatus *RunStatus     `gorm:"column:last_status;type:varchar(16)" json:"lastStatus,omitempty"`
	IsActive   bool           `gorm:"column:is_active;not null" json:"isActive"`
	CreatedAt  int64          `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt  int64          `gorm:"column:updated_at;not null" json:"updatedAt"`
}

func (Job) TableName() string {
	return "cron_jobs"
}

type Item struct {
	*Job
	Agent *agent.Summary `json:"agent"`
}

type UpsertRequest struct {
	OpenclawID  string          `json:"openclawId"`
	Name        string          `json:"name"`
	Schedule    string          `json:"schedule"`
	Product     *string         `json:"product"`
	AgentID     *string         `json:"agentId"`
	AgentName   string          `json:"agentName"`
	Payload     json.RawMessage `json:"payload"`
	NextRunAtMs *int64          `json:"nextRunAtMs"`
	IsActive    *bool           `json:"isActive"`
}

type SyncRequest struct {
	Jobs []UpsertRequest `json:"jobs"`
}

type SyncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

type StatusRequest struct {
	LastStatus RunStatus `json:"lastStatus"`
	LastRunAt  *int64    `json:"lastRunAt"`
	NextRunAt  *int64    `json:"nextRunAt"`
}
