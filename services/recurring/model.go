package recurring

import (
	"encoding/json"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusFailed    Status = "failed"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusFailed, StatusCompleted:
		return true
	default:
		return false
	}
}

type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailure RunStatus = "failure"
)

const DefaultMaxRetries = 3

type Task struct {
	ID         string         `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	Name       string         `gorm:"column:name;type:varchar(191);uniqueIndex;not null" json:"name"`
	Schedule   string         `gorm:"column:schedule;type:varchar(255);not null" json:"schedule"`
	AgentID    *string        `gorm:"column:agent_id;type:varchar(32);index" json:"agentId,omitempty"`
	Payload    datatypes.JSON `gorm:"column:payload" json:"payload,omitempty"`
	Status     Status         `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	RetryCount int            `gorm:"column:retry_count;not null" json:"retryCount"`
	MaxRetries int            `gorm:"column:max_retries;not null" json:"maxRetries"`
	LastRunAt  *int64         `gorm:"column:last_run_at" json:"lastRunAt,omitempty"`
	LastStatus *RunStatus     `gorm:"column:last_status;type:varchar(16)" json:"lastStatus,omitempty"`
	LastError  *string        `gorm:"column:last_error;type:text" json:"lastError,omitempty"`
	NextRunAt  *int64         `gorm:"column:next_run_at" json:"nextRunAt,omitempty"`
	CreatedAt  int64          `gorm:"column:created_at;not null" json:"createdAt"`
	UpdatedAt  int64          `gorm:"column:updated_at;not null" json:"updatedAt"`
}

func (Task) TableName() string {
	return "recurring_tasks"
}

type CreateRequest struct {
	Name       string          `json:"name"`
	Schedule   string          `json:"schedule"`
	AgentID    *string         `json:"agentId"`
	Payload    json.RawMessage `json:"payload"`
	MaxRetries *int            `json:"maxRetries"`
	NextRunAt  *int64          `json:"nextRunAt"`
}

type UpdateRequest struct {
	Schedule   *string         `json:"schedule"`
	Payload    json.RawMessage `json:"payload"`
	MaxRetries *int            `json:"maxRetries"`
	NextRunAt  *int64          `json:"nextRunAt"`
}

type RunResult struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	NextRunAt *int64 `json:"nextRunAt"`
}
