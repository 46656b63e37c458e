package task

import (
	"mission-control/services/agent"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists board columns in display order.
var Statuses = []Status{StatusBacklog, StatusTodo, StatusInProgress, StatusDone, StatusCancelled}

func (s Status) Valid() bool {
	switch s {
	case StatusBacklog, StatusTodo, StatusInProgress, StatusDone, StatusCancelled:
		return true
	default:
		return false
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	default:
		return false
	}
}

type Task struct {
	ID          string                      `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	Title       string                      `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Description string                      `gorm:"column:description;type:text" json:"description"`
	Status      Status                      `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	Priority    Priority                    `gorm:"column:priority;type:varchar(16);not null" json:"priority"`
	Product     *string                     `gorm:"column:product;type:varchar(120);index" json:"product,omitempty"`
	AssigneeID  *string                     `gorm:"column:assignee_id;type:varchar(32);index" json:"assigneeId,omitempty"`
	CreatedByID *string                     `gorm:"column:created_by_id;type:varchar(32)" json:"createdById,omitempty"`
	ScheduledAt *int64                      `gorm:"column:scheduled_at" json:"scheduledAt,omitempty"`
	DueAt       *int64                      `gorm:"column:due_at" json:"dueAt,omitempty"`
	Tags        datatypes.JSONSlice[string] `gorm:"column:tags" json:"tags"`
	CreatedAt   int64                       `gorm:"column:created_at;not null;index" json:"createdAt"`
	UpdatedAt   int64                       `gorm:"column:updated_at;not null" json:"updatedAt"`
}

func (Task) TableName() string {
	return "tasks"
}

type Item struct {
	*Task
	Assignee  *agent.Summary `json:"assignee"`
	CreatedBy *agent.Summary `json:"createdBy"`
}

type Column struct {
	Status Status  `json:"status"`
	Tasks  []*Item `json:"tasks"`
}

type Board struct {
	Columns []Column `json:"columns"`
}

type ListFilter struct {
	Status     string
	Product    string
	AssigneeID string
}

type CreateRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
	Product     *string  `json:"product"`
	AssigneeID  *string  `json:"assigneeId"`
	CreatedByID *string  `json:"createdById"`
	ScheduledAt *int64   `json:"scheduledAt"`
	DueAt       *int64   `json:"dueAt"`
	Tags        []string `json:"tags"`
}

// UpdateRequest is a partial edit. An empty string clears an optional
// reference; a zero timestamp clears an optional date.
type UpdateRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Status      *Status   `json:"status"`
	Priority    *Priority `json:"priority"`
	Product     *string   `json:"product"`
	AssigneeID  *string   `json:"assigneeId"`
	ScheduledAt *int64    `json:"scheduledAt"`
	DueAt       *int64    `json:"dueAt"`
	Tags        *[]string `json:"tags"`
}

type StatusRequest struct {
	Status Status `json:"status"`
}

type AssignRequest struct {
	AgentID *string `json:"agentId"`
}
