package agent

import "strings"

type Agent struct {
	ID              string  `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	Name            string  `gorm:"column:name;type:varchar(120);not null" json:"name"`
	NameKey         string  `gorm:"column:name_key;type:varchar(120);not null;uniqueIndex" json:"-"`
	Emoji           string  `gorm:"column:emoji;type:varchar(16)" json:"emoji"`
	Role            string  `gorm:"column:role;type:varchar(120)" json:"role"`
	Color           string  `gorm:"column:color;type:varchar(32)" json:"color"`
	Badge           *string `gorm:"column:badge;type:varchar(64)" json:"badge,omitempty"`
	OpenclawAgentID *string `gorm:"column:openclaw_agent_id;type:varchar(120);index" json:"openclawAgentId,omitempty"`
	IsActive        bool    `gorm:"column:is_active;not null" json:"isActive"`
	LastSeen        *int64  `gorm:"column:last_seen" json:"lastSeen,omitempty"`
	CreatedAt       int64   `gorm:"column:created_at;not null" json:"createdAt"`
}

func (Agent) TableName() string {
	return "agents"
}

// Summary is the slice of an agent embedded into other records for display.
type Summary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
	Color string `json:"color"`
}

func (a *Agent) Summary() *Summary {
	if a == nil {
		return nil
	}
	return &Summary{ID: a.ID, Name: a.Name, Emoji: a.Emoji, Color: a.Color}
}

// nameKey is the case-folded form agents are matched and deduplicated by.
func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

type CreateRequest struct {
	Name            string  `json:"name"`
	Emoji           string  `json:"emoji"`
	Role            string  `json:"role"`
	Color           string  `json:"color"`
	Badge           *string `json:"badge"`
	OpenclawAgentID *string `json:"openclawAgentId"`
	IsActive        *bool   `json:"isActive"`
}

type UpdateRequest struct {
	Name            *string `json:"name"`
	Emoji           *string `json:"emoji"`
	Role            *string `json:"role"`
	Color           *string `json:"color"`
	Badge           *string `json:"badge"`
	OpenclawAgentID *string `json:"openclawAgentId"`
	IsActive        *bool   `json:"isActive"`
}

type HeartbeatRequest struct {
	OpenclawAgentID string `json:"openclawAgentId"`
}
