package message

import "mission-control/services/agent"

type Type string

const (
	TypeMessage            Type = "message"
	TypeDiscussionPrompt   Type = "discussion_prompt"
	TypeDiscussionResponse Type = "discussion_response"
	TypeSystem             Type = "system"
)

func (t Type) Valid() bool {
	switch t {
	case TypeMessage, TypeDiscussionPrompt, TypeDiscussionResponse, TypeSystem:
		return true
	default:
		return false
	}
}

type Message struct {
	ID          string  `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	AgentID     string  `gorm:"column:agent_id;type:varchar(32);not null;index" json:"agentId"`
	Content     string  `gorm:"column:content;type:text;not null" json:"content"`
	ReplyToID   *string `gorm:"column:reply_to_id;type:varchar(32);index" json:"replyToId,omitempty"`
	TaskID      *string `gorm:"column:task_id;type:varchar(32);index" json:"taskId,omitempty"`
	IsHuman     bool    `gorm:"column:is_human;not null" json:"isHuman"`
	MessageType Type    `gorm:"column:message_type;type:varchar(32);not null" json:"messageType"`
	Timestamp   int64   `gorm:"column:ts;not null;index" json:"timestamp"`
}

func (Message) TableName() string {
	return "messages"
}

type Item struct {
	*Message
	Agent *agent.Summary `json:"agent"`
}

type CreateRequest struct {
	AgentID     string  `json:"agentId"`
	Content     string  `json:"content"`
	ReplyToID   *string `json:"replyToId"`
	TaskID      *string `json:"taskId"`
	IsHuman     bool    `json:"isHuman"`
	MessageType Type    `json:"messageType"`
}
