package rediskey

import (
	"fmt"
	"strings"
)

const (
	AgentNamePrefix = "agent:name"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildAgentNameKey returns "agent:name:{lowercased name}"
func BuildAgentNameKey(name string) string {
	return NamespaceKey(AgentNamePrefix, strings.ToLower(strings.TrimSpace(name)))
}
