package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"mission-control/pkg/errutil"
	"mission-control/services/agent"
	"mission-control/services/recurring"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Roster is the YAML document describing the initial squad.
type Roster struct {
	Agents    []AgentSpec     `yaml:"agents"`
	Recurring []RecurringSpec `yaml:"recurring"`
}

type AgentSpec struct {
	Name            string `yaml:"name"`
	Emoji           string `yaml:"emoji"`
	Role            string `yaml:"role"`
	Color           string `yaml:"color"`
	Badge           string `yaml:"badge"`
	OpenclawAgentID string `yaml:"openclawAgentId"`
}

type RecurringSpec struct {
	Name       string         `yaml:"name"`
	Schedule   string         `yaml:"schedule"`
	Agent      string         `yaml:"agent"`
	MaxRetries int            `yaml:"maxRetries"`
	Payload    map[string]any `yaml:"payload"`
}

type Result struct {
	AgentsCreated    int
	AgentsSkipped    int
	RecurringCreated int
	RecurringSkipped int
}

func LoadRoster(r io.Reader) (*Roster, error) {
	var roster Roster
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&roster); err != nil {
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	return &roster, nil
}

// Apply creates whatever the roster names that does not exist yet. Existing
// agents (matched by name) and recurring tasks are left untouched.
func Apply(ctx context.Context, agents *agent.Service, tasks *recurring.Service, roster *Roster) (*Result, error) {
	res := &Result{}

	for _, spec := range roster.Agents {
		existing, err := agents.FindByName(ctx, spec.Name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			res.AgentsSkipped++
			continue
		}

		req := agent.CreateRequest{
			Name:  spec.Name,
			Emoji: spec.Emoji,
			Role:  spec.Role,
			Color: spec.Color,
		}
		if spec.Badge != "" {
			req.Badge = &spec.Badge
		}
		if spec.OpenclawAgentID != "" {
			req.OpenclawAgentID = &spec.OpenclawAgentID
		}

		a, err := agents.Create(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("seed agent %q: %w", spec.Name, err)
		}
		zap.L().Info("seeded agent", zap.String("agent_id", a.ID), zap.String("name", a.Name))
		res.AgentsCreated++
	}

	for _, spec := range roster.Recurring {
		req := recurring.CreateRequest{Name: spec.Name, Schedule: spec.Schedule}
		if spec.MaxRetries > 0 {
			req.MaxRetries = &spec.MaxRetries
		}
		if spec.Agent != "" {
			a, err := agents.FindByName(ctx, spec.Agent)
			if err != nil {
				return nil, err
			}
			if a == nil {
				return nil, fmt.Errorf("recurring task %q references unknown agent %q", spec.Name, spec.Agent)
			}
			req.AgentID = &a.ID
		}
		if spec.Payload != nil {
			raw, err := json.Marshal(spec.Payload)
			if err != nil {
				return nil, fmt.Errorf("encode payload of %q: %w", spec.Name, err)
			}
			req.Payload = raw
		}

		if _, err := tasks.Create(ctx, req); err != nil {
			if errutil.CodeOf(err) == errutil.StatusConflict {
				res.RecurringSkipped++
				continue
			}
			return nil, fmt.Errorf("seed recurring task %q: %w", spec.Name, err)
		}
		res.RecurringCreated++
	}

	return res, nil
}
