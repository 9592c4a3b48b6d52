// Package agent defines the built-in agent configurations: system prompt,
// tool permission rules, and step budget per agent.
package agent

import (
	"fmt"
	"sort"
	"strings"
)

// Permission is the outcome of a tool permission check.
type Permission string

const (
	PermissionAllow Permission = "allow"
	PermissionAsk   Permission = "ask"
	PermissionDeny  Permission = "deny"
)

// Config describes one agent personality.
type Config struct {
	Name         string
	Description  string
	SystemPrompt string

	// Permissions maps tool names to explicit rules. Tools absent from
	// the map get DefaultPermission. A "*" suffix pattern matches
	// namespaced tools such as mcp_* bridges.
	Permissions       map[string]Permission
	DefaultPermission Permission

	MaxSteps int
}

// CheckPermission resolves the rule for a tool name. Exact match wins,
// then the longest wildcard prefix, then the default.
func (c *Config) CheckPermission(toolName string) Permission {
	if p, ok := c.Permissions[toolName]; ok {
		return p
	}
	var bestPrefix string
	var bestPerm Permission
	matched := false
	for pattern, p := range c.Permissions {
		if !strings.HasSuffix(pattern, "*") {
			continue
		}
		prefix := strings.TrimSuffix(pattern, "*")
		if strings.HasPrefix(toolName, prefix) && (!matched || len(prefix) > len(bestPrefix)) {
			bestPrefix = prefix
			bestPerm = p
			matched = true
		}
	}
	if matched {
		return bestPerm
	}
	if c.DefaultPermission != "" {
		return c.DefaultPermission
	}
	return PermissionAllow
}

var registry = map[string]*Config{}

func register(c *Config) {
	registry[c.Name] = c
}

// Get returns the named agent config.
func Get(name string) (*Config, error) {
	c, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown agent %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return c, nil
}

// Names lists registered agents in stable order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const defaultMaxSteps = 80

func init() {
	register(&Config{
		Name:              "general",
		Description:       "full-capability coding agent",
		SystemPrompt:      generalPrompt,
		DefaultPermission: PermissionAllow,
		MaxSteps:          defaultMaxSteps,
	})

	register(&Config{
		Name:         "plan",
		Description:  "read-only planner, produces an implementation plan",
		SystemPrompt: planPrompt,
		Permissions: map[string]Permission{
			"write":     PermissionDeny,
			"edit":      PermissionDeny,
			"bash":      PermissionDeny,
			"todowrite": PermissionAllow,
			"mcp_*":     PermissionDeny,
		},
		DefaultPermission: PermissionAllow,
		MaxSteps:          defaultMaxSteps,
	})

	register(&Config{
		Name:         "explore",
		Description:  "read-only codebase exploration",
		SystemPrompt: explorePrompt,
		Permissions: map[string]Permission{
			"write": PermissionDeny,
			"edit":  PermissionDeny,
			"bash":  PermissionDeny,
			"task":  PermissionDeny,
			"mcp_*": PermissionDeny,
		},
		DefaultPermission: PermissionAllow,
		MaxSteps:          40,
	})

	register(&Config{
		Name:              "compaction",
		Description:       "internal summarizer used by the compaction engine",
		SystemPrompt:      compactionPrompt,
		DefaultPermission: PermissionDeny,
		MaxSteps:          1,
	})
}
