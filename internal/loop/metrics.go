package loop

import (
	"sync"
	"time"

	"github.com/wolo-ai/wolo/internal/llm"
)

// Metrics collects per-session counters for benchmark output. Nothing
// here is persisted; the collector is rebuilt from scratch per process.
type Metrics struct {
	mu       sync.Mutex
	sessions map[string]*sessionMetrics
}

type sessionMetrics struct {
	startedAt     time.Time
	usage         llm.Usage
	toolCounts    map[string]int
	toolDurations map[string]int64
	subsessions   []string
	steps         int
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{sessions: make(map[string]*sessionMetrics)}
}

func (m *Metrics) session(sessionID string) *sessionMetrics {
	s, ok := m.sessions[sessionID]
	if !ok {
		s = &sessionMetrics{
			startedAt:     time.Now(),
			toolCounts:    make(map[string]int),
			toolDurations: make(map[string]int64),
		}
		m.sessions[sessionID] = s
	}
	return s
}

// Begin marks the session start for wall-time accounting.
func (m *Metrics) Begin(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(sessionID).startedAt = time.Now()
}

// SetUsage records the adapter's cumulative token usage.
func (m *Metrics) SetUsage(sessionID string, usage llm.Usage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(sessionID).usage = usage
}

// RecordTool counts one tool invocation and its duration.
func (m *Metrics) RecordTool(sessionID, toolName string, durationMS int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session(sessionID)
	s.toolCounts[toolName]++
	if durationMS > 0 {
		s.toolDurations[toolName] += durationMS
	}
}

// RecordSubsession links a spawned sub-agent session.
func (m *Metrics) RecordSubsession(sessionID, subsessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session(sessionID)
	s.subsessions = append(s.subsessions, subsessionID)
}

// SetSteps records the final step count.
func (m *Metrics) SetSteps(sessionID string, steps int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(sessionID).steps = steps
}

// ExportSession returns the counters as a map for benchmark JSON output.
func (m *Metrics) ExportSession(sessionID string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return map[string]any{"session_id": sessionID}
	}

	counts := make(map[string]int, len(s.toolCounts))
	for k, v := range s.toolCounts {
		counts[k] = v
	}
	durations := make(map[string]int64, len(s.toolDurations))
	for k, v := range s.toolDurations {
		durations[k] = v
	}
	subs := append([]string(nil), s.subsessions...)

	return map[string]any{
		"session_id":        sessionID,
		"prompt_tokens":     s.usage.PromptTokens,
		"completion_tokens": s.usage.CompletionTokens,
		"total_tokens":      s.usage.TotalTokens,
		"steps":             s.steps,
		"tool_counts":       counts,
		"tool_duration_ms":  durations,
		"subsessions":       subs,
		"wall_time_ms":      time.Since(s.startedAt).Milliseconds(),
	}
}
