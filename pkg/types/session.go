// Package types provides the core data types for the wolo runtime.
package types

// Execution modes.
const (
	ModeSolo = "solo"
	ModeCoop = "coop"
	ModeRepl = "repl"
)

// Session holds the persisted metadata for a conversation session.
// Messages live in their own files under the session directory.
type Session struct {
	ID               string   `json:"id"`
	CreatedAt        int64    `json:"created_at"` // unix millis
	UpdatedAt        int64    `json:"updated_at"`
	ParentSessionID  string   `json:"parent_session_id,omitempty"`
	AgentType        string   `json:"agent_type,omitempty"`
	Title            string   `json:"title,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	AgentDisplayName string   `json:"agent_display_name,omitempty"`
	Workdir          string   `json:"workdir,omitempty"`
	ExecutionMode    string   `json:"execution_mode,omitempty"`

	// PID lock fields. A session is owned by at most one live process.
	PID          int   `json:"pid,omitempty"`
	PIDUpdatedAt int64 `json:"pid_updated_at,omitempty"`

	// Compaction history, appended by the compaction engine.
	Compactions []CompactionRecord `json:"compactions,omitempty"`
}

// CompactionRecord describes one application of a compaction policy.
type CompactionRecord struct {
	SessionID    string   `json:"session_id"`
	Policy       string   `json:"policy"`
	TokensBefore int      `json:"tokens_before"`
	TokensAfter  int      `json:"tokens_after"`
	MessageIDs   []string `json:"message_ids,omitempty"`
	Timestamp    int64    `json:"timestamp"`
}

// SessionStatus is the runtime status of a session as observed from disk.
type SessionStatus struct {
	Exists               bool   `json:"exists"`
	PID                  int    `json:"pid,omitempty"`
	IsRunning            bool   `json:"is_running"`
	WatchServerAvailable bool   `json:"watch_server_available"`
	AgentName            string `json:"agent_name,omitempty"`
	CreatedAt            int64  `json:"created_at,omitempty"`
	MessageCount         int    `json:"message_count"`
}

// SessionListing is one row of a session list, metadata plus derived fields.
type SessionListing struct {
	Session
	MessageCount int  `json:"message_count"`
	IsRunning    bool `json:"is_running"`
}

// Todo is one entry of a session todo list.
type Todo struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Status  string `json:"status"` // "pending" | "in_progress" | "completed"
}
