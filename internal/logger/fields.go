package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Fields propagated through the call chain.
const (
	FieldRequestID = "request_id"
	FieldComponent = "component"
	FieldSource    = "source"
	FieldUserID    = "user_id"
	FieldResumeID  = "resume_id"
	FieldJobID     = "job_id"
	FieldTaskID    = "task_id"
	FieldTaskKind  = "task_kind"
)

// Per-entry metric fields.
const (
	FieldCount      = "count"
	FieldDurationMs = "duration_ms"
	FieldStatus     = "status"
	FieldAttempt    = "attempt"
)
