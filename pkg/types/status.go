package types

// ModelStatus describes the loaded model for /status.
type ModelStatus struct {
	// Path of the checkpoint the engine was built from.
	// example: /data/stories15M_q80.bin
	Path string `json:"path" example:"/data/stories15M_q80.bin"`
	// Checkpoint format (llama2c-legacy, llama2c-fp32, llama2c-q80, gguf).
	// example: llama2c-q80
	Format string `json:"format" example:"llama2c-q80"`
	// Handle state (loaded, unloaded).
	// example: loaded
	State string `json:"state" example:"loaded"`
	// Maximum sequence length; the hard cap on the step budget.
	// example: 256
	SeqLen int `json:"seq_len" example:"256"`
	// Vocabulary size.
	// example: 32000
	VocabSize int `json:"vocab_size" example:"32000"`
	// Seconds the load took.
	// example: 1.42
	LoadSeconds float64 `json:"load_seconds" example:"1.42"`
}

// GenerationStatus summarizes the most recent generation cycle.
type GenerationStatus struct {
	// Cycle identifier, also present in the cycle's log lines.
	// example: 5d0c3c0a-4a0e-4d3f-9a53-1f4c6f0c9a11
	ID string `json:"id" example:"5d0c3c0a-4a0e-4d3f-9a53-1f4c6f0c9a11"`
	// Resolved step budget.
	// example: 256
	Steps int `json:"steps" example:"256"`
	// Tokens produced.
	// example: 256
	Tokens int `json:"tokens" example:"256"`
	// Throughput reported by the engine.
	// example: 18.5
	TokensPerSecond float64 `json:"tokens_per_second" example:"18.5"`
	// Error text when the cycle failed.
	Error string `json:"error,omitempty"`
	// Completion time in unix seconds.
	// example: 1700000000
	FinishedUnix int64 `json:"finished_unix" example:"1700000000"`
}

// Status is returned by GET /status. It is a diagnostic mirror only.
type Status struct {
	// Appliance state (initializing, idle, generating). A halted appliance
	// stays initializing with Error set.
	// example: idle
	State string `json:"state" example:"idle"`
	// Indicator levels as last written.
	Busy  bool `json:"busy"`
	Ready bool `json:"ready"`
	// Loaded model, absent until load succeeds.
	Model *ModelStatus `json:"model,omitempty"`
	// Prompt used for the next generation.
	Prompt string `json:"prompt"`
	// Configured step budget before clamping.
	// example: 256
	Steps int `json:"steps" example:"256"`
	// Completed generation cycles.
	// example: 3
	Generations uint64 `json:"generations" example:"3"`
	// Most recent generation, if any.
	LastGeneration *GenerationStatus `json:"last_generation,omitempty"`
	// Fatal error that halted the appliance.
	Error string `json:"error,omitempty"`
	// Uptime in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: not found
	Error string `json:"error" example:"not found"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// EventRecord is one retained controller event.
type EventRecord struct {
	// Event name.
	// example: generation_done
	Name string `json:"name" example:"generation_done"`
	// Generation cycle the event belongs to, if any.
	// example: 7f0c2d4e-1b2a-4c3d-9e8f-0a1b2c3d4e5f
	CycleID string `json:"cycle_id,omitempty" example:"7f0c2d4e-1b2a-4c3d-9e8f-0a1b2c3d4e5f"`
	// Publish time in unix seconds.
	// example: 1700000000
	TimeUnix int64 `json:"time_unix" example:"1700000000"`
	// Event-specific values (steps, tokens, tok_s, error).
	Fields map[string]any `json:"fields,omitempty"`
}
