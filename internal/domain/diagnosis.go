package domain

// DiagnosisRequest is the serialized payload handed to the external
// summarizer: the snapshot it should comment on plus the instruction
// prompt built by the insight composer.
type DiagnosisRequest struct {
	Snapshot *MetricsSnapshot `json:"snapshot"`
	Prompt   string           `json:"prompt"`
}

// DiagnosisResult is the summarizer's answer. When Available is false the
// composer substitutes its deterministic templated summary, so the user
// always receives a response.
type DiagnosisResult struct {
	Text      string `json:"text"`
	Available bool   `json:"available"`
	Model     string `json:"model,omitempty"`
}
