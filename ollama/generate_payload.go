package ollama

import (
	"encoding/json"
	"time"
)

type GeneratePayload struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
	Format  json.RawMessage        `json:"format,omitempty"`
}

// NewGeneratePayload builds a payload with the temperature nested under
// options, which is where the server reads it from. A nil temperature leaves
// the model default in effect.
func NewGeneratePayload(model, prompt string, temperature *float32, stream bool) *GeneratePayload {
	p := &GeneratePayload{
		Model:  model,
		Prompt: prompt,
		Stream: stream,
	}
	if temperature != nil {
		p.Options = map[string]interface{}{"temperature": *temperature}
	}
	return p
}

type GenerateResponse struct {
	Model           string    `json:"model"`
	CreatedAt       time.Time `json:"created_at"`
	Response        string    `json:"response"`
	Done            bool      `json:"done"`
	DoneReason      string    `json:"done_reason,omitempty"`
	TotalDuration   int64     `json:"total_duration,omitempty"`
	PromptEvalCount int       `json:"prompt_eval_count,omitempty"`
	EvalCount       int       `json:"eval_count,omitempty"`
	EvalDuration    int64     `json:"eval_duration,omitempty"`
}
