package api

import (
	"encoding/json"
	"strings"
	"time"
)

// Params is the request envelope shared by every assistant endpoint.
// Fields that an endpoint does not use are ignored by the server.
type Params struct {
	Language     string `json:"language,omitempty"`
	Code         string `json:"code,omitempty"`
	Topic        string `json:"topic,omitempty"`
	Level        string `json:"level,omitempty"`
	Logic        string `json:"logic,omitempty"`
	Snippet      string `json:"snippet,omitempty"`
	Framework    string `json:"framework,omitempty"`
	RefactorType string `json:"refactor_type,omitempty"`
}

// Field returns the value of the parameter with the given wire name.
func (p Params) Field(name string) string {
	switch name {
	case "language":
		return p.Language
	case "code":
		return p.Code
	case "topic":
		return p.Topic
	case "level":
		return p.Level
	case "logic":
		return p.Logic
	case "snippet":
		return p.Snippet
	case "framework":
		return p.Framework
	case "refactor_type":
		return p.RefactorType
	}
	return ""
}

// QuotaInfo is the server's view of a user's daily query allowance.
type QuotaInfo struct {
	Used        int       `json:"quota_used" yaml:"quota_used"`
	Limit       int       `json:"quota_limit" yaml:"quota_limit"`
	Remaining   int       `json:"quota_remaining" yaml:"quota_remaining"`
	ResetAt     Timestamp `json:"reset_at" yaml:"reset_at"`
	IsExhausted bool      `json:"is_exhausted" yaml:"is_exhausted"`
	Message     string    `json:"message,omitempty" yaml:"message,omitempty"`
}

// Exhausted reports whether no queries remain.
func (q QuotaInfo) Exhausted() bool {
	return q.IsExhausted || (q.Limit > 0 && q.Remaining == 0)
}

// Consistent reports whether used and remaining add up to the limit.
func (q QuotaInfo) Consistent() bool {
	return q.Used >= 0 && q.Remaining >= 0 && q.Used+q.Remaining == q.Limit
}

// Timestamp decodes the reset instant. The backend emits RFC 3339 with or
// without a zone suffix and with optional fractional seconds.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// MarshalYAML renders the instant the same way the JSON form does.
func (t Timestamp) MarshalYAML() (interface{}, error) {
	if t.IsZero() {
		return "", nil
	}
	return t.UTC().Format(time.RFC3339), nil
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ExecuteRequest is the body of POST /execute_code.
type ExecuteRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Stdin    string `json:"stdin"`
	Version  string `json:"version"`
}

// ExecuteResult is the response from POST /execute_code.
type ExecuteResult struct {
	Success  bool   `json:"success"`
	Output   string `json:"output"`
	Error    string `json:"error,omitempty"`
	Language string `json:"language"`
	Stage    string `json:"stage,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Version  string `json:"version,omitempty"`
}

// completeResponse is the body of every non-streaming assistant endpoint.
type completeResponse struct {
	Response string `json:"response"`
}

// frame is one decoded `data: ` record of a streaming response.
type frame struct {
	Chunk string `json:"chunk"`
}
