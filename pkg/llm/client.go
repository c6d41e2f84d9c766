// Package llm connects the governance pipeline to a chat-completion model.
// The Sentinel oracle audits an analysis for discursive patterns the
// deterministic rules cannot see and maps them onto escalation levels.
package llm

import (
	"context"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client interface {
	Chat(ctx context.Context, messages []Message, options *SamplingOptions) (*Response, error)
}

type SamplingOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	Seed        int64   `json:"seed"`
	JSONMode    bool    `json:"json_mode"` // ask for a single JSON object
}

type Response struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, messages []Message, options *SamplingOptions) (*Response, error)

func (f ClientFunc) Chat(ctx context.Context, messages []Message, options *SamplingOptions) (*Response, error) {
	return f(ctx, messages, options)
}
