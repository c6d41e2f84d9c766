package llm

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"
)

// DefaultRouteThreshold is the audit size, in runes, above which the larger
// model is used.
const DefaultRouteThreshold = 2000

// Router decides which model serves a request. Long audits go to the smart
// model; a failing fast model falls back to the smart one.
type Router struct {
	fastClient  Client
	smartClient Client
	threshold   int
	logger      *slog.Logger
}

func NewRouter(fast, smart Client, threshold int) *Router {
	if threshold <= 0 {
		threshold = DefaultRouteThreshold
	}
	return &Router{fastClient: fast, smartClient: smart, threshold: threshold, logger: slog.Default().With("component", "llm_router")}
}

func (r *Router) Chat(ctx context.Context, msgs []Message, options *SamplingOptions) (*Response, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("router: messages must not be empty")
	}

	if r.isLarge(msgs[len(msgs)-1].Content) {
		return r.smartClient.Chat(ctx, msgs, options)
	}

	resp, err := r.fastClient.Chat(ctx, msgs, options)
	if err == nil || ctx.Err() != nil {
		return resp, err
	}
	r.logger.WarnContext(ctx, "fast model failed, falling back", "error", err)
	return r.smartClient.Chat(ctx, msgs, options)
}

func (r *Router) isLarge(text string) bool {
	return utf8.RuneCountInString(text) > r.threshold
}
