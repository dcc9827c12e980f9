// Package assist offers AI rewrite suggestions for sale notes. Suggestions
// are advisory: they are returned to the user and never applied on their own.
package assist

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrDisabled is reported when no rewriter is configured.
var ErrDisabled = errors.New("ai assist is not configured")

// Rewriter is the external text-rewrite collaborator.
type Rewriter interface {
	Rewrite(ctx context.Context, text string) (string, error)
}

// Suggestion is the outcome of a rewrite attempt. A failed attempt carries a
// Notice and echoes the original text so the caller can keep going.
type Suggestion struct {
	Original  string `json:"original"`
	Suggested string `json:"suggested"`
	Changed   bool   `json:"changed"`
	Notice    string `json:"notice,omitempty"`
}

// Service wraps a Rewriter with a timeout and failure policy.
type Service struct {
	rewriter Rewriter
	timeout  time.Duration
	logger   *zap.Logger
}

// NewService builds the assist service. rewriter may be nil.
func NewService(rewriter Rewriter, timeout time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Service{rewriter: rewriter, timeout: timeout, logger: logger}
}

// Enabled reports whether suggestions can be produced.
func (s *Service) Enabled() bool { return s != nil && s.rewriter != nil }

// Suggest asks for a rewrite. It never returns an error: failures, including
// caller cancellation, become a notice on the suggestion.
func (s *Service) Suggest(ctx context.Context, text string) Suggestion {
	out := Suggestion{Original: text, Suggested: text}
	if strings.TrimSpace(text) == "" {
		out.Notice = "nothing to rewrite"
		return out
	}
	if !s.Enabled() {
		out.Notice = ErrDisabled.Error()
		return out
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rewritten, err := s.rewriter.Rewrite(ctx, text)
	if err != nil {
		s.logger.Warn("rewrite failed", zap.Error(err))
		out.Notice = "suggestion unavailable, keeping your text"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			out.Notice = "suggestion timed out, keeping your text"
		}
		return out
	}

	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		out.Notice = "suggestion unavailable, keeping your text"
		return out
	}
	out.Suggested = rewritten
	out.Changed = rewritten != strings.TrimSpace(text)
	return out
}
