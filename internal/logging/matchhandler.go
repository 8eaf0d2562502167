package logging

import (
	"context"
	"log/slog"

	"github.com/m3ts/referee/pkg/core"
)

// MatchSource reports the match being refereed and its current game.
// It is called for every record, so it must not block on the match itself.
type MatchSource func() (*core.Match, int)

// MatchHandler tags records with the running match. Records logged before
// a match starts pass through untouched.
type MatchHandler struct {
	inner  slog.Handler
	source MatchSource
}

// NewMatchHandler wraps inner. A nil source makes it a pass-through.
func NewMatchHandler(inner slog.Handler, source MatchSource) *MatchHandler {
	return &MatchHandler{inner: inner, source: source}
}

func (h *MatchHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *MatchHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.source != nil {
		r.AddAttrs(matchAttrs(h.source())...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *MatchHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &MatchHandler{inner: h.inner.WithAttrs(attrs), source: h.source}
}

func (h *MatchHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &MatchHandler{inner: h.inner.WithGroup(name), source: h.source}
}

func matchAttrs(m *core.Match, game int) []slog.Attr {
	if m == nil {
		return nil
	}
	attrs := []slog.Attr{slog.String("match", m.ID.String())}
	if game > 0 {
		attrs = append(attrs, slog.Int("game", game))
	}
	if m.PlayerLeft != "" || m.PlayerRight != "" {
		attrs = append(attrs, slog.String("players", m.PlayerLeft+" vs "+m.PlayerRight))
	}
	return attrs
}
