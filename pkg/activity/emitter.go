package activity

import (
	"context"
	"strings"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "documents"

// Config controls emission.
type Config struct {
	Enabled bool
	Channel string
	// ActorID, UserID and TenantID are stamped on events that lack them.
	ActorID  string
	UserID   string
	TenantID string
}

// Emitter applies Config defaults and forwards events to hooks.
type Emitter struct {
	hooks Hooks
	cfg   Config
}

// NewEmitter builds an Emitter. It is disabled when cfg.Enabled is false or
// no hook is present.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	cfg.Channel = strings.TrimSpace(cfg.Channel)
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	hooks = hooks.Compact()
	cfg.Enabled = cfg.Enabled && len(hooks) > 0
	return &Emitter{hooks: hooks, cfg: cfg}
}

// Enabled reports whether Emit forwards anything.
func (e *Emitter) Enabled() bool {
	return e != nil && e.cfg.Enabled
}

// Emit forwards event to the hooks. A nil or disabled emitter does nothing.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.cfg.Channel
	}
	if strings.TrimSpace(event.ActorID) == "" {
		event.ActorID = e.cfg.ActorID
	}
	if strings.TrimSpace(event.UserID) == "" {
		event.UserID = e.cfg.UserID
	}
	if strings.TrimSpace(event.TenantID) == "" {
		event.TenantID = e.cfg.TenantID
	}
	return e.hooks.Notify(ctx, event)
}
