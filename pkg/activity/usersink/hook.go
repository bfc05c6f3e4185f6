// Package usersink forwards document activity events to a go-users
// ActivitySink.
package usersink

import (
	"context"
	"strings"

	"github.com/goliatone/go-layerdoc/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook is an activity.ActivityHook writing to Sink.
type Hook struct {
	Sink usertypes.ActivitySink
}

// Notify converts event into an ActivityRecord. Invalid events and a nil
// sink are ignored.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if !normalized.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, toRecord(normalized))
}

func toRecord(event activity.Event) usertypes.ActivityRecord {
	data := map[string]any{}
	for key, value := range event.Metadata {
		data[key] = value
	}
	if event.ActorID != "" && parseUUID(event.ActorID) == uuid.Nil {
		data["actor_ref"] = event.ActorID
	}
	if len(data) == 0 {
		data = nil
	}
	return usertypes.ActivityRecord{
		ActorID:    parseUUID(event.ActorID),
		UserID:     parseUUID(event.UserID),
		TenantID:   parseUUID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	}
}

func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
