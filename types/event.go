package types

import "time"

// Player event types published to the message broker.
const (
	EventPlayerRegistered     = "player.registered"
	EventPlayerProfileUpdated = "player.profile_updated"
	EventPlayerImageUpdated   = "player.image_updated"
)

// PlayerEvent is the payload published on the player-events channel
// whenever an account is created or a profile changes. Consumers such
// as scout notification workers subscribe to these.
type PlayerEvent struct {
	// Type is one of the EventPlayer* constants.
	Type string `json:"type"`

	// UserID identifies the account the event concerns.
	UserID int `json:"user_id"`

	// Role is the account's role at the time of the event.
	Role string `json:"role"`

	// OccurredAt is when the change happened.
	OccurredAt time.Time `json:"occurred_at"`
}
