// Package chat contains core concepts of the chat room.
// This file defines the Participant entity and its presence rules.
// No runtime, network, or storage logic should be added here.
package chat

import "time"

// Participant is an active member of the room.
// Its name is the identity used by every other operation.
type Participant struct {
	ID         string
	Name       string
	LastStatus time.Time
}

// IsInactiveSince reports whether the last heartbeat happened strictly before cutoff.
func (p Participant) IsInactiveSince(cutoff time.Time) bool {
	return p.LastStatus.Before(cutoff)
}
