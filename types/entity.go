// Package types provides common types shared by the marketplace entities.
package types

import "time"

// Clock returns the current time. Engines and stores take a Clock so tests
// can pin timestamps.
type Clock func() time.Time

// SystemClock is the default Clock, always in UTC.
func SystemClock() time.Time { return time.Now().UTC() }

// Entity is the base type for entities with timestamps.
type Entity struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewEntity creates a new Entity stamped with now.
func NewEntity(now time.Time) Entity {
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch sets UpdatedAt to now.
func (e *Entity) Touch(now time.Time) {
	e.UpdatedAt = now
}

// Age returns how long before now the entity was created.
func (e Entity) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}
