package models

// EntityKind identifies which local entity type an event refers to.
type EntityKind string

const (
	EntityOpportunity EntityKind = "opportunity"
	EntityCompany     EntityKind = "company"
)

// EntityChangedEvent is emitted by the local store after a save. Delivery is
// fire-and-forget: events are dropped when no subscriber is draining the
// channel, matching the best-effort sync semantics.
type EntityChangedEvent struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}
