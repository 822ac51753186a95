package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseAggregateRoot adds the optimistic-lock version, the creating actor and
// the events recorded since the aggregate was loaded. Repositories compare
// Version on save and bump it on success.
type BaseAggregateRoot struct {
	BaseEntity
	Version   int
	CreatedBy *uuid.UUID
	events    []DomainEvent
}

// NewBaseAggregateRootAt creates a version 1 aggregate stamped at now
func NewBaseAggregateRootAt(now time.Time) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntityAt(now), Version: 1}
}

// IncrementVersion is called by repositories after a guarded save
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// SetCreatedBy records the acting user; the nil UUID is ignored
func (a *BaseAggregateRoot) SetCreatedBy(userID uuid.UUID) {
	if userID != uuid.Nil {
		a.CreatedBy = &userID
	}
}

// AddDomainEvent records an event to publish once the change is committed
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

// GetDomainEvents returns the recorded events without clearing them
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.events
}

// PullDomainEvents returns the recorded events and clears them
func (a *BaseAggregateRoot) PullDomainEvents() []DomainEvent {
	events := a.events
	a.events = nil
	return events
}

// ClearDomainEvents drops the recorded events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.events = nil
}
