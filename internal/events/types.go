// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Account session events
	AccountBound   EventType = "account.bound"
	AccountUnbound EventType = "account.unbound"

	// Refresh attempt events, one of the last three follows every RefreshStarted
	RefreshStarted   EventType = "refresh.started"
	RefreshSucceeded EventType = "refresh.succeeded"
	RefreshRetrying  EventType = "refresh.retrying"
	RefreshFailed    EventType = "refresh.failed"
)

// Trigger is what caused a refresh cycle.
type Trigger string

const (
	TriggerBind     Trigger = "bind"
	TriggerManual   Trigger = "manual"
	TriggerPeriodic Trigger = "periodic"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// NewBase stamps a BaseEvent with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

// AccountBoundEvent requests tracking of an account.
type AccountBoundEvent struct {
	BaseEvent
	Account string
}

// AccountUnboundEvent signals the account was disconnected.
type AccountUnboundEvent struct {
	BaseEvent
	Account string
}

// RefreshEvent describes one fetch attempt transition.
type RefreshEvent struct {
	BaseEvent
	Account   string
	Trigger   Trigger
	Attempt   int // 1-based
	Attempts  int // attempt budget of the cycle
	Positions int // set on success
	Demo      bool
	Error     string // set on retrying and failed
}

// Remaining is how many attempts are left after this one.
func (e RefreshEvent) Remaining() int {
	if left := e.Attempts - e.Attempt; left > 0 {
		return left
	}
	return 0
}
