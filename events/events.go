// Package events publishes advisory ledger-mutation events. Delivery is
// best-effort relative to the accepted mutation: a publish failure is
// reported to the caller for logging but never rolls the mutation back.
package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the ledger service.
const (
	TypeConfigInitialized = "locker.config_initialized"
	TypeLockerInitialized = "locker.initialized"
	TypeDeposit           = "locker.deposit"
	TypeDepositBatch      = "locker.deposit_batch"
	TypeWithdraw          = "locker.withdraw"
	TypeWithdrawBatch     = "locker.withdraw_batch"
	TypeSequenceAdvanced  = "locker.sequence_advanced"
)

// Validation errors.
var (
	ErrEventTypeRequired = errors.New("event type is required")
	ErrOwnerRequired     = errors.New("event owner is required")
)

// Event is one ledger mutation notification.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	Owner      string    `json:"owner"`
	Asset      string    `json:"asset,omitempty"`
	Amount     uint64    `json:"amount,omitempty"`
	Items      int       `json:"items,omitempty"`
	Sequence   uint64    `json:"sequence"`
	OccurredAt time.Time `json:"occurredAt"`
}

// New creates a validated event with a fresh ID and timestamp.
func New(eventType, owner string, sequence uint64) (Event, error) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return Event{}, ErrEventTypeRequired
	}

	if strings.TrimSpace(owner) == "" {
		return Event{}, fmt.Errorf("event %s: %w", eventType, ErrOwnerRequired)
	}

	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		Owner:      owner,
		Sequence:   sequence,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// Publisher delivers events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher discards every event. Used in tests and when no broker is
// configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
