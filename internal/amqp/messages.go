package amqp

import (
	"encoding/json"
	"time"
)

// Event types published on the ledger event stream.
const (
	EventExpenseCreated     = "expense_created"
	EventExpenseUpdated     = "expense_updated"
	EventExpenseDeleted     = "expense_deleted"
	EventSettlementRecorded = "settlement_recorded"
	EventPeriodArchived     = "period_archived"
)

// LedgerEvent is the message published after every ledger mutation.
// It carries identifiers only; consumers fetch the data they need from
// storage, so a delayed delivery never replays stale state.
type LedgerEvent struct {
	Type      string    `json:"type"`
	Period    string    `json:"period"`
	ExpenseID string    `json:"expense_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEvent creates an event stamped with the current time.
func NewLedgerEvent(eventType, period, expenseID string) *LedgerEvent {
	return &LedgerEvent{
		Type:      eventType,
		Period:    period,
		ExpenseID: expenseID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON parses an event from JSON bytes.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
