package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a change to the expenses table.
type EventType string

const (
	EventExpenseCreated EventType = "expense.created"
	EventExpenseUpdated EventType = "expense.updated"
	EventExpenseDeleted EventType = "expense.deleted"
)

func (t EventType) Valid() bool {
	switch t {
	case EventExpenseCreated, EventExpenseUpdated, EventExpenseDeleted:
		return true
	}
	return false
}

// ExpenseEvent is a lightweight change notification. It carries only the id;
// consumers re-read the backend for current data.
type ExpenseEvent struct {
	Type      EventType `json:"type"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseEvent creates an event stamped with the current time.
func NewExpenseEvent(t EventType, id int64) *ExpenseEvent {
	return &ExpenseEvent{
		Type:      t,
		ID:        id,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseEventFromJSON decodes and validates an event.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if !msg.Type.Valid() {
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return &msg, nil
}
