package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is a cart activity record as it travels over the event stream
type Event struct {
	ID        string          `json:"id"`
	CartKey   string          `json:"cart_key"`
	UserID    string          `json:"user_id,omitempty"`
	DeviceID  string          `json:"device_id"`
	EventType string          `json:"event_type"`
	Source    string          `json:"source"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEvent wraps data into an Event with a fresh id and timestamp
func NewEvent(cartKey, userID, deviceID, eventType, source string, data any) (*Event, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:        uuid.New().String(),
		CartKey:   cartKey,
		UserID:    userID,
		DeviceID:  deviceID,
		EventType: eventType,
		Source:    source,
		Data:      jsonData,
		Timestamp: time.Now(),
	}, nil
}
