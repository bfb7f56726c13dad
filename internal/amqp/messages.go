package amqp

import (
	"encoding/json"
	"time"
)

// RowSyncMessage asks the worker to append one journaled row to Google
// Sheets. It carries only the journal row id; the worker fetches the
// row and the session's sheet selection from the database.
type RowSyncMessage struct {
	RowID     int64     `json:"row_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRowSyncMessage(rowID int64) *RowSyncMessage {
	return &RowSyncMessage{
		RowID:     rowID,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RowSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// FromJSON creates a message from JSON bytes
func RowSyncMessageFromJSON(data []byte) (*RowSyncMessage, error) {
	var msg RowSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
