package announce

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/peer"
)

// MessageType represents the type of announcement message
type MessageType string

const (
	InstanceCreatedMessage   MessageType = "InstanceCreated"
	InstanceFinalizedMessage MessageType = "InstanceFinalized"
)

// Message is the envelope published to the announcement topic
type Message struct {
	Type      MessageType     `json:"type"`
	Version   string          `json:"version"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	SenderID  peer.ID         `json:"sender_id,omitempty"`
	Data      json.RawMessage `json:"data"`
}

// InstanceCreatedPayload announces a new voting instance to indexers
type InstanceCreatedPayload struct {
	Identifier uint64  `json:"identifier"`
	Initiator  peer.ID `json:"initiator"`
	Deadline   int64   `json:"deadline"`
}

// InstanceFinalizedPayload announces a terminal outcome
type InstanceFinalizedPayload struct {
	Identifier uint64 `json:"identifier"`
	Status     string `json:"status"`
	Tally      int64  `json:"tally"`
}

// NewMessage creates an envelope around a payload
func NewMessage(msgType MessageType, sender peer.ID, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Version:   "1.0.0",
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		SenderID:  sender,
		Data:      data,
	}, nil
}

// Marshal serializes the message
func (m *Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal deserializes the message
func (m *Message) Unmarshal(data []byte) error {
	return json.Unmarshal(data, m)
}

// DecodePayload unmarshals the envelope payload into out
func (m *Message) DecodePayload(out interface{}) error {
	return json.Unmarshal(m.Data, out)
}
