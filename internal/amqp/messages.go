package amqp

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// UploadMessage carries one card export to categorize. Data is the raw CSV
// file; it is base64 encoded in the JSON body.
type UploadMessage struct {
	Profile   string    `json:"profile"`
	Recipient string    `json:"recipient,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	Data      []byte    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewUploadMessage creates an upload message stamped with the current time.
func NewUploadMessage(profile, recipient, filename string, data []byte) *UploadMessage {
	return &UploadMessage{
		Profile:   profile,
		Recipient: recipient,
		Filename:  filename,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *UploadMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// UploadMessageFromJSON decodes and checks a message body.
func UploadMessageFromJSON(data []byte) (*UploadMessage, error) {
	var msg UploadMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(msg.Profile) == "" {
		return nil, fmt.Errorf("message has no profile")
	}
	if len(msg.Data) == 0 {
		return nil, fmt.Errorf("message has no data")
	}
	return &msg, nil
}
