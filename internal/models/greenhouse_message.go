package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	gm "greenhouse_monitor"
)

var errNotAnObject = errors.New("greenhouse message: payload is not a JSON object")

// GreenhouseMessage is a single reading pushed by the backend.
// Numeric fields are optional: a frame carries whatever the sensors reported.
type GreenhouseMessage struct {
	Timestamp     string   `json:"timestamp"`
	Temperature01 *float64 `json:"temperature01,omitempty"` // °C, greenhouse sensor 1
	Humidity01    *float64 `json:"humidity01,omitempty"`    // %RH, greenhouse sensor 1
	Temperature02 *float64 `json:"temperature02,omitempty"` // °C, greenhouse sensor 2
	Humidity02    *float64 `json:"humidity02,omitempty"`    // %RH, greenhouse sensor 2
	Sector01      *float64 `json:"sector01,omitempty"`      // irrigation sector 1 opening, %
	GreenhouseID  string   `json:"greenhouseId"`
	RawPayload    *string  `json:"rawPayload,omitempty"`
}

// DecodeGreenhouseMessage parses the wire form of a message.
// Unknown fields are ignored, nulls are tolerated and a missing or null greenhouse id defaults to DefaultGreenhouseID.
func DecodeGreenhouseMessage(data []byte) (GreenhouseMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return GreenhouseMessage{}, errNotAnObject
	}
	var m GreenhouseMessage
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return GreenhouseMessage{}, fmt.Errorf("decode greenhouse message: %w", err)
	}
	return m, nil
}

// DecodeGreenhouseMessages parses a JSON array of messages, e.g. the recent-messages endpoint body.
// A null body yields an empty slice.
func DecodeGreenhouseMessages(data []byte) ([]GreenhouseMessage, error) {
	var out []GreenhouseMessage
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode greenhouse messages: %w", err)
	}
	if out == nil {
		out = []GreenhouseMessage{}
	}
	return out, nil
}

// Encode returns the wire form of the message.
func (m GreenhouseMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Key identifies a reading across the realtime and polling paths.
func (m GreenhouseMessage) Key() string {
	return m.GreenhouseID + "|" + m.Timestamp
}

// UnmarshalJSON defaults the greenhouse id only when the key is missing or null;
// an explicit empty id is kept.
func (m *GreenhouseMessage) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	type wire GreenhouseMessage
	w := wire{GreenhouseID: gm.DefaultGreenhouseID}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = GreenhouseMessage(w)
	return nil
}

// Float returns a pointer to v, handy for building optional readings.
func Float(v float64) *float64 { return &v }
