package models

import "time"

// ConnectionState describes the realtime session as seen by the client.
type ConnectionState struct {
	IsConnected             bool       `json:"is_connected"`
	ConnectionEstablishedAt *time.Time `json:"connection_established_at,omitempty"`
	MessagesReceived        int64      `json:"messages_received"`    // reset on every successful (re)connect
	LastError               string     `json:"last_error,omitempty"` // empty when there is none
	ReconnectAttempts       int        `json:"reconnect_attempts"`
}
