package greenhouse_monitor

import "time"

// REST endpoints shared by the client gateway and the development backend.
const (
	PathLogin          = "/api/auth/login"
	PathRegister       = "/api/auth/register"
	PathForgotPassword = "/api/auth/forgot-password"
	PathResetPassword  = "/api/auth/reset-password"
	PathRecentMessages = "/api/greenhouse/messages/recent"
	PathPublishCustom  = "/api/mqtt/publish/custom"
)

// Realtime endpoint (STOMP over WebSocket) and the single topic the client subscribes to.
const (
	RealtimePath  = "/ws/greenhouse-native"
	MessagesTopic = "/topic/greenhouse/messages"
)

// Realtime tuning knobs.
const (
	DefaultPingInterval      = 20 * time.Second
	DefaultConnectTimeout    = 10 * time.Second
	DefaultReceiptTimeout    = 5 * time.Second
	DefaultDisconnectTimeout = 3 * time.Second
	DefaultReconnectDelay    = 1 * time.Second
)

// DefaultGreenhouseID is assumed for messages that do not name their greenhouse.
const DefaultGreenhouseID = "001"
