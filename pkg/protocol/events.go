package protocol

// WebSocket event names pushed from the gateway to live-dashboard clients.
const (
	EventStatsUpdate   = "stats_update"
	EventTicketScanned = "ticket_scanned"
	EventTicketSold    = "ticket_sold"
	EventAlert         = "alert"
)

// Room control messages emitted by the client.
const (
	MsgJoinEvent  = "joinEvent"
	MsgLeaveEvent = "leaveEvent"
)

// RoomRef is the payload for joinEvent / leaveEvent messages.
type RoomRef struct {
	EventID string `json:"eventId"`
}
