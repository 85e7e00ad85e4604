package protocol

// Scan types reported by the gateway for a single scan attempt. The
// distinction between a first scan and a duplicate is business-significant
// (fraud and double-entry detection) and must survive every hop.
const (
	ScanTypeFirst     = "FIRST_SCAN"
	ScanTypeDuplicate = "ALREADY_SCANNED"
	ScanTypeInvalid   = "INVALID"
	ScanTypeFraud     = "FRAUD"
)

// TicketSummary is the slice of ticket data the gateway attaches to a scan
// result for display at the gate.
type TicketSummary struct {
	ID         string `json:"id"`
	QRCode     string `json:"qrCode"`
	Status     string `json:"status"`
	ScannedAt  int64  `json:"scannedAt,omitempty"` // epoch millis
	ScannedBy  string `json:"scannedBy,omitempty"`
	EventName  string `json:"eventName,omitempty"`
	TicketType string `json:"ticketType,omitempty"`
	HolderName string `json:"holderName,omitempty"`
}

// ScanResult is the gateway's response to a scan submission.
type ScanResult struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	Ticket     *TicketSummary `json:"ticket,omitempty"`
	ScanType   string         `json:"scanType"`
	FraudAlert bool           `json:"fraudAlert,omitempty"`
	Timestamp  int64          `json:"timestamp"`
}
