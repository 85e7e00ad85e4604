// Package ticket holds the ticket model shared by the scanning and
// dashboard surfaces, plus QR payload construction and rendering.
package ticket

import (
	"strings"

	"github.com/google/uuid"
)

// Ticket statuses as reported by the gateway.
const (
	StatusValid     = "VALID"
	StatusUsed      = "USED"
	StatusCancelled = "CANCELLED"
	StatusExpired   = "EXPIRED"
)

// Ticket type categories.
const (
	CategoryFree      = "FREE"
	CategoryPaid      = "PAID"
	CategoryVIP       = "VIP"
	CategoryEarlyBird = "EARLY_BIRD"
	CategoryRegular   = "REGULAR"
)

// Type describes one purchasable ticket class for an event.
type Type struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
	Sold        int     `json:"sold"`
	MaxPerOrder int     `json:"maxPerOrder,omitempty"`
	IsActive    bool    `json:"isActive"`
	EventID     string  `json:"eventId"`
}

// Available returns the remaining sellable quantity.
func (t Type) Available() int {
	if n := t.Quantity - t.Sold; n > 0 {
		return n
	}
	return 0
}

// SoldOut reports whether no quantity remains.
func (t Type) SoldOut() bool { return t.Available() == 0 }

// Ticket is one issued admission.
type Ticket struct {
	ID           string `json:"id"`
	TicketNumber string `json:"ticketNumber"`
	QRCode       string `json:"qrCode"`
	Status       string `json:"status"`
	ScannedAt    int64  `json:"scannedAt,omitempty"` // epoch millis
	ScannedBy    string `json:"scannedBy,omitempty"`
	TicketTypeID string `json:"ticketTypeId"`
	OrderID      string `json:"orderId"`
	EventID      string `json:"eventId"`
	UserID       string `json:"userId"`
}

// NewNumber generates a human-readable ticket number, unique per issue.
func NewNumber() string {
	return "TKT-" + strings.ToUpper(uuid.NewString()[:8])
}
