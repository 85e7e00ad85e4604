package ticket

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// qrPrefix versions the QR payload format so scanners can reject codes
// from other systems outright.
const qrPrefix = "GATE1"

// QRPayload builds the opaque string encoded in a ticket's QR image:
// GATE1:<ticketID>:<12 hex chars of sha256(ticketID|secret)>. The gateway
// owns validation; the fragment only lets a scanner drop obvious garbage
// before submitting.
func QRPayload(ticketID, secret string) string {
	sum := sha256.Sum256([]byte(ticketID + "|" + secret))
	return fmt.Sprintf("%s:%s:%s", qrPrefix, ticketID, hex.EncodeToString(sum[:])[:12])
}

// ParseQRPayload extracts the ticket ID from a scanned payload, reporting
// whether the payload has the expected shape. It does not verify the hash;
// that is the gateway's job.
func ParseQRPayload(payload string) (ticketID string, ok bool) {
	parts := strings.Split(payload, ":")
	if len(parts) != 3 || parts[0] != qrPrefix || parts[1] == "" || len(parts[2]) != 12 {
		return "", false
	}
	return parts[1], true
}

// QRPNG renders a payload as a PNG of size x size pixels.
func QRPNG(payload string, size int) ([]byte, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("ticket: encode qr: %w", err)
	}
	return png, nil
}
