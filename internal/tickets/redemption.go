package tickets

import (
	"github.com/skip2/go-qrcode"
)

// QRFor renders the printable QR image for a ticket's redemption code. The
// code itself is the payload; the gate scanner looks it up verbatim.
func QRFor(redemptionCode string) ([]byte, error) {
	return qrcode.Encode(redemptionCode, qrcode.Medium, 256)
}
