package domain

import (
	"fmt"
	"math/rand/v2"
	"time"
)

const qrAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewPickupCode returns QR-<unix millis>-<9 base36 chars>.
func NewPickupCode(now time.Time) string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = qrAlphabet[rand.IntN(len(qrAlphabet))]
	}
	return fmt.Sprintf("QR-%d-%s", now.UnixMilli(), suffix)
}
