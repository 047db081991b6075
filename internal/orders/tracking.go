package orders

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// newTrackingNumber derives a globally unique identifier from the moment of
// assignment plus a random suffix, e.g. FM20260828153000-9f2c1a.
func newTrackingNumber(t time.Time) string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return "FM" + t.UTC().Format("20060102150405") + "-" + hex.EncodeToString(buf)
}
