package session

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Marker derives the deduplication token for one POST. It is stable across
// repeated validation passes of the same request and differs across
// separate POSTs. Not a security token: two distinct POSTs landing within
// the same second collide and merely under-count one strike.
func Marker(formKey, sessionID string, requestStart time.Time) string {
	sum := sha256.Sum256([]byte(formKey + "|" + sessionID + "|" + strconv.FormatInt(requestStart.Unix(), 10)))
	return hex.EncodeToString(sum[:])
}
