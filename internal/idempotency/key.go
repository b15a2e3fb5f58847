package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateKey creates an idempotency key from a source string
// (a chat message id, or a Twilio message SID). The same source always
// yields the same key, so duplicate deliveries replay instead of
// re-executing.
func GenerateKey(source string) string {
	hash := sha256.Sum256([]byte(source))
	return fmt.Sprintf("idem_%s", hex.EncodeToString(hash[:16]))
}
