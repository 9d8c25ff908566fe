package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Hasher computes an integrity digest of an event.
type Hasher interface {
	Hash(event Event) string
}

type sha256Hasher struct{}

// NewSHA256Hasher returns a Hasher over the event's identifying fields.
func NewSHA256Hasher() Hasher {
	return &sha256Hasher{}
}

func (h *sha256Hasher) Hash(event Event) string {
	data := fmt.Sprintf(
		"%s|%s|%s|%s|%s|%s|%s|%s|%s|%s|%d",
		event.ID,
		event.OrganizationCode,
		event.Source,
		event.UserID,
		event.Decision,
		event.Reason,
		event.Bypass,
		event.Phase,
		event.Method,
		event.Path,
		event.CreatedAt.UnixNano(),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
