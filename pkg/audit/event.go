package audit

import (
	"fmt"
	"time"
)

// Anonymous is the user id recorded for requests without an authenticated user.
const Anonymous = "anonymous"

// Event is one tenant access record. The middleware emits exactly one per request.
type Event struct {
	ID               string        `json:"id" bson:"_id"`
	OrganizationCode string        `json:"organization_code,omitempty" bson:"organization_code,omitempty"`
	Source           string        `json:"source" bson:"source"`
	UserID           string        `json:"user_id" bson:"user_id"`
	Decision         string        `json:"decision,omitempty" bson:"decision,omitempty"`
	Reason           string        `json:"reason,omitempty" bson:"reason,omitempty"`
	Bypass           string        `json:"bypass,omitempty" bson:"bypass,omitempty"`
	Phase            string        `json:"phase" bson:"phase"`
	Error            string        `json:"error,omitempty" bson:"error,omitempty"`
	Method           string        `json:"method" bson:"method"`
	Path             string        `json:"path" bson:"path"`
	IP               string        `json:"ip,omitempty" bson:"ip,omitempty"`
	RequestID        string        `json:"request_id,omitempty" bson:"request_id,omitempty"`
	Elapsed          time.Duration `json:"elapsed_ns" bson:"elapsed_ns"`
	Hash             string        `json:"hash,omitempty" bson:"hash,omitempty"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at"`
}

// Validate checks if the event has all required fields
func (e *Event) Validate() error {
	if e.Phase == "" {
		return fmt.Errorf("%w: phase is required", ErrEventValidation)
	}
	if e.UserID == "" {
		return fmt.Errorf("%w: user_id is required, use %q for anonymous requests", ErrEventValidation, Anonymous)
	}
	if e.Source == "" {
		return fmt.Errorf("%w: source is required", ErrEventValidation)
	}
	if e.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at is required", ErrEventValidation)
	}
	return nil
}

// Bypassed reports whether the request skipped the membership check.
func (e *Event) Bypassed() bool {
	return e.Bypass != ""
}
