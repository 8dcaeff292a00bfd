package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
type EventCategory string

const (
	// CategoryCompliance covers issuance and administrative authority changes.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers denied or abusive requests.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity and reconciliation signals.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string        `json:"id"`
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`
	// Subject is the certificate key or ledger address the event is about.
	Subject         string `json:"subject"`
	ActorID         string `json:"actor_id,omitempty"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	Decision        string `json:"decision,omitempty"`
	Reason          string `json:"reason,omitempty"`
	RequestID       string `json:"request_id,omitempty"`
}

type AuditEvent string

const (
	// Certificate events
	EventCertificateRegistered AuditEvent = "certificate_registered"
	EventCertificateRejected   AuditEvent = "certificate_rejected"
	EventCertificateViewed     AuditEvent = "certificate_viewed"
	// EventLedgerOrphaned marks a ledger write with no local record. It needs
	// manual reconciliation.
	EventLedgerOrphaned AuditEvent = "ledger_orphaned"

	// Authority events
	EventInstitutionRegistered AuditEvent = "institution_registered"
	EventInstitutionVerified   AuditEvent = "institution_verified"
	EventAdminTransferred      AuditEvent = "admin_transferred"

	// Security events
	EventAuthorizationDenied AuditEvent = "authorization_denied"
	EventRateLimitExceeded   AuditEvent = "rate_limit_exceeded"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventCertificateRegistered: CategoryCompliance,
	EventInstitutionRegistered: CategoryCompliance,
	EventInstitutionVerified:   CategoryCompliance,
	EventAdminTransferred:      CategoryCompliance,

	EventAuthorizationDenied: CategorySecurity,
	EventRateLimitExceeded:   CategorySecurity,

	EventCertificateRejected: CategoryOperations,
	EventCertificateViewed:   CategoryOperations,
	EventLedgerOrphaned:      CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Lister is implemented by stores that can be read back.
type Lister interface {
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}
