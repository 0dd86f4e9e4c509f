package audit

import (
	"context"
	"time"

	id "landreg/pkg/domain"
)

// EventCategory classifies audit events by retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers acts with legal significance in the registry:
	// closing, opening and signing land records, issuing certificates.
	// Writes are fail-closed.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers integrity failures and prelation overrides.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine workflow activity.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain services. It stays transport-agnostic so the
// memory store, the outbox and the Kafka materializer share one shape.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// ActorID is the registrar who performed the action.
	ActorID id.UserID
	// AggregateType and AggregateID identify the affected entity
	// ("land_record", "transaction", "certificate").
	AggregateType string
	AggregateID   string
	// Subject is the human-facing identifier (record UID, transaction UID).
	Subject   string
	Action    string
	Reason    string
	RequestID string
}

type AuditEvent string

const (
	// Land record events
	EventLandRecordCreated   AuditEvent = "land_record_created"
	EventLandRecordClosed    AuditEvent = "land_record_closed"
	EventLandRecordOpened    AuditEvent = "land_record_opened"
	EventLandRecordSigned    AuditEvent = "land_record_signed"
	EventLandRecordUnsigned  AuditEvent = "land_record_sign_revoked"
	EventRecordingActAdded   AuditEvent = "recording_act_added"
	EventRecordingActRemoved AuditEvent = "recording_act_removed"

	// Certificate events
	EventCertificateIssued  AuditEvent = "certificate_issued"
	EventCertificateOpened  AuditEvent = "certificate_opened"
	EventCertificateDeleted AuditEvent = "certificate_deleted"

	// Transaction events
	EventTransactionCreated AuditEvent = "transaction_created"
	EventPaymentRegistered  AuditEvent = "payment_registered"
	EventTransactionDeleted AuditEvent = "transaction_deleted"

	// Workflow events
	EventWorkflowTransition AuditEvent = "workflow_transition"
	EventWorkflowAssigned   AuditEvent = "workflow_assigned"

	// Security events
	EventIntegrityViolation AuditEvent = "integrity_violation"
	EventPrelationOverride  AuditEvent = "prelation_override"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventLandRecordCreated:  CategoryCompliance,
	EventLandRecordClosed:   CategoryCompliance,
	EventLandRecordOpened:   CategoryCompliance,
	EventLandRecordSigned:   CategoryCompliance,
	EventLandRecordUnsigned: CategoryCompliance,
	EventCertificateIssued:  CategoryCompliance,
	EventCertificateDeleted: CategoryCompliance,
	EventPaymentRegistered:  CategoryCompliance,
	EventTransactionDeleted: CategoryCompliance,

	EventIntegrityViolation: CategorySecurity,
	EventPrelationOverride:  CategorySecurity,

	EventRecordingActAdded:   CategoryOperations,
	EventRecordingActRemoved: CategoryOperations,
	EventCertificateOpened:   CategoryOperations,
	EventTransactionCreated:  CategoryOperations,
	EventWorkflowTransition:  CategoryOperations,
	EventWorkflowAssigned:    CategoryOperations,
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
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
