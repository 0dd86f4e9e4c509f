package domain

import (
	"github.com/google/uuid"

	dErrors "landreg/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so the compiler rejects passing a
// resource id where a land record id is expected.
type (
	UserID         uuid.UUID
	TransactionID  uuid.UUID
	LandRecordID   uuid.UUID
	RecordingActID uuid.UUID
	ResourceID     uuid.UUID
	CertificateID  uuid.UUID
	PartyID        uuid.UUID
	TaskID         uuid.UUID
	ServiceID      uuid.UUID
)

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	return u, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func ParseTransactionID(s string) (TransactionID, error) {
	u, err := parseUUID(s, "transaction id")
	return TransactionID(u), err
}

func ParseLandRecordID(s string) (LandRecordID, error) {
	u, err := parseUUID(s, "land record id")
	return LandRecordID(u), err
}

func ParseRecordingActID(s string) (RecordingActID, error) {
	u, err := parseUUID(s, "recording act id")
	return RecordingActID(u), err
}

func ParseResourceID(s string) (ResourceID, error) {
	u, err := parseUUID(s, "resource id")
	return ResourceID(u), err
}

func ParseCertificateID(s string) (CertificateID, error) {
	u, err := parseUUID(s, "certificate id")
	return CertificateID(u), err
}

func ParseServiceID(s string) (ServiceID, error) {
	u, err := parseUUID(s, "service id")
	return ServiceID(u), err
}

func ParsePartyID(s string) (PartyID, error) {
	u, err := parseUUID(s, "party id")
	return PartyID(u), err
}

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id TransactionID) String() string  { return uuid.UUID(id).String() }
func (id LandRecordID) String() string   { return uuid.UUID(id).String() }
func (id RecordingActID) String() string { return uuid.UUID(id).String() }
func (id ResourceID) String() string     { return uuid.UUID(id).String() }
func (id CertificateID) String() string  { return uuid.UUID(id).String() }
func (id PartyID) String() string        { return uuid.UUID(id).String() }
func (id TaskID) String() string         { return uuid.UUID(id).String() }
func (id ServiceID) String() string      { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id TransactionID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id LandRecordID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RecordingActID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ResourceID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CertificateID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id PartyID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id TaskID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id ServiceID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

func NewTransactionID() TransactionID   { return TransactionID(uuid.New()) }
func NewLandRecordID() LandRecordID     { return LandRecordID(uuid.New()) }
func NewRecordingActID() RecordingActID { return RecordingActID(uuid.New()) }
func NewResourceID() ResourceID         { return ResourceID(uuid.New()) }
func NewCertificateID() CertificateID   { return CertificateID(uuid.New()) }
func NewPartyID() PartyID               { return PartyID(uuid.New()) }
func NewTaskID() TaskID                 { return TaskID(uuid.New()) }
func NewServiceID() ServiceID           { return ServiceID(uuid.New()) }

// Text marshalling keeps ids readable in JSON payloads and documents.

func (id UserID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *UserID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id TransactionID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *TransactionID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id LandRecordID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *LandRecordID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id RecordingActID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *RecordingActID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id ResourceID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *ResourceID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id CertificateID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *CertificateID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id PartyID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *PartyID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id TaskID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *TaskID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

func (id ServiceID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id *ServiceID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
