package models

import (
	"time"

	id "landreg/pkg/domain"
)

// RecordFacts is what the validator needs to know about a land record.
type RecordFacts struct {
	UID            string
	IsClosed       bool
	IsHistoric     bool
	HasTransaction bool
	ActCount       int
	// UnclosableActs describes each act that blocks closing.
	UnclosableActs []string
	Security       SecurityData
}

// SealParty is one party line of a seal.
type SealParty struct {
	ID   id.PartyID
	Role string
	Name string
}

// SealAct is one act line of a seal.
type SealAct struct {
	TypeID      string
	ActID       id.RecordingActID
	ResourceUID string
	Parties     []SealParty
}

// SealSource is the ordered content a land record seal binds.
type SealSource struct {
	TransactionUID    string
	RecordUID         string
	RecordID          id.LandRecordID
	InstrumentUID     string
	PresentationTime  time.Time
	AuthorizationTime time.Time
	HasBookEntries    bool
	Acts              []SealAct
}

// CertificateSealSource is the content a certificate seal binds.
type CertificateSealSource struct {
	CertificateUID string
	CertificateID  id.CertificateID
	TransactionUID string
	TypeName       string
	ResourceUID    string
	OwnerName      string
	IssueTime      time.Time
	Text           string
}
