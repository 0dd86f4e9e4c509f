package models

import (
	"cmp"
	"slices"
	"strings"
	"time"

	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
)

type ActStatus string

const (
	ActStatusActive   ActStatus = "Active"
	ActStatusCanceled ActStatus = "Canceled"
	ActStatusDeleted  ActStatus = "Deleted"
)

// BookEntry locates an act registered in a physical book. Electronic acts
// carry the zero value.
type BookEntry struct {
	BookNo  string `json:"book_no,omitempty"`
	Section string `json:"section,omitempty"`
	Volume  string `json:"volume,omitempty"`
	Page    string `json:"page,omitempty"`
}

func (b BookEntry) IsEmpty() bool {
	return b.BookNo == "" && b.Volume == "" && b.Page == ""
}

func (b BookEntry) String() string {
	if b.IsEmpty() {
		return ""
	}
	return strings.Join([]string{b.BookNo, b.Section, b.Volume, b.Page}, "/")
}

// Party is a person or entity taking part in an act.
type Party struct {
	ID   id.PartyID `json:"id"`
	Role string     `json:"role"`
	Name string     `json:"name"`
}

// RecordInfo is the land record data an act needs for tract ordering and
// rule checks. Stores fill it on every read.
type RecordInfo struct {
	ID               id.LandRecordID
	UID              string
	TransactionID    id.TransactionID
	PresentationTime time.Time
	IssueDate        time.Time
	Status           RecordStatus
	Historic         bool
}

func (i RecordInfo) IsClosed() bool { return i.Status == RecordStatusClosed }

// RecordingAct is one legal act applied to one resource inside one land
// record. Acts are never physically deleted.
type RecordingAct struct {
	ID          id.RecordingActID
	Record      RecordInfo
	Type        ActType
	Index       int
	ResourceID  id.ResourceID
	ResourceUID string
	Status      ActStatus
	// AmendmentOf is the act this one amends or cancels.
	AmendmentOf id.RecordingActID
	BookEntry   BookEntry
	Parties     []Party
	Notes       string
	CreatedAt   time.Time
	CreatedBy   id.UserID
}

// EmptyRecordingAct is returned by lookups that find nothing.
func EmptyRecordingAct() *RecordingAct {
	return &RecordingAct{}
}

func (a *RecordingAct) IsEmpty() bool {
	return a == nil || a.ID.IsNil()
}

func (a *RecordingAct) IsActive() bool { return a.Status == ActStatusActive }

func (a *RecordingAct) IsAmendment() bool {
	return a.Type.IsAmendment && !a.AmendmentOf.IsNil()
}

func (a *RecordingAct) PresentationTime() time.Time { return a.Record.PresentationTime }

// IsAliveAt reports whether the act was in force at t: active, presented no
// later than t and inside its validity window.
func (a *RecordingAct) IsAliveAt(t time.Time) bool {
	if a.IsEmpty() || !a.IsActive() {
		return false
	}
	presented := a.Record.PresentationTime
	if presented.After(t) {
		return false
	}
	if validity, ok := a.Type.Validity(); ok && t.After(presented.Add(validity)) {
		return false
	}
	return true
}

// ClosabilityIssues lists what keeps the act from being closed.
func (a *RecordingAct) ClosabilityIssues() []string {
	var issues []string
	label := a.Type.Label() + " sobre " + a.ResourceUID
	if !a.IsActive() {
		issues = append(issues, label+" no está vigente")
	}
	if a.Type.IsDomainAct && len(a.Parties) == 0 {
		issues = append(issues, label+" no tiene partes registradas")
	}
	if a.Type.IsAmendment && a.AmendmentOf.IsNil() {
		issues = append(issues, label+" no indica el acto que modifica")
	}
	return issues
}

func (a *RecordingAct) AddParty(p Party) error {
	if strings.TrimSpace(p.Name) == "" || strings.TrimSpace(p.Role) == "" {
		return dErrors.New(dErrors.CodeValidation, "La parte requiere nombre y rol.")
	}
	if slices.ContainsFunc(a.Parties, func(q Party) bool { return q.ID == p.ID }) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"%s ya figura como parte del acto %s.", p.Name, a.Type.Label())
	}
	a.Parties = append(a.Parties, p)
	return nil
}

// Delete soft-deletes the act.
func (a *RecordingAct) Delete() {
	a.Status = ActStatusDeleted
}

func (a *RecordingAct) ApplyCancel() {
	a.Status = ActStatusCanceled
}

func (a *RecordingAct) ApplyReactivate() {
	a.Status = ActStatusActive
}

// CompareActs orders acts by tract position: record presentation time,
// then record UID for records presented at the same instant, then index.
func CompareActs(a, b *RecordingAct) int {
	if c := a.Record.PresentationTime.Compare(b.Record.PresentationTime); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Record.UID, b.Record.UID); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

func SortActs(acts []*RecordingAct) {
	slices.SortStableFunc(acts, CompareActs)
}
