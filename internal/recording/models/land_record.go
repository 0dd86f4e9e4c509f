// Package models holds the land record aggregate, its recording acts and
// the act type catalog.
package models

import (
	"slices"
	"strings"
	"time"

	resm "landreg/internal/resource/models"
	secm "landreg/internal/security/models"
	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
)

type RecordStatus string

const (
	RecordStatusIncomplete RecordStatus = "Incomplete"
	RecordStatusClosed     RecordStatus = "Closed"
)

// RecordSource carries the instrument data a land record is created from.
type RecordSource struct {
	TransactionID    id.TransactionID
	TransactionUID   string
	InstrumentUID    string
	PresentationTime time.Time
	IssueDate        time.Time
	BookEntries      []BookEntry
}

// LandRecord is the registration of one legal instrument.
//
// Its acts are an explicitly managed cache: SetRecordingActs fills it and
// RefreshRecordingActs drops it. Act mutations require a loaded cache.
type LandRecord struct {
	ID                id.LandRecordID
	UID               string
	TransactionID     id.TransactionID
	TransactionUID    string
	InstrumentUID     string
	PresentationTime  time.Time
	IssueDate         time.Time
	AuthorizationTime *time.Time
	AuthorizedBy      id.UserID
	Status            RecordStatus
	BookEntries       []BookEntry
	Security          secm.SecurityData
	IntegrityHash     string
	CreatedAt         time.Time
	CreatedBy         id.UserID
	// Version is the optimistic concurrency counter; zero until first saved.
	Version int64

	acts       []*RecordingAct
	actsLoaded bool
}

// NewLandRecord builds an unsaved record. Records without a transaction are
// historic imports and need an explicit presentation time.
func NewLandRecord(recordID id.LandRecordID, uid string, src RecordSource, createdBy id.UserID, now time.Time) (*LandRecord, error) {
	if src.TransactionID.IsNil() && len(src.BookEntries) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation,
			"Un documento sin trámite debe indicar su inscripción en libros.")
	}
	if src.PresentationTime.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation,
			"El documento requiere fecha de presentación.")
	}
	return &LandRecord{
		ID:               recordID,
		UID:              uid,
		TransactionID:    src.TransactionID,
		TransactionUID:   src.TransactionUID,
		InstrumentUID:    src.InstrumentUID,
		PresentationTime: src.PresentationTime,
		IssueDate:        src.IssueDate,
		Status:           RecordStatusIncomplete,
		BookEntries:      slices.Clone(src.BookEntries),
		Security:         secm.NewSecurityData(),
		CreatedAt:        now,
		CreatedBy:        createdBy,
		acts:             []*RecordingAct{},
		actsLoaded:       true,
	}, nil
}

func (r *LandRecord) IsEmpty() bool { return r == nil || r.ID.IsNil() }

func (r *LandRecord) IsNew() bool { return r.Version == 0 }

func (r *LandRecord) IsClosed() bool { return r.Status == RecordStatusClosed }

// IsHistoric reports legacy data: no linked transaction, or registered in
// physical books. Historic records may always be edited.
func (r *LandRecord) IsHistoric() bool {
	return r.TransactionID.IsNil() || len(r.BookEntries) > 0
}

func (r *LandRecord) HasBookEntries() bool { return len(r.BookEntries) > 0 }

// Info is the record data copied onto its acts.
func (r *LandRecord) Info() RecordInfo {
	return RecordInfo{
		ID:               r.ID,
		UID:              r.UID,
		TransactionID:    r.TransactionID,
		PresentationTime: r.PresentationTime,
		IssueDate:        r.IssueDate,
		Status:           r.Status,
		Historic:         r.IsHistoric(),
	}
}

func (r *LandRecord) ActsLoaded() bool { return r.actsLoaded }

// RecordingActs returns the cached acts in index order, or nil when the
// cache is not loaded.
func (r *LandRecord) RecordingActs() []*RecordingAct {
	if !r.actsLoaded {
		return nil
	}
	return slices.Clone(r.acts)
}

// SetRecordingActs fills the cache with the record's non-deleted acts.
func (r *LandRecord) SetRecordingActs(acts []*RecordingAct) {
	r.acts = make([]*RecordingAct, 0, len(acts))
	for _, a := range acts {
		if a.Status != ActStatusDeleted {
			r.acts = append(r.acts, a)
		}
	}
	slices.SortFunc(r.acts, func(a, b *RecordingAct) int { return a.Index - b.Index })
	r.actsLoaded = true
}

// RefreshRecordingActs drops the cache; the next reader reloads it.
func (r *LandRecord) RefreshRecordingActs() {
	r.acts = nil
	r.actsLoaded = false
}

func (r *LandRecord) FindRecordingAct(actID id.RecordingActID) (*RecordingAct, bool) {
	for _, a := range r.acts {
		if a.ID == actID {
			return a, true
		}
	}
	return nil, false
}

// CanEditActs holds for non-empty records that are open or historic.
func (r *LandRecord) CanEditActs() error {
	if r.IsEmpty() {
		return dErrors.New(dErrors.CodeInvariantViolation, "El documento está vacío.")
	}
	if r.IsClosed() && !r.IsHistoric() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El documento %s está cerrado y no puede modificarse.", r.UID)
	}
	if !r.actsLoaded {
		return dErrors.Newf(dErrors.CodeInternal, "recording acts of %s are not loaded", r.UID)
	}
	return nil
}

// AppendRecordingAct builds a new act of actType on resource and appends it.
func (r *LandRecord) AppendRecordingAct(actID id.RecordingActID, actType ActType, resource *resm.Resource,
	entry BookEntry, createdBy id.UserID, now time.Time) (*RecordingAct, error) {
	if resource.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "Se requiere el folio sobre el que se registra el acto.")
	}
	act := &RecordingAct{
		ID:          actID,
		Type:        actType,
		ResourceID:  resource.ID,
		ResourceUID: resource.UID,
		Status:      ActStatusActive,
		BookEntry:   entry,
		CreatedAt:   now,
		CreatedBy:   createdBy,
	}
	if err := r.AttachRecordingAct(act); err != nil {
		return nil, err
	}
	return act, nil
}

// AttachRecordingAct appends an already built act, assigning its index as
// its position in the record.
func (r *LandRecord) AttachRecordingAct(act *RecordingAct) error {
	if err := r.CanEditActs(); err != nil {
		return err
	}
	if act.IsEmpty() || act.Type.IsEmpty() || act.ResourceID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "El acto jurídico está incompleto.")
	}
	if r.HasBookEntries() && act.BookEntry.IsEmpty() {
		return dErrors.Newf(dErrors.CodeValidation,
			"El documento %s está inscrito en libros; el acto requiere su partida.", r.UID)
	}
	if _, dup := r.FindRecordingAct(act.ID); dup {
		return dErrors.New(dErrors.CodeInvariantViolation, "El acto jurídico ya pertenece al documento.")
	}
	act.Record = r.Info()
	act.Index = len(r.acts)
	r.acts = append(r.acts, act)
	return nil
}

// RemoveRecordingAct soft-deletes one of the record's acts and closes the
// gap in the remaining indices. It returns the acts whose index changed.
func (r *LandRecord) RemoveRecordingAct(actID id.RecordingActID) (*RecordingAct, []*RecordingAct, error) {
	if err := r.CanEditActs(); err != nil {
		return nil, nil, err
	}
	pos := slices.IndexFunc(r.acts, func(a *RecordingAct) bool { return a.ID == actID })
	if pos < 0 {
		return nil, nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"El acto jurídico no pertenece al documento %s.", r.UID)
	}
	act := r.acts[pos]
	act.Delete()
	r.acts = slices.Delete(r.acts, pos, pos+1)

	var moved []*RecordingAct
	for i := pos; i < len(r.acts); i++ {
		r.acts[i].Index = i
		moved = append(moved, r.acts[i])
	}
	return act, moved, nil
}

// Facts summarizes the record for the security validator.
func (r *LandRecord) Facts() secm.RecordFacts {
	f := secm.RecordFacts{
		UID:            r.UID,
		IsClosed:       r.IsClosed(),
		IsHistoric:     r.IsHistoric(),
		HasTransaction: !r.TransactionID.IsNil(),
		ActCount:       len(r.acts),
		Security:       r.Security,
	}
	for _, a := range r.acts {
		f.UnclosableActs = append(f.UnclosableActs, a.ClosabilityIssues()...)
	}
	return f
}

// ApplyClose flips the record to closed. Historic records keep no
// authorization stamp.
func (r *LandRecord) ApplyClose(by id.UserID, now time.Time) {
	r.Status = RecordStatusClosed
	if !r.IsHistoric() {
		r.AuthorizationTime = &now
		r.AuthorizedBy = by
	}
	r.syncActInfo()
}

// ApplyOpen reverses ApplyClose and drops the seal.
func (r *LandRecord) ApplyOpen() {
	r.Status = RecordStatusIncomplete
	r.AuthorizationTime = nil
	r.AuthorizedBy = id.UserID{}
	r.Security.ClearSeal()
	r.syncActInfo()
}

func (r *LandRecord) syncActInfo() {
	info := r.Info()
	for _, a := range r.acts {
		a.Record = info
	}
}

// SealSource lists the content the record seal binds, acts in index order.
func (r *LandRecord) SealSource() secm.SealSource {
	src := secm.SealSource{
		TransactionUID:   r.TransactionUID,
		RecordUID:        r.UID,
		RecordID:         r.ID,
		InstrumentUID:    r.InstrumentUID,
		PresentationTime: r.PresentationTime,
		HasBookEntries:   r.HasBookEntries(),
	}
	if r.AuthorizationTime != nil {
		src.AuthorizationTime = *r.AuthorizationTime
	}
	for _, a := range r.acts {
		act := secm.SealAct{TypeID: a.Type.ID, ActID: a.ID, ResourceUID: a.ResourceUID}
		for _, p := range a.Parties {
			act.Parties = append(act.Parties, secm.SealParty{ID: p.ID, Role: p.Role, Name: p.Name})
		}
		src.Acts = append(src.Acts, act)
	}
	return src
}

// IntegrityFields are the persisted values covered by IntegrityHash.
func (r *LandRecord) IntegrityFields() []string {
	fields := []string{
		r.ID.String(), r.UID, r.TransactionID.String(), r.TransactionUID, r.InstrumentUID,
		formatTime(r.PresentationTime), formatTime(r.IssueDate), r.AuthorizedBy.String(),
		string(r.Status),
	}
	if r.AuthorizationTime != nil {
		fields = append(fields, formatTime(*r.AuthorizationTime))
	}
	for _, b := range r.BookEntries {
		fields = append(fields, b.String())
	}
	return append(fields, r.Security.IntegrityFields()...)
}

// formatTime truncates to the precision Postgres keeps.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano)
}

// Describe lists the acts for logs and certificates.
func (r *LandRecord) Describe() string {
	parts := make([]string, 0, len(r.acts))
	for _, a := range r.acts {
		parts = append(parts, a.Type.Label()+" ("+a.ResourceUID+")")
	}
	return r.UID + ": " + strings.Join(parts, ", ")
}
