// Package service runs the land record use cases: creating records,
// appending and removing recording acts under the tract rules, closing with
// a seal, reopening and the signature transitions.
//
// Every mutation holds the record and resource locks for its whole duration
// and runs in one store transaction. Saves recompute the integrity hash;
// loads verify it.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"landreg/internal/platform/lock"
	"landreg/internal/platform/uid"
	"landreg/internal/recording/metrics"
	"landreg/internal/recording/models"
	resm "landreg/internal/resource/models"
	"landreg/internal/security"
	secm "landreg/internal/security/models"
	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
	"landreg/pkg/platform/audit"
	"landreg/pkg/platform/sentinel"
	txcontext "landreg/pkg/platform/tx"
	"landreg/pkg/requestcontext"
)

const defaultUIDAttempts = 10

// Store is the land record persistence port.
type Store interface {
	CreateRecord(ctx context.Context, r *models.LandRecord) error
	SaveRecord(ctx context.Context, r *models.LandRecord) error
	ExistsRecordUID(ctx context.Context, uid string) (bool, error)
	FindRecordByID(ctx context.Context, recordID id.LandRecordID) (*models.LandRecord, error)
	FindRecordByUID(ctx context.Context, uid string) (*models.LandRecord, error)
	FindRecordByTransaction(ctx context.Context, txID id.TransactionID) (*models.LandRecord, error)
	SaveActs(ctx context.Context, acts ...*models.RecordingAct) error
	FindActByID(ctx context.Context, actID id.RecordingActID) (*models.RecordingAct, error)
	ListActsByRecord(ctx context.Context, recordID id.LandRecordID) ([]*models.RecordingAct, error)
}

type ResourceStore interface {
	FindByID(ctx context.Context, resourceID id.ResourceID) (*resm.Resource, error)
}

// Tract runs the resource history rules for a new act.
type Tract interface {
	AssertCanAppend(ctx context.Context, record *models.LandRecord, resource *resm.Resource, newType models.ActType) error
}

// AuditPublisher persists compliance and security events. Emission is
// fail-closed.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// OpsTracker receives routine events without blocking.
type OpsTracker interface {
	Track(event audit.Event)
}

// Deps are the collaborators every land record operation needs.
type Deps struct {
	Store     Store
	Resources ResourceStore
	Catalog   *models.Catalog
	Tract     Tract
	Sealer    *security.Sealer
	Validator *security.Validator
	UIDs      uid.Provider
	Locker    lock.Locker
	Tx        txcontext.Runner
}

type Service struct {
	Deps
	auditor     AuditPublisher
	tracker     OpsTracker
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	uidAttempts int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithOpsTracker(t OpsTracker) Option {
	return func(s *Service) { s.tracker = t }
}

// WithUIDAttempts bounds the generate-and-check loop for record UIDs.
func WithUIDAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.uidAttempts = n
		}
	}
}

func New(deps Deps, opts ...Option) *Service {
	if deps.Locker == nil {
		deps.Locker = lock.NewSharded()
	}
	if deps.Tx == nil {
		deps.Tx = txcontext.DirectRunner{}
	}
	s := &Service{
		Deps:        deps,
		logger:      slog.Default(),
		tracer:      otel.Tracer("landreg/recording"),
		uidAttempts: defaultUIDAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AppendActRequest describes a new recording act.
type AppendActRequest struct {
	TypeID     string
	ResourceID id.ResourceID
	BookEntry  models.BookEntry
	// AmendmentOf names the act amended or canceled by the new one.
	AmendmentOf id.RecordingActID
	Parties     []models.Party
	Notes       string
}

// Prepare builds an unsaved record with a fresh UID. It is persisted by
// its first appended act.
func (s *Service) Prepare(ctx context.Context, src models.RecordSource) (*models.LandRecord, error) {
	recordUID, err := s.generateUID(ctx)
	if err != nil {
		return nil, err
	}
	return models.NewLandRecord(id.NewLandRecordID(), recordUID, src, requestcontext.UserID(ctx), requestcontext.Now(ctx))
}

// Create builds and persists a record for a transaction's instrument.
func (s *Service) Create(ctx context.Context, src models.RecordSource) (*models.LandRecord, error) {
	r, err := s.Prepare(ctx, src)
	if err != nil {
		return nil, err
	}
	if err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.insert(ctx, r); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventLandRecordCreated, r, "")
	}); err != nil {
		return nil, err
	}
	return r, nil
}

// CreateHistoric registers a legacy record from physical books. Historic
// records have no transaction.
func (s *Service) CreateHistoric(ctx context.Context, src models.RecordSource) (*models.LandRecord, error) {
	if len(src.BookEntries) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation,
			"Un documento histórico debe indicar su inscripción en libros.")
	}
	src.TransactionID = id.TransactionID{}
	src.TransactionUID = ""
	return s.Create(ctx, src)
}

func (s *Service) Get(ctx context.Context, recordID id.LandRecordID) (*models.LandRecord, error) {
	r, err := s.Store.FindRecordByID(ctx, recordID)
	return s.loaded(ctx, r, err)
}

func (s *Service) GetByUID(ctx context.Context, recordUID string) (*models.LandRecord, error) {
	r, err := s.Store.FindRecordByUID(ctx, recordUID)
	return s.loaded(ctx, r, err)
}

func (s *Service) GetByTransaction(ctx context.Context, txID id.TransactionID) (*models.LandRecord, error) {
	r, err := s.Store.FindRecordByTransaction(ctx, txID)
	return s.loaded(ctx, r, err)
}

func (s *Service) loaded(ctx context.Context, r *models.LandRecord, err error) (*models.LandRecord, error) {
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "El documento no existe.")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load land record")
	}
	if err := s.EnsureIntegrity(ctx, r); err != nil {
		return nil, err
	}
	if err := s.ensureActs(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// EnsureIntegrity recomputes the content hash of a loaded record. A
// mismatch means the store was modified outside the registry.
func (s *Service) EnsureIntegrity(ctx context.Context, r *models.LandRecord) error {
	if s.Sealer.Hasher().IntegrityHash(r.IntegrityFields()...) == r.IntegrityHash {
		return nil
	}
	if s.metrics != nil {
		s.metrics.IncIntegrityViolations()
	}
	s.logger.ErrorContext(ctx, "land record integrity violation",
		"event", audit.EventIntegrityViolation,
		"log_type", "audit",
		"request_id", requestcontext.RequestID(ctx),
		"record_uid", r.UID,
	)
	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, s.event(ctx, audit.EventIntegrityViolation, r, "integrity hash mismatch")); err != nil {
			s.logger.ErrorContext(ctx, "failed to record integrity violation", "record_uid", r.UID, "error", err)
		}
	}
	return dErrors.Newf(dErrors.CodeIntegrityViolation,
		"El documento %s fue modificado directamente en la base de datos. "+
			"Su contenido no es confiable; notifique al responsable de seguridad.", r.UID)
}

// RefreshRecordingActs reloads the acts cache from the store.
func (s *Service) RefreshRecordingActs(ctx context.Context, r *models.LandRecord) error {
	r.RefreshRecordingActs()
	return s.ensureActs(ctx, r)
}

func (s *Service) ensureActs(ctx context.Context, r *models.LandRecord) error {
	if r.ActsLoaded() {
		return nil
	}
	acts, err := s.Store.ListActsByRecord(ctx, r.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load recording acts")
	}
	r.SetRecordingActs(acts)
	return nil
}

// AppendRecordingAct adds an act to r after the tract rules pass. A record
// that was never saved is committed first, on its own, and stays
// persisted if the act is rejected.
func (s *Service) AppendRecordingAct(ctx context.Context, r *models.LandRecord, req AppendActRequest) (*models.RecordingAct, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "recording.AppendRecordingAct", trace.WithAttributes(
		attribute.String("record_uid", r.UID),
		attribute.String("act_type", req.TypeID),
	))
	defer span.End()

	actType, ok := s.Catalog.Get(req.TypeID)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeValidation, "El tipo de acto jurídico %s no existe.", req.TypeID)
	}
	if actType.IsAmendment && req.AmendmentOf.IsNil() {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"El acto %s requiere indicar el acto jurídico que modifica.", actType.Label())
	}

	keys := []string{lock.RecordKey(r.ID.String()), lock.ResourceKey(req.ResourceID.String())}
	if !req.AmendmentOf.IsNil() {
		target, err := s.findAct(ctx, req.AmendmentOf)
		if err != nil {
			return nil, err
		}
		keys = append(keys, lock.RecordKey(target.Record.ID.String()))
	}
	release, err := s.Locker.LockAll(ctx, keys...)
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	if r.IsNew() {
		if err := s.persistNew(ctx, r); err != nil {
			return nil, err
		}
	}

	user, now := requestcontext.UserID(ctx), requestcontext.Now(ctx)
	version := r.Version
	var act *models.RecordingAct
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.ensureActs(ctx, r); err != nil {
			return err
		}
		resource, err := s.findResource(ctx, req.ResourceID)
		if err != nil {
			return err
		}
		if err := r.CanEditActs(); err != nil {
			return err
		}
		if err := s.Tract.AssertCanAppend(ctx, r, resource, actType); err != nil {
			return err
		}
		var target *models.RecordingAct
		if !req.AmendmentOf.IsNil() {
			if target, err = s.amendmentTarget(ctx, r, resource, req.AmendmentOf); err != nil {
				return err
			}
		}

		a, err := r.AppendRecordingAct(id.NewRecordingActID(), actType, resource, req.BookEntry, user, now)
		if err != nil {
			return err
		}
		a.AmendmentOf = req.AmendmentOf
		a.Notes = req.Notes
		for _, p := range req.Parties {
			if p.ID.IsNil() {
				p.ID = id.NewPartyID()
			}
			if err := a.AddParty(p); err != nil {
				return err
			}
		}
		changed := []*models.RecordingAct{a}
		if target != nil && actType.IsCancelation {
			target.ApplyCancel()
			changed = append(changed, target)
		}
		if err := s.save(ctx, r); err != nil {
			return err
		}
		if err := s.Store.SaveActs(ctx, changed...); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save recording acts")
		}
		act = a
		return nil
	})
	if err != nil {
		r.Version = version
		r.RefreshRecordingActs()
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncActsAppended()
		s.metrics.ObserveAppend(start)
	}
	s.track(ctx, audit.EventRecordingActAdded, r, act.Type.ID+" "+act.ResourceUID)
	return act, nil
}

// amendmentTarget loads the act amended by a new one. It must be an active
// act on the same resource inside another, already closed record.
func (s *Service) amendmentTarget(ctx context.Context, r *models.LandRecord, resource *resm.Resource,
	actID id.RecordingActID) (*models.RecordingAct, error) {
	target, err := s.findAct(ctx, actID)
	if err != nil {
		return nil, err
	}
	switch {
	case target.ResourceID != resource.ID:
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"El acto %s no está registrado sobre el folio %s.", target.Type.Label(), resource.UID)
	case !target.IsActive():
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"El acto %s del documento %s ya no está vigente.", target.Type.Label(), target.Record.UID)
	case target.Record.ID == r.ID:
		return nil, dErrors.New(dErrors.CodeInvariantViolation,
			"Un acto no puede modificar a otro acto del mismo documento.")
	case !target.Record.IsClosed() && !target.Record.Historic:
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"El acto %s pertenece al documento %s, que aún no ha sido cerrado.", target.Type.Label(), target.Record.UID)
	}
	return target, nil
}

// RemoveRecordingAct soft-deletes an act of r. Removing a cancellation
// reactivates the act it canceled.
func (s *Service) RemoveRecordingAct(ctx context.Context, r *models.LandRecord, actID id.RecordingActID) error {
	ctx, span := s.tracer.Start(ctx, "recording.RemoveRecordingAct",
		trace.WithAttributes(attribute.String("record_uid", r.UID)))
	defer span.End()

	act, err := s.findAct(ctx, actID)
	if err != nil {
		return err
	}
	keys := []string{lock.RecordKey(r.ID.String()), lock.ResourceKey(act.ResourceID.String())}
	if !act.AmendmentOf.IsNil() {
		if target, err := s.findAct(ctx, act.AmendmentOf); err == nil {
			keys = append(keys, lock.RecordKey(target.Record.ID.String()))
		}
	}
	release, err := s.Locker.LockAll(ctx, keys...)
	if err != nil {
		return lockError(err)
	}
	defer release()

	var removed *models.RecordingAct
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.ensureActs(ctx, r); err != nil {
			return err
		}
		var moved []*models.RecordingAct
		removed, moved, err = r.RemoveRecordingAct(actID)
		if err != nil {
			return err
		}
		changed := append([]*models.RecordingAct{removed}, moved...)
		if removed.Type.IsCancelation && !removed.AmendmentOf.IsNil() {
			target, err := s.findAct(ctx, removed.AmendmentOf)
			if err != nil {
				return err
			}
			if target.Status == models.ActStatusCanceled {
				target.ApplyReactivate()
				changed = append(changed, target)
			}
		}
		if err := s.save(ctx, r); err != nil {
			return err
		}
		if err := s.Store.SaveActs(ctx, changed...); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save recording acts")
		}
		return nil
	})
	if err != nil {
		r.RefreshRecordingActs()
		return err
	}

	if s.metrics != nil {
		s.metrics.IncActsRemoved()
	}
	s.track(ctx, audit.EventRecordingActRemoved, r, removed.Type.ID+" "+removed.ResourceUID)
	return nil
}

// AddParty adds a party to one of r's acts.
func (s *Service) AddParty(ctx context.Context, r *models.LandRecord, actID id.RecordingActID, party models.Party) (*models.Party, error) {
	release, err := s.Locker.LockAll(ctx, lock.RecordKey(r.ID.String()))
	if err != nil {
		return nil, lockError(err)
	}
	defer release()

	if party.ID.IsNil() {
		party.ID = id.NewPartyID()
	}
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.ensureActs(ctx, r); err != nil {
			return err
		}
		if err := r.CanEditActs(); err != nil {
			return err
		}
		act, ok := r.FindRecordingAct(actID)
		if !ok {
			return dErrors.Newf(dErrors.CodeNotFound, "El acto jurídico no pertenece al documento %s.", r.UID)
		}
		if err := act.AddParty(party); err != nil {
			return err
		}
		if err := s.save(ctx, r); err != nil {
			return err
		}
		return dErrors.Wrap(s.Store.SaveActs(ctx, act), dErrors.CodeInternal, "failed to save recording act")
	})
	if err != nil {
		r.RefreshRecordingActs()
		return nil, err
	}
	return &party, nil
}

// Close validates, seals and closes r.
func (s *Service) Close(ctx context.Context, r *models.LandRecord) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "recording.Close", trace.WithAttributes(attribute.String("record_uid", r.UID)))
	defer span.End()

	err := s.mutateWithActLocks(ctx, r, func(ctx context.Context) error {
		if err := s.Validator.AssertCanBeClosed(r.Facts()); err != nil {
			return err
		}
		r.ApplyClose(requestcontext.UserID(ctx), requestcontext.Now(ctx))
		seal, err := s.Sealer.SealRecord(r.SealSource())
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seal land record")
		}
		r.Security.ApplySeal(seal.Version, seal.DigitalSeal, seal.SecurityHash)
		if err := s.save(ctx, r); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventLandRecordClosed, r, string(seal.Version))
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncRecordsClosed()
		s.metrics.ObserveClose(start)
	}
	return nil
}

// Open reverses Close. Signed records must be revoked first.
func (s *Service) Open(ctx context.Context, r *models.LandRecord) error {
	ctx, span := s.tracer.Start(ctx, "recording.Open", trace.WithAttributes(attribute.String("record_uid", r.UID)))
	defer span.End()

	err := s.mutateWithActLocks(ctx, r, func(ctx context.Context) error {
		if err := s.Validator.AssertCanBeOpened(ctx, r.Facts(), requestcontext.UserID(ctx)); err != nil {
			return err
		}
		r.ApplyOpen()
		if err := s.save(ctx, r); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventLandRecordOpened, r, "")
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncRecordsOpened()
	}
	return nil
}

// mutateWithActLocks locks r and every resource it touches, then runs fn in
// a transaction.
func (s *Service) mutateWithActLocks(ctx context.Context, r *models.LandRecord, fn func(ctx context.Context) error) error {
	if err := s.ensureActs(ctx, r); err != nil {
		return err
	}
	keys := []string{lock.RecordKey(r.ID.String())}
	for _, a := range r.RecordingActs() {
		keys = append(keys, lock.ResourceKey(a.ResourceID.String()))
	}
	release, err := s.Locker.LockAll(ctx, keys...)
	if err != nil {
		return lockError(err)
	}
	defer release()
	return s.Tx.RunInTx(ctx, fn)
}

// PrepareForElectronicSign assigns signer to a closed record.
func (s *Service) PrepareForElectronicSign(ctx context.Context, r *models.LandRecord, signer id.UserID) error {
	return s.signOperation(ctx, r, "prepare", func(ctx context.Context) error {
		if err := s.Validator.AssertCanPrepareForElectronicSign(r.Facts()); err != nil {
			return err
		}
		r.Security.ApplyElectronicSignRequest(signer, uuid.NewString())
		return s.save(ctx, r)
	})
}

// SetManualSignData records a handwritten signature.
func (s *Service) SetManualSignData(ctx context.Context, r *models.LandRecord) error {
	return s.signOperation(ctx, r, "manual", func(ctx context.Context) error {
		if err := s.Validator.AssertCanSetManualSign(r.Facts()); err != nil {
			return err
		}
		r.Security.ApplySign(secm.SignTypeManual, requestcontext.UserID(ctx), requestcontext.Now(ctx))
		if err := s.save(ctx, r); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventLandRecordSigned, r, string(secm.SignTypeManual))
	})
}

// Sign applies a prepared electronic signature.
func (s *Service) Sign(ctx context.Context, r *models.LandRecord) error {
	return s.signOperation(ctx, r, "electronic", func(ctx context.Context) error {
		user := requestcontext.UserID(ctx)
		if err := s.Validator.AssertCanBeSigned(ctx, r.Facts(), user); err != nil {
			return err
		}
		r.Security.ApplySign(secm.SignTypeElectronic, user, requestcontext.Now(ctx))
		if err := s.save(ctx, r); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventLandRecordSigned, r, string(secm.SignTypeElectronic))
	})
}

// RevokeSignData revokes the signature of a signed record.
func (s *Service) RevokeSignData(ctx context.Context, r *models.LandRecord, reason string) error {
	return s.signOperation(ctx, r, "revoke", func(ctx context.Context) error {
		user := requestcontext.UserID(ctx)
		if err := s.Validator.AssertCanRevokeSign(ctx, r.Facts(), user); err != nil {
			return err
		}
		r.Security.ApplyRevoke(user, requestcontext.Now(ctx))
		if err := s.save(ctx, r); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventLandRecordUnsigned, r, reason)
	})
}

func (s *Service) signOperation(ctx context.Context, r *models.LandRecord, operation string, fn func(ctx context.Context) error) error {
	if err := s.ensureActs(ctx, r); err != nil {
		return err
	}
	release, err := s.Locker.LockAll(ctx, lock.RecordKey(r.ID.String()))
	if err != nil {
		return lockError(err)
	}
	defer release()
	if err := s.Tx.RunInTx(ctx, fn); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncSignOperation(operation)
	}
	return nil
}

func (s *Service) generateUID(ctx context.Context) (string, error) {
	for range s.uidAttempts {
		candidate := s.UIDs.GenerateRecordID()
		exists, err := s.Store.ExistsRecordUID(ctx, candidate)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check record uid")
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", dErrors.New(dErrors.CodeInternal, "could not generate a unique record uid")
}

func (s *Service) insert(ctx context.Context, r *models.LandRecord) error {
	r.IntegrityHash = s.Sealer.Hasher().IntegrityHash(r.IntegrityFields()...)
	if err := s.Store.CreateRecord(ctx, r); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return dErrors.Newf(dErrors.CodeConflict, "El documento %s ya existe.", r.UID)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create land record")
	}
	return nil
}

// persistNew commits a prepared record on its own so acts can reference it.
// A failed commit leaves r new.
func (s *Service) persistNew(ctx context.Context, r *models.LandRecord) error {
	err := s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.insert(ctx, r); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventLandRecordCreated, r, "")
	})
	if err != nil {
		r.Version = 0
		return err
	}
	r.SetRecordingActs(nil)
	return nil
}

func (s *Service) save(ctx context.Context, r *models.LandRecord) error {
	r.IntegrityHash = s.Sealer.Hasher().IntegrityHash(r.IntegrityFields()...)
	if err := s.Store.SaveRecord(ctx, r); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return dErrors.Newf(dErrors.CodeConflict,
				"El documento %s fue modificado por otro usuario. Vuelva a cargarlo.", r.UID)
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "El documento no existe.")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save land record")
		}
	}
	return nil
}

func (s *Service) findAct(ctx context.Context, actID id.RecordingActID) (*models.RecordingAct, error) {
	a, err := s.Store.FindActByID(ctx, actID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "El acto jurídico no existe.")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load recording act")
	}
	return a, nil
}

func (s *Service) findResource(ctx context.Context, resourceID id.ResourceID) (*resm.Resource, error) {
	res, err := s.Resources.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "El folio sobre el que se registra el acto no existe.")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load resource")
	}
	return res, nil
}

func lockError(err error) error {
	if errors.Is(err, sentinel.ErrLocked) {
		return dErrors.Wrap(err, dErrors.CodeConflict,
			"El documento está siendo modificado por otro usuario. Intente de nuevo.")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire lock")
}

func (s *Service) event(ctx context.Context, event audit.AuditEvent, r *models.LandRecord, reason string) audit.Event {
	return audit.Event{
		Timestamp:     requestcontext.Now(ctx),
		ActorID:       requestcontext.UserID(ctx),
		AggregateType: "land_record",
		AggregateID:   r.ID.String(),
		Subject:       r.UID,
		Action:        string(event),
		Reason:        reason,
		RequestID:     requestcontext.RequestID(ctx),
	}
}

// emit logs and persists a compliance event. A failed write aborts the
// surrounding operation.
func (s *Service) emit(ctx context.Context, event audit.AuditEvent, r *models.LandRecord, reason string) error {
	s.logAudit(ctx, event, r)
	if s.auditor == nil {
		return nil
	}
	if err := s.auditor.Emit(ctx, s.event(ctx, event, r, reason)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) track(ctx context.Context, event audit.AuditEvent, r *models.LandRecord, reason string) {
	s.logAudit(ctx, event, r)
	if s.tracker != nil {
		e := s.event(ctx, event, r, reason)
		e.Category = event.Category()
		s.tracker.Track(e)
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, r *models.LandRecord) {
	s.logger.InfoContext(ctx, string(event),
		"event", event,
		"log_type", "audit",
		"request_id", requestcontext.RequestID(ctx),
		"record_uid", r.UID,
		"transaction_uid", r.TransactionUID,
	)
}
