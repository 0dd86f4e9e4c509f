// Package service issues registry certificates: statements about the
// current tract of a folio, sealed and signed like land records.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"landreg/internal/certificate/models"
	"landreg/internal/platform/lock"
	"landreg/internal/platform/uid"
	"landreg/internal/security"
	secm "landreg/internal/security/models"
	txm "landreg/internal/transaction/models"
	wfm "landreg/internal/workflow/models"
	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
	"landreg/pkg/platform/audit"
	"landreg/pkg/platform/sentinel"
	txcontext "landreg/pkg/platform/tx"
	"landreg/pkg/requestcontext"
)

const defaultUIDAttempts = 10

// Store is the certificate persistence port.
type Store interface {
	Create(ctx context.Context, c *models.Certificate) error
	Save(ctx context.Context, c *models.Certificate) error
	FindByID(ctx context.Context, certID id.CertificateID) (*models.Certificate, error)
	FindByUID(ctx context.Context, uid string) (*models.Certificate, error)
	ExistsUID(ctx context.Context, uid string) (bool, error)
	ListByTransaction(ctx context.Context, txID id.TransactionID) ([]*models.Certificate, error)
}

type TransactionStore interface {
	FindByID(ctx context.Context, txID id.TransactionID) (*txm.Transaction, error)
}

// AuditPublisher persists compliance and security events. Emission is
// fail-closed.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type OpsTracker interface {
	Track(event audit.Event)
}

// Deps are the collaborators of the certificate service.
type Deps struct {
	Store        Store
	Transactions TransactionStore
	Resources    ResourceStore
	Text         *TextBuilder
	Sealer       *security.Sealer
	Validator    *security.Validator
	UIDs         uid.Provider
	Locker       lock.Locker
	Tx           txcontext.Runner
}

type Service struct {
	Deps
	auditor     AuditPublisher
	tracker     OpsTracker
	logger      *slog.Logger
	tracer      trace.Tracer
	uidAttempts int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithOpsTracker(t OpsTracker) Option {
	return func(s *Service) { s.tracker = t }
}

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
		tracer:      otel.Tracer("landreg/certificate"),
		uidAttempts: defaultUIDAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest names what a certificate is requested for. The owner name
// is only read by no-property certificates.
type CreateRequest struct {
	Type          models.Type
	TransactionID id.TransactionID
	ResourceID    id.ResourceID
	OwnerName     string
}

// Create registers a pending certificate inside a live transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Certificate, error) {
	t, err := s.findTransaction(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	if t.Status == wfm.StatusDeleted {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s fue eliminado.", t.UID)
	}

	modelReq := models.Request{
		Type:           req.Type,
		TransactionID:  t.ID,
		TransactionUID: t.UID,
		OwnerName:      req.OwnerName,
	}
	if req.Type.RequiresResource() {
		resource, err := s.Resources.FindByID(ctx, req.ResourceID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeValidation, "El folio del certificado no existe.")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load resource")
		}
		modelReq.ResourceID = resource.ID
		modelReq.ResourceUID = resource.UID
	}

	var c *models.Certificate
	err = s.Tx.RunInTx(ctx, func(ctx context.Context) error {
		code, err := s.generateUID(ctx)
		if err != nil {
			return err
		}
		c, err = models.NewCertificate(id.NewCertificateID(), code, modelReq,
			requestcontext.UserID(ctx), requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		c.IntegrityHash = s.Sealer.Hasher().IntegrityHash(c.IntegrityFields()...)
		if err := s.Store.Create(ctx, c); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.Newf(dErrors.CodeConflict, "El certificado %s ya existe.", c.UID)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create certificate")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "certificate created",
		"certificate_uid", c.UID,
		"type", c.Type,
		"transaction_uid", c.TransactionUID,
	)
	return c, nil
}

func (s *Service) Get(ctx context.Context, certID id.CertificateID) (*models.Certificate, error) {
	c, err := s.Store.FindByID(ctx, certID)
	return s.loaded(ctx, c, err)
}

func (s *Service) GetByUID(ctx context.Context, certUID string) (*models.Certificate, error) {
	c, err := s.Store.FindByUID(ctx, certUID)
	return s.loaded(ctx, c, err)
}

// ListByTransaction returns the certificates of a transaction, verifying
// each one.
func (s *Service) ListByTransaction(ctx context.Context, txID id.TransactionID) ([]*models.Certificate, error) {
	list, err := s.Store.ListByTransaction(ctx, txID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list certificates")
	}
	for _, c := range list {
		if err := s.EnsureIntegrity(ctx, c); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (s *Service) loaded(ctx context.Context, c *models.Certificate, err error) (*models.Certificate, error) {
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "El certificado no existe.")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load certificate")
	}
	if err := s.EnsureIntegrity(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// EnsureIntegrity recomputes the content hash of a loaded certificate.
func (s *Service) EnsureIntegrity(ctx context.Context, c *models.Certificate) error {
	if s.Sealer.Hasher().IntegrityHash(c.IntegrityFields()...) == c.IntegrityHash {
		return nil
	}
	s.logger.ErrorContext(ctx, "certificate integrity violation",
		"event", audit.EventIntegrityViolation,
		"log_type", "audit",
		"request_id", requestcontext.RequestID(ctx),
		"certificate_uid", c.UID,
	)
	if s.auditor != nil {
		if err := s.auditor.Emit(ctx, s.event(ctx, audit.EventIntegrityViolation, c, "integrity hash mismatch")); err != nil {
			s.logger.ErrorContext(ctx, "failed to record integrity violation", "certificate_uid", c.UID, "error", err)
		}
	}
	return dErrors.Newf(dErrors.CodeIntegrityViolation,
		"El certificado %s fue modificado directamente en la base de datos. "+
			"Su contenido no es confiable; notifique al responsable de seguridad.", c.UID)
}

// Issue renders the certificate text from the current tract, seals it and
// closes the certificate. The transaction must be paid.
func (s *Service) Issue(ctx context.Context, c *models.Certificate) error {
	ctx, span := s.tracer.Start(ctx, "certificate.Issue", trace.WithAttributes(
		attribute.String("certificate_uid", c.UID),
		attribute.String("type", string(c.Type)),
	))
	defer span.End()

	return s.mutate(ctx, c, func(ctx context.Context) error {
		if err := c.CanIssue(); err != nil {
			return err
		}
		t, err := s.findTransaction(ctx, c.TransactionID)
		if err != nil {
			return err
		}
		if !t.IsPaid() {
			return dErrors.Newf(dErrors.CodeInvariantViolation,
				"El trámite %s no ha sido pagado.", t.UID)
		}
		now := requestcontext.Now(ctx)
		text, err := s.Text.Build(ctx, c, now)
		if err != nil {
			return err
		}
		c.ApplyIssue(text, requestcontext.UserID(ctx), now)
		seal, err := s.Sealer.SealCertificate(c.SealSource())
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to seal certificate")
		}
		c.Security.ApplySeal(seal.Version, seal.DigitalSeal, seal.SecurityHash)
		if err := s.save(ctx, c); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventCertificateIssued, c, string(seal.Version))
	})
}

// Open returns an issued, unsigned certificate to pending.
func (s *Service) Open(ctx context.Context, c *models.Certificate) error {
	return s.mutate(ctx, c, func(ctx context.Context) error {
		if err := s.Validator.AssertCanBeOpened(ctx, c.Facts(), requestcontext.UserID(ctx)); err != nil {
			return err
		}
		c.ApplyOpen()
		if err := s.save(ctx, c); err != nil {
			return err
		}
		s.track(ctx, audit.EventCertificateOpened, c, "")
		return nil
	})
}

// Delete discards a pending certificate.
func (s *Service) Delete(ctx context.Context, c *models.Certificate, reason string) error {
	return s.mutate(ctx, c, func(ctx context.Context) error {
		if err := c.CanDelete(); err != nil {
			return err
		}
		c.ApplyDelete()
		if err := s.save(ctx, c); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventCertificateDeleted, c, reason)
	})
}

// PrepareForElectronicSign assigns signer to an issued certificate.
func (s *Service) PrepareForElectronicSign(ctx context.Context, c *models.Certificate, signer id.UserID) error {
	return s.mutate(ctx, c, func(ctx context.Context) error {
		if err := s.Validator.AssertCanPrepareForElectronicSign(c.Facts()); err != nil {
			return err
		}
		c.Security.ApplyElectronicSignRequest(signer, uuid.NewString())
		return s.save(ctx, c)
	})
}

// SetManualSignData records a handwritten signature.
func (s *Service) SetManualSignData(ctx context.Context, c *models.Certificate) error {
	return s.mutate(ctx, c, func(ctx context.Context) error {
		if err := s.Validator.AssertCanSetManualSign(c.Facts()); err != nil {
			return err
		}
		c.Security.ApplySign(secm.SignTypeManual, requestcontext.UserID(ctx), requestcontext.Now(ctx))
		return s.save(ctx, c)
	})
}

// Sign applies a prepared electronic signature.
func (s *Service) Sign(ctx context.Context, c *models.Certificate) error {
	return s.mutate(ctx, c, func(ctx context.Context) error {
		user := requestcontext.UserID(ctx)
		if err := s.Validator.AssertCanBeSigned(ctx, c.Facts(), user); err != nil {
			return err
		}
		c.Security.ApplySign(secm.SignTypeElectronic, user, requestcontext.Now(ctx))
		return s.save(ctx, c)
	})
}

func (s *Service) RevokeSignData(ctx context.Context, c *models.Certificate, reason string) error {
	return s.mutate(ctx, c, func(ctx context.Context) error {
		user := requestcontext.UserID(ctx)
		if err := s.Validator.AssertCanRevokeSign(ctx, c.Facts(), user); err != nil {
			return err
		}
		c.Security.ApplyRevoke(user, requestcontext.Now(ctx))
		if err := s.save(ctx, c); err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "certificate sign revoked",
			"log_type", "audit",
			"request_id", requestcontext.RequestID(ctx),
			"certificate_uid", c.UID,
			"reason", reason,
		)
		return nil
	})
}

// mutate locks the certificate and, when it has one, its folio, then runs
// fn in a transaction.
func (s *Service) mutate(ctx context.Context, c *models.Certificate, fn func(ctx context.Context) error) error {
	keys := []string{lock.CertificateKey(c.ID.String())}
	if !c.ResourceID.IsNil() {
		keys = append(keys, lock.ResourceKey(c.ResourceID.String()))
	}
	release, err := s.Locker.LockAll(ctx, keys...)
	if err != nil {
		if errors.Is(err, sentinel.ErrLocked) {
			return dErrors.Wrap(err, dErrors.CodeConflict,
				"El certificado está siendo modificado por otro usuario. Intente de nuevo.")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire lock")
	}
	defer release()
	return s.Tx.RunInTx(ctx, fn)
}

func (s *Service) generateUID(ctx context.Context) (string, error) {
	for range s.uidAttempts {
		candidate := s.UIDs.GenerateCertificateID()
		exists, err := s.Store.ExistsUID(ctx, candidate)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check certificate uid")
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", dErrors.New(dErrors.CodeInternal, "could not generate a unique certificate uid")
}

func (s *Service) save(ctx context.Context, c *models.Certificate) error {
	c.IntegrityHash = s.Sealer.Hasher().IntegrityHash(c.IntegrityFields()...)
	if err := s.Store.Save(ctx, c); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return dErrors.Newf(dErrors.CodeConflict,
				"El certificado %s fue modificado por otro usuario. Vuelva a cargarlo.", c.UID)
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "El certificado no existe.")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save certificate")
		}
	}
	return nil
}

func (s *Service) findTransaction(ctx context.Context, txID id.TransactionID) (*txm.Transaction, error) {
	t, err := s.Transactions.FindByID(ctx, txID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeValidation, "El trámite del certificado no existe.")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transaction")
	}
	return t, nil
}

func (s *Service) event(ctx context.Context, event audit.AuditEvent, c *models.Certificate, reason string) audit.Event {
	return audit.Event{
		Timestamp:     requestcontext.Now(ctx),
		ActorID:       requestcontext.UserID(ctx),
		AggregateType: "certificate",
		AggregateID:   c.ID.String(),
		Subject:       c.UID,
		Action:        string(event),
		Reason:        reason,
		RequestID:     requestcontext.RequestID(ctx),
	}
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, c *models.Certificate, reason string) error {
	s.logAudit(ctx, event, c)
	if s.auditor == nil {
		return nil
	}
	if err := s.auditor.Emit(ctx, s.event(ctx, event, c, reason)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) track(ctx context.Context, event audit.AuditEvent, c *models.Certificate, reason string) {
	s.logAudit(ctx, event, c)
	if s.tracker != nil {
		e := s.event(ctx, event, c, reason)
		e.Category = event.Category()
		s.tracker.Track(e)
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, c *models.Certificate) {
	s.logger.InfoContext(ctx, string(event),
		"event", event,
		"log_type", "audit",
		"request_id", requestcontext.RequestID(ctx),
		"certificate_uid", c.UID,
		"transaction_uid", c.TransactionUID,
	)
}
