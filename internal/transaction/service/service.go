// Package service files transactions and keeps their fee ledger and
// payment receipt.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"landreg/internal/ledger"
	"landreg/internal/platform/lock"
	"landreg/internal/platform/uid"
	"landreg/internal/transaction/models"
	wfm "landreg/internal/workflow/models"
	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
	"landreg/pkg/platform/audit"
	"landreg/pkg/platform/sentinel"
	txcontext "landreg/pkg/platform/tx"
	"landreg/pkg/requestcontext"
)

const defaultUIDAttempts = 10

type Store interface {
	Create(ctx context.Context, t *models.Transaction) error
	Save(ctx context.Context, t *models.Transaction) error
	FindByID(ctx context.Context, txID id.TransactionID) (*models.Transaction, error)
	FindByUID(ctx context.Context, uid string) (*models.Transaction, error)
	ExistsUID(ctx context.Context, uid string) (bool, error)
	ListByStatus(ctx context.Context, statuses ...wfm.Status) ([]*models.Transaction, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type OpsTracker interface {
	Track(event audit.Event)
}

type Service struct {
	store       Store
	uids        uid.Provider
	calculator  *ledger.Calculator
	locker      lock.Locker
	tx          txcontext.Runner
	auditor     AuditPublisher
	tracker     OpsTracker
	logger      *slog.Logger
	uidAttempts int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithLocker(l lock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithTxRunner(r txcontext.Runner) Option {
	return func(s *Service) { s.tx = r }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.auditor = p }
}

func WithOpsTracker(t OpsTracker) Option {
	return func(s *Service) { s.tracker = t }
}

func New(store Store, uids uid.Provider, calculator *ledger.Calculator, opts ...Option) *Service {
	s := &Service{
		store:       store,
		uids:        uids,
		calculator:  calculator,
		locker:      lock.NewSharded(),
		tx:          txcontext.DirectRunner{},
		logger:      slog.Default(),
		uidAttempts: defaultUIDAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateRequest struct {
	TypeCode         string
	DocumentTypeCode string
	RequestedBy      string
	InstrumentUID    string
}

// Create files a transaction in Payment with an empty ledger.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Transaction, error) {
	txUID, err := s.generateUID(ctx)
	if err != nil {
		return nil, err
	}
	t, err := models.NewTransaction(id.NewTransactionID(), txUID, req.TypeCode, req.DocumentTypeCode,
		req.RequestedBy, requestcontext.UserID(ctx), requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	t.InstrumentUID = strings.TrimSpace(req.InstrumentUID)
	if err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, t); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.Newf(dErrors.CodeConflict, "El trámite %s ya existe.", t.UID)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create transaction")
		}
		return nil
	}); err != nil {
		return nil, err
	}
	s.track(ctx, audit.EventTransactionCreated, t, t.TypeCode)
	return t, nil
}

func (s *Service) Get(ctx context.Context, txID id.TransactionID) (*models.Transaction, error) {
	t, err := s.store.FindByID(ctx, txID)
	return t, translateFind(err)
}

func (s *Service) GetByUID(ctx context.Context, txUID string) (*models.Transaction, error) {
	t, err := s.store.FindByUID(ctx, txUID)
	return t, translateFind(err)
}

// List returns the transactions in any of statuses.
func (s *Service) List(ctx context.Context, statuses ...wfm.Status) ([]*models.Transaction, error) {
	out, err := s.store.ListByStatus(ctx, statuses...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list transactions")
	}
	return out, nil
}

type AddServiceRequest struct {
	TariffCode  string
	Quantity    int
	TaxableBase decimal.Decimal
	Notes       string
}

// AddService prices a tariff and appends it to the ledger.
func (s *Service) AddService(ctx context.Context, txID id.TransactionID, req AddServiceRequest) (*ledger.Service, error) {
	fee, err := s.calculator.Calculate(req.TariffCode, req.Quantity, req.TaxableBase)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	svc := ledger.Service{
		ID:          id.NewServiceID(),
		TariffCode:  req.TariffCode,
		Quantity:    req.Quantity,
		TaxableBase: req.TaxableBase,
		Fee:         fee,
		Notes:       strings.TrimSpace(req.Notes),
		CreatedAt:   now,
	}
	err = s.mutate(ctx, txID, func(ctx context.Context, t *models.Transaction) error {
		if err := t.AddService(svc, now); err != nil {
			return err
		}
		svc.TransactionID = t.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *Service) RemoveService(ctx context.Context, txID id.TransactionID, serviceID id.ServiceID) error {
	return s.mutate(ctx, txID, func(ctx context.Context, t *models.Transaction) error {
		return t.RemoveService(serviceID, requestcontext.Now(ctx))
	})
}

// RegisterPayment records the receipt covering the ledger total.
func (s *Service) RegisterPayment(ctx context.Context, txID id.TransactionID, receiptNo string, amount decimal.Decimal) (*models.Transaction, error) {
	var out *models.Transaction
	err := s.mutate(ctx, txID, func(ctx context.Context, t *models.Transaction) error {
		p := models.Payment{
			ReceiptNo:    strings.TrimSpace(receiptNo),
			Amount:       amount,
			PaidAt:       requestcontext.Now(ctx),
			RegisteredBy: requestcontext.UserID(ctx),
		}
		if err := t.CanRegisterPayment(p); err != nil {
			return err
		}
		t.ApplyPayment(p)
		out = t
		return s.emit(ctx, audit.EventPaymentRegistered, t, p.ReceiptNo)
	})
	return out, err
}

// Delete moves an unpaid transaction to Deleted.
func (s *Service) Delete(ctx context.Context, txID id.TransactionID, reason string) error {
	return s.mutate(ctx, txID, func(ctx context.Context, t *models.Transaction) error {
		if err := t.ApplyDelete(requestcontext.Now(ctx)); err != nil {
			return err
		}
		return s.emit(ctx, audit.EventTransactionDeleted, t, reason)
	})
}

// AttachLandRecord links the record created for the transaction's instrument.
func (s *Service) AttachLandRecord(ctx context.Context, txID id.TransactionID, recordID id.LandRecordID) error {
	return s.mutate(ctx, txID, func(ctx context.Context, t *models.Transaction) error {
		return t.AttachLandRecord(recordID, requestcontext.Now(ctx))
	})
}

// mutate loads the transaction under its lock, applies fn and saves in one
// store transaction.
func (s *Service) mutate(ctx context.Context, txID id.TransactionID, fn func(ctx context.Context, t *models.Transaction) error) error {
	release, err := s.locker.LockAll(ctx, lock.TransactionKey(txID.String()))
	if err != nil {
		if errors.Is(err, sentinel.ErrLocked) {
			return dErrors.Wrap(err, dErrors.CodeConflict, "El trámite está siendo modificado por otro usuario.")
		}
		return err
	}
	defer release()

	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.store.FindByID(ctx, txID)
		if err != nil {
			return translateFind(err)
		}
		if err := fn(ctx, t); err != nil {
			return err
		}
		if err := s.store.Save(ctx, t); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.Newf(dErrors.CodeConflict,
					"El trámite %s fue modificado por otro usuario. Vuelva a cargarlo.", t.UID)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save transaction")
		}
		return nil
	})
}

func (s *Service) generateUID(ctx context.Context) (string, error) {
	for range s.uidAttempts {
		candidate := s.uids.GenerateTransactionID()
		exists, err := s.store.ExistsUID(ctx, candidate)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check transaction uid")
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", dErrors.New(dErrors.CodeInternal, "could not generate a unique transaction uid")
}

func translateFind(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "El trámite no existe.")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transaction")
}

func (s *Service) event(ctx context.Context, event audit.AuditEvent, t *models.Transaction, reason string) audit.Event {
	return audit.Event{
		Timestamp:     requestcontext.Now(ctx),
		ActorID:       requestcontext.UserID(ctx),
		AggregateType: "transaction",
		AggregateID:   t.ID.String(),
		Subject:       t.UID,
		Action:        string(event),
		Reason:        reason,
		RequestID:     requestcontext.RequestID(ctx),
	}
}

func (s *Service) emit(ctx context.Context, event audit.AuditEvent, t *models.Transaction, reason string) error {
	s.logAudit(ctx, event, t)
	if s.auditor == nil {
		return nil
	}
	if err := s.auditor.Emit(ctx, s.event(ctx, event, t, reason)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	return nil
}

func (s *Service) track(ctx context.Context, event audit.AuditEvent, t *models.Transaction, reason string) {
	s.logAudit(ctx, event, t)
	if s.tracker != nil {
		e := s.event(ctx, event, t, reason)
		e.Category = event.Category()
		s.tracker.Track(e)
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, t *models.Transaction) {
	s.logger.InfoContext(ctx, string(event),
		"event", event,
		"log_type", "audit",
		"request_id", requestcontext.RequestID(ctx),
		"transaction_uid", t.UID,
		"status", t.Status,
	)
}
