package models

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"landreg/internal/ledger"
	wfm "landreg/internal/workflow/models"
	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
)

// Payment is the receipt that releases a transaction from Payment.
type Payment struct {
	ReceiptNo    string          `json:"receipt_no"`
	Amount       decimal.Decimal `json:"amount"`
	PaidAt       time.Time       `json:"paid_at"`
	RegisteredBy id.UserID       `json:"registered_by"`
}

// Transaction is a filing at the recorder's office. It is never physically
// removed; deletion moves it to the Deleted status.
type Transaction struct {
	ID               id.TransactionID
	UID              string
	TypeCode         string
	DocumentTypeCode string
	RequestedBy      string
	Status           wfm.Status
	PresentationTime *time.Time
	Services         []ledger.Service
	Payment          *Payment
	InstrumentUID    string
	LandRecordID     id.LandRecordID
	CreatedBy        id.UserID
	CreatedAt        time.Time
	UpdatedAt        time.Time
	// Version is the optimistic concurrency counter checked by stores.
	Version int64
}

// NewTransaction files a transaction in the Payment status.
func NewTransaction(txID id.TransactionID, uid, typeCode, documentTypeCode, requestedBy string, createdBy id.UserID, now time.Time) (*Transaction, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "transaction uid required")
	}
	if strings.TrimSpace(typeCode) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "Se requiere el tipo de trámite.")
	}
	if strings.TrimSpace(documentTypeCode) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "Se requiere el tipo de documento.")
	}
	if strings.TrimSpace(requestedBy) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "Se requiere el nombre del solicitante.")
	}
	return &Transaction{
		ID:               txID,
		UID:              uid,
		TypeCode:         typeCode,
		DocumentTypeCode: documentTypeCode,
		RequestedBy:      strings.TrimSpace(requestedBy),
		Status:           wfm.StatusPayment,
		CreatedBy:        createdBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Fee is the aggregated ledger of all services.
func (t *Transaction) Fee() ledger.Fee {
	return ledger.SumServices(t.Services)
}

// IsPaid reports whether a payment receipt was registered.
func (t *Transaction) IsPaid() bool {
	return t.Payment != nil
}

// CanEditServices holds while the transaction is at the front desk.
func (t *Transaction) CanEditServices() bool {
	switch t.Status {
	case wfm.StatusPayment, wfm.StatusReceived, wfm.StatusReentry:
		return true
	}
	return false
}

// CanEditPayment holds while the payment can still be registered.
func (t *Transaction) CanEditPayment() bool {
	return t.Status == wfm.StatusPayment
}

// CanDelete holds for unpaid transactions still waiting for payment.
func (t *Transaction) CanDelete() bool {
	return t.Status == wfm.StatusPayment && !t.IsPaid()
}

func (t *Transaction) AddService(s ledger.Service, now time.Time) error {
	if !t.CanEditServices() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"No es posible modificar los servicios del trámite %s en estado %s.", t.UID, t.Status.DisplayName())
	}
	if err := s.Fee.Validate(); err != nil {
		return err
	}
	s.TransactionID = t.ID
	t.Services = append(t.Services, s)
	t.UpdatedAt = now
	return nil
}

func (t *Transaction) RemoveService(serviceID id.ServiceID, now time.Time) error {
	if !t.CanEditServices() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"No es posible modificar los servicios del trámite %s en estado %s.", t.UID, t.Status.DisplayName())
	}
	i := slices.IndexFunc(t.Services, func(s ledger.Service) bool { return s.ID == serviceID })
	if i < 0 {
		return dErrors.New(dErrors.CodeNotFound, "El servicio no pertenece a este trámite.")
	}
	t.Services = slices.Delete(t.Services, i, i+1)
	t.UpdatedAt = now
	return nil
}

// CanRegisterPayment requires the Payment status, at least one service and
// an amount covering the ledger total.
func (t *Transaction) CanRegisterPayment(p Payment) error {
	if !t.CanEditPayment() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s no está en espera de pago.", t.UID)
	}
	if len(t.Services) == 0 {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s no tiene servicios que pagar.", t.UID)
	}
	if strings.TrimSpace(p.ReceiptNo) == "" {
		return dErrors.New(dErrors.CodeValidation, "Se requiere el número de recibo de pago.")
	}
	if total := t.Fee().Total(); p.Amount.LessThan(total) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El importe del recibo (%s) es menor al total del trámite (%s).", p.Amount.StringFixed(2), total.StringFixed(2))
	}
	return nil
}

func (t *Transaction) ApplyPayment(p Payment) {
	t.Payment = &p
	t.UpdatedAt = p.PaidAt
}

// ApplyDelete moves the transaction to Deleted.
func (t *Transaction) ApplyDelete(now time.Time) error {
	if !t.CanDelete() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s no puede eliminarse en estado %s.", t.UID, t.Status.DisplayName())
	}
	t.Status = wfm.StatusDeleted
	t.UpdatedAt = now
	return nil
}

// ApplyStatus records a workflow move. The first reception stamps the
// presentation time.
func (t *Transaction) ApplyStatus(status wfm.Status, now time.Time) {
	if status == wfm.StatusReceived && t.PresentationTime == nil {
		t.PresentationTime = &now
	}
	t.Status = status
	t.UpdatedAt = now
}

// AttachLandRecord links the land record created for this transaction.
func (t *Transaction) AttachLandRecord(recordID id.LandRecordID, now time.Time) error {
	if !t.LandRecordID.IsNil() && t.LandRecordID != recordID {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s ya tiene una inscripción asociada.", t.UID)
	}
	t.LandRecordID = recordID
	t.UpdatedAt = now
	return nil
}
