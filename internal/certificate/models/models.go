// Package models holds the certificate aggregate.
package models

import (
	"time"

	secm "landreg/internal/security/models"
	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
)

type Type string

const (
	TypeGravamen         Type = "gravamen"
	TypeLibertadGravamen Type = "libertad-gravamen"
	TypePropiedad        Type = "propiedad"
	TypeNoPropiedad      Type = "no-propiedad"
	TypeInscripcion      Type = "inscripcion"
)

var typeNames = map[Type]string{
	TypeGravamen:         "Certificado de gravamen",
	TypeLibertadGravamen: "Certificado de libertad de gravamen",
	TypePropiedad:        "Certificado de propiedad",
	TypeNoPropiedad:      "Certificado de no propiedad",
	TypeInscripcion:      "Certificado de inscripción",
}

func (t Type) IsValid() bool {
	_, ok := typeNames[t]
	return ok
}

// Name is the title printed on the certificate.
func (t Type) Name() string { return typeNames[t] }

// RequiresResource reports whether the certificate speaks about one folio.
// A no-property certificate is about a person instead.
func (t Type) RequiresResource() bool { return t != TypeNoPropiedad }

type Status string

const (
	StatusPending Status = "Pending"
	StatusClosed  Status = "Closed"
	StatusDeleted Status = "Deleted"
)

// Request carries what a new certificate is issued for.
type Request struct {
	Type           Type
	TransactionID  id.TransactionID
	TransactionUID string
	ResourceID     id.ResourceID
	ResourceUID    string
	OwnerName      string
}

// Certificate is a legal statement about the tract of a resource, or about
// a person's lack of property, issued inside a transaction.
type Certificate struct {
	ID             id.CertificateID
	UID            string
	Type           Type
	TransactionID  id.TransactionID
	TransactionUID string
	ResourceID     id.ResourceID
	ResourceUID    string
	OwnerName      string
	Status         Status
	Text           string
	IssueTime      *time.Time
	IssuedBy       id.UserID
	Security       secm.SecurityData
	IntegrityHash  string
	CreatedAt      time.Time
	CreatedBy      id.UserID
	Version        int64
}

// NewCertificate builds a pending certificate.
func NewCertificate(certID id.CertificateID, uid string, req Request, createdBy id.UserID, now time.Time) (*Certificate, error) {
	if !req.Type.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "El tipo de certificado '%s' no existe.", req.Type)
	}
	if req.TransactionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "El certificado requiere un trámite.")
	}
	if req.Type.RequiresResource() && req.ResourceID.IsNil() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "El %s requiere un folio.", req.Type.Name())
	}
	if req.Type == TypeNoPropiedad && req.OwnerName == "" {
		return nil, dErrors.New(dErrors.CodeValidation,
			"El certificado de no propiedad requiere el nombre de la persona.")
	}
	return &Certificate{
		ID:             certID,
		UID:            uid,
		Type:           req.Type,
		TransactionID:  req.TransactionID,
		TransactionUID: req.TransactionUID,
		ResourceID:     req.ResourceID,
		ResourceUID:    req.ResourceUID,
		OwnerName:      req.OwnerName,
		Status:         StatusPending,
		Security:       secm.NewSecurityData(),
		CreatedAt:      now,
		CreatedBy:      createdBy,
	}, nil
}

func (c *Certificate) IsClosed() bool  { return c.Status == StatusClosed }
func (c *Certificate) IsPending() bool { return c.Status == StatusPending }

// CanIssue guards ApplyIssue.
func (c *Certificate) CanIssue() error {
	if !c.IsPending() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El certificado %s no está pendiente de emitir.", c.UID)
	}
	return nil
}

// CanDelete guards ApplyDelete. Only pending certificates may be deleted.
func (c *Certificate) CanDelete() error {
	if !c.IsPending() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"Sólo pueden eliminarse certificados pendientes. El certificado %s está %s.", c.UID, c.Status)
	}
	return nil
}

func (c *Certificate) ApplyIssue(text string, by id.UserID, at time.Time) {
	c.Status = StatusClosed
	c.Text = text
	c.IssuedBy = by
	c.IssueTime = &at
}

// ApplyOpen returns an issued certificate to pending and drops its text and
// seal.
func (c *Certificate) ApplyOpen() {
	c.Status = StatusPending
	c.Text = ""
	c.IssuedBy = id.UserID{}
	c.IssueTime = nil
	c.Security.ClearSeal()
}

func (c *Certificate) ApplyDelete() { c.Status = StatusDeleted }

// Facts summarizes the certificate for the security validator. An issued
// certificate counts as one closable act.
func (c *Certificate) Facts() secm.RecordFacts {
	return secm.RecordFacts{
		UID:            c.UID,
		IsClosed:       c.IsClosed(),
		HasTransaction: true,
		ActCount:       1,
		Security:       c.Security,
	}
}

// SealSource is the content the certificate seal binds.
func (c *Certificate) SealSource() secm.CertificateSealSource {
	src := secm.CertificateSealSource{
		CertificateUID: c.UID,
		CertificateID:  c.ID,
		TransactionUID: c.TransactionUID,
		TypeName:       c.Type.Name(),
		ResourceUID:    c.ResourceUID,
		OwnerName:      c.OwnerName,
		Text:           c.Text,
	}
	if c.IssueTime != nil {
		src.IssueTime = *c.IssueTime
	}
	return src
}

// IntegrityFields are the persisted values covered by IntegrityHash.
func (c *Certificate) IntegrityFields() []string {
	fields := []string{
		c.ID.String(), c.UID, string(c.Type), c.TransactionID.String(), c.ResourceID.String(),
		c.OwnerName, string(c.Status), c.Text, c.IssuedBy.String(),
	}
	if c.IssueTime != nil {
		fields = append(fields, formatTime(*c.IssueTime))
	}
	return append(fields, c.Security.IntegrityFields()...)
}

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano)
}
