package security

import (
	"context"
	"strings"

	"landreg/internal/authz"
	secm "landreg/internal/security/models"
	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
)

// Validator guards the close, open and signature transitions of a document.
type Validator struct {
	cfg   Config
	roles authz.RoleChecker
}

func NewValidator(cfg Config, roles authz.RoleChecker) *Validator {
	return &Validator{cfg: cfg, roles: roles}
}

func (v *Validator) AssertCanBeClosed(f secm.RecordFacts) error {
	if f.IsClosed {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El documento %s ya está cerrado.", f.UID)
	}
	if f.ActCount == 0 {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El documento %s no tiene actos jurídicos registrados.", f.UID)
	}
	if len(f.UnclosableActs) > 0 {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El documento %s no puede cerrarse porque tiene actos jurídicos incompletos: %s.",
			f.UID, strings.Join(f.UnclosableActs, "; "))
	}
	return nil
}

func (v *Validator) AssertCanBeOpened(ctx context.Context, f secm.RecordFacts, user id.UserID) error {
	if !f.IsClosed {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El documento %s no está cerrado.", f.UID)
	}
	if f.Security.IsSigned() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El documento %s está firmado. Debe revocarse la firma antes de abrirlo.", f.UID)
	}
	return v.requireRole(ctx, user, authz.RoleRecordOpener,
		"No tiene permisos para abrir documentos registrales.")
}

func (v *Validator) AssertCanPrepareForElectronicSign(f secm.RecordFacts) error {
	if !v.cfg.ESignEnabled {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"El servicio de firma electrónica no está habilitado.")
	}
	if err := v.assertSignable(f); err != nil {
		return err
	}
	if f.Security.IsPreparedForElectronicSign() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El documento %s ya fue enviado a firma electrónica.", f.UID)
	}
	return nil
}

func (v *Validator) AssertCanSetManualSign(f secm.RecordFacts) error {
	if v.cfg.ESignEnabled {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"La firma autógrafa no está disponible porque la firma electrónica está habilitada.")
	}
	return v.assertSignable(f)
}

// AssertCanBeSigned guards applying a prepared electronic signature.
func (v *Validator) AssertCanBeSigned(ctx context.Context, f secm.RecordFacts, user id.UserID) error {
	if !v.cfg.ESignEnabled {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"El servicio de firma electrónica no está habilitado.")
	}
	if !f.Security.IsPreparedForElectronicSign() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El documento %s no está listo para firma electrónica.", f.UID)
	}
	if f.Security.AssignedSigner == user {
		return nil
	}
	return v.requireRole(ctx, user, authz.RoleSignDelegate,
		"Sólo el firmante asignado o un delegado autorizado puede firmar este documento.")
}

func (v *Validator) AssertCanRevokeSign(ctx context.Context, f secm.RecordFacts, user id.UserID) error {
	if !f.Security.IsSigned() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El documento %s no está firmado.", f.UID)
	}
	if f.IsHistoric {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El documento %s es histórico y su firma no puede revocarse.", f.UID)
	}
	return v.requireRole(ctx, user, authz.RoleSignRevoker,
		"No tiene permisos para revocar firmas.")
}

func (v *Validator) assertSignable(f secm.RecordFacts) error {
	if !f.IsClosed {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El documento %s debe estar cerrado para poder firmarse.", f.UID)
	}
	if f.IsHistoric {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El documento %s es histórico y no requiere firma.", f.UID)
	}
	if !f.Security.IsUnsigned() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El documento %s ya está firmado o su firma fue revocada.", f.UID)
	}
	return nil
}

func (v *Validator) requireRole(ctx context.Context, user id.UserID, role authz.Role, message string) error {
	ok, err := v.roles.IsSubjectInRole(ctx, user, role)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check role")
	}
	if !ok {
		return dErrors.New(dErrors.CodeForbidden, message)
	}
	return nil
}
