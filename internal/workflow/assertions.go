package workflow

import (
	"context"

	"landreg/internal/authz"
	txm "landreg/internal/transaction/models"
	wfm "landreg/internal/workflow/models"
	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
)

// Assertions checks workflow command preconditions. Supervisors pass every
// role check.
type Assertions struct {
	rules *Rules
	roles authz.RoleChecker
}

func NewAssertions(rules *Rules, roles authz.RoleChecker) *Assertions {
	return &Assertions{rules: rules, roles: roles}
}

// AssertCommand fails when user may not apply cmd to t, whose open task is
// task.
func (a *Assertions) AssertCommand(ctx context.Context, cmd wfm.Command, t *txm.Transaction, task *wfm.Task, user id.UserID) error {
	switch cmd.Type {
	case wfm.CommandTake:
		return a.AssertCanTake(ctx, t, task, user)
	case wfm.CommandSetNextStatus:
		return a.AssertCanSetNextStatus(ctx, t, task, user, cmd.NextStatus)
	case wfm.CommandReturnToMe:
		return a.AssertCanReturnToMe(ctx, t, task, user)
	case wfm.CommandFinish:
		return a.AssertCanFinish(ctx, t, task, user)
	case wfm.CommandReentry:
		return a.AssertCanReentry(ctx, t, user)
	case wfm.CommandAssignTo:
		return a.AssertCanAssignTo(ctx, t, user, cmd.NextUser)
	case wfm.CommandSign:
		return a.AssertCanSign(ctx, t, task, user)
	case wfm.CommandUnsign:
		return a.AssertCanUnsign(ctx, t, task, user)
	case wfm.CommandPullToControlDesk:
		return a.AssertCanPullToControlDesk(ctx, t, user)
	case wfm.CommandUnarchive:
		return a.AssertCanUnarchive(ctx, t, user)
	}
	return dErrors.Newf(dErrors.CodeValidation, "El comando %s no existe.", cmd.Type)
}

func (a *Assertions) AssertCanTake(ctx context.Context, t *txm.Transaction, task *wfm.Task, user id.UserID) error {
	if !task.HasPendingHandOff() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s no ha sido turnado a ningún estado.", t.UID)
	}
	if task.NextStatus.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s está marcado como %s; debe terminarse, no recibirse.", t.UID, task.NextStatus.DisplayName())
	}
	if task.Responsible == user && task.CurrentStatus != wfm.StatusReentry {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"Usted ya es responsable del trámite %s.", t.UID)
	}
	if task.NextStatus == wfm.StatusReceived && !t.IsPaid() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s no puede recibirse porque no ha sido pagado.", t.UID)
	}
	if !task.NextContact.IsNil() && task.NextContact != user {
		supervisor, err := a.isSupervisor(ctx, user)
		if err != nil {
			return err
		}
		if !supervisor {
			return dErrors.Newf(dErrors.CodeForbidden,
				"El trámite %s fue turnado a otra persona.", t.UID)
		}
	}
	return a.requireStatusRole(ctx, user, task.NextStatus, t)
}

func (a *Assertions) AssertCanSetNextStatus(ctx context.Context, t *txm.Transaction, task *wfm.Task, user id.UserID, target wfm.Status) error {
	if !target.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "El estado %s no existe.", target)
	}
	if !a.rules.IsCandidate(t, target) {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s en estado %s no puede turnarse a %s.",
			t.UID, t.Status.DisplayName(), target.DisplayName())
	}
	switch {
	case target == wfm.StatusReceived && !t.IsPaid():
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s no puede turnarse a %s porque no ha sido pagado.", t.UID, target.DisplayName())
	case target == wfm.StatusDeleted && !t.CanDelete():
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s no puede eliminarse.", t.UID)
	}
	return a.requireResponsible(ctx, t, task, user)
}

func (a *Assertions) AssertCanReturnToMe(ctx context.Context, t *txm.Transaction, task *wfm.Task, user id.UserID) error {
	if !task.HasPendingHandOff() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s no tiene un turno pendiente que cancelar.", t.UID)
	}
	return a.requireResponsible(ctx, t, task, user)
}

func (a *Assertions) AssertCanFinish(ctx context.Context, t *txm.Transaction, task *wfm.Task, user id.UserID) error {
	if !task.NextStatus.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s no está marcado para terminarse.", t.UID)
	}
	if task.NextStatus == wfm.StatusDeleted && !t.CanDelete() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s no puede eliminarse.", t.UID)
	}
	return a.requireResponsible(ctx, t, task, user)
}

func (a *Assertions) AssertCanReentry(ctx context.Context, t *txm.Transaction, user id.UserID) error {
	if t.Status != wfm.StatusDelivered && t.Status != wfm.StatusReturned {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"Sólo los trámites entregados o devueltos pueden reingresar. El trámite %s está en %s.",
			t.UID, t.Status.DisplayName())
	}
	return a.requireCommandRole(ctx, user, wfm.CommandReentry)
}

func (a *Assertions) AssertCanAssignTo(ctx context.Context, t *txm.Transaction, user, assignee id.UserID) error {
	if assignee.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "Se requiere la persona a quien se asigna el trámite.")
	}
	if t.Status.IsClosed() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s está en %s y no puede asignarse.", t.UID, t.Status.DisplayName())
	}
	return a.requireCommandRole(ctx, user, wfm.CommandAssignTo)
}

func (a *Assertions) AssertCanSign(ctx context.Context, t *txm.Transaction, task *wfm.Task, user id.UserID) error {
	if t.Status != wfm.StatusOnSign {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s no está en firma.", t.UID)
	}
	if task.HasPendingHandOff() {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s ya fue turnado a %s.", t.UID, task.NextStatus.DisplayName())
	}
	return a.requireCommandRole(ctx, user, wfm.CommandSign)
}

func (a *Assertions) AssertCanUnsign(ctx context.Context, t *txm.Transaction, task *wfm.Task, user id.UserID) error {
	if t.Status != wfm.StatusOnSign || task.NextStatus != wfm.StatusToDeliver {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s no ha sido firmado.", t.UID)
	}
	return a.requireCommandRole(ctx, user, wfm.CommandUnsign)
}

func (a *Assertions) AssertCanPullToControlDesk(ctx context.Context, t *txm.Transaction, user id.UserID) error {
	if t.Status.IsClosed() || t.Status == wfm.StatusPayment || t.Status == wfm.StatusControl {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s en estado %s no puede llevarse a mesa de control.", t.UID, t.Status.DisplayName())
	}
	return a.requireCommandRole(ctx, user, wfm.CommandPullToControlDesk)
}

func (a *Assertions) AssertCanUnarchive(ctx context.Context, t *txm.Transaction, user id.UserID) error {
	if t.Status != wfm.StatusArchived {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El trámite %s no está archivado.", t.UID)
	}
	return a.requireCommandRole(ctx, user, wfm.CommandUnarchive)
}

// requireResponsible lets the open task's responsible or a supervisor act.
func (a *Assertions) requireResponsible(ctx context.Context, t *txm.Transaction, task *wfm.Task, user id.UserID) error {
	if task.Responsible == user {
		return nil
	}
	supervisor, err := a.isSupervisor(ctx, user)
	if err != nil {
		return err
	}
	if !supervisor {
		return dErrors.Newf(dErrors.CodeForbidden,
			"Usted no es responsable del trámite %s.", t.UID)
	}
	return nil
}

func (a *Assertions) requireStatusRole(ctx context.Context, user id.UserID, status wfm.Status, t *txm.Transaction) error {
	role, ok := RoleForStatus(status)
	if !ok {
		return nil
	}
	return a.requireRole(ctx, user, role, "No tiene permisos para trabajar trámites en "+status.DisplayName()+": "+t.UID+".")
}

func (a *Assertions) requireCommandRole(ctx context.Context, user id.UserID, cmd wfm.CommandType) error {
	return a.requireRole(ctx, user, commandRoles[cmd], "No tiene permisos para ejecutar "+string(cmd)+".")
}

func (a *Assertions) requireRole(ctx context.Context, user id.UserID, role authz.Role, message string) error {
	ok, err := a.isInRole(ctx, user, role)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeForbidden, message)
	}
	return nil
}

func (a *Assertions) isInRole(ctx context.Context, user id.UserID, role authz.Role) (bool, error) {
	ok, err := a.roles.IsSubjectInRole(ctx, user, role)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check role")
	}
	if ok || role == authz.RoleSupervisor {
		return ok, nil
	}
	return a.isSupervisor(ctx, user)
}

func (a *Assertions) isSupervisor(ctx context.Context, user id.UserID) (bool, error) {
	ok, err := a.roles.IsSubjectInRole(ctx, user, authz.RoleSupervisor)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check role")
	}
	return ok, nil
}
