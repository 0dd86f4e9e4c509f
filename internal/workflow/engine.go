package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"landreg/internal/authz"
	"landreg/internal/platform/lock"
	txm "landreg/internal/transaction/models"
	wfm "landreg/internal/workflow/models"
	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
	"landreg/pkg/platform/audit"
	"landreg/pkg/platform/sentinel"
	txcontext "landreg/pkg/platform/tx"
	"landreg/pkg/requestcontext"
)

type TransactionStore interface {
	FindByID(ctx context.Context, txID id.TransactionID) (*txm.Transaction, error)
	Save(ctx context.Context, t *txm.Transaction) error
}

type TaskStore interface {
	Save(ctx context.Context, task *wfm.Task) error
	Current(ctx context.Context, txID id.TransactionID) (*wfm.Task, error)
	History(ctx context.Context, txID id.TransactionID) ([]wfm.Task, error)
	ListOpen(ctx context.Context, statuses ...wfm.Status) ([]wfm.Task, error)
}

type OpsTracker interface {
	Track(event audit.Event)
}

// Engine applies workflow commands. Each transaction of a command moves in
// its own store transaction; the command is not atomic across transactions.
type Engine struct {
	transactions TransactionStore
	tasks        TaskStore
	rules        *Rules
	assertions   *Assertions
	locker       lock.Locker
	tx           txcontext.Runner
	tracker      OpsTracker
	logger       *slog.Logger
	metrics      *Metrics
	tracer       trace.Tracer
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

func WithTxRunner(r txcontext.Runner) Option {
	return func(e *Engine) { e.tx = r }
}

func WithOpsTracker(t OpsTracker) Option {
	return func(e *Engine) { e.tracker = t }
}

func New(transactions TransactionStore, tasks TaskStore, rules *Rules, roles authz.RoleChecker, opts ...Option) *Engine {
	e := &Engine{
		transactions: transactions,
		tasks:        tasks,
		rules:        rules,
		assertions:   NewAssertions(rules, roles),
		locker:       lock.NewSharded(),
		tx:           txcontext.DirectRunner{},
		logger:       slog.Default(),
		tracer:       otel.Tracer("landreg/workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type item struct {
	t    *txm.Transaction
	task *wfm.Task
}

// Execute validates cmd against every listed transaction, then applies it
// to each one. Nothing is changed unless every transaction passes. The
// returned list holds one change per moved transaction, also on error.
func (e *Engine) Execute(ctx context.Context, cmd wfm.Command) ([]wfm.TaskChange, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "workflow.Execute", trace.WithAttributes(
		attribute.String("command", string(cmd.Type)),
		attribute.Int("transactions", len(cmd.Transactions)),
	))
	defer span.End()

	changes, err := e.execute(ctx, cmd)
	if e.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "rejected"
		}
		e.metrics.IncCommand(cmd.Type, outcome)
		e.metrics.ObserveExecute(start)
	}
	return changes, err
}

func (e *Engine) execute(ctx context.Context, cmd wfm.Command) ([]wfm.TaskChange, error) {
	if !cmd.Type.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "El comando %s no existe.", cmd.Type)
	}
	if len(cmd.Transactions) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "Se requiere al menos un trámite.")
	}
	user := requestcontext.UserID(ctx)
	if user.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Se requiere un usuario autenticado.")
	}

	keys := make([]string, 0, len(cmd.Transactions))
	for _, txID := range cmd.Transactions {
		keys = append(keys, lock.TransactionKey(txID.String()))
	}
	release, err := e.locker.LockAll(ctx, keys...)
	if err != nil {
		if errors.Is(err, sentinel.ErrLocked) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "Uno de los trámites está siendo modificado por otro usuario.")
		}
		return nil, err
	}
	defer release()

	items := make([]item, 0, len(cmd.Transactions))
	for _, txID := range cmd.Transactions {
		it, err := e.load(ctx, txID)
		if err != nil {
			return nil, err
		}
		if err := e.assertions.AssertCommand(ctx, cmd, it.t, it.task, user); err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	changes := make([]wfm.TaskChange, 0, len(items))
	for _, it := range items {
		var change wfm.TaskChange
		err := e.tx.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			change, err = e.apply(ctx, cmd, it, user)
			return err
		})
		if err != nil {
			return changes, err
		}
		changes = append(changes, change)
		e.record(ctx, cmd, change)
	}
	return changes, nil
}

func (e *Engine) load(ctx context.Context, txID id.TransactionID) (item, error) {
	t, err := e.transactions.FindByID(ctx, txID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return item{}, dErrors.New(dErrors.CodeNotFound, "El trámite no existe.")
		}
		return item{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transaction")
	}
	task, err := e.currentTask(ctx, t)
	if err != nil {
		return item{}, err
	}
	return item{t: t, task: task}, nil
}

// currentTask returns the open task of t. Transactions that never moved get
// an unsaved reception task owned by their creator.
func (e *Engine) currentTask(ctx context.Context, t *txm.Transaction) (*wfm.Task, error) {
	task, err := e.tasks.Current(ctx, t.ID)
	switch {
	case err == nil:
		return task, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return &wfm.Task{
			ID:             id.NewTaskID(),
			TransactionID:  t.ID,
			TransactionUID: t.UID,
			CurrentStatus:  t.Status,
			Responsible:    t.CreatedBy,
			CheckInTime:    t.CreatedAt,
			Status:         wfm.TaskActive,
		}, nil
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load workflow task")
	}
}

func (e *Engine) apply(ctx context.Context, cmd wfm.Command, it item, user id.UserID) (wfm.TaskChange, error) {
	now := requestcontext.Now(ctx)
	t, task := it.t, it.task
	from := t.Status
	notes := strings.TrimSpace(cmd.Notes)

	var next *wfm.Task
	switch cmd.Type {
	case wfm.CommandSetNextStatus:
		task.ApplyHandOff(cmd.NextStatus, cmd.NextUser, notes, now)
	case wfm.CommandSign:
		task.ApplyHandOff(wfm.StatusToDeliver, id.UserID{}, notes, now)
	case wfm.CommandReturnToMe, wfm.CommandUnsign:
		task.ClearHandOff()
	case wfm.CommandTake:
		next = e.moveTo(t, task, task.NextStatus, user, task.Responsible, notes, now)
	case wfm.CommandReentry:
		next = e.moveTo(t, task, wfm.StatusReentry, user, user, notes, now)
	case wfm.CommandPullToControlDesk, wfm.CommandUnarchive:
		next = e.moveTo(t, task, wfm.StatusControl, user, user, notes, now)
	case wfm.CommandAssignTo:
		next = e.moveTo(t, task, t.Status, cmd.NextUser, user, notes, now)
	case wfm.CommandFinish:
		terminal := task.NextStatus
		if terminal == wfm.StatusDeleted {
			if err := t.ApplyDelete(now); err != nil {
				return wfm.TaskChange{}, err
			}
		}
		next = e.moveTo(t, task, terminal, user, user, notes, now)
		next.Close(now)
	}

	if err := e.tasks.Save(ctx, task); err != nil {
		return wfm.TaskChange{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save workflow task")
	}
	open := task
	if next != nil {
		if err := e.tasks.Save(ctx, next); err != nil {
			return wfm.TaskChange{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save workflow task")
		}
		open = next
	}
	if t.Status != from {
		if err := e.transactions.Save(ctx, t); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return wfm.TaskChange{}, dErrors.Newf(dErrors.CodeConflict,
					"El trámite %s fue modificado por otro usuario. Vuelva a cargarlo.", t.UID)
			}
			return wfm.TaskChange{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save transaction")
		}
	}
	return wfm.TaskChange{
		TransactionID:  t.ID,
		TransactionUID: t.UID,
		Command:        cmd.Type,
		From:           from,
		To:             t.Status,
		Task:           *open,
		ChangedAt:      now,
		Message:        changeMessage(cmd.Type, t, open),
	}, nil
}

// moveTo closes task and opens the next one in status.
func (e *Engine) moveTo(t *txm.Transaction, task *wfm.Task, status wfm.Status, responsible, assignedBy id.UserID,
	notes string, now time.Time) *wfm.Task {
	task.Close(now)
	if status != t.Status {
		t.ApplyStatus(status, now)
	}
	return &wfm.Task{
		ID:             id.NewTaskID(),
		TransactionID:  t.ID,
		TransactionUID: t.UID,
		CurrentStatus:  status,
		Responsible:    responsible,
		AssignedBy:     assignedBy,
		CheckInTime:    now,
		Notes:          notes,
		Status:         wfm.TaskActive,
	}
}

func changeMessage(cmd wfm.CommandType, t *txm.Transaction, task *wfm.Task) string {
	if task.HasPendingHandOff() {
		return "El trámite " + t.UID + " fue turnado a " + task.NextStatus.DisplayName() + "."
	}
	switch cmd {
	case wfm.CommandReturnToMe, wfm.CommandUnsign:
		return "Se canceló el turno del trámite " + t.UID + "."
	}
	return "El trámite " + t.UID + " está en " + t.Status.DisplayName() + "."
}

func (e *Engine) record(ctx context.Context, cmd wfm.Command, change wfm.TaskChange) {
	event := audit.EventWorkflowTransition
	if cmd.Type == wfm.CommandAssignTo {
		event = audit.EventWorkflowAssigned
	}
	e.logger.InfoContext(ctx, string(event),
		"event", event,
		"log_type", "audit",
		"request_id", requestcontext.RequestID(ctx),
		"transaction_uid", change.TransactionUID,
		"command", cmd.Type,
		"from", change.From,
		"to", change.To,
	)
	if e.metrics != nil && change.From != change.To {
		e.metrics.IncTransition(change.From, change.To)
	}
	if e.tracker != nil {
		e.tracker.Track(audit.Event{
			Category:      event.Category(),
			Timestamp:     change.ChangedAt,
			ActorID:       requestcontext.UserID(ctx),
			AggregateType: "transaction",
			AggregateID:   change.TransactionID.String(),
			Subject:       change.TransactionUID,
			Action:        string(event),
			Reason:        string(cmd.Type) + " " + string(change.From) + "->" + string(change.To),
			RequestID:     requestcontext.RequestID(ctx),
		})
	}
}

// NextStatusList returns the candidate statuses of a transaction.
func (e *Engine) NextStatusList(ctx context.Context, txID id.TransactionID) ([]wfm.Status, error) {
	it, err := e.load(ctx, txID)
	if err != nil {
		return nil, err
	}
	return e.rules.NextStatusList(it.t), nil
}

// ControlData tells the current registrar what they may do with a
// transaction.
func (e *Engine) ControlData(ctx context.Context, txID id.TransactionID) (wfm.ControlData, error) {
	it, err := e.load(ctx, txID)
	if err != nil {
		return wfm.ControlData{}, err
	}
	user := requestcontext.UserID(ctx)
	t, task := it.t, it.task

	reception, err := e.assertions.isInRole(ctx, user, authz.RoleReception)
	if err != nil {
		return wfm.ControlData{}, err
	}
	allowed := func(c wfm.CommandType) bool {
		return e.assertions.AssertCommand(ctx, wfm.Command{Type: c}, t, task, user) == nil
	}
	recordingStage := t.Status == wfm.StatusQualification || t.Status == wfm.StatusRecording || t.Status == wfm.StatusJuridic
	return wfm.ControlData{
		CanEditServices:    reception && t.CanEditServices(),
		CanEditPayment:     reception && t.CanEditPayment(),
		CanEditLandRecord:  recordingStage && task.Responsible == user && e.rules.IsRecordingDocumentCase(t),
		CanTake:            allowed(wfm.CommandTake),
		CanReturnToMe:      allowed(wfm.CommandReturnToMe),
		CanReentry:         allowed(wfm.CommandReentry),
		CanDelete:          reception && t.CanDelete(),
		IsReadyForDelivery: t.Status == wfm.StatusToDeliver || t.Status == wfm.StatusToReturn,
		NextStatusList:     e.rules.NextStatusList(t),
	}, nil
}

// History returns every task of a transaction, oldest first.
func (e *Engine) History(ctx context.Context, txID id.TransactionID) ([]wfm.Task, error) {
	tasks, err := e.tasks.History(ctx, txID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load workflow history")
	}
	return tasks, nil
}

// Inbox lists the open tasks in statuses.
func (e *Engine) Inbox(ctx context.Context, statuses ...wfm.Status) ([]wfm.Task, error) {
	for _, s := range statuses {
		if !s.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeValidation, "El estado %s no existe.", s)
		}
	}
	tasks, err := e.tasks.ListOpen(ctx, statuses...)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list workflow tasks")
	}
	return tasks, nil
}
