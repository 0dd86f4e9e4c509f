// Package tract evaluates the recording history of a resource: its ordered
// acts, antecedents, prelation and chained-act rules.
//
// The tract is never cached. Every query reads the store so rule checks see
// acts appended by concurrent transactions.
package tract

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"landreg/internal/recording/models"
	resm "landreg/internal/resource/models"
	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
	"landreg/pkg/platform/audit"
	"landreg/pkg/requestcontext"
)

var (
	// Acts issued before this date are exempt from chained-act rules.
	chainIssueCutoff = time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)
	// Acts presented before this date are exempt from chained-act rules.
	chainPresentationCutoff = time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)
)

// ActReader reads recording acts with their record info filled.
type ActReader interface {
	ListActsByResource(ctx context.Context, resourceID id.ResourceID) ([]*models.RecordingAct, error)
	FindActByID(ctx context.Context, actID id.RecordingActID) (*models.RecordingAct, error)
}

type ResourceReader interface {
	FindByID(ctx context.Context, resourceID id.ResourceID) (*resm.Resource, error)
}

// AuditEmitter records prelation overrides. Emission is fail-closed.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Engine is the single tract component for every resource kind.
type Engine struct {
	acts      ActReader
	resources ResourceReader
	catalog   *models.Catalog
	cfg       Config
	logger    *slog.Logger
	metrics   *Metrics
	auditor   AuditEmitter
	tracer    trace.Tracer
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithAuditEmitter(a AuditEmitter) Option {
	return func(e *Engine) { e.auditor = a }
}

func New(acts ActReader, resources ResourceReader, catalog *models.Catalog, cfg Config, opts ...Option) *Engine {
	if cfg.PrelationPolicy == "" {
		cfg.PrelationPolicy = PrelationEnforce
	}
	e := &Engine{
		acts:      acts,
		resources: resources,
		catalog:   catalog,
		cfg:       cfg,
		logger:    slog.Default(),
		tracer:    otel.Tracer("landreg/tract"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetRecordingActs returns the non-deleted acts of a resource in tract
// order.
func (e *Engine) GetRecordingActs(ctx context.Context, resourceID id.ResourceID) ([]*models.RecordingAct, error) {
	start := time.Now()
	acts, err := e.acts.ListActsByResource(ctx, resourceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load resource tract")
	}
	if e.metrics != nil {
		e.metrics.ObserveTractLoad(start)
	}
	out := make([]*models.RecordingAct, 0, len(acts))
	for _, a := range acts {
		if a.Status != models.ActStatusDeleted {
			out = append(out, a)
		}
	}
	models.SortActs(out)
	return out, nil
}

// cutoff bounds an antecedent search: strictly before act when set,
// otherwise presented at or before at when set, otherwise unbounded.
type cutoff struct {
	act *models.RecordingAct
	at  time.Time
}

func (c cutoff) admits(a *models.RecordingAct) bool {
	switch {
	case !c.act.IsEmpty():
		return a.ID != c.act.ID && models.CompareActs(a, c.act) < 0
	case !c.at.IsZero():
		return !a.PresentationTime().After(c.at)
	default:
		return true
	}
}

func (c cutoff) time() time.Time {
	if !c.act.IsEmpty() {
		return c.act.PresentationTime()
	}
	return c.at
}

// GetRecordingAntecedent returns the latest active act that establishes or
// structurally modifies ownership of resource before beforeAct. An empty
// beforeAct searches the whole tract. Partitions without antecedent fall
// back to their parent parcel. Non real estate resources return their first
// act. Nothing found yields the empty act.
func (e *Engine) GetRecordingAntecedent(ctx context.Context, resource *resm.Resource, beforeAct *models.RecordingAct,
	returnAmendmentActs bool) (*models.RecordingAct, error) {
	ctx, span := e.tracer.Start(ctx, "tract.GetRecordingAntecedent",
		trace.WithAttributes(attribute.String("resource_uid", resource.UID)))
	defer span.End()

	return e.antecedent(ctx, resource, cutoff{act: beforeAct}, returnAmendmentActs, map[id.ResourceID]bool{})
}

func (e *Engine) antecedent(ctx context.Context, resource *resm.Resource, c cutoff, returnAmendmentActs bool,
	visited map[id.ResourceID]bool) (*models.RecordingAct, error) {
	if visited[resource.ID] {
		return models.EmptyRecordingAct(), nil
	}
	visited[resource.ID] = true

	acts, err := e.GetRecordingActs(ctx, resource.ID)
	if err != nil {
		return nil, err
	}
	candidates := make([]*models.RecordingAct, 0, len(acts))
	for _, a := range acts {
		if a.IsActive() && c.admits(a) {
			candidates = append(candidates, a)
		}
	}

	if !resource.IsRealEstate() {
		if len(candidates) == 0 {
			return models.EmptyRecordingAct(), nil
		}
		return candidates[0], nil
	}

	for i := len(candidates) - 1; i >= 0; i-- {
		a := candidates[i]
		if establishesOwnership(a) {
			return a, nil
		}
		if returnAmendmentActs && a.IsAmendment() {
			target, err := e.findAct(ctx, acts, a.AmendmentOf)
			if err != nil {
				return nil, err
			}
			if target.IsActive() && establishesOwnership(target) {
				return target, nil
			}
		}
	}

	parentID, ok := resource.ParentID()
	if !ok {
		return models.EmptyRecordingAct(), nil
	}
	parent, err := e.resources.FindByID(ctx, parentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load parent parcel")
	}
	return e.antecedent(ctx, parent, cutoff{at: c.time()}, returnAmendmentActs, visited)
}

func establishesOwnership(a *models.RecordingAct) bool {
	return a.Type.IsDomainAct || a.Type.IsStructureAct
}

// findAct prefers the loaded tract and falls back to the store for acts on
// other resources.
func (e *Engine) findAct(ctx context.Context, tract []*models.RecordingAct, actID id.RecordingActID) (*models.RecordingAct, error) {
	for _, a := range tract {
		if a.ID == actID {
			return a, nil
		}
	}
	a, err := e.acts.FindActByID(ctx, actID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load amended act")
	}
	return a, nil
}

// AssertIsLastInPrelationOrder rejects filing an act "in the past": a
// non-exempt act cannot be added to record when a later-presented act on
// the same resource is already closed. Cancellations and historic records
// are exempt, as are acts whose type skips prelation.
func (e *Engine) AssertIsLastInPrelationOrder(ctx context.Context, record models.RecordInfo, resource *resm.Resource,
	newType models.ActType) error {
	if newType.IsCancelation || record.Historic {
		return nil
	}
	acts, err := e.GetRecordingActs(ctx, resource.ID)
	if err != nil {
		return err
	}
	var later *models.RecordingAct
	for _, a := range acts {
		if a.Type.SkipPrelation || a.Record.ID == record.ID || !a.Record.IsClosed() {
			continue
		}
		if a.PresentationTime().After(record.PresentationTime) {
			later = a
			break
		}
	}
	if later == nil {
		return nil
	}

	violation := dErrors.Newf(dErrors.CodeInvariantViolation,
		"El acto %s no puede registrarse sobre el folio %s porque violaría el orden de prelación: "+
			"el documento %s, presentado el %s, ya tiene registrado el acto %s.",
		newType.Label(), resource.UID, later.Record.UID,
		later.PresentationTime().Format("02/01/2006 15:04"), later.Type.Label())

	if e.cfg.PrelationPolicy != PrelationWarn {
		if e.metrics != nil {
			e.metrics.IncPrelationViolation("rejected")
		}
		return violation
	}

	if e.metrics != nil {
		e.metrics.IncPrelationViolation("warned")
	}
	e.logger.WarnContext(ctx, "prelation override",
		"event", audit.EventPrelationOverride,
		"log_type", "audit",
		"request_id", requestcontext.RequestID(ctx),
		"record_uid", record.UID,
		"resource_uid", resource.UID,
		"later_record_uid", later.Record.UID,
	)
	if e.auditor != nil {
		err := e.auditor.Emit(ctx, audit.Event{
			Timestamp:     requestcontext.Now(ctx),
			ActorID:       requestcontext.UserID(ctx),
			AggregateType: "land_record",
			AggregateID:   record.ID.String(),
			Subject:       record.UID,
			Action:        string(audit.EventPrelationOverride),
			Reason:        dErrors.MessageOf(violation),
			RequestID:     requestcontext.RequestID(ctx),
		})
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record prelation override")
		}
	}
	return nil
}

// AssertChainedRecordingAct requires an alive, unconsumed act of the type
// newType chains to. Instruments issued before 2014 or presented before
// 2016 are exempt. Modification acts on real estate may also be satisfied
// by a sibling partition inside the same record.
func (e *Engine) AssertChainedRecordingAct(ctx context.Context, record *models.LandRecord, resource *resm.Resource,
	newType models.ActType) error {
	if !newType.HasChainedAct() {
		return nil
	}
	if (!record.IssueDate.IsZero() && record.IssueDate.Before(chainIssueCutoff)) ||
		record.PresentationTime.Before(chainPresentationCutoff) {
		return nil
	}

	_, found, err := e.TryGetLastActiveChainedAct(ctx, resource, newType.ChainedActTypeID, record.Info())
	if err != nil || found {
		return err
	}

	if newType.IsModification && resource.IsRealEstate() {
		found, err = e.siblingHasChainedAct(ctx, record, resource, newType.ChainedActTypeID)
		if err != nil || found {
			return err
		}
	}

	if e.metrics != nil {
		e.metrics.IncChainViolation()
	}
	chained, _ := e.catalog.Get(newType.ChainedActTypeID)
	return dErrors.Newf(dErrors.CodeInvariantViolation,
		"El acto %s no puede registrarse sobre el folio %s porque no tiene registrado un %s vigente "+
			"que no haya sido utilizado por otro acto.",
		newType.Label(), resource.UID, chained.Label())
}

func (e *Engine) siblingHasChainedAct(ctx context.Context, record *models.LandRecord, resource *resm.Resource,
	chainedTypeID string) (bool, error) {
	parentID, _ := resource.ParentID()
	seen := map[id.ResourceID]bool{resource.ID: true}
	for _, a := range record.RecordingActs() {
		if seen[a.ResourceID] {
			continue
		}
		seen[a.ResourceID] = true
		sibling, err := e.resources.FindByID(ctx, a.ResourceID)
		if err != nil {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load sibling parcel")
		}
		if !related(resource, sibling, parentID) {
			continue
		}
		_, found, err := e.TryGetLastActiveChainedAct(ctx, sibling, chainedTypeID, record.Info())
		if err != nil || found {
			return found, err
		}
	}
	return false, nil
}

// related reports parcels of the same partition family.
func related(resource, other *resm.Resource, parentID id.ResourceID) bool {
	otherParent, isPartition := other.ParentID()
	switch {
	case !parentID.IsNil() && isPartition && otherParent == parentID:
		return true
	case !parentID.IsNil() && other.ID == parentID:
		return true
	case isPartition && otherParent == resource.ID:
		return true
	default:
		return false
	}
}

// TryGetLastActiveChainedAct finds the last act of chainedTypeID in the
// tract, acts of before included, that was alive at before's presentation
// time and not yet consumed by a closed act sharing the same chaining
// rule. found is false when it is absent or consumed.
func (e *Engine) TryGetLastActiveChainedAct(ctx context.Context, resource *resm.Resource, chainedTypeID string,
	before models.RecordInfo) (*models.RecordingAct, bool, error) {
	acts, err := e.GetRecordingActs(ctx, resource.ID)
	if err != nil {
		return nil, false, err
	}

	pos := -1
	for i := len(acts) - 1; i >= 0; i-- {
		a := acts[i]
		inScope := a.Record.ID == before.ID || !a.PresentationTime().After(before.PresentationTime)
		if inScope && a.Type.ID == chainedTypeID && a.IsAliveAt(before.PresentationTime) {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil, false, nil
	}

	for _, a := range acts[pos+1:] {
		if a.Record.ID == before.ID || a.PresentationTime().After(before.PresentationTime) {
			continue
		}
		if a.Record.IsClosed() && a.IsActive() && a.Type.ChainedActTypeID == chainedTypeID {
			return nil, false, nil
		}
	}
	return acts[pos], true, nil
}

// GetAliveHardLimitations lists the closed hard limitations in force on
// resource at t.
func (e *Engine) GetAliveHardLimitations(ctx context.Context, resourceID id.ResourceID, t time.Time) ([]*models.RecordingAct, error) {
	acts, err := e.GetRecordingActs(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	var out []*models.RecordingAct
	for _, a := range acts {
		if a.Type.IsHardLimitation && a.Record.IsClosed() && a.IsAliveAt(t) {
			out = append(out, a)
		}
	}
	return out, nil
}

// AssertCanAppend runs every tract rule for adding an act of newType on
// resource inside record.
func (e *Engine) AssertCanAppend(ctx context.Context, record *models.LandRecord, resource *resm.Resource,
	newType models.ActType) error {
	ctx, span := e.tracer.Start(ctx, "tract.AssertCanAppend", trace.WithAttributes(
		attribute.String("record_uid", record.UID),
		attribute.String("resource_uid", resource.UID),
		attribute.String("act_type", newType.ID),
	))
	defer span.End()

	if newType.IsCreational {
		acts, err := e.GetRecordingActs(ctx, resource.ID)
		if err != nil {
			return err
		}
		for _, a := range acts {
			if a.Record.ID != record.ID && a.IsActive() {
				return dErrors.Newf(dErrors.CodeInvariantViolation,
					"El acto %s sólo puede registrarse como primer acto del folio %s, que ya tiene antecedentes.",
					newType.Label(), resource.UID)
			}
		}
	}
	if err := e.AssertChainedRecordingAct(ctx, record, resource, newType); err != nil {
		return err
	}
	return e.AssertIsLastInPrelationOrder(ctx, record.Info(), resource, newType)
}
