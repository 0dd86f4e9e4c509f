package tract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"landreg/internal/recording/models"
	recstore "landreg/internal/recording/store"
	resm "landreg/internal/resource/models"
	resstore "landreg/internal/resource/store"
	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
	"landreg/pkg/platform/audit"
)

type recordingEmitter struct {
	events []audit.Event
	err    error
}

func (e *recordingEmitter) Emit(_ context.Context, event audit.Event) error {
	e.events = append(e.events, event)
	return e.err
}

type TractSuite struct {
	suite.Suite
	ctx       context.Context
	records   *recstore.InMemoryStore
	resources *resstore.InMemoryStore
	catalog   *models.Catalog
	engine    *Engine
	user      id.UserID
	base      time.Time
	seq       int
}

func TestTractSuite(t *testing.T) {
	suite.Run(t, new(TractSuite))
}

func (s *TractSuite) SetupTest() {
	s.ctx = context.Background()
	s.records = recstore.NewInMemory()
	s.resources = resstore.NewInMemory()
	var err error
	s.catalog, err = models.LoadCatalog(nil)
	s.Require().NoError(err)
	s.engine = s.newEngine(Config{})
	s.user = id.UserID(uuid.New())
	s.base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *TractSuite) newEngine(cfg Config, opts ...Option) *Engine {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(s.records, s.resources, s.catalog, cfg, opts...)
}

func (s *TractSuite) nextUID(prefix string) string {
	s.seq++
	return prefix + "-" + string(rune('A'+s.seq))
}

func (s *TractSuite) realEstate(data resm.RealEstate) *resm.Resource {
	r, err := resm.NewRealEstate(id.NewResourceID(), data, s.user, s.base)
	s.Require().NoError(err)
	r.ApplyUID(s.nextUID("RE"))
	s.Require().NoError(s.resources.Create(s.ctx, r))
	return r
}

func (s *TractSuite) association() *resm.Resource {
	r, err := resm.NewAssociation(id.NewResourceID(), resm.Association{Name: "Colonos"}, s.user, s.base)
	s.Require().NoError(err)
	r.ApplyUID(s.nextUID("AS"))
	s.Require().NoError(s.resources.Create(s.ctx, r))
	return r
}

func (s *TractSuite) record(presented time.Time) *models.LandRecord {
	r, err := models.NewLandRecord(id.NewLandRecordID(), s.nextUID("RP"), models.RecordSource{
		TransactionID:    id.NewTransactionID(),
		PresentationTime: presented,
	}, s.user, presented)
	s.Require().NoError(err)
	s.Require().NoError(s.records.CreateRecord(s.ctx, r))
	return r
}

func (s *TractSuite) actType(typeID string) models.ActType {
	t, ok := s.catalog.Get(typeID)
	s.Require().True(ok, typeID)
	return t
}

func (s *TractSuite) addAct(r *models.LandRecord, typeID string, res *resm.Resource) *models.RecordingAct {
	a, err := r.AppendRecordingAct(id.NewRecordingActID(), s.actType(typeID), res, models.BookEntry{}, s.user, r.PresentationTime)
	s.Require().NoError(err)
	s.Require().NoError(s.records.SaveActs(s.ctx, a))
	return a
}

func (s *TractSuite) close(r *models.LandRecord) {
	r.ApplyClose(s.user, r.PresentationTime)
	s.Require().NoError(s.records.SaveRecord(s.ctx, r))
}

func (s *TractSuite) TestEmptyTract() {
	parcel := s.realEstate(resm.RealEstate{Location: "Centro"})

	antecedent, err := s.engine.GetRecordingAntecedent(s.ctx, parcel, nil, true)
	s.Require().NoError(err)
	s.True(antecedent.IsEmpty())

	r := s.record(s.base)
	s.Require().NoError(s.engine.AssertCanAppend(s.ctx, r, parcel, s.actType("dom.creacion")))
	creation := s.addAct(r, "dom.creacion", parcel)

	acts, err := s.engine.GetRecordingActs(s.ctx, parcel.ID)
	s.Require().NoError(err)
	s.Require().Len(acts, 1)
	s.Equal(creation.ID, acts[0].ID)

	s.Run("a second creational act is rejected", func() {
		other := s.record(s.base.Add(time.Hour))
		err := s.engine.AssertCanAppend(s.ctx, other, parcel, s.actType("dom.creacion"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *TractSuite) TestGetRecordingActsOrder() {
	parcel := s.realEstate(resm.RealEstate{})
	late := s.record(s.base.Add(2 * time.Hour))
	early := s.record(s.base)
	a2 := s.addAct(late, "lim.hipoteca", parcel)
	a0 := s.addAct(early, "dom.creacion", parcel)
	a1 := s.addAct(early, "lim.embargo", parcel)
	removed := s.addAct(early, "lim.usufructo", parcel)
	_, _, err := early.RemoveRecordingAct(removed.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.records.SaveActs(s.ctx, removed))

	acts, err := s.engine.GetRecordingActs(s.ctx, parcel.ID)
	s.Require().NoError(err)
	s.Require().Len(acts, 3)
	s.Equal([]id.RecordingActID{a0.ID, a1.ID, a2.ID}, []id.RecordingActID{acts[0].ID, acts[1].ID, acts[2].ID})
}

func (s *TractSuite) TestGetRecordingAntecedent() {
	parcel := s.realEstate(resm.RealEstate{})
	r1 := s.record(s.base)
	creation := s.addAct(r1, "dom.creacion", parcel)
	s.close(r1)
	r2 := s.record(s.base.Add(time.Hour))
	donation := s.addAct(r2, "dom.donacion", parcel)
	mortgage := s.addAct(r2, "lim.hipoteca", parcel)

	s.Run("latest domain act before the cutoff", func() {
		got, err := s.engine.GetRecordingAntecedent(s.ctx, parcel, mortgage, false)
		s.Require().NoError(err)
		s.Equal(donation.ID, got.ID)

		got, err = s.engine.GetRecordingAntecedent(s.ctx, parcel, donation, false)
		s.Require().NoError(err)
		s.Equal(creation.ID, got.ID)
	})

	s.Run("deterministic without intervening writes", func() {
		first, err := s.engine.GetRecordingAntecedent(s.ctx, parcel, mortgage, true)
		s.Require().NoError(err)
		second, err := s.engine.GetRecordingAntecedent(s.ctx, parcel, mortgage, true)
		s.Require().NoError(err)
		s.Equal(first, second)
	})

	s.Run("amendments resolve to their target", func() {
		r3 := s.record(s.base.Add(2 * time.Hour))
		fix := &models.RecordingAct{
			ID: id.NewRecordingActID(), Type: s.actType("mod.rectificacion"), ResourceID: parcel.ID,
			ResourceUID: parcel.UID, Status: models.ActStatusActive, AmendmentOf: donation.ID,
		}
		s.Require().NoError(r3.AttachRecordingAct(fix))
		s.Require().NoError(s.records.SaveActs(s.ctx, fix))

		got, err := s.engine.GetRecordingAntecedent(s.ctx, parcel, nil, true)
		s.Require().NoError(err)
		s.Equal(donation.ID, got.ID)
	})

	s.Run("non real estate returns the first act", func() {
		assoc := s.association()
		r := s.record(s.base.Add(3 * time.Hour))
		first := s.addAct(r, "asoc.constitucion", assoc)
		s.addAct(r, "lim.embargo", assoc)

		got, err := s.engine.GetRecordingAntecedent(s.ctx, assoc, nil, false)
		s.Require().NoError(err)
		s.Equal(first.ID, got.ID)
	})
}

func (s *TractSuite) TestPartitionAntecedent() {
	parent := s.realEstate(resm.RealEstate{})
	r1 := s.record(s.base)
	creation := s.addAct(r1, "dom.creacion", parent)
	s.close(r1)
	partition := s.realEstate(resm.RealEstate{IsPartitionOf: parent.ID, PartitionNo: "1"})

	s.Run("falls back to the parent tract", func() {
		got, err := s.engine.GetRecordingAntecedent(s.ctx, partition, nil, false)
		s.Require().NoError(err)
		s.Equal(creation.ID, got.ID)
	})

	s.Run("parent acts after the cutoff are ignored", func() {
		r2 := s.record(s.base.Add(time.Hour))
		mortgage := s.addAct(r2, "lim.hipoteca", partition)
		r3 := s.record(s.base.Add(2 * time.Hour))
		s.addAct(r3, "dom.donacion", parent)

		got, err := s.engine.GetRecordingAntecedent(s.ctx, partition, mortgage, false)
		s.Require().NoError(err)
		s.Equal(creation.ID, got.ID)
	})

	s.Run("cycles terminate", func() {
		loopA := s.realEstate(resm.RealEstate{})
		loopB := s.realEstate(resm.RealEstate{IsPartitionOf: loopA.ID})
		loopA.RealEstate.IsPartitionOf = loopB.ID
		s.Require().NoError(s.resources.Save(s.ctx, loopA))

		got, err := s.engine.GetRecordingAntecedent(s.ctx, loopB, nil, false)
		s.Require().NoError(err)
		s.True(got.IsEmpty())
	})
}

func (s *TractSuite) TestPrelation() {
	parcel := s.realEstate(resm.RealEstate{})
	earlier := s.record(s.base)
	later := s.record(s.base.Add(24 * time.Hour))
	s.addAct(later, "lim.hipoteca", parcel)
	s.close(later)

	s.Run("enforce rejects filing before a closed later act", func() {
		err := s.engine.AssertIsLastInPrelationOrder(s.ctx, earlier.Info(), parcel, s.actType("lim.embargo"))
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.Contains(dErrors.MessageOf(err), "prelación")
	})

	s.Run("cancellations are exempt", func() {
		s.NoError(s.engine.AssertIsLastInPrelationOrder(s.ctx, earlier.Info(), parcel, s.actType("can.hipoteca")))
	})

	s.Run("later records are in order", func() {
		newest := s.record(s.base.Add(48 * time.Hour))
		s.NoError(s.engine.AssertIsLastInPrelationOrder(s.ctx, newest.Info(), parcel, s.actType("lim.embargo")))
	})

	s.Run("open later records do not block", func() {
		other := s.realEstate(resm.RealEstate{})
		openLater := s.record(s.base.Add(24 * time.Hour))
		s.addAct(openLater, "lim.hipoteca", other)
		s.NoError(s.engine.AssertIsLastInPrelationOrder(s.ctx, earlier.Info(), other, s.actType("lim.embargo")))
	})

	s.Run("acts that skip prelation are ignored", func() {
		other := s.realEstate(resm.RealEstate{})
		noticeRecord := s.record(s.base.Add(24 * time.Hour))
		s.addAct(noticeRecord, "av.preventivo", other)
		s.close(noticeRecord)
		s.NoError(s.engine.AssertIsLastInPrelationOrder(s.ctx, earlier.Info(), other, s.actType("lim.embargo")))
	})

	s.Run("warn policy records an override", func() {
		emitter := &recordingEmitter{}
		engine := s.newEngine(Config{PrelationPolicy: PrelationWarn}, WithAuditEmitter(emitter))
		s.NoError(engine.AssertIsLastInPrelationOrder(s.ctx, earlier.Info(), parcel, s.actType("lim.embargo")))
		s.Require().Len(emitter.events, 1)
		s.Equal(string(audit.EventPrelationOverride), emitter.events[0].Action)
		s.Equal(earlier.UID, emitter.events[0].Subject)
	})

	s.Run("warn policy fails closed on audit errors", func() {
		engine := s.newEngine(Config{PrelationPolicy: PrelationWarn}, WithAuditEmitter(&recordingEmitter{err: errors.New("down")}))
		err := engine.AssertIsLastInPrelationOrder(s.ctx, earlier.Info(), parcel, s.actType("lim.embargo"))
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *TractSuite) TestChainedRecordingAct() {
	sale := s.actType("dom.compraventa")

	s.Run("missing prerequisite fails naming it", func() {
		parcel := s.realEstate(resm.RealEstate{})
		r := s.record(s.base)
		err := s.engine.AssertChainedRecordingAct(s.ctx, r, parcel, sale)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		s.Contains(dErrors.MessageOf(err), "Primer aviso preventivo")
	})

	s.Run("alive unconsumed notice satisfies", func() {
		parcel := s.realEstate(resm.RealEstate{})
		notice := s.record(s.base)
		s.addAct(notice, "av.preventivo", parcel)
		s.close(notice)

		r := s.record(s.base.AddDate(0, 0, 10))
		s.NoError(s.engine.AssertChainedRecordingAct(s.ctx, r, parcel, sale))

		act, found, err := s.engine.TryGetLastActiveChainedAct(s.ctx, parcel, "av.preventivo", r.Info())
		s.Require().NoError(err)
		s.True(found)
		s.Equal(notice.ID, act.Record.ID)
	})

	s.Run("notice in the same record satisfies", func() {
		parcel := s.realEstate(resm.RealEstate{})
		r := s.record(s.base)
		s.addAct(r, "av.preventivo", parcel)
		s.NoError(s.engine.AssertChainedRecordingAct(s.ctx, r, parcel, sale))
	})

	s.Run("expired notice does not satisfy", func() {
		parcel := s.realEstate(resm.RealEstate{})
		notice := s.record(s.base)
		s.addAct(notice, "av.preventivo", parcel)
		s.close(notice)

		r := s.record(s.base.AddDate(0, 0, 120))
		s.Error(s.engine.AssertChainedRecordingAct(s.ctx, r, parcel, sale))
	})

	s.Run("consumed notice does not satisfy", func() {
		parcel := s.realEstate(resm.RealEstate{})
		notice := s.record(s.base)
		s.addAct(notice, "av.preventivo", parcel)
		s.close(notice)
		first := s.record(s.base.AddDate(0, 0, 5))
		firstSale := s.addAct(first, "dom.compraventa", parcel)
		s.Require().NoError(firstSale.AddParty(models.Party{ID: id.NewPartyID(), Role: "Comprador", Name: "Ana"}))
		s.Require().NoError(s.records.SaveActs(s.ctx, firstSale))
		s.close(first)

		r := s.record(s.base.AddDate(0, 0, 10))
		_, found, err := s.engine.TryGetLastActiveChainedAct(s.ctx, parcel, "av.preventivo", r.Info())
		s.Require().NoError(err)
		s.False(found)
		s.Error(s.engine.AssertChainedRecordingAct(s.ctx, r, parcel, sale))
	})

	s.Run("grandfathered by presentation date", func() {
		parcel := s.realEstate(resm.RealEstate{})
		r := s.record(time.Date(2015, 6, 1, 0, 0, 0, 0, time.UTC))
		s.NoError(s.engine.AssertChainedRecordingAct(s.ctx, r, parcel, sale))
	})

	s.Run("grandfathered by issue date", func() {
		parcel := s.realEstate(resm.RealEstate{})
		r := s.record(s.base)
		r.IssueDate = time.Date(2013, 12, 31, 0, 0, 0, 0, time.UTC)
		s.NoError(s.engine.AssertChainedRecordingAct(s.ctx, r, parcel, sale))
	})

	s.Run("modification acts accept a sibling partition's notice", func() {
		parent := s.realEstate(resm.RealEstate{})
		p1 := s.realEstate(resm.RealEstate{IsPartitionOf: parent.ID, PartitionNo: "1"})
		p2 := s.realEstate(resm.RealEstate{IsPartitionOf: parent.ID, PartitionNo: "2"})
		notice := s.record(s.base)
		s.addAct(notice, "av.preventivo", p2)
		s.close(notice)

		r := s.record(s.base.AddDate(0, 0, 3))
		subdivision := s.actType("str.subdivision")
		s.Error(s.engine.AssertChainedRecordingAct(s.ctx, r, p1, subdivision))

		s.addAct(r, "lim.servidumbre", p2)
		s.NoError(s.engine.AssertChainedRecordingAct(s.ctx, r, p1, subdivision))
	})
}

func (s *TractSuite) TestGetAliveHardLimitations() {
	parcel := s.realEstate(resm.RealEstate{})
	r := s.record(s.base)
	mortgage := s.addAct(r, "lim.hipoteca", parcel)
	s.addAct(r, "lim.servidumbre", parcel)
	embargo := s.addAct(r, "lim.embargo", parcel)

	open, err := s.engine.GetAliveHardLimitations(s.ctx, parcel.ID, s.base.Add(time.Hour))
	s.Require().NoError(err)
	s.Empty(open, "acts of open records are not in force")

	s.close(r)
	embargo.ApplyCancel()
	s.Require().NoError(s.records.SaveActs(s.ctx, embargo))

	alive, err := s.engine.GetAliveHardLimitations(s.ctx, parcel.ID, s.base.Add(time.Hour))
	s.Require().NoError(err)
	s.Require().Len(alive, 1)
	s.Equal(mortgage.ID, alive[0].ID)
}
