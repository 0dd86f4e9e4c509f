package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"landreg/internal/recording/models"
	id "landreg/pkg/domain"
	"landreg/pkg/platform/sentinel"
)

type RecordStoreSuite struct {
	suite.Suite
	ctx     context.Context
	store   *InMemoryStore
	catalog *models.Catalog
	now     time.Time
}

func TestRecordStoreSuite(t *testing.T) {
	suite.Run(t, new(RecordStoreSuite))
}

func (s *RecordStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
	var err error
	s.catalog, err = models.LoadCatalog(nil)
	s.Require().NoError(err)
	s.now = time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
}

func (s *RecordStoreSuite) newRecord(uid string) *models.LandRecord {
	r, err := models.NewLandRecord(id.NewLandRecordID(), uid, models.RecordSource{
		TransactionID:    id.NewTransactionID(),
		PresentationTime: s.now,
	}, id.UserID(uuid.New()), s.now)
	s.Require().NoError(err)
	return r
}

func (s *RecordStoreSuite) TestRecords() {
	s.Run("create then find by id and uid", func() {
		r := s.newRecord("RP-1")
		s.Require().NoError(s.store.CreateRecord(s.ctx, r))
		s.Equal(int64(1), r.Version)

		found, err := s.store.FindRecordByID(s.ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(r.UID, found.UID)
		s.False(found.ActsLoaded())

		found, err = s.store.FindRecordByUID(s.ctx, "RP-1")
		s.Require().NoError(err)
		s.Equal(r.ID, found.ID)

		found, err = s.store.FindRecordByTransaction(s.ctx, r.TransactionID)
		s.Require().NoError(err)
		s.Equal(r.ID, found.ID)
	})

	s.Run("duplicated uid", func() {
		s.ErrorIs(s.store.CreateRecord(s.ctx, s.newRecord("RP-1")), sentinel.ErrAlreadyUsed)
	})

	s.Run("unknown record", func() {
		_, err := s.store.FindRecordByID(s.ctx, id.NewLandRecordID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("stale version conflicts", func() {
		r := s.newRecord("RP-2")
		s.Require().NoError(s.store.CreateRecord(s.ctx, r))
		first, _ := s.store.FindRecordByID(s.ctx, r.ID)
		second, _ := s.store.FindRecordByID(s.ctx, r.ID)

		s.Require().NoError(s.store.SaveRecord(s.ctx, first))
		s.Equal(int64(2), first.Version)
		s.ErrorIs(s.store.SaveRecord(s.ctx, second), sentinel.ErrConflict)
	})
}

func (s *RecordStoreSuite) TestActsCarryFreshRecordInfo() {
	r := s.newRecord("RP-3")
	s.Require().NoError(s.store.CreateRecord(s.ctx, r))
	mortgage, _ := s.catalog.Get("lim.hipoteca")
	resourceID := id.NewResourceID()
	act := &models.RecordingAct{ID: id.NewRecordingActID(), Type: mortgage, ResourceID: resourceID, Status: models.ActStatusActive}
	s.Require().NoError(r.AttachRecordingAct(act))
	s.Require().NoError(s.store.SaveActs(s.ctx, act))

	r.ApplyClose(id.UserID(uuid.New()), s.now)
	s.Require().NoError(s.store.SaveRecord(s.ctx, r))

	acts, err := s.store.ListActsByResource(s.ctx, resourceID)
	s.Require().NoError(err)
	s.Require().Len(acts, 1)
	s.True(acts[0].Record.IsClosed())

	byRecord, err := s.store.ListActsByRecord(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Len(byRecord, 1)

	s.Run("acts of unknown records are rejected", func() {
		orphan := &models.RecordingAct{ID: id.NewRecordingActID(), Record: models.RecordInfo{ID: id.NewLandRecordID()}}
		s.ErrorIs(s.store.SaveActs(s.ctx, orphan), sentinel.ErrNotFound)
	})
}

func (s *RecordStoreSuite) TestListActsByPartyName() {
	r := s.newRecord("RP-4")
	s.Require().NoError(s.store.CreateRecord(s.ctx, r))
	sale, _ := s.catalog.Get("dom.compraventa")
	act := &models.RecordingAct{
		ID: id.NewRecordingActID(), Type: sale, ResourceID: id.NewResourceID(), Status: models.ActStatusActive,
		Parties: []models.Party{{ID: id.NewPartyID(), Role: "Propietario", Name: "María López"}},
	}
	s.Require().NoError(r.AttachRecordingAct(act))
	s.Require().NoError(s.store.SaveActs(s.ctx, act))

	acts, err := s.store.ListActsByPartyName(s.ctx, "maría lópez")
	s.Require().NoError(err)
	s.Require().Len(acts, 1)
	s.Equal(act.ID, acts[0].ID)

	acts, err = s.store.ListActsByPartyName(s.ctx, "  MARÍA   López ")
	s.Require().NoError(err)
	s.Len(acts, 1)

	acts, err = s.store.ListActsByPartyName(s.ctx, "Juan Pérez")
	s.Require().NoError(err)
	s.Empty(acts)
}
