package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"landreg/internal/authz"
	"landreg/internal/platform/uid"
	"landreg/internal/recording/models"
	recstore "landreg/internal/recording/store"
	resm "landreg/internal/resource/models"
	resstore "landreg/internal/resource/store"
	"landreg/internal/security"
	secm "landreg/internal/security/models"
	"landreg/internal/tract"
	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
	"landreg/pkg/platform/audit"
	"landreg/pkg/requestcontext"
)

type recordingPublisher struct {
	events []audit.Event
	err    error
}

func (p *recordingPublisher) Emit(_ context.Context, event audit.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) actions() []string {
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Action)
	}
	return out
}

// takenUIDs always hands out the same record code.
type takenUIDs struct{ uid.Provider }

func (takenUIDs) GenerateRecordID() string { return "RP-TAKEN" }

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	records   *recstore.InMemoryStore
	resources *resstore.InMemoryStore
	roles     *authz.StaticRoles
	publisher *recordingPublisher
	service   *Service
	user      id.UserID
	base      time.Time
	parcel    *resm.Resource
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.records = recstore.NewInMemory()
	s.resources = resstore.NewInMemory()
	s.roles = authz.NewStaticRoles()
	s.publisher = &recordingPublisher{}
	s.user = id.UserID(uuid.New())
	s.base = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(requestcontext.WithUserID(context.Background(), s.user), s.base)
	s.service = s.newService(uid.New())

	parcel, err := resm.NewRealEstate(id.NewResourceID(), resm.RealEstate{Location: "Centro"}, s.user, s.base)
	s.Require().NoError(err)
	parcel.ApplyUID("TP-0001")
	s.Require().NoError(s.resources.Create(s.ctx, parcel))
	s.parcel = parcel
}

func (s *ServiceSuite) newService(uids uid.Provider) *Service {
	return s.newServiceWithSecurity(uids, security.Config{ESignEnabled: true, HashSalt: "test"})
}

func (s *ServiceSuite) newServiceWithSecurity(uids uid.Provider, cfg security.Config) *Service {
	catalog, err := models.LoadCatalog(nil)
	s.Require().NoError(err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	signer, err := security.NewHMACSigner("system-credential")
	s.Require().NoError(err)
	return New(Deps{
		Store:     s.records,
		Resources: s.resources,
		Catalog:   catalog,
		Tract:     tract.New(s.records, s.resources, catalog, tract.Config{}, tract.WithLogger(logger)),
		Sealer:    security.NewSealer(cfg, signer),
		Validator: security.NewValidator(cfg, s.roles),
		UIDs:      uids,
	}, WithLogger(logger), WithAuditPublisher(s.publisher))
}

func (s *ServiceSuite) source(presented time.Time) models.RecordSource {
	return models.RecordSource{
		TransactionID:    id.NewTransactionID(),
		TransactionUID:   "TR-0001",
		InstrumentUID:    "INST-1",
		PresentationTime: presented,
	}
}

func (s *ServiceSuite) owner() []models.Party {
	return []models.Party{{Role: "Propietario", Name: "María López"}}
}

// closedWithCreation returns a closed record holding the parcel's creation act.
func (s *ServiceSuite) closedWithCreation() (*models.LandRecord, *models.RecordingAct) {
	r, err := s.service.Create(s.ctx, s.source(s.base))
	s.Require().NoError(err)
	act, err := s.service.AppendRecordingAct(s.ctx, r, AppendActRequest{
		TypeID: "dom.creacion", ResourceID: s.parcel.ID, Parties: s.owner(),
	})
	s.Require().NoError(err)
	s.Require().NoError(s.service.Close(s.ctx, r))
	return r, act
}

func (s *ServiceSuite) TestPrepareIsPersistedByFirstAct() {
	r, err := s.service.Prepare(s.ctx, s.source(s.base))
	s.Require().NoError(err)
	s.True(r.IsNew())

	_, err = s.service.Get(s.ctx, r.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	act, err := s.service.AppendRecordingAct(s.ctx, r, AppendActRequest{
		TypeID: "dom.creacion", ResourceID: s.parcel.ID, Parties: s.owner(),
	})
	s.Require().NoError(err)
	s.Equal(0, act.Index)
	s.Len(act.Parties, 1)
	s.False(act.Parties[0].ID.IsNil())

	loaded, err := s.service.Get(s.ctx, r.ID)
	s.Require().NoError(err)
	acts := loaded.RecordingActs()
	s.Require().Len(acts, 1)
	s.Equal(act.ID, acts[0].ID)
}

func (s *ServiceSuite) TestRejectedFirstActKeepsPreparedRecord() {
	r, err := s.service.Prepare(s.ctx, s.source(s.base))
	s.Require().NoError(err)

	_, err = s.service.AppendRecordingAct(s.ctx, r, AppendActRequest{
		TypeID: "dom.compraventa", ResourceID: s.parcel.ID, Parties: s.owner(),
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation), "sale without preventive notice")
	s.False(r.IsNew())

	stored, err := s.service.Get(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.Version, stored.Version)
	s.Empty(stored.RecordingActs())

	act, err := s.service.AppendRecordingAct(s.ctx, r, AppendActRequest{
		TypeID: "dom.creacion", ResourceID: s.parcel.ID, Parties: s.owner(),
	})
	s.Require().NoError(err)
	s.Equal(0, act.Index)

	loaded, err := s.service.Get(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Len(loaded.RecordingActs(), 1)

	created := 0
	for _, action := range s.publisher.actions() {
		if action == string(audit.EventLandRecordCreated) {
			created++
		}
	}
	s.Equal(1, created)
}

func (s *ServiceSuite) TestFailedCreateLeavesRecordNew() {
	r, err := s.service.Prepare(s.ctx, s.source(s.base))
	s.Require().NoError(err)

	s.publisher.err = context.DeadlineExceeded
	_, err = s.service.AppendRecordingAct(s.ctx, r, AppendActRequest{
		TypeID: "dom.creacion", ResourceID: s.parcel.ID, Parties: s.owner(),
	})
	s.Require().Error(err)
	s.True(r.IsNew())
}

func (s *ServiceSuite) TestAppendValidation() {
	r, err := s.service.Create(s.ctx, s.source(s.base))
	s.Require().NoError(err)

	s.Run("unknown act type", func() {
		_, err := s.service.AppendRecordingAct(s.ctx, r, AppendActRequest{TypeID: "nope", ResourceID: s.parcel.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("amendment without target", func() {
		_, err := s.service.AppendRecordingAct(s.ctx, r, AppendActRequest{TypeID: "can.hipoteca", ResourceID: s.parcel.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown resource", func() {
		_, err := s.service.AppendRecordingAct(s.ctx, r, AppendActRequest{TypeID: "lim.hipoteca", ResourceID: id.NewResourceID()})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("invalid party leaves the record unchanged", func() {
		_, err := s.service.AppendRecordingAct(s.ctx, r, AppendActRequest{
			TypeID: "dom.creacion", ResourceID: s.parcel.ID, Parties: []models.Party{{Name: "Sin rol"}},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Require().NoError(s.service.RefreshRecordingActs(s.ctx, r))
		s.Empty(r.RecordingActs())
	})
}

func (s *ServiceSuite) TestClosedRecordIsImmutable() {
	r, _ := s.closedWithCreation()
	s.True(r.IsClosed())
	s.NotNil(r.AuthorizationTime)
	s.NotEmpty(r.Security.DigitalSeal)
	s.Equal(secm.SealV5_1, r.Security.SealVersion)
	s.Contains(s.publisher.actions(), string(audit.EventLandRecordClosed))

	_, err := s.service.AppendRecordingAct(s.ctx, r, AppendActRequest{TypeID: "lim.hipoteca", ResourceID: s.parcel.ID})
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	s.Run("open requires the opener role", func() {
		err := s.service.Open(s.ctx, r)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("opened record accepts acts again", func() {
		s.roles.Grant(s.user, authz.RoleRecordOpener)
		s.Require().NoError(s.service.Open(s.ctx, r))
		s.False(r.IsClosed())
		s.Empty(r.Security.DigitalSeal)

		_, err := s.service.AppendRecordingAct(s.ctx, r, AppendActRequest{
			TypeID: "lim.hipoteca", ResourceID: s.parcel.ID, Parties: []models.Party{{Role: "Acreedor", Name: "Banco"}},
		})
		s.Require().NoError(err)
		s.Contains(s.publisher.actions(), string(audit.EventLandRecordOpened))
	})
}

func (s *ServiceSuite) TestCloseRequiresActs() {
	r, err := s.service.Create(s.ctx, s.source(s.base))
	s.Require().NoError(err)
	err = s.service.Close(s.ctx, r)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	s.False(r.IsClosed())
}

func (s *ServiceSuite) TestCloseFailsWhenAuditFails() {
	r, err := s.service.Create(s.ctx, s.source(s.base))
	s.Require().NoError(err)
	_, err = s.service.AppendRecordingAct(s.ctx, r, AppendActRequest{
		TypeID: "dom.creacion", ResourceID: s.parcel.ID, Parties: s.owner(),
	})
	s.Require().NoError(err)

	s.publisher.err = context.DeadlineExceeded
	err = s.service.Close(s.ctx, r)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestIntegrity() {
	r, _ := s.closedWithCreation()

	s.Run("round trip verifies", func() {
		loaded, err := s.service.GetByUID(s.ctx, r.UID)
		s.Require().NoError(err)
		s.Equal(r.IntegrityHash, loaded.IntegrityHash)
	})

	s.Run("direct modification is detected", func() {
		tampered, err := s.records.FindRecordByID(s.ctx, r.ID)
		s.Require().NoError(err)
		tampered.InstrumentUID = "INST-FORGED"
		s.Require().NoError(s.records.SaveRecord(s.ctx, tampered))

		_, err = s.service.Get(s.ctx, r.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeIntegrityViolation))
		s.Contains(s.publisher.actions(), string(audit.EventIntegrityViolation))
	})
}

func (s *ServiceSuite) TestCancellation() {
	first, _ := s.closedWithCreation()
	s.Require().NotNil(first)

	mortgageRecord, err := s.service.Create(s.ctx, s.source(s.base.Add(time.Hour)))
	s.Require().NoError(err)
	mortgage, err := s.service.AppendRecordingAct(s.ctx, mortgageRecord, AppendActRequest{
		TypeID: "lim.hipoteca", ResourceID: s.parcel.ID, Parties: []models.Party{{Role: "Acreedor", Name: "Banco"}},
	})
	s.Require().NoError(err)

	cancelRecord, err := s.service.Create(s.ctx, s.source(s.base.Add(2*time.Hour)))
	s.Require().NoError(err)

	s.Run("target record must be closed", func() {
		_, err := s.service.AppendRecordingAct(s.ctx, cancelRecord, AppendActRequest{
			TypeID: "can.hipoteca", ResourceID: s.parcel.ID, AmendmentOf: mortgage.ID,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Require().NoError(s.service.Close(s.ctx, mortgageRecord))

	cancel, err := s.service.AppendRecordingAct(s.ctx, cancelRecord, AppendActRequest{
		TypeID: "can.hipoteca", ResourceID: s.parcel.ID, AmendmentOf: mortgage.ID,
	})
	s.Require().NoError(err)

	stored, err := s.records.FindActByID(s.ctx, mortgage.ID)
	s.Require().NoError(err)
	s.Equal(models.ActStatusCanceled, stored.Status)

	s.Run("a canceled act cannot be canceled again", func() {
		other, err := s.service.Create(s.ctx, s.source(s.base.Add(3*time.Hour)))
		s.Require().NoError(err)
		_, err = s.service.AppendRecordingAct(s.ctx, other, AppendActRequest{
			TypeID: "can.hipoteca", ResourceID: s.parcel.ID, AmendmentOf: mortgage.ID,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("removing the cancellation reactivates the target", func() {
		s.Require().NoError(s.service.RemoveRecordingAct(s.ctx, cancelRecord, cancel.ID))
		stored, err := s.records.FindActByID(s.ctx, mortgage.ID)
		s.Require().NoError(err)
		s.Equal(models.ActStatusActive, stored.Status)
		s.Empty(cancelRecord.RecordingActs())
	})
}

func (s *ServiceSuite) TestRemoveReindexes() {
	r, err := s.service.Create(s.ctx, s.source(s.base))
	s.Require().NoError(err)
	first, err := s.service.AppendRecordingAct(s.ctx, r, AppendActRequest{
		TypeID: "dom.creacion", ResourceID: s.parcel.ID, Parties: s.owner(),
	})
	s.Require().NoError(err)
	second, err := s.service.AppendRecordingAct(s.ctx, r, AppendActRequest{
		TypeID: "lim.servidumbre", ResourceID: s.parcel.ID,
	})
	s.Require().NoError(err)
	s.Equal(1, second.Index)

	s.Require().NoError(s.service.RemoveRecordingAct(s.ctx, r, first.ID))

	loaded, err := s.service.Get(s.ctx, r.ID)
	s.Require().NoError(err)
	acts := loaded.RecordingActs()
	s.Require().Len(acts, 1)
	s.Equal(second.ID, acts[0].ID)
	s.Equal(0, acts[0].Index)
}

func (s *ServiceSuite) TestAddParty() {
	r, err := s.service.Create(s.ctx, s.source(s.base))
	s.Require().NoError(err)
	act, err := s.service.AppendRecordingAct(s.ctx, r, AppendActRequest{TypeID: "dom.creacion", ResourceID: s.parcel.ID})
	s.Require().NoError(err)

	party, err := s.service.AddParty(s.ctx, r, act.ID, models.Party{Role: "Propietario", Name: "Juan Pérez"})
	s.Require().NoError(err)
	s.False(party.ID.IsNil())

	stored, err := s.records.FindActByID(s.ctx, act.ID)
	s.Require().NoError(err)
	s.Require().Len(stored.Parties, 1)
	s.Equal("Juan Pérez", stored.Parties[0].Name)

	_, err = s.service.AddParty(s.ctx, r, id.NewRecordingActID(), models.Party{Role: "Propietario", Name: "X"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestSignatureLifecycle() {
	r, _ := s.closedWithCreation()
	signer := id.UserID(uuid.New())
	signerCtx := requestcontext.WithUserID(s.ctx, signer)

	s.Run("sign requires preparation", func() {
		err := s.service.Sign(signerCtx, r)
		s.Error(err)
	})

	s.Require().NoError(s.service.PrepareForElectronicSign(s.ctx, r, signer))
	s.True(r.Security.IsPreparedForElectronicSign())

	s.Run("only the assigned signer or a delegate signs", func() {
		err := s.service.Sign(s.ctx, r)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Require().NoError(s.service.Sign(signerCtx, r))
	s.True(r.Security.IsSigned())
	s.Equal(signer, r.Security.SignedBy)

	s.Run("signed records cannot be opened", func() {
		s.roles.Grant(s.user, authz.RoleRecordOpener)
		err := s.service.Open(s.ctx, r)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("revoke requires the revoker role", func() {
		err := s.service.RevokeSignData(s.ctx, r, "error de captura")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		s.roles.Grant(s.user, authz.RoleSignRevoker)
		s.Require().NoError(s.service.RevokeSignData(s.ctx, r, "error de captura"))
		s.False(r.Security.IsSigned())
	})

	loaded, err := s.service.Get(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.Security.SignStatus, loaded.Security.SignStatus)
	s.Subset(s.publisher.actions(), []string{
		string(audit.EventLandRecordSigned),
		string(audit.EventLandRecordUnsigned),
	})
}

func (s *ServiceSuite) TestManualSignRejectedWithElectronicSign() {
	r, _ := s.closedWithCreation()
	err := s.service.SetManualSignData(s.ctx, r)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	s.False(r.Security.IsSigned())
}

func (s *ServiceSuite) TestManualSign() {
	s.service = s.newServiceWithSecurity(uid.New(), security.Config{ESignEnabled: false, HashSalt: "test"})
	r, _ := s.closedWithCreation()
	s.Equal(secm.SealV5_0, r.Security.SealVersion)

	s.Require().NoError(s.service.SetManualSignData(s.ctx, r))
	s.True(r.Security.IsSigned())
	s.Equal(secm.SignTypeManual, r.Security.SignType)

	loaded, err := s.service.Get(s.ctx, r.ID)
	s.Require().NoError(err)
	s.True(loaded.Security.IsSigned())
	s.Contains(s.publisher.actions(), string(audit.EventLandRecordSigned))
}

func (s *ServiceSuite) TestHistoricRecord() {
	src := s.source(s.base)
	src.BookEntries = []models.BookEntry{{BookNo: "12", Section: "I", Volume: "3", Page: "45"}}
	r, err := s.service.CreateHistoric(s.ctx, src)
	s.Require().NoError(err)
	s.True(r.IsHistoric())
	s.True(r.TransactionID.IsNil())

	_, err = s.service.AppendRecordingAct(s.ctx, r, AppendActRequest{TypeID: "dom.creacion", ResourceID: s.parcel.ID})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation), "historic acts need a book entry")

	_, err = s.service.AppendRecordingAct(s.ctx, r, AppendActRequest{
		TypeID: "dom.creacion", ResourceID: s.parcel.ID, Parties: s.owner(), BookEntry: src.BookEntries[0],
	})
	s.Require().NoError(err)
	s.Require().NoError(s.service.Close(s.ctx, r))
	s.Equal(secm.SealV1_0, r.Security.SealVersion)

	_, err = s.service.CreateHistoric(s.ctx, s.source(s.base))
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestUIDExhaustion() {
	svc := s.newService(takenUIDs{})
	_, err := svc.Create(s.ctx, s.source(s.base))
	s.Require().NoError(err)

	_, err = svc.Create(s.ctx, s.source(s.base))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
