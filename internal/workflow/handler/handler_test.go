package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	wfm "landreg/internal/workflow/models"
	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
	"landreg/pkg/platform/middleware/auth"
	"landreg/pkg/requestcontext"
	"landreg/pkg/testutil"
)

type fakeValidator struct {
	userID string
}

func (v fakeValidator) ValidateToken(token string) (*auth.Claims, error) {
	if token != "good" {
		return nil, errors.New("bad token")
	}
	return &auth.Claims{UserID: v.userID}, nil
}

type fakeEngine struct {
	lastCmd  wfm.Command
	lastUser id.UserID
	err      error
	statuses []wfm.Status
}

func (e *fakeEngine) Execute(ctx context.Context, cmd wfm.Command) ([]wfm.TaskChange, error) {
	e.lastCmd = cmd
	e.lastUser = requestcontext.UserID(ctx)
	if e.err != nil {
		return nil, e.err
	}
	out := make([]wfm.TaskChange, 0, len(cmd.Transactions))
	for _, txID := range cmd.Transactions {
		out = append(out, wfm.TaskChange{
			TransactionID: txID, TransactionUID: "TR-1", Command: cmd.Type,
			From: wfm.StatusControl, To: wfm.StatusControl,
			Task: wfm.Task{CurrentStatus: wfm.StatusControl, NextStatus: cmd.NextStatus, CheckInTime: time.Now()},
		})
	}
	return out, nil
}

func (e *fakeEngine) ControlData(context.Context, id.TransactionID) (wfm.ControlData, error) {
	return wfm.ControlData{CanTake: true}, e.err
}

func (e *fakeEngine) NextStatusList(context.Context, id.TransactionID) ([]wfm.Status, error) {
	return e.statuses, e.err
}

func (e *fakeEngine) History(context.Context, id.TransactionID) ([]wfm.Task, error) {
	return []wfm.Task{{CurrentStatus: wfm.StatusPayment, Status: wfm.TaskClosed}}, e.err
}

func (e *fakeEngine) Inbox(_ context.Context, statuses ...wfm.Status) ([]wfm.Task, error) {
	e.statuses = statuses
	return nil, e.err
}

type HandlerSuite struct {
	suite.Suite
	engine *fakeEngine
	user   id.UserID
	router chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.engine = &fakeEngine{}
	s.user = id.UserID(uuid.New())
	s.router = chi.NewRouter()
	New(s.engine, fakeValidator{userID: s.user.String()}, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *HandlerSuite) do(method, path, body, token string) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewJSONRequest(method, path, body), token))
}

func (s *HandlerSuite) TestExecute() {
	txID := id.NewTransactionID()
	body := `{"type":"SetNextStatus","transactions":["` + txID.String() + `"],"next_status":"Recording"}`

	s.Run("requires a bearer token", func() {
		rec := s.do(http.MethodPost, "/workflow/commands", body, "")
		s.Equal(http.StatusUnauthorized, rec.Code)
		rec = s.do(http.MethodPost, "/workflow/commands", body, "forged")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("executes as the token subject", func() {
		rec := s.do(http.MethodPost, "/workflow/commands", body, "good")
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		s.Equal(wfm.CommandSetNextStatus, s.engine.lastCmd.Type)
		s.Equal([]id.TransactionID{txID}, s.engine.lastCmd.Transactions)
		s.Equal(s.user, s.engine.lastUser)

		resp := testutil.UnmarshalResponse[struct {
			Changes []changeResponse `json:"changes"`
		}](s.T(), rec)
		s.Require().Len(resp.Changes, 1)
		s.Equal("Recording", resp.Changes[0].Task.NextStatus)
	})

	s.Run("rule violations map to 422", func() {
		s.engine.err = dErrors.New(dErrors.CodeInvariantViolation, "El trámite TR-1 no puede turnarse.")
		defer func() { s.engine.err = nil }()
		rec := s.do(http.MethodPost, "/workflow/commands", body, "good")
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
		s.Contains(rec.Body.String(), "no puede turnarse")
	})

	s.Run("malformed ids are bad requests", func() {
		rec := s.do(http.MethodPost, "/workflow/commands", `{"type":"Take","transactions":["nope"]}`, "good")
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown fields are rejected", func() {
		rec := s.do(http.MethodPost, "/workflow/commands", `{"kind":"Take"}`, "good")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestQueries() {
	txID := id.NewTransactionID().String()

	rec := s.do(http.MethodGet, "/workflow/transactions/"+txID+"/control-data", "", "good")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"can_take":true`)

	s.engine.statuses = []wfm.Status{wfm.StatusRecording}
	rec = s.do(http.MethodGet, "/workflow/transactions/"+txID+"/next-statuses", "", "good")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "Registro")

	rec = s.do(http.MethodGet, "/workflow/transactions/"+txID+"/history", "", "good")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"status":"closed"`)

	rec = s.do(http.MethodGet, "/workflow/transactions/not-a-uuid/history", "", "good")
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/workflow/inbox?status=Control&status=Recording", "", "good")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal([]wfm.Status{wfm.StatusControl, wfm.StatusRecording}, s.engine.statuses)

	rec = s.do(http.MethodGet, "/workflow/inbox", "", "good")
	s.Equal(http.StatusBadRequest, rec.Code)
}
