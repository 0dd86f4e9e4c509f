// Package handler exposes workflow commands over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	wfm "landreg/internal/workflow/models"
	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
	"landreg/pkg/platform/httputil"
	"landreg/pkg/platform/middleware/auth"
	"landreg/pkg/requestcontext"
)

// Engine is the workflow surface the handler needs.
type Engine interface {
	Execute(ctx context.Context, cmd wfm.Command) ([]wfm.TaskChange, error)
	ControlData(ctx context.Context, txID id.TransactionID) (wfm.ControlData, error)
	NextStatusList(ctx context.Context, txID id.TransactionID) ([]wfm.Status, error)
	History(ctx context.Context, txID id.TransactionID) ([]wfm.Task, error)
	Inbox(ctx context.Context, statuses ...wfm.Status) ([]wfm.Task, error)
}

type Handler struct {
	engine    Engine
	validator auth.TokenValidator
	logger    *slog.Logger
}

func New(engine Engine, validator auth.TokenValidator, logger *slog.Logger) *Handler {
	return &Handler{engine: engine, validator: validator, logger: logger}
}

// Register mounts the workflow routes on r behind bearer authentication.
// The request id, client metadata and request time middlewares are expected
// on r.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(h.validator, h.logger))

		r.Post("/workflow/commands", h.handleExecute)
		r.Get("/workflow/inbox", h.handleInbox)
		r.Get("/workflow/transactions/{transactionID}/control-data", h.handleControlData)
		r.Get("/workflow/transactions/{transactionID}/next-statuses", h.handleNextStatuses)
		r.Get("/workflow/transactions/{transactionID}/history", h.handleHistory)
	})
}

type commandRequest struct {
	Type         string   `json:"type"`
	Transactions []string `json:"transactions"`
	NextStatus   string   `json:"next_status,omitempty"`
	NextUser     string   `json:"next_user,omitempty"`
	Notes        string   `json:"notes,omitempty"`
}

func (req commandRequest) toCommand() (wfm.Command, error) {
	cmd := wfm.Command{
		Type:       wfm.CommandType(req.Type),
		NextStatus: wfm.Status(req.NextStatus),
		Notes:      req.Notes,
	}
	for _, raw := range req.Transactions {
		txID, err := id.ParseTransactionID(raw)
		if err != nil {
			return wfm.Command{}, dErrors.Newf(dErrors.CodeBadRequest, "invalid transaction id %q", raw)
		}
		cmd.Transactions = append(cmd.Transactions, txID)
	}
	if req.NextUser != "" {
		user, err := id.ParseUserID(req.NextUser)
		if err != nil {
			return wfm.Command{}, dErrors.New(dErrors.CodeBadRequest, "invalid next_user")
		}
		cmd.NextUser = user
	}
	return cmd, nil
}

type taskResponse struct {
	ID             string     `json:"id"`
	TransactionUID string     `json:"transaction_uid"`
	CurrentStatus  string     `json:"current_status"`
	Responsible    string     `json:"responsible"`
	CheckInTime    time.Time  `json:"check_in_time"`
	EndProcessTime *time.Time `json:"end_process_time,omitempty"`
	NextStatus     string     `json:"next_status,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	Status         string     `json:"status"`
}

func toTaskResponse(t wfm.Task) taskResponse {
	return taskResponse{
		ID:             t.ID.String(),
		TransactionUID: t.TransactionUID,
		CurrentStatus:  string(t.CurrentStatus),
		Responsible:    t.Responsible.String(),
		CheckInTime:    t.CheckInTime,
		EndProcessTime: t.EndProcessTime,
		NextStatus:     string(t.NextStatus),
		Notes:          t.Notes,
		Status:         string(t.Status),
	}
}

type changeResponse struct {
	TransactionID  string       `json:"transaction_id"`
	TransactionUID string       `json:"transaction_uid"`
	Command        string       `json:"command"`
	From           string       `json:"from"`
	To             string       `json:"to"`
	Message        string       `json:"message"`
	Task           taskResponse `json:"task"`
}

func (h *Handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req commandRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid workflow command request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	cmd, err := req.toCommand()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	changes, err := h.engine.Execute(ctx, cmd)
	if err != nil {
		h.logger.WarnContext(ctx, "workflow command rejected",
			"request_id", requestcontext.RequestID(ctx),
			"command", cmd.Type,
			"applied", len(changes),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	out := make([]changeResponse, 0, len(changes))
	for _, c := range changes {
		out = append(out, changeResponse{
			TransactionID:  c.TransactionID.String(),
			TransactionUID: c.TransactionUID,
			Command:        string(c.Command),
			From:           string(c.From),
			To:             string(c.To),
			Message:        c.Message,
			Task:           toTaskResponse(c.Task),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"changes": out})
}

func (h *Handler) handleInbox(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query()["status"]
	if len(raw) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "at least one status is required"))
		return
	}
	statuses := make([]wfm.Status, 0, len(raw))
	for _, s := range raw {
		statuses = append(statuses, wfm.Status(s))
	}
	tasks, err := h.engine.Inbox(r.Context(), statuses...)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"tasks": toTaskResponses(tasks)})
}

func (h *Handler) handleControlData(w http.ResponseWriter, r *http.Request) {
	txID, ok := h.transactionID(w, r)
	if !ok {
		return
	}
	data, err := h.engine.ControlData(r.Context(), txID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

func (h *Handler) handleNextStatuses(w http.ResponseWriter, r *http.Request) {
	txID, ok := h.transactionID(w, r)
	if !ok {
		return
	}
	statuses, err := h.engine.NextStatusList(r.Context(), txID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]map[string]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, map[string]string{"status": string(s), "name": s.DisplayName()})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"next_statuses": out})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	txID, ok := h.transactionID(w, r)
	if !ok {
		return
	}
	tasks, err := h.engine.History(r.Context(), txID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"tasks": toTaskResponses(tasks)})
}

func (h *Handler) transactionID(w http.ResponseWriter, r *http.Request) (id.TransactionID, bool) {
	txID, err := id.ParseTransactionID(chi.URLParam(r, "transactionID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid transaction id"))
		return id.TransactionID{}, false
	}
	return txID, true
}

func toTaskResponses(tasks []wfm.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	return out
}
