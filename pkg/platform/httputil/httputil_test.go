package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "landreg/pkg/domain-errors"
	"landreg/pkg/testutil"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		status      int
		code        string
		description string
	}{
		{
			name:        "business rule",
			err:         dErrors.New(dErrors.CodeInvariantViolation, "El documento RP-1 ya está cerrado."),
			status:      http.StatusUnprocessableEntity,
			code:        "invariant_violation",
			description: "El documento RP-1 ya está cerrado.",
		},
		{
			name:        "missing role",
			err:         dErrors.New(dErrors.CodeForbidden, "missing role"),
			status:      http.StatusForbidden,
			code:        "forbidden",
			description: "missing role",
		},
		{
			name:        "lost update",
			err:         dErrors.New(dErrors.CodeConflict, "stale version"),
			status:      http.StatusConflict,
			code:        "conflict",
			description: "stale version",
		},
		{
			name:   "internal error hides the message",
			err:    dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "failed to save"),
			status: http.StatusInternalServerError,
			code:   "internal_error",
		},
		{
			name:   "plain errors are internal",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			code:   "internal_error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			body := testutil.UnmarshalResponse[map[string]string](t, w)
			assert.Equal(t, tt.code, (*body)["error"])
			assert.Equal(t, tt.description, (*body)["error_description"])
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Action string `json:"action"`
	}

	req := httptest.NewRequest(http.MethodPost, "/workflow/commands", strings.NewReader(`{"action":"Take"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "Take", dst.Action)

	req = httptest.NewRequest(http.MethodPost, "/workflow/commands", strings.NewReader(`{"action":"Take","extra":1}`))
	err := DecodeJSON(req, &dst)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}
