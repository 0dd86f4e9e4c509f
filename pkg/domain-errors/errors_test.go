package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodes(t *testing.T) {
	t.Run("HasCode walks wrapped domain errors", func(t *testing.T) {
		inner := New(CodeIntegrityViolation, "hash mismatch")
		outer := Wrap(inner, CodeInternal, "load failed")

		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeIntegrityViolation))
		assert.False(t, HasCode(outer, CodeNotFound))
		assert.Equal(t, CodeInternal, CodeOf(outer))
	})

	t.Run("HasCode sees through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("context: %w", New(CodeConflict, "stale"))
		assert.True(t, Is(err, CodeConflict))
	})

	t.Run("Wrap of nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "ignored"))
	})

	t.Run("plain errors default to internal", func(t *testing.T) {
		err := errors.New("boom")
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.Equal(t, "boom", MessageOf(err))
	})

	t.Run("message keeps cause", func(t *testing.T) {
		err := Wrap(errors.New("db down"), CodeInternal, "no se pudo guardar")
		require.Error(t, err)
		assert.Equal(t, "no se pudo guardar: db down", err.Error())
		assert.Equal(t, "no se pudo guardar", MessageOf(err))
	})
}
