package uid

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerator(t *testing.T) {
	g := WithClock(func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) })

	t.Run("codes carry prefix, year and check character", func(t *testing.T) {
		code := g.GenerateRecordID()
		assert.True(t, strings.HasPrefix(code, "RP-26-"), code)
		assert.Len(t, code, len("RP-26-XXXXXX-C"))
		assert.True(t, Valid(code))
	})

	t.Run("real estate codes are longer", func(t *testing.T) {
		assert.Len(t, g.GenerateRealEstateID(), len("TP-26-XXXXXXXX-C"))
	})

	t.Run("tampered code fails validation", func(t *testing.T) {
		code := g.GenerateCertificateID()
		last := code[len(code)-1]
		replacement := byte('0')
		if last == '0' {
			replacement = '1'
		}
		assert.False(t, Valid(code[:len(code)-1]+string(replacement)))
		assert.False(t, Valid("nonsense"))
	})

	t.Run("codes differ", func(t *testing.T) {
		seen := map[string]bool{}
		for range 50 {
			seen[g.GenerateTransactionID()] = true
		}
		assert.Greater(t, len(seen), 45)
	})
}
