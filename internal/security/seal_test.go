package security

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"landreg/internal/security/mocks"
	secm "landreg/internal/security/models"
	id "landreg/pkg/domain"
)

var (
	actID   = id.RecordingActID(uuid.MustParse("11111111-1111-1111-1111-111111111111"))
	partyID = id.PartyID(uuid.MustParse("22222222-2222-2222-2222-222222222222"))
)

func sealSource() secm.SealSource {
	return secm.SealSource{
		TransactionUID:    "TP-26-ABCDEFGH-1",
		RecordUID:         "RP-26-ABCDEF-2",
		RecordID:          id.LandRecordID(uuid.MustParse("33333333-3333-3333-3333-333333333333")),
		InstrumentUID:     "INS-9",
		PresentationTime:  time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
		AuthorizationTime: time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC),
		Acts: []secm.SealAct{{
			TypeID:      "dom.compraventa",
			ActID:       actID,
			ResourceUID: "RE-26-AAAAAA-3",
			Parties:     []secm.SealParty{{ID: partyID, Role: "Comprador", Name: "Ana Pérez"}},
		}},
	}
}

func TestSelectSealVersion(t *testing.T) {
	assert.Equal(t, secm.SealV1_0, SelectSealVersion(true, true))
	assert.Equal(t, secm.SealV1_0, SelectSealVersion(true, false))
	assert.Equal(t, secm.SealV5_0, SelectSealVersion(false, false))
	assert.Equal(t, secm.SealV5_1, SelectSealVersion(false, true))
}

// Issued seals are printed on legal documents; these layouts must not move.
func TestBuildSealText_Layouts(t *testing.T) {
	src := sealSource()
	act := "dom.compraventa^11111111-1111-1111-1111-111111111111^RE-26-AAAAAA-3"
	party := "#22222222-2222-2222-2222-222222222222^Comprador^Ana Pérez"

	tests := []struct {
		version secm.SealVersion
		want    string
	}{
		{secm.SealV1_0, "||TP-26-ABCDEFGH-1|RP-26-ABCDEF-2|" + act + "||"},
		{secm.SealV5_0, "||TP-26-ABCDEFGH-1|RP-26-ABCDEF-2|INS-9|" + act + party + "||"},
		{secm.SealV5_1, "||TP-26-ABCDEFGH-1|RP-26-ABCDEF-2|INS-9|20260302T103000|20260305T120000|" + act + party + "||"},
	}
	for _, tt := range tests {
		t.Run(string(tt.version), func(t *testing.T) {
			got, err := BuildSealText(tt.version, src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown version", func(t *testing.T) {
		_, err := BuildSealText("9.9", src)
		assert.Error(t, err)
	})
}

func TestSealer(t *testing.T) {
	ctrl := gomock.NewController(t)
	signer := mocks.NewMockSigner(ctrl)
	sealer := NewSealer(Config{ESignEnabled: true, HashSalt: "salt"}, signer)

	signer.EXPECT().Sign(gomock.Any()).DoAndReturn(func(text string) (string, error) {
		return "sig:" + text, nil
	}).Times(2)

	first, err := sealer.SealRecord(sealSource())
	require.NoError(t, err)
	assert.Equal(t, secm.SealV5_1, first.Version)
	assert.True(t, strings.HasPrefix(first.DigitalSeal, "sig:||"))
	assert.Regexp(t, `^[0-9A-F]{5}-[0-9A-F]{5}$`, first.SecurityHash)

	again, err := sealer.SealRecordWithVersion(first.Version, sealSource())
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestHMACSigner(t *testing.T) {
	s, err := NewHMACSigner("system-credential")
	require.NoError(t, err)

	seal, err := s.Sign("||a|b||")
	require.NoError(t, err)
	require.NoError(t, s.Verify("||a|b||", seal))
	assert.Error(t, s.Verify("||a|c||", seal))

	_, err = NewHMACSigner("")
	assert.Error(t, err)
}

func TestHasher(t *testing.T) {
	h := NewHasher("salt")

	assert.Equal(t, h.CreateHashCode("seed", "x"), h.CreateHashCode("seed", "x"))
	assert.NotEqual(t, h.CreateHashCode("seed", "x"), h.CreateHashCode("seed", "y"))
	assert.NotEqual(t, h.CreateHashCode("seed", "x"), NewHasher("other").CreateHashCode("seed", "x"))
	assert.Len(t, h.CreateHashCode("seed", "x"), 64)

	assert.NotEqual(t, h.IntegrityHash("a", "b"), h.IntegrityHash("a", "c"))
	assert.Regexp(t, `^[0-9A-F]{5}-[0-9A-F]{5}$`, h.SecurityHash("a"))

	long := NewHasher(strings.Repeat("k", 100))
	assert.Len(t, long.CreateHashCode("seed", ""), 64)
}
