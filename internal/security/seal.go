// Package security builds seals and verification codes for land records and
// certificates and guards their signature transitions.
package security

import (
	"fmt"
	"strings"
	"time"

	secm "landreg/internal/security/models"
)

const (
	sealSentinel = "||"
	fieldSep     = "|"
	itemSep      = "^"
	partySep     = "#"
)

// SelectSealVersion picks the seal algorithm for a record's current state.
func SelectSealVersion(hasBookEntries, eSignEnabled bool) secm.SealVersion {
	switch {
	case hasBookEntries:
		return secm.SealV1_0
	case !eSignEnabled:
		return secm.SealV5_0
	default:
		return secm.SealV5_1
	}
}

// sealBuilders maps each version to its text layout. Layouts of issued
// versions are frozen: a new layout needs a new version.
var sealBuilders = map[secm.SealVersion]func(src secm.SealSource) string{
	secm.SealV1_0: sealTextV1_0,
	secm.SealV5_0: sealTextV5_0,
	secm.SealV5_1: sealTextV5_1,
}

// BuildSealText renders the text a record seal signs.
func BuildSealText(version secm.SealVersion, src secm.SealSource) (string, error) {
	build, ok := sealBuilders[version]
	if !ok {
		return "", fmt.Errorf("unknown seal version %q", version)
	}
	return build(src), nil
}

// 1.0: records registered in physical books. No instrument, no parties.
func sealTextV1_0(src secm.SealSource) string {
	var b strings.Builder
	b.WriteString(sealSentinel)
	b.WriteString(src.TransactionUID)
	b.WriteString(fieldSep)
	b.WriteString(src.RecordUID)
	for _, act := range src.Acts {
		b.WriteString(fieldSep)
		writeAct(&b, act)
	}
	b.WriteString(sealSentinel)
	return b.String()
}

// 5.0: electronic records signed by hand.
func sealTextV5_0(src secm.SealSource) string {
	var b strings.Builder
	b.WriteString(sealSentinel)
	b.WriteString(src.TransactionUID)
	b.WriteString(fieldSep)
	b.WriteString(src.RecordUID)
	b.WriteString(fieldSep)
	b.WriteString(src.InstrumentUID)
	writeActsWithParties(&b, src.Acts)
	b.WriteString(sealSentinel)
	return b.String()
}

// 5.1: electronic records with electronic signature; binds the record times.
func sealTextV5_1(src secm.SealSource) string {
	var b strings.Builder
	b.WriteString(sealSentinel)
	b.WriteString(src.TransactionUID)
	b.WriteString(fieldSep)
	b.WriteString(src.RecordUID)
	b.WriteString(fieldSep)
	b.WriteString(src.InstrumentUID)
	b.WriteString(fieldSep)
	b.WriteString(formatSealTime(src.PresentationTime))
	b.WriteString(fieldSep)
	b.WriteString(formatSealTime(src.AuthorizationTime))
	writeActsWithParties(&b, src.Acts)
	b.WriteString(sealSentinel)
	return b.String()
}

func writeAct(b *strings.Builder, act secm.SealAct) {
	b.WriteString(act.TypeID)
	b.WriteString(itemSep)
	b.WriteString(act.ActID.String())
	b.WriteString(itemSep)
	b.WriteString(act.ResourceUID)
}

func writeActsWithParties(b *strings.Builder, acts []secm.SealAct) {
	for _, act := range acts {
		b.WriteString(fieldSep)
		writeAct(b, act)
		for _, p := range act.Parties {
			b.WriteString(partySep)
			b.WriteString(p.ID.String())
			b.WriteString(itemSep)
			b.WriteString(p.Role)
			b.WriteString(itemSep)
			b.WriteString(p.Name)
		}
	}
}

func formatSealTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("20060102T150405")
}

// BuildCertificateSealText renders the text a certificate seal signs.
func BuildCertificateSealText(src secm.CertificateSealSource) string {
	return sealSentinel + strings.Join([]string{
		src.CertificateUID,
		src.TransactionUID,
		src.TypeName,
		src.ResourceUID,
		src.OwnerName,
		formatSealTime(src.IssueTime),
	}, fieldSep) + sealSentinel
}
