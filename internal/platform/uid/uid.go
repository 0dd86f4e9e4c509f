// Package uid generates the externally visible codes printed on registry
// documents. Codes are short, upper-case and carry a check character so a
// mistyped code is rejected before any lookup.
package uid

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const alphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Provider is the identity generator port used by the domain services.
type Provider interface {
	GenerateTransactionID() string
	GenerateRecordID() string
	GenerateRealEstateID() string
	GenerateAssociationID() string
	GenerateNoPropertyID() string
	GenerateCertificateID() string
}

// Generator derives codes from random UUIDs.
type Generator struct {
	now func() time.Time
}

// New returns a generator using the wall clock for the year segment.
func New() *Generator {
	return &Generator{now: time.Now}
}

// WithClock returns a generator with a fixed clock.
func WithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

func (g *Generator) GenerateTransactionID() string { return g.code("TR", 6) }
func (g *Generator) GenerateRecordID() string      { return g.code("RP", 6) }
func (g *Generator) GenerateRealEstateID() string  { return g.code("TP", 8) }
func (g *Generator) GenerateAssociationID() string { return g.code("AS", 6) }
func (g *Generator) GenerateNoPropertyID() string  { return g.code("NP", 6) }
func (g *Generator) GenerateCertificateID() string { return g.code("CE", 6) }

func (g *Generator) code(prefix string, size int) string {
	raw := uuid.New()
	var b strings.Builder
	for i := 0; i < size; i++ {
		b.WriteByte(alphabet[int(raw[i])%len(alphabet)])
	}
	body := fmt.Sprintf("%s-%02d-%s", prefix, g.now().Year()%100, b.String())
	return body + "-" + string(checkChar(body))
}

// Valid reports whether code carries a correct check character.
func Valid(code string) bool {
	i := strings.LastIndexByte(code, '-')
	if i <= 0 || i != len(code)-2 {
		return false
	}
	return code[i+1] == checkChar(code[:i])
}

func checkChar(body string) byte {
	sum := 0
	for i, c := range body {
		if pos := strings.IndexRune(alphabet, c); pos >= 0 {
			sum += pos * (i + 1)
		}
	}
	return alphabet[sum%len(alphabet)]
}
