package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseLandRecordID checks that parsing never panics and that every
// accepted id round-trips through String.
func FuzzParseLandRecordID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("RP-2026-000123")
	f.Add("{550e8400-e29b-41d4-a716-446655440000}")
	f.Add("urn:uuid:550e8400-e29b-41d4-a716-446655440000")
	f.Add(string([]byte{0xff, 0xfe}))

	f.Fuzz(func(t *testing.T, input string) {
		recordID, err := ParseLandRecordID(input)
		if err != nil {
			return
		}
		if recordID.IsNil() {
			t.Fatal("accepted the nil id")
		}
		again, err := ParseLandRecordID(recordID.String())
		if err != nil || again != recordID {
			t.Fatalf("round trip of %q failed", input)
		}
		if !utf8.ValidString(input) {
			t.Fatal("accepted non-UTF8 input")
		}
	})
}

func FuzzParseAllIDs(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("")
	f.Add("TP-0001")

	f.Fuzz(func(t *testing.T, input string) {
		errs := parseAll(input)
		for _, err := range errs[1:] {
			if (err == nil) != (errs[0] == nil) {
				t.Fatal("id types disagree on validity")
			}
		}
	})
}
