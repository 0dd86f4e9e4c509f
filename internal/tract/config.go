package tract

import "fmt"

// PrelationPolicy decides what a prelation violation does.
type PrelationPolicy string

const (
	// PrelationEnforce rejects the append.
	PrelationEnforce PrelationPolicy = "enforce"
	// PrelationWarn lets the append through and records an override.
	PrelationWarn PrelationPolicy = "warn"
)

type Config struct {
	PrelationPolicy PrelationPolicy
}

func ParsePrelationPolicy(s string) (PrelationPolicy, error) {
	switch p := PrelationPolicy(s); p {
	case "":
		return PrelationEnforce, nil
	case PrelationEnforce, PrelationWarn:
		return p, nil
	default:
		return "", fmt.Errorf("unknown prelation policy %q", s)
	}
}
