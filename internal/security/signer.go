package security

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

//go:generate mockgen -source=signer.go -destination=mocks/mocks.go -package=mocks Signer

// Signer signs seal text with the system credential.
type Signer interface {
	Sign(text string) (string, error)
}

// HMACSigner signs with HS256 keyed by the system credential.
type HMACSigner struct {
	credential []byte
}

func NewHMACSigner(credential string) (*HMACSigner, error) {
	if credential == "" {
		return nil, errors.New("system credential is required")
	}
	return &HMACSigner{credential: []byte(credential)}, nil
}

func (s *HMACSigner) Sign(text string) (string, error) {
	sig, err := jwt.SigningMethodHS256.Sign(text, s.credential)
	if err != nil {
		return "", fmt.Errorf("sign seal: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(sig), nil
}

// Verify checks a seal produced by Sign.
func (s *HMACSigner) Verify(text, seal string) error {
	sig, err := base64.RawURLEncoding.DecodeString(seal)
	if err != nil {
		return fmt.Errorf("decode seal: %w", err)
	}
	return jwt.SigningMethodHS256.Verify(text, sig, s.credential)
}
