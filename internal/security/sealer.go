package security

import (
	"fmt"

	secm "landreg/internal/security/models"
)

// Config is the signature configuration threaded into the sealer and the
// validator.
type Config struct {
	// ESignEnabled switches between the electronic and the manual signing
	// paths. They are mutually exclusive.
	ESignEnabled     bool
	SystemCredential string
	HashSalt         string
}

// Seal is a produced seal with the version that rendered it.
type Seal struct {
	Version      secm.SealVersion
	Text         string
	DigitalSeal  string
	SecurityHash string
}

// Sealer renders, signs and hashes document seals.
type Sealer struct {
	cfg    Config
	signer Signer
	hasher *Hasher
}

func NewSealer(cfg Config, signer Signer) *Sealer {
	return &Sealer{cfg: cfg, signer: signer, hasher: NewHasher(cfg.HashSalt)}
}

func (s *Sealer) Hasher() *Hasher { return s.hasher }

func (s *Sealer) ESignEnabled() bool { return s.cfg.ESignEnabled }

// SealRecord seals a land record with the version its state selects.
func (s *Sealer) SealRecord(src secm.SealSource) (Seal, error) {
	return s.SealRecordWithVersion(SelectSealVersion(src.HasBookEntries, s.cfg.ESignEnabled), src)
}

// SealRecordWithVersion reproduces the seal of a given version, used to
// verify already issued seals.
func (s *Sealer) SealRecordWithVersion(version secm.SealVersion, src secm.SealSource) (Seal, error) {
	text, err := BuildSealText(version, src)
	if err != nil {
		return Seal{}, err
	}
	digital, err := s.signer.Sign(text)
	if err != nil {
		return Seal{}, fmt.Errorf("seal record %s: %w", src.RecordUID, err)
	}
	return Seal{
		Version:     version,
		Text:        text,
		DigitalSeal: digital,
		SecurityHash: s.hasher.SecurityHash(
			src.RecordID.String(),
			formatSealTime(src.PresentationTime),
			formatSealTime(src.AuthorizationTime),
			digital,
			src.RecordUID,
		),
	}, nil
}

// SealCertificate seals an issued certificate. Certificates have a single
// layout.
func (s *Sealer) SealCertificate(src secm.CertificateSealSource) (Seal, error) {
	text := BuildCertificateSealText(src)
	digital, err := s.signer.Sign(text)
	if err != nil {
		return Seal{}, fmt.Errorf("seal certificate %s: %w", src.CertificateUID, err)
	}
	return Seal{
		Version:     secm.SealV5_0,
		Text:        text,
		DigitalSeal: digital,
		SecurityHash: s.hasher.SecurityHash(
			src.CertificateID.String(),
			formatSealTime(src.IssueTime),
			digital,
			src.CertificateUID,
			src.Text,
		),
	}, nil
}
