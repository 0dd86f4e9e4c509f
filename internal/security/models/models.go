// Package models holds the signature state shared by land records and
// certificates.
package models

import (
	"time"

	id "landreg/pkg/domain"
)

type SignStatus string

const (
	SignStatusUnsigned SignStatus = "Unsigned"
	SignStatusSigned   SignStatus = "Signed"
	SignStatusRevoked  SignStatus = "Revoked"
)

type SignType string

const (
	SignTypeUndetermined SignType = "Undetermined"
	SignTypeManual       SignType = "Manual"
	SignTypeElectronic   SignType = "Electronic"
)

// SealVersion selects the seal algorithm. Issued seals keep the version
// they were produced with.
type SealVersion string

const (
	SealV1_0 SealVersion = "1.0"
	SealV5_0 SealVersion = "5.0"
	SealV5_1 SealVersion = "5.1"
)

// SecurityData is the seal and signature state of a document.
type SecurityData struct {
	SignStatus     SignStatus  `json:"sign_status"`
	SignType       SignType    `json:"sign_type"`
	SealVersion    SealVersion `json:"seal_version,omitempty"`
	DigitalSeal    string      `json:"digital_seal,omitempty"`
	SecurityHash   string      `json:"security_hash,omitempty"`
	SignGUID       string      `json:"sign_guid,omitempty"`
	AssignedSigner id.UserID   `json:"assigned_signer"`
	SignedBy       id.UserID   `json:"signed_by"`
	SignedTime     *time.Time  `json:"signed_time,omitempty"`
	RevokedBy      id.UserID   `json:"revoked_by"`
	RevokedTime    *time.Time  `json:"revoked_time,omitempty"`
}

// NewSecurityData returns the state of a freshly created document.
func NewSecurityData() SecurityData {
	return SecurityData{SignStatus: SignStatusUnsigned, SignType: SignTypeUndetermined}
}

func (d SecurityData) IsSigned() bool   { return d.SignStatus == SignStatusSigned }
func (d SecurityData) IsUnsigned() bool { return d.SignStatus == SignStatusUnsigned }

// IsPreparedForElectronicSign reports an assigned electronic signature not
// yet applied.
func (d SecurityData) IsPreparedForElectronicSign() bool {
	return d.SignStatus == SignStatusUnsigned && d.SignType == SignTypeElectronic && d.SignGUID != ""
}

// ClearSeal drops the seal when the document is reopened.
func (d *SecurityData) ClearSeal() {
	d.DigitalSeal = ""
	d.SecurityHash = ""
	d.SealVersion = ""
	d.SignGUID = ""
	d.SignType = SignTypeUndetermined
	d.SignStatus = SignStatusUnsigned
	d.AssignedSigner = id.UserID{}
}

// ApplySeal stores a freshly produced seal.
func (d *SecurityData) ApplySeal(version SealVersion, seal, hash string) {
	d.SealVersion = version
	d.DigitalSeal = seal
	d.SecurityHash = hash
}

// ApplyElectronicSignRequest assigns the signer of a pending electronic
// signature.
func (d *SecurityData) ApplyElectronicSignRequest(signer id.UserID, signGUID string) {
	d.SignType = SignTypeElectronic
	d.AssignedSigner = signer
	d.SignGUID = signGUID
}

// ApplySign marks the document signed. Manual signatures have no GUID.
func (d *SecurityData) ApplySign(signType SignType, by id.UserID, at time.Time) {
	d.SignType = signType
	d.SignStatus = SignStatusSigned
	d.SignedBy = by
	d.SignedTime = &at
}

func (d *SecurityData) ApplyRevoke(by id.UserID, at time.Time) {
	d.SignStatus = SignStatusRevoked
	d.RevokedBy = by
	d.RevokedTime = &at
}

// IntegrityFields lists the persisted signature values covered by the
// owning document's integrity hash.
func (d SecurityData) IntegrityFields() []string {
	return []string{string(d.SignStatus), string(d.SignType), string(d.SealVersion), d.DigitalSeal, d.SecurityHash, d.SignGUID, d.SignedBy.String()}
}
