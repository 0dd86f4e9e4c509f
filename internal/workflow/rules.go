// Package workflow moves transactions through the registry office: the
// candidate next statuses per status, the command preconditions and the
// engine that applies commands and records tasks.
package workflow

import (
	_ "embed"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	txm "landreg/internal/transaction/models"
	wfm "landreg/internal/workflow/models"
)

//go:embed casetypes.yaml
var defaultCaseTypes []byte

// CaseMatch holds when either code list contains the transaction's code.
type CaseMatch struct {
	TransactionTypes []string `yaml:"transaction_types"`
	DocumentTypes    []string `yaml:"document_types"`
}

func (m CaseMatch) matches(t *txm.Transaction) bool {
	return slices.Contains(m.TransactionTypes, t.TypeCode) || slices.Contains(m.DocumentTypes, t.DocumentTypeCode)
}

// CaseTypes are the transaction predicates the candidate table branches on.
type CaseTypes struct {
	ElaborationOnly   CaseMatch `yaml:"elaboration_only"`
	CertificateIssue  CaseMatch `yaml:"certificate_issue"`
	Archivable        CaseMatch `yaml:"archivable"`
	Digitalizable     CaseMatch `yaml:"digitalizable"`
	RecordingDocument CaseMatch `yaml:"recording_document"`
}

// LoadCaseTypes parses a case-type catalog. Nil data loads the embedded one.
func LoadCaseTypes(data []byte) (CaseTypes, error) {
	if data == nil {
		data = defaultCaseTypes
	}
	var ct CaseTypes
	if err := yaml.Unmarshal(data, &ct); err != nil {
		return CaseTypes{}, fmt.Errorf("parse case types: %w", err)
	}
	return ct, nil
}

// Rules computes the candidate next statuses of a transaction.
type Rules struct {
	cases CaseTypes
}

func NewRules(cases CaseTypes) *Rules {
	return &Rules{cases: cases}
}

func (r *Rules) IsForElaborationOnly(t *txm.Transaction) bool {
	return r.cases.ElaborationOnly.matches(t)
}

func (r *Rules) IsCertificateIssueCase(t *txm.Transaction) bool {
	return r.cases.CertificateIssue.matches(t)
}

func (r *Rules) IsArchivable(t *txm.Transaction) bool {
	return r.cases.Archivable.matches(t)
}

func (r *Rules) IsDigitalizable(t *txm.Transaction) bool {
	return r.cases.Digitalizable.matches(t)
}

func (r *Rules) IsRecordingDocumentCase(t *txm.Transaction) bool {
	return r.cases.RecordingDocument.matches(t)
}

// NextStatusList returns the statuses t may be handed to from its current
// status. Terminal and archived statuses have no candidates.
func (r *Rules) NextStatusList(t *txm.Transaction) []wfm.Status {
	recording := r.IsRecordingDocumentCase(t)
	elaboration := r.IsForElaborationOnly(t) || r.IsCertificateIssueCase(t)
	archivable := r.IsArchivable(t)
	digitalizable := r.IsDigitalizable(t)

	var out []wfm.Status
	add := func(cond bool, statuses ...wfm.Status) {
		if cond {
			out = append(out, statuses...)
		}
	}

	switch t.Status {
	case wfm.StatusPayment:
		add(true, wfm.StatusReceived, wfm.StatusDeleted)

	case wfm.StatusReceived, wfm.StatusReentry:
		add(true, wfm.StatusControl)
		add(recording, wfm.StatusQualification)
		add(elaboration, wfm.StatusElaboration)
		add(true, wfm.StatusToReturn)

	case wfm.StatusControl:
		add(recording, wfm.StatusQualification, wfm.StatusRecording)
		add(true, wfm.StatusElaboration, wfm.StatusRevision, wfm.StatusJuridic,
			wfm.StatusOnSign, wfm.StatusToDeliver, wfm.StatusToReturn)
		add(digitalizable, wfm.StatusDigitalization)
		add(archivable, wfm.StatusArchived)

	case wfm.StatusQualification:
		add(recording, wfm.StatusRecording)
		add(true, wfm.StatusJuridic, wfm.StatusControl, wfm.StatusToReturn)

	case wfm.StatusRecording:
		add(true, wfm.StatusRevision, wfm.StatusJuridic, wfm.StatusControl, wfm.StatusToReturn)

	case wfm.StatusElaboration:
		add(true, wfm.StatusRevision, wfm.StatusControl, wfm.StatusToReturn)

	case wfm.StatusRevision:
		add(recording, wfm.StatusRecording)
		add(!recording, wfm.StatusElaboration)
		add(true, wfm.StatusOnSign, wfm.StatusJuridic, wfm.StatusControl, wfm.StatusToReturn)

	case wfm.StatusJuridic:
		add(recording, wfm.StatusRecording)
		add(true, wfm.StatusElaboration, wfm.StatusRevision, wfm.StatusOnSign,
			wfm.StatusControl, wfm.StatusToReturn)

	case wfm.StatusOnSign:
		add(digitalizable, wfm.StatusDigitalization)
		add(true, wfm.StatusToDeliver, wfm.StatusRevision, wfm.StatusControl, wfm.StatusToReturn)

	case wfm.StatusDigitalization:
		add(true, wfm.StatusToDeliver, wfm.StatusControl)
		add(archivable, wfm.StatusArchived)

	case wfm.StatusToDeliver:
		add(true, wfm.StatusDelivered, wfm.StatusControl)

	case wfm.StatusDelivered:
		add(digitalizable, wfm.StatusDigitalization)
		add(archivable, wfm.StatusArchived)
		add(true, wfm.StatusEndPoint)

	case wfm.StatusToReturn:
		add(true, wfm.StatusReturned, wfm.StatusControl)

	case wfm.StatusReturned:
		add(archivable, wfm.StatusArchived)
		add(true, wfm.StatusEndPoint)
	}
	return out
}

// IsCandidate reports whether target is in t's candidate list.
func (r *Rules) IsCandidate(t *txm.Transaction, target wfm.Status) bool {
	return slices.Contains(r.NextStatusList(t), target)
}
