package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	id "landreg/pkg/domain"
	dErrors "landreg/pkg/domain-errors"
)

// Kind selects the Resource variant.
type Kind string

const (
	KindRealEstate  Kind = "RealEstate"
	KindAssociation Kind = "Association"
	KindNoProperty  Kind = "NoProperty"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindRealEstate, KindAssociation, KindNoProperty:
		return true
	}
	return false
}

// Status of a resource.
type Status string

const (
	StatusActive Status = "active"
	// StatusMerged marks real estate absorbed by another parcel.
	StatusMerged Status = "merged"
)

// RealEstate is the parcel variant. Partition and merge links are ids
// resolved through the store.
type RealEstate struct {
	CadastralKey  string          `json:"cadastral_key,omitempty"`
	Lot           string          `json:"lot,omitempty"`
	Location      string          `json:"location,omitempty"`
	Area          decimal.Decimal `json:"area"`
	AreaUnit      string          `json:"area_unit,omitempty"`
	IsPartitionOf id.ResourceID   `json:"is_partition_of"`
	PartitionNo   string          `json:"partition_no,omitempty"`
	MergedInto    id.ResourceID   `json:"merged_into"`
}

// Association is the legal-entity variant (civil associations, societies).
type Association struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// NoProperty is the document-only variant.
type NoProperty struct {
	Description string `json:"description"`
}

// Resource is the subject a tract is kept for. UID is generated once and
// never reassigned. Exactly one variant pointer is set, matching Kind.
type Resource struct {
	ID          id.ResourceID
	UID         string
	Kind        Kind
	Status      Status
	RealEstate  *RealEstate
	Association *Association
	NoProperty  *NoProperty
	CreatedAt   time.Time
	CreatedBy   id.UserID
	Version     int64
}

// NewRealEstate builds an unsaved real estate resource.
func NewRealEstate(resID id.ResourceID, data RealEstate, createdBy id.UserID, now time.Time) (*Resource, error) {
	if data.Area.IsNegative() {
		return nil, dErrors.New(dErrors.CodeValidation, "La superficie del predio no puede ser negativa.")
	}
	return &Resource{
		ID: resID, Kind: KindRealEstate, Status: StatusActive,
		RealEstate: &data, CreatedAt: now, CreatedBy: createdBy,
	}, nil
}

// NewAssociation builds an unsaved association resource.
func NewAssociation(resID id.ResourceID, data Association, createdBy id.UserID, now time.Time) (*Resource, error) {
	if strings.TrimSpace(data.Name) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "Se requiere el nombre de la asociación.")
	}
	return &Resource{
		ID: resID, Kind: KindAssociation, Status: StatusActive,
		Association: &data, CreatedAt: now, CreatedBy: createdBy,
	}, nil
}

// NewNoProperty builds an unsaved document-only resource.
func NewNoProperty(resID id.ResourceID, data NoProperty, createdBy id.UserID, now time.Time) (*Resource, error) {
	return &Resource{
		ID: resID, Kind: KindNoProperty, Status: StatusActive,
		NoProperty: &data, CreatedAt: now, CreatedBy: createdBy,
	}, nil
}

// IsEmpty reports the zero resource.
func (r *Resource) IsEmpty() bool {
	return r == nil || r.ID.IsNil()
}

func (r *Resource) IsRealEstate() bool {
	return r.Kind == KindRealEstate && r.RealEstate != nil
}

// IsPartition reports whether r is a subdivision of another parcel.
func (r *Resource) IsPartition() bool {
	return r.IsRealEstate() && !r.RealEstate.IsPartitionOf.IsNil()
}

// ParentID returns the parcel r was partitioned from.
func (r *Resource) ParentID() (id.ResourceID, bool) {
	if !r.IsPartition() {
		return id.ResourceID{}, false
	}
	return r.RealEstate.IsPartitionOf, true
}

// CanAssignUID holds only before the first UID is set.
func (r *Resource) CanAssignUID() error {
	if r.UID != "" {
		return dErrors.Newf(dErrors.CodeInvariantViolation,
			"El folio %s ya tiene asignada una clave única que no puede cambiarse.", r.UID)
	}
	return nil
}

func (r *Resource) ApplyUID(uid string) {
	r.UID = uid
}

// CanMergeInto requires two distinct active real estates.
func (r *Resource) CanMergeInto(target *Resource) error {
	if !r.IsRealEstate() || !target.IsRealEstate() {
		return dErrors.New(dErrors.CodeInvariantViolation, "Sólo los predios pueden fusionarse.")
	}
	if r.ID == target.ID {
		return dErrors.New(dErrors.CodeInvariantViolation, "Un predio no puede fusionarse consigo mismo.")
	}
	if r.Status == StatusMerged {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "El predio %s ya fue fusionado.", r.UID)
	}
	return nil
}

func (r *Resource) ApplyMergeInto(target id.ResourceID) {
	r.RealEstate.MergedInto = target
	r.Status = StatusMerged
}

// SnapshotData returns the variant fields for display and certificates.
func (r *Resource) SnapshotData() map[string]string {
	out := map[string]string{"uid": r.UID, "kind": string(r.Kind)}
	switch r.Kind {
	case KindRealEstate:
		if re := r.RealEstate; re != nil {
			out["cadastral_key"] = re.CadastralKey
			out["lot"] = re.Lot
			out["location"] = re.Location
			out["area"] = re.Area.String() + " " + re.AreaUnit
			out["partition_no"] = re.PartitionNo
		}
	case KindAssociation:
		if a := r.Association; a != nil {
			out["name"] = a.Name
			out["association_kind"] = a.Kind
		}
	case KindNoProperty:
		if n := r.NoProperty; n != nil {
			out["description"] = n.Description
		}
	}
	return out
}

// Describe is the one-line text used in legal documents.
func (r *Resource) Describe() string {
	switch r.Kind {
	case KindRealEstate:
		text := "predio con folio real " + r.UID
		if re := r.RealEstate; re != nil && re.Location != "" {
			text += ", ubicado en " + re.Location
		}
		return text
	case KindAssociation:
		if r.Association != nil {
			return "asociación " + r.Association.Name + " (" + r.UID + ")"
		}
	case KindNoProperty:
		if r.NoProperty != nil && r.NoProperty.Description != "" {
			return r.NoProperty.Description + " (" + r.UID + ")"
		}
	}
	return r.UID
}
