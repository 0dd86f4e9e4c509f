package models

import "landreg/internal/platform/uid"

// GenerateUID dispatches UID generation on the resource variant.
func (r *Resource) GenerateUID(p uid.Provider) string {
	switch r.Kind {
	case KindRealEstate:
		return p.GenerateRealEstateID()
	case KindAssociation:
		return p.GenerateAssociationID()
	default:
		return p.GenerateNoPropertyID()
	}
}
