// Package ledger holds the fee arithmetic of transaction services: the
// per-service Fee breakdown, its aggregation and the tariff calculator.
package ledger

import (
	"github.com/shopspring/decimal"

	dErrors "landreg/pkg/domain-errors"
)

// Fee is the monetary breakdown of one transaction service. Every component
// except Discount adds to the subtotal.
type Fee struct {
	RecordingRights   decimal.Decimal `json:"recording_rights"`
	SheetsRevision    decimal.Decimal `json:"sheets_revision"`
	Clarification     decimal.Decimal `json:"clarification"`
	Usufruct          decimal.Decimal `json:"usufruct"`
	Easement          decimal.Decimal `json:"easement"`
	SignCertification decimal.Decimal `json:"sign_certification"`
	ForeignRecord     decimal.Decimal `json:"foreign_record"`
	Others            decimal.Decimal `json:"others"`
	Discount          decimal.Decimal `json:"discount"`
}

// SubTotal is the sum of all components except Discount.
func (f Fee) SubTotal() decimal.Decimal {
	return decimal.Sum(decimal.Zero,
		f.RecordingRights,
		f.SheetsRevision,
		f.Clarification,
		f.Usufruct,
		f.Easement,
		f.SignCertification,
		f.ForeignRecord,
		f.Others,
	)
}

// Total is SubTotal minus Discount.
func (f Fee) Total() decimal.Decimal {
	return f.SubTotal().Sub(f.Discount)
}

// Add returns the component-wise sum of f and o.
func (f Fee) Add(o Fee) Fee {
	return Fee{
		RecordingRights:   f.RecordingRights.Add(o.RecordingRights),
		SheetsRevision:    f.SheetsRevision.Add(o.SheetsRevision),
		Clarification:     f.Clarification.Add(o.Clarification),
		Usufruct:          f.Usufruct.Add(o.Usufruct),
		Easement:          f.Easement.Add(o.Easement),
		SignCertification: f.SignCertification.Add(o.SignCertification),
		ForeignRecord:     f.ForeignRecord.Add(o.ForeignRecord),
		Others:            f.Others.Add(o.Others),
		Discount:          f.Discount.Add(o.Discount),
	}
}

// Sum adds fees component-wise. The empty sum is the zero Fee.
func Sum(fees ...Fee) Fee {
	var total Fee
	for _, f := range fees {
		total = total.Add(f)
	}
	return total
}

// Equal compares component-wise by value, ignoring decimal exponents.
func (f Fee) Equal(o Fee) bool {
	return f.RecordingRights.Equal(o.RecordingRights) &&
		f.SheetsRevision.Equal(o.SheetsRevision) &&
		f.Clarification.Equal(o.Clarification) &&
		f.Usufruct.Equal(o.Usufruct) &&
		f.Easement.Equal(o.Easement) &&
		f.SignCertification.Equal(o.SignCertification) &&
		f.ForeignRecord.Equal(o.ForeignRecord) &&
		f.Others.Equal(o.Others) &&
		f.Discount.Equal(o.Discount)
}

// IsZero reports whether every component is zero.
func (f Fee) IsZero() bool {
	return f.Equal(Fee{})
}

// Validate rejects negative components and discounts above the subtotal.
func (f Fee) Validate() error {
	for _, c := range []decimal.Decimal{
		f.RecordingRights, f.SheetsRevision, f.Clarification, f.Usufruct,
		f.Easement, f.SignCertification, f.ForeignRecord, f.Others, f.Discount,
	} {
		if c.IsNegative() {
			return dErrors.New(dErrors.CodeValidation, "Los importes de los derechos no pueden ser negativos.")
		}
	}
	if f.Discount.GreaterThan(f.SubTotal()) {
		return dErrors.New(dErrors.CodeValidation, "El descuento no puede ser mayor al subtotal del servicio.")
	}
	return nil
}

// Round returns f with every component rounded to cents.
func (f Fee) Round() Fee {
	return Fee{
		RecordingRights:   f.RecordingRights.Round(2),
		SheetsRevision:    f.SheetsRevision.Round(2),
		Clarification:     f.Clarification.Round(2),
		Usufruct:          f.Usufruct.Round(2),
		Easement:          f.Easement.Round(2),
		SignCertification: f.SignCertification.Round(2),
		ForeignRecord:     f.ForeignRecord.Round(2),
		Others:            f.Others.Round(2),
		Discount:          f.Discount.Round(2),
	}
}
