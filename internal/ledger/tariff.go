package ledger

import (
	_ "embed"
	"fmt"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	dErrors "landreg/pkg/domain-errors"
)

//go:embed tariffs.yaml
var defaultTariffs []byte

// Component selects the Fee field a tariff charges into.
type Component string

const (
	ComponentRecordingRights   Component = "recording_rights"
	ComponentSheetsRevision    Component = "sheets_revision"
	ComponentClarification     Component = "clarification"
	ComponentUsufruct          Component = "usufruct"
	ComponentEasement          Component = "easement"
	ComponentSignCertification Component = "sign_certification"
	ComponentForeignRecord     Component = "foreign_record"
	ComponentOthers            Component = "others"
)

// Tariff prices a service either as fixed salary units or as a percentage of
// the taxable base clamped to [MinUnits, MaxUnits] salary units.
type Tariff struct {
	Code        string          `yaml:"code"`
	Name        string          `yaml:"name"`
	Component   Component       `yaml:"component"`
	SalaryUnits decimal.Decimal `yaml:"salary_units"`
	Percentage  decimal.Decimal `yaml:"percentage"`
	MinUnits    decimal.Decimal `yaml:"min_units"`
	MaxUnits    decimal.Decimal `yaml:"max_units"`
}

// IsProportional reports whether the tariff depends on the taxable base.
func (t Tariff) IsProportional() bool {
	return t.Percentage.IsPositive()
}

// Config holds fee settings.
type Config struct {
	// BaseSalaryValue is the value of one salary unit.
	BaseSalaryValue decimal.Decimal
}

// Calculator prices services from a tariff catalog.
type Calculator struct {
	cfg     Config
	tariffs map[string]Tariff
}

// NewCalculator builds a calculator over tariffs.
func NewCalculator(cfg Config, tariffs []Tariff) *Calculator {
	m := make(map[string]Tariff, len(tariffs))
	for _, t := range tariffs {
		m[t.Code] = t
	}
	return &Calculator{cfg: cfg, tariffs: m}
}

// LoadTariffs parses a YAML tariff catalog. Nil data loads the embedded one.
func LoadTariffs(data []byte) ([]Tariff, error) {
	if data == nil {
		data = defaultTariffs
	}
	var file struct {
		Tariffs []Tariff `yaml:"tariffs"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tariffs: %w", err)
	}
	return file.Tariffs, nil
}

// Tariff returns the tariff for code.
func (c *Calculator) Tariff(code string) (Tariff, bool) {
	t, ok := c.tariffs[code]
	return t, ok
}

// Calculate prices quantity units of the service code.
func (c *Calculator) Calculate(code string, quantity int, taxableBase decimal.Decimal) (Fee, error) {
	t, ok := c.tariffs[code]
	if !ok {
		return Fee{}, dErrors.Newf(dErrors.CodeNotFound, "No existe el arancel con clave '%s'.", code)
	}
	if quantity <= 0 {
		return Fee{}, dErrors.New(dErrors.CodeValidation, "La cantidad del servicio debe ser mayor a cero.")
	}
	if taxableBase.IsNegative() {
		return Fee{}, dErrors.New(dErrors.CodeValidation, "La base gravable no puede ser negativa.")
	}

	unit := c.unitAmount(t, taxableBase)
	amount := unit.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	return charge(t.Component, amount), nil
}

func (c *Calculator) unitAmount(t Tariff, taxableBase decimal.Decimal) decimal.Decimal {
	salary := c.cfg.BaseSalaryValue
	if !t.IsProportional() {
		return t.SalaryUnits.Mul(salary)
	}
	amount := taxableBase.Mul(t.Percentage).Div(decimal.NewFromInt(100))
	if t.MinUnits.IsPositive() {
		amount = decimal.Max(amount, t.MinUnits.Mul(salary))
	}
	if t.MaxUnits.IsPositive() {
		amount = decimal.Min(amount, t.MaxUnits.Mul(salary))
	}
	return amount
}

func charge(component Component, amount decimal.Decimal) Fee {
	var f Fee
	switch component {
	case ComponentRecordingRights:
		f.RecordingRights = amount
	case ComponentSheetsRevision:
		f.SheetsRevision = amount
	case ComponentClarification:
		f.Clarification = amount
	case ComponentUsufruct:
		f.Usufruct = amount
	case ComponentEasement:
		f.Easement = amount
	case ComponentSignCertification:
		f.SignCertification = amount
	case ComponentForeignRecord:
		f.ForeignRecord = amount
	default:
		f.Others = amount
	}
	return f
}
