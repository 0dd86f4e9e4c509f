package models

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed act_types.yaml
var defaultActTypes []byte

// ActType carries the rule metadata of a kind of recording act.
type ActType struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	// IsDomainAct marks acts that transfer or establish ownership.
	IsDomainAct bool `yaml:"domain"`
	// IsStructureAct marks acts that change the parcel structure
	// (subdivision, merge).
	IsStructureAct   bool `yaml:"structure"`
	IsCreational     bool `yaml:"creational"`
	IsHardLimitation bool `yaml:"hard_limitation"`
	IsCancelation    bool `yaml:"cancelation"`
	IsAmendment      bool `yaml:"amendment"`
	IsModification   bool `yaml:"modification"`
	SkipPrelation    bool `yaml:"skip_prelation"`
	// ChainedActTypeID names the act that must precede this one.
	ChainedActTypeID string `yaml:"chained_act_type"`
	// ValidityDays bounds how long an act stays alive; zero is forever.
	ValidityDays int `yaml:"validity_days"`
}

func (t ActType) IsEmpty() bool { return t.ID == "" }

func (t ActType) HasChainedAct() bool { return t.ChainedActTypeID != "" }

// Label is the registrar-facing name.
func (t ActType) Label() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Name
}

// Validity returns the lifetime of acts of this type.
func (t ActType) Validity() (time.Duration, bool) {
	if t.ValidityDays <= 0 {
		return 0, false
	}
	return time.Duration(t.ValidityDays) * 24 * time.Hour, true
}

// Catalog is the set of known act types.
type Catalog struct {
	types map[string]ActType
	order []string
}

// LoadCatalog parses a YAML catalog. Nil data loads the embedded one.
func LoadCatalog(data []byte) (*Catalog, error) {
	if data == nil {
		data = defaultActTypes
	}
	var file struct {
		ActTypes []ActType `yaml:"act_types"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse act types: %w", err)
	}
	return NewCatalog(file.ActTypes...)
}

// NewCatalog validates chaining references.
func NewCatalog(types ...ActType) (*Catalog, error) {
	c := &Catalog{types: make(map[string]ActType, len(types))}
	for _, t := range types {
		if t.ID == "" {
			return nil, fmt.Errorf("act type without id")
		}
		if _, dup := c.types[t.ID]; dup {
			return nil, fmt.Errorf("duplicated act type %q", t.ID)
		}
		c.types[t.ID] = t
		c.order = append(c.order, t.ID)
	}
	for _, t := range types {
		if t.HasChainedAct() {
			if _, ok := c.types[t.ChainedActTypeID]; !ok {
				return nil, fmt.Errorf("act type %q chains unknown type %q", t.ID, t.ChainedActTypeID)
			}
		}
	}
	return c, nil
}

func (c *Catalog) Get(typeID string) (ActType, bool) {
	t, ok := c.types[typeID]
	return t, ok
}

// All returns the types in catalog order.
func (c *Catalog) All() []ActType {
	out := make([]ActType, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.types[k])
	}
	return out
}
