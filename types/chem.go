package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ConstraintMeaning says what the user-supplied value attached to a basis
// species means.
type ConstraintMeaning uint8

const (
	MolesBulkWater ConstraintMeaning = iota
	KgSolventWater
	MolesBulkSpecies
	FreeMolality
	FreeMolesMineralSpecies
	Fugacity
	Activity
)

var ConstraintNameMap = map[string]ConstraintMeaning{
	"moles_bulk_water":           MolesBulkWater,
	"kg_solvent_water":           KgSolventWater,
	"moles_bulk_species":         MolesBulkSpecies,
	"bulk":                       MolesBulkSpecies,
	"free_molality":              FreeMolality,
	"free_moles_mineral_species": FreeMolesMineralSpecies,
	"fugacity":                   Fugacity,
	"activity":                   Activity,
}

var constraintNames = [...]string{
	"moles_bulk_water",
	"kg_solvent_water",
	"moles_bulk_species",
	"free_molality",
	"free_moles_mineral_species",
	"fugacity",
	"activity",
}

func (c ConstraintMeaning) String() string {
	if int(c) < len(constraintNames) {
		return constraintNames[c]
	}
	return fmt.Sprintf("ConstraintMeaning(%d)", uint8(c))
}

// IsBulk is true for meanings whose value is a total amount of a component
func (c ConstraintMeaning) IsBulk() bool {
	return c == MolesBulkWater || c == MolesBulkSpecies
}

// IsActivityFixed is true when the constraint pins the species activity
func (c ConstraintMeaning) IsActivityFixed() bool {
	return c == Activity || c == Fugacity
}

func NewConstraintMeaning(label string) (c ConstraintMeaning, err error) {
	var ok bool
	if c, ok = ConstraintNameMap[normalize(label)]; !ok {
		err = fmt.Errorf("unknown constraint meaning %q", label)
	}
	return
}

func (c ConstraintMeaning) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

// UnmarshalJSON reads a meaning from its label, so that input files can
// name it as in ConstraintNameMap
func (c *ConstraintMeaning) UnmarshalJSON(data []byte) (err error) {
	var label string
	if err = json.Unmarshal(data, &label); err != nil {
		return
	}
	*c, err = NewConstraintMeaning(label)
	return
}

// SpeciesKind distinguishes aqueous species from minerals and gases
type SpeciesKind uint8

const (
	Aqueous SpeciesKind = iota
	Mineral
	Gas
)

func (k SpeciesKind) String() string {
	switch k {
	case Aqueous:
		return "aqueous"
	case Mineral:
		return "mineral"
	case Gas:
		return "gas"
	}
	return fmt.Sprintf("SpeciesKind(%d)", uint8(k))
}

// ReactorMode controls how the time-dependent reactor treats precipitates and
// fluid between steps
type ReactorMode uint8

const (
	ModeNone ReactorMode = iota
	ModeDump
	ModeFlowThrough
	ModeFlush
)

var ReactorModeNameMap = map[string]ReactorMode{
	"":             ModeNone,
	"none":         ModeNone,
	"dump":         ModeDump,
	"flow_through": ModeFlowThrough,
	"flowthrough":  ModeFlowThrough,
	"flush":        ModeFlush,
}

func (m ReactorMode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeDump:
		return "dump"
	case ModeFlowThrough:
		return "flow_through"
	case ModeFlush:
		return "flush"
	}
	return fmt.Sprintf("ReactorMode(%d)", uint8(m))
}

func NewReactorMode(label string) (m ReactorMode, err error) {
	var ok bool
	if m, ok = ReactorModeNameMap[normalize(label)]; !ok {
		err = fmt.Errorf("unknown reactor mode %q", label)
	}
	return
}

func (m ReactorMode) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }

func (m *ReactorMode) UnmarshalJSON(data []byte) (err error) {
	var label string
	if err = json.Unmarshal(data, &label); err != nil {
		return
	}
	*m, err = NewReactorMode(label)
	return
}

func normalize(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), "-", "_")
}
