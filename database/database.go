package database

import (
	"fmt"
	"os"
	"sort"

	"github.com/ghodss/yaml"

	"github.com/notargets/gochem/types"
)

// BasisEntry describes a primary species of the thermodynamic database
type BasisEntry struct {
	Name            string  `json:"name"`
	Charge          float64 `json:"charge"`
	IonSize         float64 `json:"ion_size"`
	MolecularWeight float64 `json:"molecular_weight"`
}

// ReactionEntry describes a species formed from basis species. Species maps
// each basis name to its stoichiometric coefficient and LogK holds one value
// per database temperature, for the reaction written as the species
// dissociating into the basis.
type ReactionEntry struct {
	Name            string             `json:"name"`
	Charge          float64            `json:"charge"`
	IonSize         float64            `json:"ion_size"`
	MolecularWeight float64            `json:"molecular_weight"`
	Species         map[string]float64 `json:"species"`
	LogK            []float64          `json:"logk"`
}

// Database is the thermodynamic database file as read from disk
type Database struct {
	Title        string          `json:"title"`
	Temperatures []float64       `json:"temperatures"`
	Basis        []BasisEntry    `json:"basis_species"`
	Secondary    []ReactionEntry `json:"secondary_species"`
	Minerals     []ReactionEntry `json:"minerals"`
	Gases        []ReactionEntry `json:"gases"`
}

func ReadDatabase(fileName string) (db *Database, err error) {
	var data []byte
	if data, err = os.ReadFile(fileName); err != nil {
		return
	}
	if db, err = ParseDatabase(data); err != nil {
		err = fmt.Errorf("%s: %w", fileName, err)
	}
	return
}

func ParseDatabase(data []byte) (db *Database, err error) {
	db = &Database{}
	if err = yaml.Unmarshal(data, db); err != nil {
		return nil, err
	}
	if err = db.validate(); err != nil {
		return nil, err
	}
	return
}

func (db *Database) validate() error {
	if len(db.Temperatures) == 0 {
		return fmt.Errorf("database has no temperatures")
	}
	if !sort.Float64sAreSorted(db.Temperatures) {
		return fmt.Errorf("database temperatures must be ascending: %v", db.Temperatures)
	}
	names := make(map[string]bool)
	for _, b := range db.Basis {
		if names[b.Name] {
			return fmt.Errorf("species %s appears more than once", b.Name)
		}
		names[b.Name] = true
	}
	for _, group := range [][]ReactionEntry{db.Secondary, db.Minerals, db.Gases} {
		for _, r := range group {
			if names[r.Name] {
				return fmt.Errorf("species %s appears more than once", r.Name)
			}
			names[r.Name] = true
			if len(r.LogK) != len(db.Temperatures) {
				return fmt.Errorf("species %s has %d logk values, expected %d",
					r.Name, len(r.LogK), len(db.Temperatures))
			}
			if len(r.Species) == 0 {
				return fmt.Errorf("species %s has an empty reaction", r.Name)
			}
		}
	}
	return nil
}

func (db *Database) findBasis(name string) (b BasisEntry, ok bool) {
	for _, b = range db.Basis {
		if b.Name == name {
			return b, true
		}
	}
	return
}

// findReaction returns the named reaction species and its kind
func (db *Database) findReaction(name string) (r ReactionEntry, kind types.SpeciesKind, ok bool) {
	groups := []struct {
		kind    types.SpeciesKind
		entries []ReactionEntry
	}{
		{types.Aqueous, db.Secondary},
		{types.Mineral, db.Minerals},
		{types.Gas, db.Gases},
	}
	for _, g := range groups {
		for _, r = range g.entries {
			if r.Name == name {
				return r, g.kind, true
			}
		}
	}
	return
}
