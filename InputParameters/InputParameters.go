package InputParameters

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/ghodss/yaml"

	"github.com/notargets/gochem/chemistry"
	"github.com/notargets/gochem/database"
	"github.com/notargets/gochem/reactor"
	"github.com/notargets/gochem/solver"
	"github.com/notargets/gochem/types"
)

// Parameters obtained from the YAML input file
type InputParameters struct {
	Title                          string                     `json:"title"`
	Database                       string                     `json:"database"` // relative to the input file
	Basis                          []string                   `json:"basis_species"`
	SwapOutOfBasis                 []string                   `json:"swap_out_of_basis"`
	SwapIntoBasis                  []string                   `json:"swap_into_basis"`
	ChargeBalanceSpecies           string                     `json:"charge_balance_species"`
	Constraints                    []chemistry.Constraint     `json:"constraints"`
	Kinetic                        []chemistry.KineticSpecies `json:"kinetic_species"`
	Temperature                    float64                    `json:"temperature"`
	Temperatures                   []float64                  `json:"temperatures"` // re-equilibrated in turn after the first solve
	StoichiometricIonicStrength    bool                       `json:"stoichiometric_ionic_strength"`
	MaxStoichiometricIonicStrength float64                    `json:"max_stoichiometric_ionic_strength"`
	Solver                         solver.Config              `json:"solver"`
	Reactor                        ReactorParameters          `json:"reactor"`
	Spatial                        SpatialParameters          `json:"spatial"`
	dir                            string
}

type ReactorParameters struct {
	Mode                types.ReactorMode              `json:"mode"`
	Step                reactor.TimeStepControl        `json:"time_step"`
	EndTime             float64                        `json:"end_time"`
	Dt                  float64                        `json:"dt"`
	Temperature         reactor.Series                 `json:"temperature"`
	CloseTime           *float64                       `json:"close_time"`
	RemoveFixedActivity []reactor.FixedActivityRemoval `json:"remove_fixed_activity"`
	ControlledActivity  []reactor.ControlledActivity   `json:"controlled_activity"`
	Sources             []reactor.Source               `json:"sources"`
	Plot                []string                       `json:"plot"` // species plotted against time
}

type SpatialParameters struct {
	Positions   []float64     `json:"positions"`
	NodeSources []NodeSources `json:"node_sources"`
}

// NodeSources replaces the reactor sources at the listed nodes
type NodeSources struct {
	Nodes   []int            `json:"nodes"`
	Sources []reactor.Source `json:"sources"`
}

func ReadInputParameters(fileName string) (ip *InputParameters, err error) {
	var data []byte
	if data, err = os.ReadFile(fileName); err != nil {
		return
	}
	ip = &InputParameters{}
	if err = ip.Parse(data); err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	ip.dir = filepath.Dir(fileName)
	return
}

// Parse fills ip from YAML. Anything the file leaves out keeps its default.
func (ip *InputParameters) Parse(data []byte) (err error) {
	ip.Temperature = 25
	ip.MaxStoichiometricIonicStrength = 3
	ip.Solver = solver.DefaultConfig()
	ip.Reactor.Step = reactor.DefaultTimeStepControl()
	if err = yaml.Unmarshal(data, ip); err != nil {
		return
	}
	if len(ip.Basis) == 0 {
		return fmt.Errorf("basis_species must name at least water")
	}
	return ip.Solver.Validate()
}

func (ip *InputParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%s]\t= Database\n", ip.Database)
	fmt.Printf("%v\t= Basis\n", ip.Basis)
	for i, out := range ip.SwapOutOfBasis {
		if i < len(ip.SwapIntoBasis) {
			fmt.Printf("[%s] <- [%s]\t= Swap\n", out, ip.SwapIntoBasis[i])
		}
	}
	fmt.Printf("[%s]\t\t= Charge balance species\n", ip.ChargeBalanceSpecies)
	for _, c := range ip.Constraints {
		fmt.Printf("%-10s%12.5g\t= %s\n", c.Species, c.Value, c.Meaning)
	}
	for _, k := range ip.Kinetic {
		fmt.Printf("%-10s%12.5g moles, rate constant %g\t= Kinetic\n", k.Name, k.InitialMoles, k.RateConstant)
	}
	fmt.Printf("%8.3f\t\t= Temperature\n", ip.Temperature)
	ip.Solver.Print()
	if ip.Reactor.EndTime > 0 {
		fmt.Printf("[%s]\t\t\t= Mode\n", ip.Reactor.Mode)
		fmt.Printf("%8.5g\t\t= EndTime\n", ip.Reactor.EndTime)
		fmt.Printf("%8.5g\t\t= Dt\n", ip.Reactor.Dt)
		sources := make([]string, len(ip.Reactor.Sources))
		for i, s := range ip.Reactor.Sources {
			sources[i] = s.Species
		}
		sort.Strings(sources)
		for _, name := range sources {
			fmt.Printf("Sources[%s]\n", name)
		}
	}
	if len(ip.Spatial.Positions) != 0 {
		fmt.Printf("[%d]\t\t\t\t= Nodes\n", len(ip.Spatial.Positions))
	}
}

func (ip *InputParameters) DatabaseFile() string {
	if filepath.IsAbs(ip.Database) {
		return ip.Database
	}
	return filepath.Join(ip.dir, ip.Database)
}

// ModelDatabase reads the thermodynamic database and selects the model
func (ip *InputParameters) ModelDatabase() (mgd *database.ModelDatabase, err error) {
	var db *database.Database
	if db, err = database.ReadDatabase(ip.DatabaseFile()); err != nil {
		return
	}
	kinetic := make([]string, len(ip.Kinetic))
	for k, ks := range ip.Kinetic {
		kinetic[k] = ks.Name
	}
	return database.NewModelDatabase(db, ip.Basis, kinetic)
}

func (ip *InputParameters) SystemConfig() chemistry.SystemConfig {
	return chemistry.SystemConfig{
		SwapOutOfBasis:       ip.SwapOutOfBasis,
		SwapIntoBasis:        ip.SwapIntoBasis,
		ChargeBalanceSpecies: ip.ChargeBalanceSpecies,
		Constraints:          ip.Constraints,
		Kinetic:              ip.Kinetic,
		Temperature:          ip.Temperature,
		MinInitialMolality:   ip.Solver.MinInitialMolality,
	}
}

// NewSystem builds the initial system, before any solve
func (ip *InputParameters) NewSystem() (sys *chemistry.System, err error) {
	var mgd *database.ModelDatabase
	if mgd, err = ip.ModelDatabase(); err != nil {
		return
	}
	is := chemistry.NewIonicStrength(ip.Solver.MaxIonicStrength, ip.MaxStoichiometricIonicStrength,
		ip.StoichiometricIonicStrength)
	return chemistry.NewSystem(mgd, is, database.NewSwapper(ip.Solver.StoichiometryTolerance), ip.SystemConfig())
}

func (ip *InputParameters) NewSolver() (*solver.Solver, error) {
	return solver.NewSolver(ip.Solver)
}

func (ip *InputParameters) TimeDependentConfig() (cfg reactor.TimeDependentConfig) {
	cfg = reactor.DefaultTimeDependentConfig()
	cfg.Mode = ip.Reactor.Mode
	cfg.Step = ip.Reactor.Step
	cfg.Temperature = ip.Reactor.Temperature
	if ip.Reactor.CloseTime != nil {
		cfg.CloseTime = *ip.Reactor.CloseTime
	}
	cfg.RemoveFixedActivity = ip.Reactor.RemoveFixedActivity
	cfg.ControlledActivity = ip.Reactor.ControlledActivity
	cfg.Sources = ip.Reactor.Sources
	return
}

// NodeSources gathers the per-node source overrides of the spatial reactor
func (ip *InputParameters) NodeSources() (nodeSources map[int][]reactor.Source, err error) {
	nodeSources = make(map[int][]reactor.Source)
	for _, ns := range ip.Spatial.NodeSources {
		for _, k := range ns.Nodes {
			if _, dup := nodeSources[k]; dup {
				return nil, fmt.Errorf("node %d has sources listed twice", k)
			}
			nodeSources[k] = ns.Sources
		}
	}
	return
}

// NumSteps is the number of reactor steps needed to reach the end time
func (ip *InputParameters) NumSteps() int {
	if !(ip.Reactor.Dt > 0) || !(ip.Reactor.EndTime > 0) {
		return 0
	}
	return int(math.Ceil(ip.Reactor.EndTime / ip.Reactor.Dt))
}
