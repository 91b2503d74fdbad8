package reactor

import (
	"fmt"
	"io"

	"github.com/notargets/gochem/chemistry"
	"github.com/notargets/gochem/solver"
	"github.com/notargets/gochem/utils"
)

// NodeResult is what one node reports after a step
type NodeResult struct {
	Node     int
	Result   solver.Result
	Attempts int // solves, including failed ones, to cover the step
	Err      error
}

// Spatial reacts a set of independent batches of fluid, one per node, each
// with its own copy of the starting system. Nodes are stepped in parallel:
// every worker owns a contiguous range of nodes and its own copy of the
// solver, so nothing is shared while they run.
type Spatial struct {
	nodes       []*node
	sv          *solver.Solver
	cfg         TimeDependentConfig
	nodeSources map[int][]Source
	ramp0       int
	pm          *utils.PartitionMap
	time        float64
	Results     []NodeResult
}

// NewSpatial places a copy of sys at each position. nodeSources replaces the
// sources of cfg at the nodes it names.
func NewSpatial(sys *chemistry.System, sv *solver.Solver, positions []float64, cfg TimeDependentConfig,
	nodeSources map[int][]Source, parallelDegree int) (s *Spatial, err error) {
	if len(positions) == 0 {
		return nil, fmt.Errorf("spatial reactor needs at least one node")
	}
	mgd := sys.ModelDatabase()
	if err = cfg.prepare(mgd); err != nil {
		return
	}
	s = &Spatial{
		nodes:       make([]*node, len(positions)),
		sv:          sv.Copy(),
		cfg:         cfg,
		nodeSources: make(map[int][]Source, len(nodeSources)),
		ramp0:       sv.RampMaxIonicStrength(),
		pm:          utils.NewPartitionMap(parallelDegree, len(positions)),
		Results:     make([]NodeResult, len(positions)),
	}
	for k, sources := range nodeSources {
		if k < 0 || k >= len(positions) {
			return nil, fmt.Errorf("sources given for node %d, have %d nodes", k, len(positions))
		}
		sources = append([]Source(nil), sources...)
		if err = prepareSources(mgd, sources); err != nil {
			return nil, fmt.Errorf("node %d: %w", k, err)
		}
		s.nodeSources[k] = sources
	}
	for k, x := range positions {
		s.nodes[k] = newNode(k, x, sys.Copy(), &s.cfg)
	}
	return
}

// Initialize solves every node with the initial ionic strength ramp
func (s *Spatial) Initialize() error {
	return s.parallel(s.ramp0, func(sv *solver.Solver, n *node) error {
		return n.initialize(sv, s.cfg.Step)
	})
}

// Step advances every node by dt. Each node cuts the step into sub-steps on
// its own. The error returned is that of the lowest numbered failing node.
func (s *Spatial) Step(dt float64) (err error) {
	if dt < 0 {
		return fmt.Errorf("time step must not be negative, have %g", dt)
	}
	t := s.time + dt
	err = s.parallel(s.sv.Config().RampSubsequent, func(sv *solver.Solver, n *node) error {
		return n.step(sv, &s.cfg, s.sources(n.index), t, dt)
	})
	if err == nil {
		s.time = t
	}
	return
}

func (s *Spatial) sources(k int) []Source {
	if sources, ok := s.nodeSources[k]; ok {
		return sources
	}
	return s.cfg.Sources
}

// parallel runs work on every node. Workers write into their own result
// buffers, copied into Results once all have finished.
func (s *Spatial) parallel(ramp int, work func(sv *solver.Solver, n *node) error) (err error) {
	var (
		buffers = make([][]NodeResult, s.pm.ParallelDegree)
	)
	s.pm.Run(func(bn, kMin, kMax int) {
		var (
			sv  = s.sv.Copy()
			buf = make([]NodeResult, kMax-kMin)
		)
		if rerr := sv.SetRampMaxIonicStrength(ramp); rerr != nil {
			for k := kMin; k < kMax; k++ {
				buf[k-kMin] = NodeResult{Node: k, Err: rerr}
			}
			buffers[bn] = buf
			return
		}
		for k := kMin; k < kMax; k++ {
			n := s.nodes[k]
			werr := work(sv, n)
			buf[k-kMin] = NodeResult{Node: k, Result: n.result, Attempts: n.attempts, Err: werr}
		}
		buffers[bn] = buf
	})
	for bn, buf := range buffers {
		kMin, _ := s.pm.GetBucketRange(bn)
		copy(s.Results[kMin:], buf)
	}
	for _, res := range s.Results {
		if res.Err != nil {
			return res.Err
		}
	}
	return
}

func (s *Spatial) NumNodes() int                  { return len(s.nodes) }
func (s *Spatial) Time() float64                  { return s.time }
func (s *Spatial) System(k int) *chemistry.System { return s.nodes[k].sys }
func (s *Spatial) Position(k int) float64         { return s.nodes[k].position }

// MolesDumped returns the moles of a mineral removed from node k by the dump
// and flow_through modes so far
func (s *Spatial) MolesDumped(k int, species string) float64 { return s.nodes[k].dumped[species] }

// SolverOutput is the trace of the last step at node k
func (s *Spatial) SolverOutput(k int) string { return s.nodes[k].output.String() }

// Report prints the state of node k
func (s *Spatial) Report(w io.Writer, k int) {
	fmt.Fprintf(w, "Node %d at position %g\n", k, s.nodes[k].position)
	Report(w, s.nodes[k].sys, s.nodes[k].result)
}
