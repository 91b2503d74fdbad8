/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gochem/InputParameters"
	"github.com/notargets/gochem/reactor"
)

// SpatialCmd represents the spatial command
var SpatialCmd = &cobra.Command{
	Use:   "spatial",
	Short: "Time dependent reaction at a set of independent positions",
	Long: `
Runs the reactor of the input file at every spatial position, each with its
own copy of the fluid and its own sources. Positions are solved in parallel,

gochem spatial -F input.yaml -p 8`,
	Run: func(cmd *cobra.Command, args []string) {
		ip := processInput(cmd)
		ip.Print()
		check(measure("spatial", func() error {
			return RunSpatial(ip, os.Stdout, viper.GetInt("parallel"))
		}))
	},
}

func init() {
	rootCmd.AddCommand(SpatialCmd)
	SpatialCmd.Flags().StringP("inputFile", "F", "", "YAML file describing the system, solver, reactor and positions")
}

func RunSpatial(ip *InputParameters.InputParameters, w io.Writer, parallel int) (err error) {
	nSteps := ip.NumSteps()
	if nSteps == 0 {
		return fmt.Errorf("reactor end_time and dt must be positive")
	}
	nodeSources, err := ip.NodeSources()
	if err != nil {
		return
	}
	sys, err := ip.NewSystem()
	if err != nil {
		return
	}
	sv, err := ip.NewSolver()
	if err != nil {
		return
	}
	s, err := reactor.NewSpatial(sys, sv, ip.Spatial.Positions, ip.TimeDependentConfig(), nodeSources, parallel)
	if err != nil {
		return
	}
	if err = s.Initialize(); err != nil {
		return
	}
	for n := 0; n < nSteps; n++ {
		if err = s.Step(math.Min(ip.Reactor.Dt, ip.Reactor.EndTime-s.Time())); err != nil {
			return
		}
	}
	for k := 0; k < s.NumNodes(); k++ {
		if k != 0 {
			fmt.Fprintln(w)
		}
		s.Report(w, k)
	}
	return
}
