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
	"os"

	"github.com/spf13/cobra"

	"github.com/notargets/gochem/InputParameters"
	"github.com/notargets/gochem/reactor"
)

// ReactCmd represents the react command
var ReactCmd = &cobra.Command{
	Use:   "react",
	Short: "Time dependent reaction of a single batch of fluid",
	Long: `
Follows the fluid described by the input file from time zero to the reactor
end_time, adding the reactor sources at every step,

gochem react -F input.yaml --plot history.png`,
	Run: func(cmd *cobra.Command, args []string) {
		ip := processInput(cmd)
		plotFile, _ := cmd.Flags().GetString("plot")
		ip.Print()
		check(measure("react", func() error {
			return RunReact(ip, os.Stdout, plotFile)
		}))
	},
}

func init() {
	rootCmd.AddCommand(ReactCmd)
	ReactCmd.Flags().StringP("inputFile", "F", "", "YAML file describing the system, solver and reactor")
	ReactCmd.Flags().String("plot", "", "image file for the history of the species listed under reactor.plot")
}

func RunReact(ip *InputParameters.InputParameters, w io.Writer, plotFile string) (err error) {
	if ip.NumSteps() == 0 {
		return fmt.Errorf("reactor end_time and dt must be positive")
	}
	sys, err := ip.NewSystem()
	if err != nil {
		return
	}
	sv, err := ip.NewSolver()
	if err != nil {
		return
	}
	r, err := reactor.NewTimeDependent(sys, sv, ip.TimeDependentConfig())
	if err != nil {
		return
	}
	if err = r.Initialize(); err != nil {
		fmt.Fprint(w, r.SolverOutput())
		return
	}
	if err = r.Run(ip.Reactor.EndTime, ip.Reactor.Dt); err != nil {
		fmt.Fprint(w, r.SolverOutput())
		return
	}
	r.Report(w)
	if len(plotFile) != 0 {
		species := ip.Reactor.Plot
		if len(species) == 0 {
			species = []string{"pH"}
		}
		err = r.PlotHistory(plotFile, species)
	}
	return
}
