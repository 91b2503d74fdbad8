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

// EquilibrateCmd represents the equilibrate command
var EquilibrateCmd = &cobra.Command{
	Use:   "equilibrate",
	Short: "Equilibrium speciation of a single batch of fluid",
	Long: `
Solves for the equilibrium speciation described by the input file, then
re-equilibrates at each of the listed temperatures in turn,

gochem equilibrate -F input.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		ip := processInput(cmd)
		ip.Print()
		check(measure("equilibrate", func() error {
			return RunEquilibrate(ip, os.Stdout)
		}))
	},
}

func init() {
	rootCmd.AddCommand(EquilibrateCmd)
	EquilibrateCmd.Flags().StringP("inputFile", "F", "", "YAML file describing the system and solver")
}

func RunEquilibrate(ip *InputParameters.InputParameters, w io.Writer) (err error) {
	r, err := newTimeIndependent(ip)
	if err != nil {
		return
	}
	if err = r.Initialize(); err != nil {
		fmt.Fprint(w, r.SolverOutput())
		return
	}
	r.Report(w)
	for _, T := range ip.Temperatures {
		if err = r.Execute(T); err != nil {
			fmt.Fprint(w, r.SolverOutput())
			return
		}
		fmt.Fprintln(w)
		r.Report(w)
	}
	return
}

func newTimeIndependent(ip *InputParameters.InputParameters) (r *reactor.TimeIndependent, err error) {
	sys, err := ip.NewSystem()
	if err != nil {
		return
	}
	sv, err := ip.NewSolver()
	if err != nil {
		return
	}
	return reactor.NewTimeIndependent(sys, sv), nil
}
