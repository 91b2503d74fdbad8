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
	"log/slog"
	"os"
	"runtime"

	"github.com/mitchellh/go-homedir"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/notargets/gochem/InputParameters"
	"github.com/notargets/gochem/chemistry"
	"github.com/notargets/gochem/reactor"
	"github.com/notargets/gochem/solver"
	"github.com/notargets/gochem/utils"
)

var (
	cfgFile string
	prof    interface{ Stop() }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gochem",
	Short: "Geochemical equilibrium and reaction path solver",
	Long: `
Solves for the equilibrium speciation of an aqueous solution in contact with
minerals and gases, and follows it through time as species are added, the
temperature changes or precipitates are removed.

gochem equilibrate -F input.yaml`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setLogging(viper.GetBool("verbose"))
		if viper.GetBool("profile") {
			prof = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if prof != nil {
			prof.Stop()
		}
		slog.Debug("run complete", "memory", utils.GetMemUsage())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gochem.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log every solver iteration")
	rootCmd.PersistentFlags().IntP("parallel", "p", runtime.NumCPU(), "number of workers used by the spatial reactor")
	rootCmd.PersistentFlags().Bool("profile", false, "write a CPU profile of the run to the current directory")
	rootCmd.PersistentFlags().Bool("perf", false, "count the CPU instructions of the solve (linux only)")
	for _, name := range []string{"verbose", "parallel", "profile", "perf"} {
		if err := viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".gochem")
	}
	viper.SetEnvPrefix("gochem")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func setLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	l := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(l)
	chemistry.SetLogger(l)
	solver.SetLogger(l)
	reactor.SetLogger(l)
}

// processInput reads the input file named by the -F flag
func processInput(cmd *cobra.Command) (ip *InputParameters.InputParameters) {
	var (
		err      error
		fileName string
	)
	if fileName, err = cmd.Flags().GetString("inputFile"); err != nil {
		panic(err)
	}
	if len(fileName) == 0 {
		err = fmt.Errorf("must supply an input parameters file (-F, --inputFile) in YAML format")
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
title: "Sodium chloride solution"
database: carbonate.yaml
basis_species: [H2O, H+, Na+, Cl-]
charge_balance_species: Cl-
constraints:
  - {species: H2O, value: 1, meaning: kg_solvent_water}
  - {species: H+, value: 1.0e-7, meaning: activity}
  - {species: Na+, value: 0.1, meaning: moles_bulk_species}
  - {species: Cl-, value: 0.1, meaning: moles_bulk_species}
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	if ip, err = InputParameters.ReadInputParameters(fileName); err != nil {
		panic(err)
	}
	return
}

// check ends the run when the chemistry could not be solved
func check(err error) {
	if err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
}
