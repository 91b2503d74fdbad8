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
	"github.com/spf13/cobra"

	"github.com/notargets/gochem/database"
)

// DatabaseCmd represents the database command
var DatabaseCmd = &cobra.Command{
	Use:   "database",
	Short: "Print the model selected from a thermodynamic database",
	Long: `
Lists the equilibrium and kinetic species, with their reactions, that a model
built on the given basis would contain,

gochem database -F carbonate.yaml --basis H2O,H+,Ca++,HCO3-`,
	Run: func(cmd *cobra.Command, args []string) {
		fileName, _ := cmd.Flags().GetString("databaseFile")
		basis, _ := cmd.Flags().GetStringSlice("basis")
		kinetic, _ := cmd.Flags().GetStringSlice("kinetic")
		db, err := database.ReadDatabase(fileName)
		if err != nil {
			panic(err)
		}
		if len(basis) == 0 {
			for _, b := range db.Basis {
				basis = append(basis, b.Name)
			}
		}
		mgd, err := database.NewModelDatabase(db, basis, kinetic)
		check(err)
		mgd.Print()
	},
}

func init() {
	rootCmd.AddCommand(DatabaseCmd)
	DatabaseCmd.Flags().StringP("databaseFile", "F", "", "thermodynamic database in YAML format")
	DatabaseCmd.Flags().StringSlice("basis", nil, "basis species, water first (default is the whole database basis)")
	DatabaseCmd.Flags().StringSlice("kinetic", nil, "species whose amount follows a rate law")
}
