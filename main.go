package main

import "github.com/notargets/gochem/cmd"

func main() {
	cmd.Execute()
}
