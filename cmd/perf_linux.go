//go:build linux

package cmd

import (
	"fmt"
	"log/slog"

	perf "github.com/hodgesds/perf-utils"
	"github.com/spf13/viper"
)

// measure runs f, counting its CPU instructions when --perf is set
func measure(name string, f func() error) error {
	if !viper.GetBool("perf") {
		return f()
	}
	var (
		ran  bool
		ferr error
	)
	pv, err := perf.CPUInstructions(func() error {
		ran = true
		ferr = f()
		return ferr
	})
	switch {
	case !ran:
		slog.Warn("cannot count CPU instructions", "error", err)
		return f()
	case ferr != nil:
		return ferr
	case err != nil:
		slog.Warn("cannot count CPU instructions", "error", err)
		return nil
	}
	fmt.Printf("%s: %d CPU instructions\n", name, pv.Value)
	return nil
}
