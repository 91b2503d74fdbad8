//go:build !linux

package cmd

import (
	"log/slog"

	"github.com/spf13/viper"
)

func measure(name string, f func() error) error {
	if viper.GetBool("perf") {
		slog.Warn("CPU instruction counts are only available on linux", "command", name)
	}
	return f()
}
