package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/icn-metis/metisd/internal/core"
	"github.com/spf13/cobra"
)

var config = core.DefaultConfig()

// CmdMetisd is the root command: `metisd CONFIG-FILE` reads the YAML
// listener/table configuration and runs until SIGINT/SIGTERM, grounded on
// fw/cmd/cmd.go's CmdYaNFD.
var CmdMetisd = &cobra.Command{
	Use:     "metisd CONFIG-FILE",
	Short:   "Metis CCNx forwarder",
	Version: "0.1.0",
	Args:    cobra.MaximumNArgs(1),
	RunE:    run,
}

func init() {
	CmdMetisd.Flags().StringVar(&config.Core.CpuProfile, "cpu-profile", "", "write CPU profile to file")
	CmdMetisd.Flags().StringVar(&config.Core.MemProfile, "mem-profile", "", "write memory profile to file")
	CmdMetisd.Flags().StringVar(&config.Core.BlockProfile, "block-profile", "", "write block profile to file")
}

func run(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		configFile := args[0]
		config.Core.BaseDir = filepath.Dir(configFile)
		if err := core.ReadYaml(config, configFile); err != nil {
			return err
		}
	}

	level, err := core.ParseLevel(config.Core.LogLevel)
	if err != nil {
		return err
	}
	core.SetLogLevel(level)

	metisd := NewMetisd(config)
	metisd.Start()

	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, os.Interrupt, syscall.SIGTERM)
	received := <-sigChannel
	core.Log.Info(metisd, "received signal, exiting", "signal", received)

	metisd.Stop()
	return nil
}
