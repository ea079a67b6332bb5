package main

import (
	"os"

	"github.com/icn-metis/metisd/internal/core"
)

func main() {
	if err := CmdMetisd.Execute(); err != nil {
		core.Log.Error(nil, "metisd exited with error", "err", err)
		os.Exit(1)
	}
}
