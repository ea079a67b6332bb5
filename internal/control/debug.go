package control

import "github.com/icn-metis/metisd/internal/core"

// setDebug implements "set debug" (spec.md §6), grounded on
// metisControl_SetDebug.c. Raises the process-wide log level to DEBUG.
func (m *Manager) setDebug() Result {
	m.debug = true
	core.SetLogLevel(core.LevelDebug)
	return ok("debug logging enabled")
}

// unsetDebug implements "unset debug", restoring INFO-level logging.
func (m *Manager) unsetDebug() Result {
	m.debug = false
	core.SetLogLevel(core.LevelInfo)
	return ok("debug logging disabled")
}
