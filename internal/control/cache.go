package control

import "fmt"

// cache implements "cache {serve|store} {on|off}" (spec.md §6), grounded
// on metisControl_CacheServe.c/metisControl_Cache.c's independent
// serve/store booleans.
func (m *Manager) cache(cmd Command) Result {
	target, state := cmd.Args[0], cmd.Args[1] == "on"
	switch target {
	case "serve":
		m.CS.SetServe(state)
	case "store":
		m.CS.SetStore(state)
	}
	return ok(fmt.Sprintf("cache %s set %s", target, cmd.Args[1]))
}

// cacheClear implements "cache clear" (spec.md §6, Invariant 3: "after
// clear, |CS| = 0"), grounded on metisControl_CacheClear.c.
func (m *Manager) cacheClear() Result {
	m.CS.Clear()
	return ok("cache cleared")
}
