package control

import "fmt"

// list dispatches "list {connections|routes|interfaces}" to the
// per-target listing implemented in connection.go/route.go.
func (m *Manager) list(cmd Command) Result {
	switch cmd.Args[0] {
	case "connections":
		return m.listConnections()
	case "routes":
		return m.listRoutes()
	case "interfaces":
		return m.listInterfaces()
	default:
		return parseErr(fmt.Sprintf("unknown list target %q", cmd.Args[0]))
	}
}
