package control

import "strings"

// helpText implements "help …" (spec.md §6). With no further args it
// lists every command family; with one, it prints that family's usage
// line - grounded on the metisControl_*.c convention of a paired
// "help <verb>" command string alongside each verb's execute function.
func helpText(args []string) string {
	if len(args) == 0 {
		return strings.Join([]string{
			"add connection {tcp|udp|ether} <symbolic> <remote> <local>",
			"add listener {tcp|udp|ether|local|ws|quic} <symbolic> <addr> <port|ifname>",
			"add route <symbolic> <prefix> <cost>",
			"remove connection <symbolic>",
			"remove route <symbolic> <prefix>",
			"list {connections|routes|interfaces}",
			"set strategy <prefix> {all|random|loadbalancer}",
			"set wldr {on|off} <symbolic>",
			"set debug",
			"unset debug",
			"cache {serve|store} {on|off}",
			"cache clear",
			"quit",
		}, "\n")
	}

	switch args[0] {
	case "add":
		return "add {connection|listener|route} ..."
	case "remove":
		return "remove {connection|route} ..."
	case "list":
		return "list {connections|routes|interfaces}"
	case "set":
		return "set {strategy|wldr|debug} ..."
	case "cache":
		return "cache {serve|store} {on|off} | cache clear"
	default:
		return "no help for " + args[0]
	}
}
