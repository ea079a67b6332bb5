package control

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/icn-metis/metisd/internal/name"
	"github.com/icn-metis/metisd/internal/table"
)

// addRoute implements "add route <symbolic> <prefix> <cost>" (spec.md
// §6), grounded on metisControl_Add.c's route sub-verb and
// internal/table.Fib.Add.
func (m *Manager) addRoute(cmd Command) Result {
	sym, prefixStr, costStr := cmd.Args[0], cmd.Args[1], cmd.Args[2]

	id, ok2 := m.lookupSymbol(sym)
	if !ok2 {
		return execErr(fmt.Sprintf("no such connection %q", sym))
	}
	cost, err := strconv.ParseUint(costStr, 10, 64)
	if err != nil {
		return parseErr(fmt.Sprintf("invalid cost %q: %v", costStr, err))
	}

	prefix := name.FromString(prefixStr)
	m.Fib.Add(prefix, id, cost, table.StrategyAll)
	return ok(fmt.Sprintf("route %s %s cost=%d added", sym, prefixStr, cost))
}

// removeRoute implements "remove route <symbolic> <prefix>".
func (m *Manager) removeRoute(cmd Command) Result {
	sym, prefixStr := cmd.Args[0], cmd.Args[1]

	id, ok2 := m.lookupSymbol(sym)
	if !ok2 {
		return execErr(fmt.Sprintf("no such connection %q", sym))
	}

	prefix := name.FromString(prefixStr)
	m.Fib.Remove(prefix, id)
	return ok(fmt.Sprintf("route %s %s removed", sym, prefixStr))
}

// setStrategy implements "set strategy <prefix> {all|random|loadbalancer}".
func (m *Manager) setStrategy(cmd Command) Result {
	prefixStr, strategyStr := cmd.Args[0], cmd.Args[1]

	var sn table.StrategyName
	switch strategyStr {
	case string(table.StrategyAll), string(table.StrategyRandom), string(table.StrategyLoadBalancer):
		sn = table.StrategyName(strategyStr)
	default:
		return parseErr(fmt.Sprintf("unknown strategy %q", strategyStr))
	}
	if _, ok := m.Strategies[sn]; !ok {
		return execErr(fmt.Sprintf("strategy %q not registered", sn))
	}

	prefix := name.FromString(prefixStr)
	m.Fib.SetStrategy(prefix, sn)
	return ok(fmt.Sprintf("strategy for %s set to %s", prefixStr, sn))
}

// listRoutes implements "list routes".
func (m *Manager) listRoutes() Result {
	entries := m.Fib.All()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Prefix() < entries[j].Prefix() })

	var sb strings.Builder
	for _, e := range entries {
		n, _ := m.Arena.Lookup(e.Prefix())
		fmt.Fprintf(&sb, "%s strategy=%s nexthops=", n, e.Strategy())
		for i, nh := range e.NextHops() {
			if i > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "%s(cost=%d)", m.connToSym[nh.Nexthop], nh.Cost)
		}
		sb.WriteByte('\n')
	}
	return ok(sb.String())
}
