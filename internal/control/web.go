package control

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/gorilla/schema"
	"github.com/icn-metis/metisd/internal/core"
	"github.com/icn-metis/metisd/internal/metrics"
)

// listFilter decodes the optional query parameters of the read-only web
// status page (SPEC_FULL.md §4.7's web-interface expansion, grounded on
// metis_WebInterface.h).
type listFilter struct {
	Section string `schema:"section"` // "connections", "routes", "counters"; empty means all
}

var webDecoder = schema.NewDecoder()

func init() {
	webDecoder.IgnoreUnknownKeys(true)
}

// WebStatus is a read-only HTTP status page: connections, FIB entries, and
// error counters, alongside the text control channel. Never mutates
// forwarder state - every write-capable verb goes through Manager.Exec.
type WebStatus struct {
	mgr  *Manager
	addr string
	srv  *http.Server
}

// NewWebStatus constructs (but does not start) the status server bound to
// addr (host:port).
func NewWebStatus(mgr *Manager, addr string) *WebStatus {
	w := &WebStatus{mgr: mgr, addr: addr}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", w.handleStatus)
	w.srv = &http.Server{Addr: addr, Handler: mux}
	return w
}

func (w *WebStatus) String() string { return fmt.Sprintf("web-status (%s)", w.addr) }

// Run serves until Close.
func (w *WebStatus) Run() {
	if err := w.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		core.Log.Warn(w, "web status server stopped", "err", err)
	}
}

// Close shuts the status server down.
func (w *WebStatus) Close() {
	w.srv.Close()
}

func (w *WebStatus) handleStatus(rw http.ResponseWriter, r *http.Request) {
	var f listFilter
	if err := webDecoder.Decode(&f, r.URL.Query()); err != nil {
		http.Error(rw, fmt.Sprintf("bad query: %v", err), http.StatusBadRequest)
		return
	}

	w.mgr.mu.Lock()
	defer w.mgr.mu.Unlock()

	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if f.Section == "" || f.Section == "connections" {
		fmt.Fprintln(rw, "# connections")
		fmt.Fprint(rw, w.mgr.listConnections().Text)
	}
	if f.Section == "" || f.Section == "routes" {
		fmt.Fprintln(rw, "# routes")
		fmt.Fprint(rw, w.mgr.listRoutes().Text)
	}
	if f.Section == "" || f.Section == "counters" {
		fmt.Fprintln(rw, "# counters")
		snap := w.mgr.Metrics.Snapshot()
		kinds := make([]metrics.Kind, 0, len(snap))
		for k := range snap {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		for _, k := range kinds {
			fmt.Fprintf(rw, "%s %d\n", k, snap[k])
		}
	}
}
