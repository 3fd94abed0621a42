package ui

import (
	"fmt"
	"io"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/nook-dev/nook/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BackendState is one model backend's availability row.
type BackendState struct {
	Key    string `json:"key"`
	Model  string `json:"model"`
	Loaded bool   `json:"loaded"`
}

// Snapshot is everything the status report and the live dashboard show:
// the store's task ledger counts plus backend availability and on-disk
// footprint.
type Snapshot struct {
	TotalPaths int                                     `json:"total_paths"`
	Counts     map[store.TaskType]map[store.Status]int `json:"counts"`
	Backends   []BackendState                          `json:"backends,omitempty"`
	StoreBytes int64                                   `json:"store_bytes,omitempty"`
	QueueDepth int                                     `json:"queue_depth"`
}

// TaskTypes returns the snapshot's task types in stable order.
func (s Snapshot) TaskTypes() []store.TaskType {
	types := make([]store.TaskType, 0, len(s.Counts))
	for tt := range s.Counts {
		types = append(types, tt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// StatusRenderer writes one-shot status reports.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer builds a renderer; pass noColor to strip styling.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: NewStyles(noColor)}
}

// Render writes the human-readable report.
func (r *StatusRenderer) Render(snap Snapshot) {
	st := r.styles
	fmt.Fprintln(r.out, st.Title.Render("nook status"))
	fmt.Fprintf(r.out, "%s %s\n", st.Label.Render("indexed paths:"), st.Value.Render(fmt.Sprintf("%d", snap.TotalPaths)))
	if snap.StoreBytes > 0 {
		fmt.Fprintf(r.out, "%s %s\n", st.Label.Render("store size:  "), st.Value.Render(FormatBytes(snap.StoreBytes)))
	}
	if snap.QueueDepth > 0 {
		fmt.Fprintf(r.out, "%s %s\n", st.Label.Render("queued jobs: "), st.Value.Render(fmt.Sprintf("%d", snap.QueueDepth)))
	}
	fmt.Fprintln(r.out)

	for _, tt := range snap.TaskTypes() {
		c := snap.Counts[tt]
		done := fmt.Sprintf("done=%d", c[store.StatusDone])
		pending := fmt.Sprintf("pending=%d", c[store.StatusPending])
		failed := fmt.Sprintf("failed=%d", c[store.StatusFailed])
		if c[store.StatusPending] > 0 {
			pending = st.Warn.Render(pending)
		}
		if c[store.StatusFailed] > 0 {
			failed = st.Bad.Render(failed)
		}
		fmt.Fprintf(r.out, "  %-10s %s %s %s\n", tt, st.Good.Render(done), pending, failed)
	}

	if len(snap.Backends) > 0 {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, st.Label.Render("backends:"))
		for _, b := range snap.Backends {
			state := st.Bad.Render("unloaded")
			if b.Loaded {
				state = st.Good.Render("loaded")
			}
			fmt.Fprintf(r.out, "  %-14s %-28s %s\n", b.Key, b.Model, state)
		}
	}
}

// RenderJSON writes the snapshot as an indented JSON document.
func (r *StatusRenderer) RenderJSON(snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = r.out.Write(data)
	return err
}
