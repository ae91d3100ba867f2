package pipeline

import (
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
)

// DefaultSampleLimit bounds how many offending records are retained per
// issue kind for human inspection.
const DefaultSampleLimit = 10

// Report accumulates every issue emitted by the pipeline stages into counts
// by dataset and kind, plus a bounded sample per kind. It is an explicit
// value threaded through the run, not ambient state, and it never affects
// pipeline output values.
type Report struct {
	Counts  map[Dataset]map[Kind]int
	Samples map[Kind][]Issue

	// Row counts for the sum-law audit: every input row is either present
	// in the corresponding output or accounted for by an issue.
	InputYieldRows       int
	InputAbandonmentRows int
	FieldRows            int
	RollupRows           int

	sampleLimit int
}

// NewReport returns an empty report retaining at most sampleLimit sample
// issues per kind. sampleLimit <= 0 selects DefaultSampleLimit.
func NewReport(sampleLimit int) *Report {
	if sampleLimit <= 0 {
		sampleLimit = DefaultSampleLimit
	}
	return &Report{
		Counts:      make(map[Dataset]map[Kind]int),
		Samples:     make(map[Kind][]Issue),
		sampleLimit: sampleLimit,
	}
}

// Add records issues into the counts and samples.
func (r *Report) Add(issues ...Issue) {
	for _, is := range issues {
		byKind, ok := r.Counts[is.Dataset]
		if !ok {
			byKind = make(map[Kind]int)
			r.Counts[is.Dataset] = byKind
		}
		byKind[is.Kind]++
		if len(r.Samples[is.Kind]) < r.sampleLimit {
			r.Samples[is.Kind] = append(r.Samples[is.Kind], is)
		}
	}
}

// Merge folds another report's counts, samples, and row counts into r.
// Samples remain bounded by r's limit.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	for ds, byKind := range other.Counts {
		dst, ok := r.Counts[ds]
		if !ok {
			dst = make(map[Kind]int)
			r.Counts[ds] = dst
		}
		for kind, n := range byKind {
			dst[kind] += n
		}
	}
	// Merge samples in kind order so the retained subset is deterministic.
	kinds := make([]string, 0, len(other.Samples))
	for kind := range other.Samples {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, ks := range kinds {
		kind := Kind(ks)
		for _, is := range other.Samples[kind] {
			if len(r.Samples[kind]) < r.sampleLimit {
				r.Samples[kind] = append(r.Samples[kind], is)
			}
		}
	}
	r.InputYieldRows += other.InputYieldRows
	r.InputAbandonmentRows += other.InputAbandonmentRows
	r.FieldRows += other.FieldRows
	r.RollupRows += other.RollupRows
}

// Count returns the number of issues recorded for a dataset and kind.
func (r *Report) Count(ds Dataset, kind Kind) int {
	return r.Counts[ds][kind]
}

// Total returns the number of issues recorded across all datasets.
func (r *Report) Total() int {
	total := 0
	for _, byKind := range r.Counts {
		for _, n := range byKind {
			total += n
		}
	}
	return total
}

// Render writes the report as human-readable tables.
func (r *Report) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Data Quality Summary")
	t.AppendHeader(table.Row{"Dataset", "Issue", "Count"})

	datasets := make([]string, 0, len(r.Counts))
	for ds := range r.Counts {
		datasets = append(datasets, string(ds))
	}
	sort.Strings(datasets)
	for _, ds := range datasets {
		byKind := r.Counts[Dataset(ds)]
		kinds := make([]string, 0, len(byKind))
		for kind := range byKind {
			kinds = append(kinds, string(kind))
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			t.AppendRow(table.Row{ds, kind, byKind[Kind(kind)]})
		}
	}
	t.AppendFooter(table.Row{"", "Total", r.Total()})
	t.Render()

	if len(r.Samples) == 0 {
		return
	}

	s := table.NewWriter()
	s.SetOutputMirror(w)
	s.SetStyle(table.StyleLight)
	s.SetTitle("Sample Records")
	s.AppendHeader(table.Row{"Issue", "Key", "Detail"})
	kinds := make([]string, 0, len(r.Samples))
	for kind := range r.Samples {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		for _, is := range r.Samples[Kind(kind)] {
			s.AppendRow(table.Row{kind, is.Key, is.Detail})
		}
	}
	s.Render()
}
