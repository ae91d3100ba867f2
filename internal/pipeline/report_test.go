package pipeline

import (
	"fmt"
	"strings"
	"testing"
)

func TestReport_CountsAndSamples(t *testing.T) {
	r := NewReport(2)
	for i := 0; i < 5; i++ {
		r.Add(Issue{
			Dataset: DatasetYield,
			Kind:    KindNegativeValue,
			Key:     fmt.Sprintf("(2022, corn, L%d)", i),
			Detail:  "yield=-1",
		})
	}
	r.Add(Issue{Dataset: DatasetAbandonment, Kind: KindOutOfRange, Key: "(2022, 01001, corn)", Detail: "abandonment_percent=123"})

	if got := r.Count(DatasetYield, KindNegativeValue); got != 5 {
		t.Errorf("count = %d, want 5", got)
	}
	if got := r.Count(DatasetAbandonment, KindOutOfRange); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
	if r.Total() != 6 {
		t.Errorf("total = %d, want 6", r.Total())
	}
	if got := len(r.Samples[KindNegativeValue]); got != 2 {
		t.Errorf("samples must be bounded at 2, got %d", got)
	}
}

func TestReport_Merge(t *testing.T) {
	a := NewReport(3)
	a.Add(Issue{Dataset: DatasetYield, Kind: KindMissingField, Key: "k1"})
	a.InputYieldRows = 10
	a.FieldRows = 9

	b := NewReport(3)
	b.Add(Issue{Dataset: DatasetYield, Kind: KindMissingField, Key: "k2"})
	b.Add(Issue{Dataset: DatasetCountyRollup, Kind: KindUndefinedYield, Key: "k3"})
	b.InputYieldRows = 20
	b.FieldRows = 18

	a.Merge(b)
	if got := a.Count(DatasetYield, KindMissingField); got != 2 {
		t.Errorf("merged count = %d, want 2", got)
	}
	if a.Total() != 3 {
		t.Errorf("merged total = %d, want 3", a.Total())
	}
	if a.InputYieldRows != 30 || a.FieldRows != 27 {
		t.Errorf("row counts not merged: %d, %d", a.InputYieldRows, a.FieldRows)
	}
}

func TestReport_RenderIncludesKindsAndTotal(t *testing.T) {
	r := NewReport(0)
	r.Add(Issue{Dataset: DatasetYield, Kind: KindDuplicateDiscarded, Key: "(2022, corn, L1)", Detail: "2 records share this key"})

	var sb strings.Builder
	r.Render(&sb)
	out := sb.String()
	for _, want := range []string{"DuplicateDiscarded", "crop_yield", "Total"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered report missing %q:\n%s", want, out)
		}
	}
}
