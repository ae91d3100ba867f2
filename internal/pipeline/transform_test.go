package pipeline

import (
	"testing"

	"github.com/leapstack-labs/cropstat/internal/schema"
)

func TestTransform_DerivesProduction(t *testing.T) {
	ab := goodAbandonment()
	out, issues := Transform([]Match{{Yield: goodYield(), Abandonment: &ab, Outcome: OutcomeMatched}})
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	f := out[0]
	if f.AbandonedArea != 9.0 {
		t.Errorf("abandoned_area = %v, want 9.0", f.AbandonedArea)
	}
	if f.CropProduction != 12150.0 {
		t.Errorf("crop_production = %v, want 12150.0", f.CropProduction)
	}
	if f.YieldUnits != schema.YieldUnits || f.AreaUnits != schema.AreaUnits {
		t.Errorf("unit columns must carry through unchanged, got %q %q", f.YieldUnits, f.AreaUnits)
	}
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestTransform_FullAbandonmentYieldsZeroProduction(t *testing.T) {
	ab := goodAbandonment()
	ab.AbandonmentPercent = f64(100)

	out, issues := Transform([]Match{{Yield: goodYield(), Abandonment: &ab, Outcome: OutcomeMatched}})
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	if out[0].AbandonedArea != out[0].PlantedArea {
		t.Errorf("abandoned_area = %v, want planted_area %v", out[0].AbandonedArea, out[0].PlantedArea)
	}
	if out[0].CropProduction != 0 {
		t.Errorf("crop_production = %v, want 0", out[0].CropProduction)
	}
	if len(issues) != 0 {
		t.Errorf("boundary percent must not clamp, got %v", issues)
	}
}

func TestTransform_ZeroFilledTreatsAbandonmentAsZero(t *testing.T) {
	out, issues := Transform([]Match{{Yield: goodYield(), Outcome: OutcomeZeroFilled}})
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	if out[0].AbandonedArea != 0 {
		t.Errorf("abandoned_area = %v, want 0", out[0].AbandonedArea)
	}
	if out[0].CropProduction != 90*150 {
		t.Errorf("crop_production = %v, want %v", out[0].CropProduction, 90.0*150)
	}
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %v", issues)
	}
}

func TestTransform_DroppedProducesNoRow(t *testing.T) {
	out, issues := Transform([]Match{{Yield: goodYield(), Outcome: OutcomeDropped}})
	if len(out) != 0 {
		t.Errorf("dropped match must not produce a row, got %+v", out)
	}
	if len(issues) != 0 {
		t.Errorf("drop is issued at resolution, not transform; got %v", issues)
	}
}

func TestTransform_ClampsOutOfContractPercent(t *testing.T) {
	// Simulates an upstream invariant violation slipping through.
	ab := goodAbandonment()
	ab.AbandonmentPercent = f64(150)

	out, issues := Transform([]Match{{Yield: goodYield(), Abandonment: &ab, Outcome: OutcomeMatched}})
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	if out[0].AbandonedArea != out[0].PlantedArea {
		t.Errorf("abandoned_area = %v, want clamp to planted_area %v", out[0].AbandonedArea, out[0].PlantedArea)
	}
	if out[0].CropProduction != 0 {
		t.Errorf("crop_production = %v, want 0 after clamping", out[0].CropProduction)
	}
	if len(issues) != 1 || issues[0].Kind != KindDerivedValueClamped {
		t.Fatalf("expected one DerivedValueClamped issue, got %v", issues)
	}
}
