// Package gen produces deterministic sample agriculture datasets with
// intentional quality issues, for demos and end-to-end checks of the
// pipeline's validation and dedup behavior.
package gen

import (
	"fmt"
	"math/rand"

	"github.com/leapstack-labs/cropstat/internal/schema"
)

// Options control the shape of the generated datasets.
type Options struct {
	Seed     int64
	Years    []int
	Counties int // FIPS codes 01001..0100N
	Crops    []string

	// Parcels per county/crop/year combination.
	ParcelsMin int
	ParcelsMax int

	// Clean skips the injected quality issues.
	Clean bool
}

// DefaultOptions mirrors the reference dataset: three years, ten counties,
// three crops, 10-15 parcels per combination.
func DefaultOptions() Options {
	return Options{
		Seed:       42,
		Years:      []int{2023, 2024, 2025},
		Counties:   10,
		Crops:      []string{"corn", "soybeans", "wheat"},
		ParcelsMin: 10,
		ParcelsMax: 15,
	}
}

// Realistic per-crop ranges: yield in bushels per acre, abandonment in
// percent of planted area.
var (
	yieldRanges = map[string][2]float64{
		"corn":     {150, 220},
		"soybeans": {40, 65},
		"wheat":    {45, 75},
	}
	abandonmentRanges = map[string][2]float64{
		"corn":     {1, 8},
		"soybeans": {2, 10},
		"wheat":    {3, 12},
	}
)

// Datasets is a generated pair of input datasets.
type Datasets struct {
	Yields       []schema.CropYieldRecord
	Abandonments []schema.AbandonmentRecord
}

// Generate builds both datasets from a single seeded source, so the same
// options always produce byte-identical data.
func Generate(opts Options) Datasets {
	rng := rand.New(rand.NewSource(opts.Seed))
	fips := make([]string, opts.Counties)
	for i := range fips {
		fips[i] = fmt.Sprintf("%05d", 1001+i)
	}

	return Datasets{
		Yields:       generateYields(rng, opts, fips),
		Abandonments: generateAbandonments(rng, opts, fips),
	}
}

func generateYields(rng *rand.Rand, opts Options, fips []string) []schema.CropYieldRecord {
	var records []schema.CropYieldRecord

	for _, year := range opts.Years {
		for _, fc := range fips {
			for _, crop := range opts.Crops {
				n := opts.ParcelsMin
				if opts.ParcelsMax > opts.ParcelsMin {
					n += rng.Intn(opts.ParcelsMax - opts.ParcelsMin + 1)
				}
				yr := yieldRanges[crop]
				for i := 0; i < n; i++ {
					landArea := round2(uniform(rng, 80, 500))
					plantedArea := round2(landArea * uniform(rng, 0.7, 0.95))
					records = append(records, schema.CropYieldRecord{
						HarvestYear: year,
						CropName:    crop,
						LandID:      landID(rng),
						FIPS:        fc,
						Yield:       ptr(round2(uniform(rng, yr[0], yr[1]))),
						YieldUnits:  schema.YieldUnits,
						LandArea:    ptr(landArea),
						PlantedArea: ptr(plantedArea),
						AreaUnits:   schema.AreaUnits,
					})
				}
			}
		}
	}

	if opts.Clean {
		return records
	}

	// Null yields: two records per year.
	for _, year := range opts.Years {
		for i := 0; i < 2; i++ {
			if idx := pickYear(rng, records, year); idx >= 0 {
				records[idx].Yield = nil
			}
		}
	}

	// Negative yields: up to four records, never overwriting a null.
	negatives := 0
	for _, year := range opts.Years {
		if negatives >= 4 {
			break
		}
		if idx := pickYear(rng, records, year); idx >= 0 && records[idx].Yield != nil {
			records[idx].Yield = ptr(round2(uniform(rng, -50, -10)))
			negatives++
		}
	}

	// Duplicate primary keys: three copies with perturbed non-key fields.
	for i := 0; i < 3; i++ {
		src := records[rng.Intn(len(records))]
		dup := src
		if src.Yield != nil {
			dup.Yield = ptr(round2(*src.Yield * uniform(rng, 0.9, 1.1)))
		}
		if src.PlantedArea != nil {
			dup.PlantedArea = ptr(round2(*src.PlantedArea * uniform(rng, 0.95, 1.05)))
		}
		records = append(records, dup)
	}

	return records
}

func generateAbandonments(rng *rand.Rand, opts Options, fips []string) []schema.AbandonmentRecord {
	// One county/crop/year combination is silently dropped to exercise the
	// referential integrity path.
	missYear := opts.Years[rng.Intn(len(opts.Years))]
	missFIPS := fips[rng.Intn(len(fips))]
	missCrop := opts.Crops[rng.Intn(len(opts.Crops))]

	var records []schema.AbandonmentRecord
	for _, year := range opts.Years {
		for _, fc := range fips {
			for _, crop := range opts.Crops {
				if !opts.Clean && year == missYear && fc == missFIPS && crop == missCrop {
					continue
				}
				ar := abandonmentRanges[crop]
				pct := round2(uniform(rng, ar[0], ar[1]))
				countyPlanted := uniform(rng, 5000, 20000)
				records = append(records, schema.AbandonmentRecord{
					HarvestYear:        year,
					CropName:           crop,
					FIPS:               fc,
					AbandonedArea:      ptr(round2(countyPlanted * (pct / 100))),
					AbandonmentPercent: ptr(pct),
				})
			}
		}
	}

	if opts.Clean {
		return records
	}

	// Abandonment percent over 100 in two years.
	for _, year := range sampleYears(rng, opts.Years, 2) {
		if idx := pickAbandonmentYear(rng, records, year); idx >= 0 {
			records[idx].AbandonmentPercent = ptr(round2(uniform(rng, 105, 150)))
		}
	}

	// Duplicate primary keys in two years.
	for _, year := range sampleYears(rng, opts.Years, 2) {
		if idx := pickAbandonmentYear(rng, records, year); idx >= 0 {
			dup := records[idx]
			if dup.AbandonmentPercent != nil {
				dup.AbandonmentPercent = ptr(round2(*dup.AbandonmentPercent * uniform(rng, 0.8, 1.2)))
			}
			records = append(records, dup)
		}
	}

	return records
}

func landID(rng *rand.Rand) string {
	const hex = "0123456789ABCDEF"
	b := make([]byte, 8)
	for i := range b {
		b[i] = hex[rng.Intn(len(hex))]
	}
	return "PARCEL-" + string(b)
}

func pickYear(rng *rand.Rand, records []schema.CropYieldRecord, year int) int {
	var idxs []int
	for i := range records {
		if records[i].HarvestYear == year {
			idxs = append(idxs, i)
		}
	}
	if len(idxs) == 0 {
		return -1
	}
	return idxs[rng.Intn(len(idxs))]
}

func pickAbandonmentYear(rng *rand.Rand, records []schema.AbandonmentRecord, year int) int {
	var idxs []int
	for i := range records {
		if records[i].HarvestYear == year {
			idxs = append(idxs, i)
		}
	}
	if len(idxs) == 0 {
		return -1
	}
	return idxs[rng.Intn(len(idxs))]
}

func sampleYears(rng *rand.Rand, years []int, n int) []int {
	if n >= len(years) {
		n = len(years)
	}
	perm := rng.Perm(len(years))
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = years[perm[i]]
	}
	return out
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func round2(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}

func ptr(v float64) *float64 { return &v }
