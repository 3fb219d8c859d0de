// Package stats derives market statistics from canonical transactions. It
// does no I/O and keeps no state between calls.
package stats

import (
	"math"
	"sort"

	"github.com/yourorg/commune-insights/dvf"
	"github.com/yourorg/commune-insights/geo"
)

type CategoryPriceStats struct {
	Count  int     `json:"count"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Avg    int     `json:"avg"`
	Median float64 `json:"median"`
}

type YearlyStat struct {
	Year           int `json:"year"`
	Count          int `json:"count"`
	AvgPricePerSqm int `json:"avg_price_per_sqm"`
}

type SurfaceBucket struct {
	Label   string `json:"label"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

// Bucket bounds in m², lower bound inclusive. The last bucket is open.
var surfaceBounds = [6]struct {
	label  string
	lo, hi float64
}{
	{"< 30 m²", 0, 30},
	{"30-60 m²", 30, 60},
	{"60-80 m²", 60, 80},
	{"80-100 m²", 80, 100},
	{"100-120 m²", 100, 120},
	{"≥ 120 m²", 120, math.Inf(1)},
}

type Bundle struct {
	PriceStats map[dvf.Category]CategoryPriceStats `json:"price_stats"`
	Yearly     []YearlyStat                        `json:"yearly"`
	Surface    [6]SurfaceBucket                    `json:"surface"`
	Density    int                                 `json:"density"`
	ValidCount int                                 `json:"valid_count"`
	TotalCount int                                 `json:"total_count"`
}

// Evolution is the rounded percentage change of the average price per m²
// between the first and last year. ok is false with fewer than two years
// or a zero first average.
func (b Bundle) Evolution() (pct int, ok bool) {
	if len(b.Yearly) < 2 {
		return 0, false
	}
	first, last := b.Yearly[0].AvgPricePerSqm, b.Yearly[len(b.Yearly)-1].AvgPricePerSqm
	if first == 0 {
		return 0, false
	}
	return Round(float64(last-first) / float64(first) * 100), true
}

// Compute builds the bundle for one commune.
func Compute(txs []dvf.Transaction, m geo.Municipality) Bundle {
	valid := make([]dvf.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.Valid() {
			valid = append(valid, t)
		}
	}

	b := Bundle{
		PriceStats: categoryStats(valid),
		Yearly:     yearly(valid),
		Surface:    surface(valid),
		Density:    Density(m.Population, m.AreaHectares),
		ValidCount: len(valid),
		TotalCount: len(txs),
	}
	return b
}

// Density is inhabitants per km², 0 when the area is unknown.
func Density(population int, hectares float64) int {
	if hectares <= 0 {
		return 0
	}
	return Round(float64(population) / (hectares / 100))
}

// Round is half-up rounding.
func Round(x float64) int {
	return int(math.Floor(x + 0.5))
}

func categoryStats(valid []dvf.Transaction) map[dvf.Category]CategoryPriceStats {
	groups := map[dvf.Category][]int{}
	for _, t := range valid {
		groups[t.Category] = append(groups[t.Category], t.PricePerSqmEUR)
	}
	out := make(map[dvf.Category]CategoryPriceStats, len(groups))
	for cat, prices := range groups {
		out[cat] = summarize(prices)
	}
	return out
}

func summarize(prices []int) CategoryPriceStats {
	sorted := append([]int(nil), prices...)
	sort.Ints(sorted)
	sum := 0
	for _, p := range sorted {
		sum += p
	}
	n := len(sorted)
	return CategoryPriceStats{
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Avg:    Round(float64(sum) / float64(n)),
		Median: Median(sorted),
	}
}

// Median expects sorted input.
func Median(sorted []int) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return float64(sorted[n/2])
	}
	return float64(sorted[n/2-1]+sorted[n/2]) / 2
}

// yearly skips transactions whose date could not be parsed.
func yearly(valid []dvf.Transaction) []YearlyStat {
	type acc struct{ count, sum int }
	byYear := map[int]*acc{}
	for _, t := range valid {
		if t.Date.IsZero() {
			continue
		}
		y := t.Date.Year()
		a, ok := byYear[y]
		if !ok {
			a = &acc{}
			byYear[y] = a
		}
		a.count++
		a.sum += t.PricePerSqmEUR
	}
	out := make([]YearlyStat, 0, len(byYear))
	for y, a := range byYear {
		out = append(out, YearlyStat{Year: y, Count: a.count, AvgPricePerSqm: Round(float64(a.sum) / float64(a.count))})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

func surface(valid []dvf.Transaction) [6]SurfaceBucket {
	var out [6]SurfaceBucket
	for i, b := range surfaceBounds {
		out[i].Label = b.label
	}
	for _, t := range valid {
		for i, b := range surfaceBounds {
			if t.AreaSqm >= b.lo && t.AreaSqm < b.hi {
				out[i].Count++
				break
			}
		}
	}
	total := len(valid)
	if total == 0 {
		total = 1
	}
	for i := range out {
		out[i].Percent = Round(float64(out[i].Count) / float64(total) * 100)
	}
	return out
}
