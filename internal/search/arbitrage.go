package search

import (
	"cmp"
	"math"
	"slices"

	"github.com/alex-user-go/fares/internal/search/types"
)

// Summary is the ranked, annotated output of Aggregate.
type Summary struct {
	Flights            []types.Flight
	BestPrice          *float64
	BestSavingsPercent *float64
}

// Aggregate ranks flights by ascending price, keeping input order for
// ties, and annotates every flight with savings against baseline. With a
// nil baseline no flight carries savings.
func Aggregate(flights []types.Flight, baseline *float64) Summary {
	sorted := slices.Clone(flights)
	slices.SortStableFunc(sorted, func(a, b types.Flight) int {
		return cmp.Compare(a.Price, b.Price)
	})

	if baseline != nil && *baseline > 0 {
		for i := range sorted {
			sorted[i].Savings = savingsAgainst(*baseline, sorted[i].Price)
		}
	}

	s := Summary{Flights: sorted}
	if len(sorted) == 0 {
		return s
	}

	best := sorted[0].Price
	s.BestPrice = &best
	if sorted[0].Savings != nil {
		pct := sorted[0].Savings.Percent
		s.BestSavingsPercent = &pct
	}
	return s
}

func savingsAgainst(baseline, price float64) *types.Savings {
	diff := baseline - price
	return &types.Savings{
		OriginalPrice: baseline,
		Amount:        round(diff, 2),
		Percent:       round(diff/baseline*100, 1),
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
