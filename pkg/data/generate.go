package data

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const (
	LeadCountDefault     = 200
	CustomerCountDefault = 100

	leadScoreLow       = 10
	leadScoreHigh      = 95
	leadActivityMaxAge = 90
	totalSpentLow      = 500000
	totalSpentHigh     = 5000000
	clvLow             = 1000000
	clvHigh            = 10000000
	churnLow           = 0.1
	churnHigh          = 0.8
	purchaseMaxAge     = 365
)

// engagementWeights follow the order of EngagementLevels.
var engagementWeights = []float64{0.3, 0.5, 0.2}

// Generate builds the default-sized synthetic snapshot. The same seed and
// now always produce the same dataset.
func Generate(seed uint64, now time.Time) *Dataset {
	return GenerateN(seed, now, LeadCountDefault, CustomerCountDefault)
}

// GenerateN builds a synthetic snapshot with the given row counts.
func GenerateN(seed uint64, now time.Time, leads, customers int) *Dataset {
	r := rand.New(rand.NewPCG(seed, seed))
	now = now.UTC().Truncate(time.Second)

	ds := &Dataset{
		Leads:     make([]*Lead, 0, leads),
		Customers: make([]*Customer, 0, customers),
	}

	for i := 0; i < leads; i++ {
		ds.Leads = append(ds.Leads, &Lead{
			ID:              fmt.Sprintf("LD%04d", i),
			Company:         fmt.Sprintf("Client %d", i+1),
			Industry:        pick(r, Industries),
			LeadSource:      pick(r, LeadSources),
			ContactTitle:    pick(r, ContactTitles),
			LeadScore:       between(r, leadScoreLow, leadScoreHigh),
			EngagementLevel: pickWeighted(r, EngagementLevels, engagementWeights),
			LastActivity:    now.AddDate(0, 0, -between(r, 1, leadActivityMaxAge)),
			Status:          pick(r, LeadStatuses),
		})
	}

	for i := 0; i < customers; i++ {
		ds.Customers = append(ds.Customers, &Customer{
			ID:               fmt.Sprintf("CUST%04d", i),
			Company:          fmt.Sprintf("Existing Client %d", i+1),
			Industry:         pick(r, Industries),
			TotalSpent:       float64(between(r, totalSpentLow, totalSpentHigh)),
			PredictedCLV:     float64(between(r, clvLow, clvHigh)),
			ChurnProbability: round2(churnLow + r.Float64()*(churnHigh-churnLow)),
			Segment:          pick(r, Segments),
			LastPurchase:     now.AddDate(0, 0, -between(r, 1, purchaseMaxAge)),
		})
	}

	return ds
}

func pick(r *rand.Rand, list []string) string {
	return list[r.IntN(len(list))]
}

// between returns an int in [lo, hi].
func between(r *rand.Rand, lo, hi int) int {
	return lo + r.IntN(hi-lo+1)
}

func pickWeighted(r *rand.Rand, list []string, weights []float64) string {
	var total float64
	for _, w := range weights {
		total += w
	}
	x := r.Float64() * total
	for i, w := range weights {
		if x < w {
			return list[i]
		}
		x -= w
	}
	return list[len(list)-1]
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
