package data

// PerformanceSummary is a headline figure with its change over the period.
type PerformanceSummary struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
	Delta string `json:"delta" yaml:"delta"`
}

// Performance holds the marketing performance panel.
type Performance struct {
	Months         []string             `json:"months" yaml:"months"`
	ConversionRate []float64            `json:"conversion_rate" yaml:"conversionRate"`
	SalesCycle     []float64            `json:"sales_cycle" yaml:"salesCycle"`
	Summary        []PerformanceSummary `json:"summary" yaml:"summary"`
}

// GetPerformance returns the simulated marketing performance series. The
// figures are fixed illustrations and do not depend on the snapshot.
func GetPerformance() *Performance {
	return &Performance{
		Months:         []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun"},
		ConversionRate: []float64{7.5, 8.2, 8.8, 9.1, 9.5, 9.2},
		SalesCycle:     []float64{12.0, 11.5, 11.0, 10.8, 10.5, 10.2},
		Summary: []PerformanceSummary{
			{Label: "Current Conversion Rate", Value: "9.2%", Delta: "+1.7%"},
			{Label: "Current Sales Cycle", Value: "10.2 months", Delta: "-1.8 months"},
			{Label: "ROI Improvement", Value: "22%", Delta: "+22%"},
		},
	}
}
