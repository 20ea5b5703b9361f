package data

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allScores() Filter {
	return Filter{MinScore: LeadScoreMin, MaxScore: LeadScoreMax}
}

func TestFilter_Validate(t *testing.T) {
	tests := []struct {
		name    string
		filter  Filter
		wantErr bool
	}{
		{"default", DefaultFilter(), false},
		{"full range", allScores(), false},
		{"with industries", Filter{Industries: []string{IndustryCorporate}, MinScore: 0, MaxScore: 100}, false},
		{"inverted", Filter{MinScore: 90, MaxScore: 10}, true},
		{"above max", Filter{MinScore: 0, MaxScore: 101}, true},
		{"below min", Filter{MinScore: -1, MaxScore: 100}, true},
		{"unknown industry", Filter{Industries: []string{"Mining"}, MinScore: 0, MaxScore: 100}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGetSummary(t *testing.T) {
	db, ds := setupLoadedDB(t)
	th := DefaultThresholds()
	f := DefaultFilter()

	var total, hot, sum int
	for _, l := range ds.Leads {
		if l.LeadScore < f.MinScore || l.LeadScore > f.MaxScore {
			continue
		}
		total++
		sum += l.LeadScore
		if l.LeadScore >= th.HotLeadScore {
			hot++
		}
	}
	var highValue, atRisk int
	for _, c := range ds.Customers {
		if Contains(HighValueSegments, c.Segment) {
			highValue++
		}
		if c.ChurnProbability > th.ChurnRisk {
			atRisk++
		}
	}

	s, err := GetSummary(db, f, th)
	require.NoError(t, err)
	assert.Equal(t, total, s.TotalLeads)
	assert.Equal(t, hot, s.HotLeads)
	assert.InDelta(t, float64(sum)/float64(total), s.AvgLeadScore, 1e-9)
	assert.Equal(t, highValue, s.HighValueCustomers)
	assert.Equal(t, atRisk, s.AtRiskCustomers)
}

func TestGetSummary_IndustryFilter(t *testing.T) {
	db, ds := setupLoadedDB(t)
	f := Filter{Industries: []string{IndustryHealthcare}, MinScore: 0, MaxScore: 100}

	var leads, highValue int
	for _, l := range ds.Leads {
		if l.Industry == IndustryHealthcare {
			leads++
		}
	}
	for _, c := range ds.Customers {
		if c.Industry == IndustryHealthcare && Contains(HighValueSegments, c.Segment) {
			highValue++
		}
	}

	s, err := GetSummary(db, f, DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, leads, s.TotalLeads)
	assert.Equal(t, highValue, s.HighValueCustomers)
}

func TestGetSummary_EmptyDB(t *testing.T) {
	db := setupTestDB(t)
	s, err := GetSummary(db, DefaultFilter(), DefaultThresholds())
	require.NoError(t, err)
	assert.Equal(t, 0, s.TotalLeads)
	assert.Equal(t, 0.0, s.AvgLeadScore)
	assert.Equal(t, 0, s.AtRiskCustomers)
}

func TestGetSummary_NilDB(t *testing.T) {
	_, err := GetSummary(nil, DefaultFilter(), DefaultThresholds())
	assert.Error(t, err)
}

func TestGetLeadScoreDistribution(t *testing.T) {
	db, ds := setupLoadedDB(t)

	s, err := GetLeadScoreDistribution(db, allScores())
	require.NoError(t, err)
	require.Equal(t, len(s.Labels), len(s.Data))

	total := 0
	for _, n := range s.Data {
		total += n
	}
	assert.Equal(t, len(ds.Leads), total)
	assert.True(t, sort.SliceIsSorted(s.Labels, func(i, j int) bool {
		return len(s.Labels[i]) < len(s.Labels[j]) || (len(s.Labels[i]) == len(s.Labels[j]) && s.Labels[i] < s.Labels[j])
	}))
}

func TestGetLeadSourceCounts(t *testing.T) {
	db, ds := setupLoadedDB(t)

	items, err := GetLeadSourceCounts(db, allScores())
	require.NoError(t, err)

	total := 0
	for i, it := range items {
		assert.True(t, Contains(LeadSources, it.Name))
		if i > 0 {
			assert.GreaterOrEqual(t, items[i-1].Count, it.Count)
		}
		total += it.Count
	}
	assert.Equal(t, len(ds.Leads), total)
}

func TestGetHotLeads(t *testing.T) {
	db, _ := setupLoadedDB(t)
	th := DefaultThresholds()

	leads, err := GetHotLeads(db, DefaultFilter(), th)
	require.NoError(t, err)
	require.NotEmpty(t, leads)
	for i, l := range leads {
		assert.GreaterOrEqual(t, l.LeadScore, th.HotLeadScore)
		if i > 0 {
			assert.GreaterOrEqual(t, leads[i-1].LeadScore, l.LeadScore)
		}
	}
}

func TestGetHotLeads_ScoreRangeExcludesHot(t *testing.T) {
	db, _ := setupLoadedDB(t)

	leads, err := GetHotLeads(db, Filter{MinScore: 0, MaxScore: 50}, DefaultThresholds())
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestGetAlerts(t *testing.T) {
	db, _ := setupLoadedDB(t)
	th := Thresholds{HotLeadScore: 60, ChurnRisk: 0.5, AlertLimit: 3}

	a, err := GetAlerts(db, allScores(), th)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(a.PriorityLeads), th.AlertLimit)
	assert.LessOrEqual(t, len(a.RiskCustomers), th.AlertLimit)
	for _, l := range a.PriorityLeads {
		assert.GreaterOrEqual(t, l.LeadScore, th.HotLeadScore)
		assert.Contains(t, []string{StatusNew, StatusContacted}, l.Status)
	}
	for _, c := range a.RiskCustomers {
		assert.Greater(t, c.ChurnProbability, th.ChurnRisk)
	}
}

func TestGetCLVBySegment(t *testing.T) {
	db, ds := setupLoadedDB(t)

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, c := range ds.Customers {
		sums[c.Segment] += c.PredictedCLV
		counts[c.Segment]++
	}

	s, err := GetCLVBySegment(db, Filter{})
	require.NoError(t, err)
	require.Len(t, s.Labels, len(counts))
	assert.True(t, sort.StringsAreSorted(s.Labels))
	for i, seg := range s.Labels {
		assert.InDelta(t, sums[seg]/float64(counts[seg]), s.Data[i], 1e-6)
	}
}

func TestGetChurnDistribution(t *testing.T) {
	db, ds := setupLoadedDB(t)

	s, err := GetChurnDistribution(db, Filter{})
	require.NoError(t, err)

	total := 0
	for _, n := range s.Data {
		total += n
	}
	assert.Equal(t, len(ds.Customers), total)
	assert.True(t, sort.StringsAreSorted(s.Labels))
}

func TestGetHighValueCustomers(t *testing.T) {
	db, _ := setupLoadedDB(t)

	list, err := GetHighValueCustomers(db, Filter{Industries: []string{IndustryCorporate, IndustryEducation}})
	require.NoError(t, err)
	for i, c := range list {
		assert.Contains(t, HighValueSegments, c.Segment)
		assert.Contains(t, []string{IndustryCorporate, IndustryEducation}, c.Industry)
		if i > 0 {
			assert.GreaterOrEqual(t, list[i-1].PredictedCLV, c.PredictedCLV)
		}
	}
}

func TestGetIndustries(t *testing.T) {
	db, _ := setupLoadedDB(t)

	list, err := GetIndustries(db)
	require.NoError(t, err)
	assert.NotEmpty(t, list)
	assert.True(t, sort.StringsAreSorted(list))
	for _, i := range list {
		assert.Contains(t, Industries, i)
	}
}

func TestGetPerformance(t *testing.T) {
	p := GetPerformance()
	assert.Len(t, p.Months, 6)
	assert.Len(t, p.ConversionRate, len(p.Months))
	assert.Len(t, p.SalesCycle, len(p.Months))
	assert.Equal(t, 9.2, p.ConversionRate[len(p.ConversionRate)-1])
	assert.Len(t, p.Summary, 3)
}
