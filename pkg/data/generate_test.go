package data

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeDataset(t *testing.T, ds *Dataset) ([]byte, []byte) {
	t.Helper()
	var leads, customers bytes.Buffer
	require.NoError(t, WriteLeads(&leads, ds.Leads))
	require.NoError(t, WriteCustomers(&customers, ds.Customers))
	return leads.Bytes(), customers.Bytes()
}

func TestGenerate_Deterministic(t *testing.T) {
	a := Generate(testSeed, testNow)
	b := Generate(testSeed, testNow)

	al, ac := encodeDataset(t, a)
	bl, bc := encodeDataset(t, b)
	assert.Equal(t, al, bl)
	assert.Equal(t, ac, bc)
	assert.Equal(t, a, b)
}

func TestGenerate_SeedChangesOutput(t *testing.T) {
	a := Generate(testSeed, testNow)
	b := Generate(testSeed+1, testNow)
	assert.NotEqual(t, a, b)
}

func TestGenerate_Counts(t *testing.T) {
	ds := Generate(testSeed, testNow)
	assert.Len(t, ds.Leads, LeadCountDefault)
	assert.Len(t, ds.Customers, CustomerCountDefault)

	ds = GenerateN(testSeed, testNow, 3, 0)
	assert.Len(t, ds.Leads, 3)
	assert.Empty(t, ds.Customers)
}

func TestGenerate_FieldDomains(t *testing.T) {
	ds := Generate(testSeed, testNow)

	ids := make(map[string]struct{})
	for _, l := range ds.Leads {
		require.NoError(t, l.Validate())
		assert.GreaterOrEqual(t, l.LeadScore, leadScoreLow)
		assert.LessOrEqual(t, l.LeadScore, leadScoreHigh)
		age := testNow.Sub(l.LastActivity)
		assert.GreaterOrEqual(t, age, 24*time.Hour)
		assert.LessOrEqual(t, age, leadActivityMaxAge*24*time.Hour)
		ids[l.ID] = struct{}{}
	}
	assert.Len(t, ids, len(ds.Leads))
	assert.Equal(t, "LD0000", ds.Leads[0].ID)
	assert.Equal(t, "Client 1", ds.Leads[0].Company)

	for _, c := range ds.Customers {
		require.NoError(t, c.Validate())
		assert.GreaterOrEqual(t, c.TotalSpent, float64(totalSpentLow))
		assert.LessOrEqual(t, c.TotalSpent, float64(totalSpentHigh))
		assert.GreaterOrEqual(t, c.PredictedCLV, float64(clvLow))
		assert.LessOrEqual(t, c.PredictedCLV, float64(clvHigh))
		assert.GreaterOrEqual(t, c.ChurnProbability, churnLow)
		assert.LessOrEqual(t, c.ChurnProbability, churnHigh)
		assert.Equal(t, c.ChurnProbability, round2(c.ChurnProbability))
		age := testNow.Sub(c.LastPurchase)
		assert.LessOrEqual(t, age, purchaseMaxAge*24*time.Hour)
	}
	assert.Equal(t, "CUST0099", ds.Customers[99].ID)
	assert.Equal(t, "Existing Client 100", ds.Customers[99].Company)
}

func TestGenerate_EngagementWeights(t *testing.T) {
	ds := GenerateN(testSeed, testNow, 10000, 0)

	counts := make(map[string]int)
	for _, l := range ds.Leads {
		counts[l.EngagementLevel]++
	}
	n := float64(len(ds.Leads))
	assert.InDelta(t, 0.3, float64(counts[EngagementHigh])/n, 0.03)
	assert.InDelta(t, 0.5, float64(counts[EngagementMedium])/n, 0.03)
	assert.InDelta(t, 0.2, float64(counts[EngagementLow])/n, 0.03)
}

func TestGenerate_NormalizesNow(t *testing.T) {
	local := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2025, time.June, 30, 17, 30, 0, 123456789, local)
	ds := Generate(testSeed, now)
	for _, l := range ds.Leads {
		assert.Equal(t, time.UTC, l.LastActivity.Location())
		assert.Zero(t, l.LastActivity.Nanosecond())
	}
}
