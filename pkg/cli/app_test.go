package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mchmarny/leadpulse/pkg/config"
	"github.com/mchmarny/leadpulse/pkg/data"
	"github.com/mchmarny/leadpulse/pkg/score"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runApp runs the CLI in-process against dir and returns its output.
func runApp(t *testing.T, dir, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	app.Reader = strings.NewReader(stdin)
	err := app.Run(context.Background(), append([]string{appName, "--" + dirFlagName, dir}, args...))
	return out.String(), err
}

func runJSON[T any](t *testing.T, dir string, args ...string) *T {
	t.Helper()
	out, err := runApp(t, dir, "", args...)
	require.NoError(t, err)
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return &v
}

func TestApp_CreatesConfigAndDatabase(t *testing.T) {
	dir := t.TempDir()
	runJSON[stateResult](t, dir, "data", "state")

	for _, name := range []string{"config.yaml", data.DataFileName} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestApp_InvalidFormat(t *testing.T) {
	_, err := runApp(t, t.TempDir(), "", "--format", "xml", "data", "state")
	assert.Error(t, err)
}

func TestDataGenerate(t *testing.T) {
	dir := t.TempDir()

	res := runJSON[snapshotResult](t, dir, "data", "generate", "--seed", "7", "--leads", "10", "--customers", "5")
	assert.Equal(t, data.SourceGenerated, res.Source)
	assert.Equal(t, 10, res.Leads)
	assert.Equal(t, 5, res.Customers)
	assert.Equal(t, filepath.Join(dir, config.CacheDirDefault), res.Dir)

	for _, name := range []string{data.LeadsFileName, data.CustomersFileName} {
		_, err := os.Stat(filepath.Join(res.Dir, name))
		assert.NoError(t, err, name)
	}

	state := runJSON[stateResult](t, dir, "data", "state")
	require.NotNil(t, state.Snapshot)
	assert.Equal(t, int64(10), state.Counts["lead"])
	assert.Equal(t, int64(5), state.Counts["customer"])
}

func TestDataGenerate_NegativeCount(t *testing.T) {
	_, err := runApp(t, t.TempDir(), "", "data", "generate", "--leads=-1")
	assert.ErrorIs(t, err, data.ErrInvalidInput)
}

func TestDataLoad(t *testing.T) {
	dir := t.TempDir()

	res := runJSON[snapshotResult](t, dir, "data", "load")
	assert.Equal(t, data.SourceGenerated, res.Source)
	assert.Equal(t, data.LeadCountDefault, res.Leads)
	assert.Equal(t, data.CustomerCountDefault, res.Customers)

	res = runJSON[snapshotResult](t, dir, "data", "load")
	assert.Equal(t, data.SourceCache, res.Source)
	assert.Equal(t, data.LeadCountDefault, res.Leads)
}

func TestDataLoad_MalformedCache(t *testing.T) {
	dir := t.TempDir()
	runJSON[snapshotResult](t, dir, "data", "load")

	p := filepath.Join(dir, config.CacheDirDefault, data.CustomersFileName)
	require.NoError(t, os.WriteFile(p, []byte("not,a,customer\n"), 0600))

	_, err := runApp(t, dir, "", "data", "load")
	assert.ErrorIs(t, err, data.ErrDataUnavailable)
}

func TestDataState_Empty(t *testing.T) {
	state := runJSON[stateResult](t, t.TempDir(), "data", "state")
	assert.Nil(t, state.Snapshot)
	assert.Equal(t, int64(0), state.Counts["lead"])
}

func TestScoreCLV(t *testing.T) {
	dir := t.TempDir()

	res := runJSON[clvResult](t, dir, "score", "clv")
	assert.Equal(t, score.DefaultCLVParams(), res.Params)
	assert.InDelta(t, 750000.0, res.CLV, 1e-6)

	res = runJSON[clvResult](t, dir, "score", "clv", "--aov", "1000")
	assert.InDelta(t, 1500.0, res.CLV, 1e-9)

	_, err := runApp(t, dir, "", "score", "clv", "--margin=-1")
	assert.ErrorIs(t, err, score.ErrInvalidInput)
}

func TestScoreChurn(t *testing.T) {
	dir := t.TempDir()

	res := runJSON[churnResult](t, dir, "score", "churn")
	assert.InDelta(t, (90.0/365.0)*0.5, res.ChurnProbability, 1e-9)

	res = runJSON[churnResult](t, dir, "score", "churn", "--days", "365", "--frequency", "1")
	assert.Equal(t, score.ChurnProbabilityCap, res.ChurnProbability)

	_, err := runApp(t, dir, "", "score", "churn", "--days=-5")
	assert.ErrorIs(t, err, score.ErrInvalidInput)
}

func TestScoreLead(t *testing.T) {
	dir := t.TempDir()

	a := runJSON[leadScoreResult](t, dir, "score", "lead", "--industry", data.IndustryEducation, "--seed", "3")
	b := runJSON[leadScoreResult](t, dir, "score", "lead", "--industry", data.IndustryEducation, "--seed", "3")
	assert.Equal(t, a.LeadScore, b.LeadScore)
	assert.GreaterOrEqual(t, a.LeadScore, score.LeadScoreMin)
	assert.Less(t, a.LeadScore, score.LeadScoreMax)
	assert.Equal(t, data.IndustryEducation, a.Attributes.Industry)

	_, err := runApp(t, dir, "", "score", "lead", "--days=-1")
	assert.ErrorIs(t, err, score.ErrInvalidInput)
}

func TestInsightsSummary(t *testing.T) {
	dir := t.TempDir()

	s := runJSON[data.Summary](t, dir, "insights", "summary", "--min-score", "0", "--max-score", "100")
	assert.Equal(t, data.LeadCountDefault, s.TotalLeads)
	assert.LessOrEqual(t, s.HotLeads, s.TotalLeads)
	assert.Greater(t, s.AvgLeadScore, 0.0)

	one := runJSON[data.Summary](t, dir, "insights", "summary", "--industry", data.IndustryCorporate, "--min-score", "0")
	assert.Less(t, one.TotalLeads, s.TotalLeads)
}

func TestInsightsSummary_InvalidFilter(t *testing.T) {
	dir := t.TempDir()

	_, err := runApp(t, dir, "", "insights", "summary", "--min-score", "90", "--max-score", "10")
	assert.ErrorIs(t, err, data.ErrInvalidInput)

	_, err = runApp(t, dir, "", "insights", "summary", "--industry", "Mining")
	assert.ErrorIs(t, err, data.ErrInvalidInput)
}

func TestInsightsAlerts(t *testing.T) {
	a := runJSON[data.Alerts](t, t.TempDir(), "insights", "alerts")
	assert.LessOrEqual(t, len(a.PriorityLeads), data.AlertLimitDefault)
	assert.LessOrEqual(t, len(a.RiskCustomers), data.AlertLimitDefault)
	for _, c := range a.RiskCustomers {
		assert.Greater(t, c.ChurnProbability, data.ChurnRiskDefault)
	}
}

func TestFormatYAML(t *testing.T) {
	out, err := runApp(t, t.TempDir(), "", "--format", "yaml", "score", "clv")
	require.NoError(t, err)
	assert.Contains(t, out, "clv: 750000")
	assert.Contains(t, out, "avgOrderValue: 500000")
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	runJSON[snapshotResult](t, dir, "data", "load")

	out, err := runApp(t, dir, "n\n", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted.")
	_, err = os.Stat(filepath.Join(dir, config.CacheDirDefault, data.LeadsFileName))
	assert.NoError(t, err)

	out, err = runApp(t, dir, "y\n", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Reset complete.")
	_, err = os.Stat(filepath.Join(dir, config.CacheDirDefault, data.LeadsFileName))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = runApp(t, dir, "", "reset", "--yes")
	require.NoError(t, err)

	state := runJSON[stateResult](t, dir, "data", "state")
	assert.Nil(t, state.Snapshot)
}
