package data

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

const (
	ScoreRangeMinDefault = 50
	ScoreRangeMaxDefault = 100

	HotLeadScoreDefault = 80
	ChurnRiskDefault    = 0.7
	AlertLimitDefault   = 5

	churnLabelPrecision = 2

	leadColumns     = `id, company, industry, lead_source, contact_title, lead_score, engagement_level, last_activity, status`
	customerColumns = `id, company, industry, total_spent, clv_predicted, churn_probability, segment, last_purchase`

	selectLeadSummarySQL = `SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN lead_score >= ? THEN 1 ELSE 0 END), 0) AS hot,
			COALESCE(AVG(lead_score), 0) AS avg_score
		FROM lead
	`

	selectCustomerSummarySQL = `SELECT
			COALESCE(SUM(CASE WHEN segment IN (?) THEN 1 ELSE 0 END), 0) AS high_value,
			COALESCE(SUM(CASE WHEN churn_probability > ? THEN 1 ELSE 0 END), 0) AS at_risk
		FROM customer
	`

	selectScoreDistributionSQL = `SELECT lead_score AS name, COUNT(*) AS count FROM lead %s
		GROUP BY lead_score
		ORDER BY lead_score
	`

	selectSourceCountsSQL = `SELECT lead_source AS name, COUNT(*) AS count FROM lead %s
		GROUP BY lead_source
		ORDER BY count DESC, name
	`

	selectCLVBySegmentSQL = `SELECT segment, AVG(clv_predicted) AS avg_clv FROM customer %s
		GROUP BY segment
		ORDER BY segment
	`

	selectChurnDistributionSQL = `SELECT churn_probability AS value, COUNT(*) AS count FROM customer %s
		GROUP BY churn_probability
		ORDER BY churn_probability
	`

	selectIndustriesSQL = `SELECT DISTINCT industry FROM lead ORDER BY industry`
)

// Thresholds drive the hot-lead, churn-risk and alert panels.
type Thresholds struct {
	HotLeadScore int     `json:"hot_lead_score" yaml:"hotLeadScore"`
	ChurnRisk    float64 `json:"churn_risk" yaml:"churnRisk"`
	AlertLimit   int     `json:"alert_limit" yaml:"alertLimit"`
}

// DefaultThresholds returns the thresholds the dashboard ships with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HotLeadScore: HotLeadScoreDefault,
		ChurnRisk:    ChurnRiskDefault,
		AlertLimit:   AlertLimitDefault,
	}
}

// Filter narrows the dashboard. Industries apply to leads and customers;
// the score range applies to leads only. No industries means all.
type Filter struct {
	Industries []string `json:"industries,omitempty" yaml:"industries,omitempty"`
	MinScore   int      `json:"min_score" yaml:"minScore"`
	MaxScore   int      `json:"max_score" yaml:"maxScore"`
}

// DefaultFilter returns the filter the dashboard opens with.
func DefaultFilter() Filter {
	return Filter{
		MinScore: ScoreRangeMinDefault,
		MaxScore: ScoreRangeMaxDefault,
	}
}

// Validate checks the score range and industry names.
func (f Filter) Validate() error {
	if f.MinScore < LeadScoreMin || f.MaxScore > LeadScoreMax || f.MinScore > f.MaxScore {
		return fmt.Errorf("score range %d-%d outside [%d,%d] or inverted: %w",
			f.MinScore, f.MaxScore, LeadScoreMin, LeadScoreMax, ErrInvalidInput)
	}
	for _, i := range f.Industries {
		if !Contains(Industries, i) {
			return fmt.Errorf("unknown industry %q: %w", i, ErrInvalidInput)
		}
	}
	return nil
}

func (f Filter) leadWhere(extra ...string) (string, []any) {
	clauses := []string{"lead_score BETWEEN ? AND ?"}
	args := []any{f.MinScore, f.MaxScore}
	if len(f.Industries) > 0 {
		clauses = append(clauses, "industry IN (?)")
		args = append(args, f.Industries)
	}
	clauses = append(clauses, extra...)
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func (f Filter) customerWhere(extra ...string) (string, []any) {
	clauses := make([]string, 0)
	args := make([]any, 0)
	if len(f.Industries) > 0 {
		clauses = append(clauses, "industry IN (?)")
		args = append(args, f.Industries)
	}
	clauses = append(clauses, extra...)
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// Series is a labeled chart series.
type Series[T any] struct {
	Labels []string `json:"labels" yaml:"labels"`
	Data   []T      `json:"data" yaml:"data"`
}

// CountedItem is a named count.
type CountedItem struct {
	Name  string `json:"name" yaml:"name" db:"name"`
	Count int    `json:"count" yaml:"count" db:"count"`
}

// Summary holds the headline metrics.
type Summary struct {
	TotalLeads         int     `json:"total_leads" yaml:"totalLeads"`
	HotLeads           int     `json:"hot_leads" yaml:"hotLeads"`
	AvgLeadScore       float64 `json:"avg_lead_score" yaml:"avgLeadScore"`
	HighValueCustomers int     `json:"high_value_customers" yaml:"highValueCustomers"`
	AtRiskCustomers    int     `json:"at_risk_customers" yaml:"atRiskCustomers"`
}

// Alerts lists the records that need immediate action.
type Alerts struct {
	PriorityLeads []*Lead     `json:"priority_leads" yaml:"priorityLeads"`
	RiskCustomers []*Customer `json:"risk_customers" yaml:"riskCustomers"`
}

// selectIn expands slice arguments and runs the query into dest.
func selectIn(db *sqlx.DB, dest any, query string, args ...any) error {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return fmt.Errorf("failed to expand query: %w", err)
	}
	return db.Select(dest, db.Rebind(q), a...)
}

func getIn(db *sqlx.DB, dest any, query string, args ...any) error {
	q, a, err := sqlx.In(query, args...)
	if err != nil {
		return fmt.Errorf("failed to expand query: %w", err)
	}
	return db.Get(dest, db.Rebind(q), a...)
}

// GetSummary returns the headline metrics for f.
func GetSummary(db *sqlx.DB, f Filter, t Thresholds) (*Summary, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	var leads struct {
		Total    int     `db:"total"`
		Hot      int     `db:"hot"`
		AvgScore float64 `db:"avg_score"`
	}
	where, args := f.leadWhere()
	if err := getIn(db, &leads, selectLeadSummarySQL+where, append([]any{t.HotLeadScore}, args...)...); err != nil {
		return nil, fmt.Errorf("failed to query lead summary: %w", err)
	}

	var customers struct {
		HighValue int `db:"high_value"`
		AtRisk    int `db:"at_risk"`
	}
	where, args = f.customerWhere()
	if err := getIn(db, &customers, selectCustomerSummarySQL+where, append([]any{HighValueSegments, t.ChurnRisk}, args...)...); err != nil {
		return nil, fmt.Errorf("failed to query customer summary: %w", err)
	}

	return &Summary{
		TotalLeads:         leads.Total,
		HotLeads:           leads.Hot,
		AvgLeadScore:       leads.AvgScore,
		HighValueCustomers: customers.HighValue,
		AtRiskCustomers:    customers.AtRisk,
	}, nil
}

// GetLeadScoreDistribution counts leads per score, ascending by score.
func GetLeadScoreDistribution(db *sqlx.DB, f Filter) (*Series[int], error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	where, args := f.leadWhere()
	var items []*CountedItem
	if err := selectIn(db, &items, fmt.Sprintf(selectScoreDistributionSQL, where), args...); err != nil {
		return nil, fmt.Errorf("failed to query score distribution: %w", err)
	}
	return countedToSeries(items), nil
}

// GetLeadSourceCounts counts leads per source, most frequent first.
func GetLeadSourceCounts(db *sqlx.DB, f Filter) ([]*CountedItem, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	where, args := f.leadWhere()
	items := make([]*CountedItem, 0)
	if err := selectIn(db, &items, fmt.Sprintf(selectSourceCountsSQL, where), args...); err != nil {
		return nil, fmt.Errorf("failed to query lead sources: %w", err)
	}
	return items, nil
}

// GetHotLeads returns leads at or above the hot score, highest first.
func GetHotLeads(db *sqlx.DB, f Filter, t Thresholds) ([]*Lead, error) {
	where, args := f.leadWhere("lead_score >= ?")
	args = append(args, t.HotLeadScore)
	return queryLeads(db, where+" ORDER BY lead_score DESC, id", args)
}

// GetPriorityLeads returns hot leads nobody has qualified yet.
func GetPriorityLeads(db *sqlx.DB, f Filter, t Thresholds) ([]*Lead, error) {
	where, args := f.leadWhere("lead_score >= ?", "status IN (?)")
	args = append(args, t.HotLeadScore, []string{StatusNew, StatusContacted})
	return queryLeads(db, where+" ORDER BY id LIMIT ?", append(args, t.AlertLimit))
}

// GetCLVBySegment returns the mean predicted CLV per segment.
func GetCLVBySegment(db *sqlx.DB, f Filter) (*Series[float64], error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	where, args := f.customerWhere()
	var rows []struct {
		Segment string  `db:"segment"`
		AvgCLV  float64 `db:"avg_clv"`
	}
	if err := selectIn(db, &rows, fmt.Sprintf(selectCLVBySegmentSQL, where), args...); err != nil {
		return nil, fmt.Errorf("failed to query CLV by segment: %w", err)
	}

	s := &Series[float64]{
		Labels: make([]string, 0, len(rows)),
		Data:   make([]float64, 0, len(rows)),
	}
	for _, r := range rows {
		s.Labels = append(s.Labels, r.Segment)
		s.Data = append(s.Data, r.AvgCLV)
	}
	return s, nil
}

// GetChurnDistribution counts customers per churn probability.
func GetChurnDistribution(db *sqlx.DB, f Filter) (*Series[int], error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	where, args := f.customerWhere()
	var rows []struct {
		Value float64 `db:"value"`
		Count int     `db:"count"`
	}
	if err := selectIn(db, &rows, fmt.Sprintf(selectChurnDistributionSQL, where), args...); err != nil {
		return nil, fmt.Errorf("failed to query churn distribution: %w", err)
	}

	s := &Series[int]{
		Labels: make([]string, 0, len(rows)),
		Data:   make([]int, 0, len(rows)),
	}
	for _, r := range rows {
		s.Labels = append(s.Labels, strconv.FormatFloat(r.Value, 'f', churnLabelPrecision, 64))
		s.Data = append(s.Data, r.Count)
	}
	return s, nil
}

// GetHighValueCustomers returns Platinum and Gold customers by CLV, highest first.
func GetHighValueCustomers(db *sqlx.DB, f Filter) ([]*Customer, error) {
	where, args := f.customerWhere("segment IN (?)")
	args = append(args, HighValueSegments)
	return queryCustomers(db, where+" ORDER BY clv_predicted DESC, id", args)
}

// GetRiskCustomers returns customers whose churn probability exceeds the risk threshold.
func GetRiskCustomers(db *sqlx.DB, f Filter, t Thresholds) ([]*Customer, error) {
	where, args := f.customerWhere("churn_probability > ?")
	args = append(args, t.ChurnRisk)
	return queryCustomers(db, where+" ORDER BY id LIMIT ?", append(args, t.AlertLimit))
}

// GetAlerts returns the priority leads and high churn risk customers.
func GetAlerts(db *sqlx.DB, f Filter, t Thresholds) (*Alerts, error) {
	leads, err := GetPriorityLeads(db, f, t)
	if err != nil {
		return nil, err
	}
	customers, err := GetRiskCustomers(db, f, t)
	if err != nil {
		return nil, err
	}
	return &Alerts{PriorityLeads: leads, RiskCustomers: customers}, nil
}

// GetIndustries lists the industries present in the loaded leads.
func GetIndustries(db *sqlx.DB) ([]string, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	list := make([]string, 0)
	if err := db.Select(&list, selectIndustriesSQL); err != nil {
		return nil, fmt.Errorf("failed to query industries: %w", err)
	}
	return list, nil
}

func queryLeads(db *sqlx.DB, clause string, args []any) ([]*Lead, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	var rows []leadRow
	if err := selectIn(db, &rows, "SELECT "+leadColumns+" FROM lead "+clause, args...); err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}

	list := make([]*Lead, 0, len(rows))
	for _, r := range rows {
		l, err := r.lead()
		if err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, nil
}

func queryCustomers(db *sqlx.DB, clause string, args []any) ([]*Customer, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	var rows []customerRow
	if err := selectIn(db, &rows, "SELECT "+customerColumns+" FROM customer "+clause, args...); err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}

	list := make([]*Customer, 0, len(rows))
	for _, r := range rows {
		c, err := r.customer()
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, nil
}

func countedToSeries(items []*CountedItem) *Series[int] {
	s := &Series[int]{
		Labels: make([]string, 0, len(items)),
		Data:   make([]int, 0, len(items)),
	}
	for _, v := range items {
		s.Labels = append(s.Labels, v.Name)
		s.Data = append(s.Data, v.Count)
	}
	return s
}
