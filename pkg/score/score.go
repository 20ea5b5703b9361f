package score

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

const (
	// LeadScoreMin and LeadScoreMax bound the placeholder lead score.
	// The upper bound is exclusive.
	LeadScoreMin = 20
	LeadScoreMax = 95

	// ChurnProbabilityCap is the highest churn probability the heuristic returns.
	ChurnProbabilityCap = 0.9

	daysPerYear = 365
)

// ErrInvalidInput is returned by Validate when a parameter is out of range.
var ErrInvalidInput = errors.New("invalid input")

// LeadAttributes describes a prospect for an ad-hoc lead score prediction.
type LeadAttributes struct {
	Industry          string `json:"industry,omitempty" yaml:"industry,omitempty"`
	LeadSource        string `json:"lead_source,omitempty" yaml:"leadSource,omitempty"`
	ContactTitle      string `json:"contact_title,omitempty" yaml:"contactTitle,omitempty"`
	EngagementLevel   string `json:"engagement_level,omitempty" yaml:"engagementLevel,omitempty"`
	DaysSinceActivity int    `json:"days_since_activity,omitempty" yaml:"daysSinceActivity,omitempty"`
}

// LeadModel returns the conversion probability in [0,1] for a lead.
type LeadModel interface {
	Probability(attrs LeadAttributes) (float64, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithModel makes the engine score leads with m instead of the placeholder.
func WithModel(m LeadModel) Option {
	return func(e *Engine) {
		e.model = m
	}
}

// Engine produces lead scores. It owns its random source so that two
// engines never share state.
type Engine struct {
	rnd   *rand.Rand
	model LeadModel
}

// NewEngine creates an engine seeded with seed.
func NewEngine(seed uint64, opts ...Option) *Engine {
	e := &Engine{
		rnd: rand.New(rand.NewPCG(seed, seed)),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// PredictLeadScore returns a lead score for attrs. Without a model the
// score is a uniform placeholder in [LeadScoreMin, LeadScoreMax). If the
// model fails, the placeholder is used.
func (e *Engine) PredictLeadScore(attrs LeadAttributes) int {
	if e.model != nil {
		p, err := e.model.Probability(attrs)
		if err == nil && !math.IsNaN(p) {
			return clampInt(int(math.Round(p*100)), 0, 100)
		}
	}
	return LeadScoreMin + e.rnd.IntN(LeadScoreMax-LeadScoreMin)
}

// CLVParams are the inputs of the customer lifetime value formula.
type CLVParams struct {
	AvgOrderValue     float64 `json:"avg_order_value" yaml:"avgOrderValue"`
	PurchaseFrequency float64 `json:"purchase_frequency" yaml:"purchaseFrequency"`
	LifespanYears     float64 `json:"lifespan_years" yaml:"lifespanYears"`
	ProfitMargin      float64 `json:"profit_margin" yaml:"profitMargin"`
}

// DefaultCLVParams returns the values used when a caller supplies none.
func DefaultCLVParams() CLVParams {
	return CLVParams{
		AvgOrderValue:     500000,
		PurchaseFrequency: 2,
		LifespanYears:     3,
		ProfitMargin:      0.25,
	}
}

// Validate reports negative or non-finite parameters.
func (p CLVParams) Validate() error {
	return validateNonNegative(map[string]float64{
		"avg_order_value":    p.AvgOrderValue,
		"purchase_frequency": p.PurchaseFrequency,
		"lifespan_years":     p.LifespanYears,
		"profit_margin":      p.ProfitMargin,
	})
}

// CalculateCLV returns aov * frequency * lifespan * margin. Inputs are not
// checked.
func CalculateCLV(p CLVParams) float64 {
	return p.AvgOrderValue * p.PurchaseFrequency * p.LifespanYears * p.ProfitMargin
}

// ChurnParams are the inputs of the churn heuristic.
type ChurnParams struct {
	DaysSinceLastPurchase float64 `json:"days_since_last_purchase" yaml:"daysSinceLastPurchase"`
	PurchaseFrequency     float64 `json:"purchase_frequency" yaml:"purchaseFrequency"`
}

// DefaultChurnParams returns the values used when a caller supplies none.
func DefaultChurnParams() ChurnParams {
	return ChurnParams{
		DaysSinceLastPurchase: 90,
		PurchaseFrequency:     2,
	}
}

// Validate reports negative or non-finite parameters.
func (p ChurnParams) Validate() error {
	return validateNonNegative(map[string]float64{
		"days_since_last_purchase": p.DaysSinceLastPurchase,
		"purchase_frequency":       p.PurchaseFrequency,
	})
}

// PredictChurnProbability returns min(0.9, days/365 * 1/max(1, frequency)).
func PredictChurnProbability(p ChurnParams) float64 {
	return math.Min(ChurnProbabilityCap,
		(p.DaysSinceLastPurchase/daysPerYear)*(1/math.Max(1, p.PurchaseFrequency)))
}

func validateNonNegative(fields map[string]float64) error {
	for name, v := range fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not a finite number: %w", name, ErrInvalidInput)
		}
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %v: %w", name, v, ErrInvalidInput)
		}
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
