package data

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDataUnavailable means the dataset could not be read or persisted.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrInvalidInput means a record or argument is outside its allowed range.
	ErrInvalidInput = errors.New("invalid input")
)

const (
	IndustryHospitality = "Hospitality"
	IndustryRealEstate  = "Real Estate"
	IndustryCorporate   = "Corporate"
	IndustryHealthcare  = "Healthcare"
	IndustryEducation   = "Education"

	LeadSourceWebsite       = "Website"
	LeadSourceReferral      = "Referral"
	LeadSourceLinkedIn      = "LinkedIn"
	LeadSourceTradeShow     = "Trade Show"
	LeadSourceEmailCampaign = "Email Campaign"

	TitleProjectManager  = "Project Manager"
	TitleProcurementHead = "Procurement Head"
	TitleArchitect       = "Architect"
	TitleFacilityManager = "Facility Manager"
	TitleCEO             = "CEO"

	EngagementHigh   = "High"
	EngagementMedium = "Medium"
	EngagementLow    = "Low"

	StatusNew          = "New"
	StatusContacted    = "Contacted"
	StatusQualified    = "Qualified"
	StatusProposalSent = "Proposal Sent"
	StatusClosedWon    = "Closed-Won"
	StatusClosedLost   = "Closed-Lost"

	SegmentPlatinum = "Platinum"
	SegmentGold     = "Gold"
	SegmentSilver   = "Silver"
	SegmentBronze   = "Bronze"

	LeadScoreMin = 0
	LeadScoreMax = 100
)

var (
	Industries       = []string{IndustryHospitality, IndustryRealEstate, IndustryCorporate, IndustryHealthcare, IndustryEducation}
	LeadSources      = []string{LeadSourceWebsite, LeadSourceReferral, LeadSourceLinkedIn, LeadSourceTradeShow, LeadSourceEmailCampaign}
	ContactTitles    = []string{TitleProjectManager, TitleProcurementHead, TitleArchitect, TitleFacilityManager, TitleCEO}
	EngagementLevels = []string{EngagementHigh, EngagementMedium, EngagementLow}
	LeadStatuses     = []string{StatusNew, StatusContacted, StatusQualified, StatusProposalSent, StatusClosedWon, StatusClosedLost}
	Segments         = []string{SegmentPlatinum, SegmentGold, SegmentSilver, SegmentBronze}

	// HighValueSegments are the tiers prioritized for outreach.
	HighValueSegments = []string{SegmentPlatinum, SegmentGold}
)

// Lead is a prospective customer in the sales pipeline.
type Lead struct {
	ID              string    `json:"id" yaml:"id"`
	Company         string    `json:"company" yaml:"company"`
	Industry        string    `json:"industry" yaml:"industry"`
	LeadSource      string    `json:"lead_source" yaml:"leadSource"`
	ContactTitle    string    `json:"contact_title" yaml:"contactTitle"`
	LeadScore       int       `json:"lead_score" yaml:"leadScore"`
	EngagementLevel string    `json:"engagement_level" yaml:"engagementLevel"`
	LastActivity    time.Time `json:"last_activity" yaml:"lastActivity"`
	Status          string    `json:"status" yaml:"status"`
}

// Validate checks enum membership and the score range.
func (l *Lead) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("lead id required: %w", ErrInvalidInput)
	}
	if l.LeadScore < LeadScoreMin || l.LeadScore > LeadScoreMax {
		return fmt.Errorf("lead %s score %d outside [%d,%d]: %w", l.ID, l.LeadScore, LeadScoreMin, LeadScoreMax, ErrInvalidInput)
	}
	checks := []struct {
		field string
		val   string
		set   []string
	}{
		{"industry", l.Industry, Industries},
		{"lead_source", l.LeadSource, LeadSources},
		{"contact_title", l.ContactTitle, ContactTitles},
		{"engagement_level", l.EngagementLevel, EngagementLevels},
		{"status", l.Status, LeadStatuses},
	}
	for _, c := range checks {
		if !Contains(c.set, c.val) {
			return fmt.Errorf("lead %s has unknown %s %q: %w", l.ID, c.field, c.val, ErrInvalidInput)
		}
	}
	return nil
}

// Customer is an existing account with spend and value estimates.
type Customer struct {
	ID               string    `json:"id" yaml:"id"`
	Company          string    `json:"company" yaml:"company"`
	Industry         string    `json:"industry" yaml:"industry"`
	TotalSpent       float64   `json:"total_spent" yaml:"totalSpent"`
	PredictedCLV     float64   `json:"clv_predicted" yaml:"clvPredicted"`
	ChurnProbability float64   `json:"churn_probability" yaml:"churnProbability"`
	Segment          string    `json:"segment" yaml:"segment"`
	LastPurchase     time.Time `json:"last_purchase" yaml:"lastPurchase"`
}

// Validate checks enum membership and the numeric invariants.
func (c *Customer) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("customer id required: %w", ErrInvalidInput)
	}
	if c.TotalSpent < 0 || c.PredictedCLV < 0 {
		return fmt.Errorf("customer %s has negative amount: %w", c.ID, ErrInvalidInput)
	}
	if c.ChurnProbability < 0 || c.ChurnProbability > 1 {
		return fmt.Errorf("customer %s churn probability %v outside [0,1]: %w", c.ID, c.ChurnProbability, ErrInvalidInput)
	}
	if !Contains(Industries, c.Industry) {
		return fmt.Errorf("customer %s has unknown industry %q: %w", c.ID, c.Industry, ErrInvalidInput)
	}
	if !Contains(Segments, c.Segment) {
		return fmt.Errorf("customer %s has unknown segment %q: %w", c.ID, c.Segment, ErrInvalidInput)
	}
	return nil
}

// Dataset is one immutable snapshot of leads and customers.
type Dataset struct {
	Leads     []*Lead     `json:"leads" yaml:"leads"`
	Customers []*Customer `json:"customers" yaml:"customers"`
}

// Source tells where a snapshot came from.
type Source string

const (
	SourceGenerated Source = "generated"
	SourceCache     Source = "cache"
)

// Contains checks for val in list
func Contains[T comparable](list []T, val T) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
