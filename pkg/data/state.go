package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	deleteLeadsSQL     = `DELETE FROM lead`
	deleteCustomersSQL = `DELETE FROM customer`

	insertLeadSQL = `INSERT INTO lead (id, company, industry, lead_source, contact_title,
			lead_score, engagement_level, last_activity, status)
		VALUES (:id, :company, :industry, :lead_source, :contact_title,
			:lead_score, :engagement_level, :last_activity, :status)
	`

	insertCustomerSQL = `INSERT INTO customer (id, company, industry, total_spent, clv_predicted,
			churn_probability, segment, last_purchase)
		VALUES (:id, :company, :industry, :total_spent, :clv_predicted,
			:churn_probability, :segment, :last_purchase)
	`

	upsertSnapshotSQL = `INSERT INTO snapshot (id, source, leads, customers, loaded_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			leads = excluded.leads,
			customers = excluded.customers,
			loaded_at = excluded.loaded_at
	`

	selectSnapshotSQL = `SELECT source, leads, customers, loaded_at FROM snapshot WHERE id = 1`

	// sqlite caps bound variables per statement
	insertBatchSize = 500
)

var stateQueries = map[string]string{
	"lead":     "SELECT COUNT(*) FROM lead",
	"customer": "SELECT COUNT(*) FROM customer",
	"industry": "SELECT COUNT(DISTINCT industry) FROM lead",
	"segment":  "SELECT COUNT(DISTINCT segment) FROM customer",
}

type leadRow struct {
	ID              string `db:"id"`
	Company         string `db:"company"`
	Industry        string `db:"industry"`
	LeadSource      string `db:"lead_source"`
	ContactTitle    string `db:"contact_title"`
	LeadScore       int    `db:"lead_score"`
	EngagementLevel string `db:"engagement_level"`
	LastActivity    string `db:"last_activity"`
	Status          string `db:"status"`
}

func newLeadRow(l *Lead) leadRow {
	return leadRow{
		ID:              l.ID,
		Company:         l.Company,
		Industry:        l.Industry,
		LeadSource:      l.LeadSource,
		ContactTitle:    l.ContactTitle,
		LeadScore:       l.LeadScore,
		EngagementLevel: l.EngagementLevel,
		LastActivity:    formatTime(l.LastActivity),
		Status:          l.Status,
	}
}

func (r leadRow) lead() (*Lead, error) {
	ts, err := parseTime(r.LastActivity)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last activity of lead %s: %w", r.ID, err)
	}
	return &Lead{
		ID:              r.ID,
		Company:         r.Company,
		Industry:        r.Industry,
		LeadSource:      r.LeadSource,
		ContactTitle:    r.ContactTitle,
		LeadScore:       r.LeadScore,
		EngagementLevel: r.EngagementLevel,
		LastActivity:    ts,
		Status:          r.Status,
	}, nil
}

type customerRow struct {
	ID               string  `db:"id"`
	Company          string  `db:"company"`
	Industry         string  `db:"industry"`
	TotalSpent       float64 `db:"total_spent"`
	PredictedCLV     float64 `db:"clv_predicted"`
	ChurnProbability float64 `db:"churn_probability"`
	Segment          string  `db:"segment"`
	LastPurchase     string  `db:"last_purchase"`
}

func newCustomerRow(c *Customer) customerRow {
	return customerRow{
		ID:               c.ID,
		Company:          c.Company,
		Industry:         c.Industry,
		TotalSpent:       c.TotalSpent,
		PredictedCLV:     c.PredictedCLV,
		ChurnProbability: c.ChurnProbability,
		Segment:          c.Segment,
		LastPurchase:     formatTime(c.LastPurchase),
	}
}

func (r customerRow) customer() (*Customer, error) {
	ts, err := parseTime(r.LastPurchase)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last purchase of customer %s: %w", r.ID, err)
	}
	return &Customer{
		ID:               r.ID,
		Company:          r.Company,
		Industry:         r.Industry,
		TotalSpent:       r.TotalSpent,
		PredictedCLV:     r.PredictedCLV,
		ChurnProbability: r.ChurnProbability,
		Segment:          r.Segment,
		LastPurchase:     ts,
	}, nil
}

// SnapshotInfo describes the snapshot currently loaded in the database.
type SnapshotInfo struct {
	Source    string `json:"source" yaml:"source" db:"source"`
	Leads     int    `json:"leads" yaml:"leads" db:"leads"`
	Customers int    `json:"customers" yaml:"customers" db:"customers"`
	LoadedAt  string `json:"loaded_at" yaml:"loadedAt" db:"loaded_at"`
}

// Import replaces the snapshot in db with ds in a single transaction.
func Import(db *sqlx.DB, ds *Dataset, source Source) error {
	if db == nil {
		return errDBNotInitialized
	}
	if ds == nil {
		return fmt.Errorf("dataset required: %w", ErrInvalidInput)
	}

	leads := make([]leadRow, 0, len(ds.Leads))
	for _, l := range ds.Leads {
		leads = append(leads, newLeadRow(l))
	}
	customers := make([]customerRow, 0, len(ds.Customers))
	for _, c := range ds.Customers {
		customers = append(customers, newCustomerRow(c))
	}

	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, q := range []string{deleteLeadsSQL, deleteCustomersSQL} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("failed to clear snapshot: %w", err)
		}
	}

	ctx := context.Background()
	if err := namedBatch(ctx, tx, insertLeadSQL, leads); err != nil {
		return fmt.Errorf("failed to insert leads: %w", err)
	}
	if err := namedBatch(ctx, tx, insertCustomerSQL, customers); err != nil {
		return fmt.Errorf("failed to insert customers: %w", err)
	}

	now := time.Now().UTC().Format(timeLayout)
	if _, err := tx.Exec(upsertSnapshotSQL, string(source), len(leads), len(customers), now); err != nil {
		return fmt.Errorf("failed to save snapshot info: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Debug("snapshot imported", "source", source, "leads", len(leads), "customers", len(customers))
	return nil
}

type namedExecer interface {
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
}

func namedBatch[T any](ctx context.Context, ex namedExecer, query string, rows []T) error {
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		if _, err := ex.NamedExecContext(ctx, query, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// GetSnapshotInfo returns the metadata of the loaded snapshot, or nil when
// nothing was imported yet.
func GetSnapshotInfo(db *sqlx.DB) (*SnapshotInfo, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	var info SnapshotInfo
	if err := db.Get(&info, selectSnapshotSQL); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query snapshot info: %w", err)
	}
	return &info, nil
}

// GetDataState returns row counts of the dashboard tables.
func GetDataState(db *sqlx.DB) (map[string]int64, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	state := make(map[string]int64)
	for k, q := range stateQueries {
		var count int64
		if err := db.Get(&count, q); err != nil {
			return nil, fmt.Errorf("error getting %s count: %w", k, err)
		}
		state[k] = count
	}

	return state, nil
}
