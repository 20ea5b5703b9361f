package data

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	warehouseDriver = "postgres"

	truncateWarehouseSQL = `TRUNCATE TABLE lead, customer`
)

// ExportToWarehouse publishes ds to the Postgres database at dsn,
// replacing whatever snapshot it held.
func ExportToWarehouse(ctx context.Context, dsn string, ds *Dataset) error {
	if dsn == "" {
		return errors.New("warehouse dsn not specified")
	}
	if ds == nil {
		return fmt.Errorf("dataset required: %w", ErrInvalidInput)
	}

	db, err := sqlx.ConnectContext(ctx, warehouseDriver, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	defer db.Close()

	b, err := f.ReadFile("sql/warehouse.sql")
	if err != nil {
		return fmt.Errorf("failed to read the warehouse schema file: %w", err)
	}
	if _, err := db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("failed to create warehouse schema: %w", err)
	}

	leads := make([]leadRow, 0, len(ds.Leads))
	for _, l := range ds.Leads {
		leads = append(leads, newLeadRow(l))
	}
	customers := make([]customerRow, 0, len(ds.Customers))
	for _, c := range ds.Customers {
		customers = append(customers, newCustomerRow(c))
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, truncateWarehouseSQL); err != nil {
		return fmt.Errorf("failed to truncate warehouse tables: %w", err)
	}
	if err := namedBatch(ctx, tx, insertLeadSQL, leads); err != nil {
		return fmt.Errorf("failed to export leads: %w", err)
	}
	if err := namedBatch(ctx, tx, insertCustomerSQL, customers); err != nil {
		return fmt.Errorf("failed to export customers: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit warehouse export: %w", err)
	}

	slog.Debug("snapshot exported", "leads", len(leads), "customers", len(customers))
	return nil
}
