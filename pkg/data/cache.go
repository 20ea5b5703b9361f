package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	LeadsFileName     = "sample_leads.csv"
	CustomersFileName = "sample_customers.csv"

	dirMode = 0700

	timeLayout = time.RFC3339
)

var (
	leadHeader = []string{
		"id", "company", "industry", "lead_source", "contact_title",
		"lead_score", "engagement_level", "last_activity", "status",
	}

	customerHeader = []string{
		"id", "company", "industry", "total_spent", "clv_predicted",
		"churn_probability", "segment", "last_purchase",
	}

	// accepted when reading; files written by other tools use a space separator
	readTimeLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
)

// LoadOrGenerate reads the cached snapshot from dir. When either cache file
// is missing, a snapshot is generated from seed and now, written to dir, and
// returned. A cache that exists but cannot be parsed is an error wrapping
// ErrDataUnavailable.
func LoadOrGenerate(dir string, seed uint64, now time.Time) (*Dataset, Source, error) {
	return LoadOrGenerateN(dir, seed, now, LeadCountDefault, CustomerCountDefault)
}

// LoadOrGenerateN is LoadOrGenerate with explicit record counts for the
// generated snapshot. Counts do not apply to an existing cache.
func LoadOrGenerateN(dir string, seed uint64, now time.Time, leads, customers int) (*Dataset, Source, error) {
	if dir == "" {
		return nil, "", fmt.Errorf("cache dir not specified: %w", ErrInvalidInput)
	}

	ds, err := ReadCache(dir)
	if err == nil {
		slog.Debug("dataset loaded from cache", "dir", dir, "leads", len(ds.Leads), "customers", len(ds.Customers))
		return ds, SourceCache, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, "", err
	}

	slog.Debug("cache not found, generating dataset", "dir", dir, "seed", seed)
	ds = GenerateN(seed, now, leads, customers)
	if err := SaveCache(dir, ds); err != nil {
		return nil, "", err
	}
	return ds, SourceGenerated, nil
}

// ReadCache reads both cache files from dir. A missing file yields an error
// matching os.ErrNotExist.
func ReadCache(dir string) (*Dataset, error) {
	ds := &Dataset{}

	var g errgroup.Group
	g.Go(func() error {
		var err error
		ds.Leads, err = readFile(filepath.Join(dir, LeadsFileName), ReadLeads)
		return err
	})
	g.Go(func() error {
		var err error
		ds.Customers, err = readFile(filepath.Join(dir, CustomersFileName), ReadCustomers)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ds, nil
}

func readFile[T any](path string, fn func(io.Reader) ([]*T, error)) ([]*T, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("cache file %s: %w", path, os.ErrNotExist)
		}
		return nil, fmt.Errorf("error opening %s: %w: %w", path, ErrDataUnavailable, err)
	}
	defer f.Close()

	list, err := fn(f)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}
	return list, nil
}

// SaveCache writes both cache files into dir, creating it when needed.
// Each file is written to a temp file and renamed into place.
func SaveCache(dir string, ds *Dataset) error {
	if ds == nil {
		return fmt.Errorf("dataset required: %w", ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("error creating cache dir %s: %w: %w", dir, ErrDataUnavailable, err)
	}

	if err := writeFile(dir, LeadsFileName, func(w io.Writer) error {
		return WriteLeads(w, ds.Leads)
	}); err != nil {
		return err
	}

	if err := writeFile(dir, CustomersFileName, func(w io.Writer) error {
		return WriteCustomers(w, ds.Customers)
	}); err != nil {
		return err
	}

	slog.Debug("dataset cached", "dir", dir)
	return nil
}

func writeFile(dir, name string, fn func(io.Writer) error) error {
	tmp, err := os.CreateTemp(dir, "."+name+"-*")
	if err != nil {
		return fmt.Errorf("error creating temp file for %s: %w: %w", name, ErrDataUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if err := fn(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing %s: %w: %w", name, ErrDataUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing %s: %w: %w", name, ErrDataUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("error moving %s into place: %w: %w", name, ErrDataUnavailable, err)
	}
	return nil
}

// RemoveCache deletes the cache files in dir. Missing files are ignored.
func RemoveCache(dir string) error {
	for _, name := range []string{LeadsFileName, CustomersFileName} {
		p := filepath.Join(dir, name)
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("error deleting %s: %w", p, err)
		}
	}
	return nil
}

// WriteLeads writes leads as CSV with a header row.
func WriteLeads(w io.Writer, leads []*Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(leadHeader); err != nil {
		return fmt.Errorf("error writing lead header: %w", err)
	}
	for _, l := range leads {
		rec := []string{
			l.ID,
			l.Company,
			l.Industry,
			l.LeadSource,
			l.ContactTitle,
			strconv.Itoa(l.LeadScore),
			l.EngagementLevel,
			formatTime(l.LastActivity),
			l.Status,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("error writing lead %s: %w", l.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCustomers writes customers as CSV with a header row.
func WriteCustomers(w io.Writer, customers []*Customer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(customerHeader); err != nil {
		return fmt.Errorf("error writing customer header: %w", err)
	}
	for _, c := range customers {
		rec := []string{
			c.ID,
			c.Company,
			c.Industry,
			formatFloat(c.TotalSpent),
			formatFloat(c.PredictedCLV),
			formatFloat(c.ChurnProbability),
			c.Segment,
			formatTime(c.LastPurchase),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("error writing customer %s: %w", c.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadLeads parses leads written by WriteLeads. Any malformed content
// results in an error wrapping ErrDataUnavailable.
func ReadLeads(r io.Reader) ([]*Lead, error) {
	rows, err := readRecords(r, leadHeader)
	if err != nil {
		return nil, err
	}

	list := make([]*Lead, 0, len(rows))
	for i, rec := range rows {
		score, err := strconv.Atoi(rec[5])
		if err != nil {
			return nil, rowErr(i, "lead_score", err)
		}
		ts, err := parseTime(rec[7])
		if err != nil {
			return nil, rowErr(i, "last_activity", err)
		}
		l := &Lead{
			ID:              rec[0],
			Company:         rec[1],
			Industry:        rec[2],
			LeadSource:      rec[3],
			ContactTitle:    rec[4],
			LeadScore:       score,
			EngagementLevel: rec[6],
			LastActivity:    ts,
			Status:          rec[8],
		}
		if err := l.Validate(); err != nil {
			return nil, rowErr(i, "record", err)
		}
		list = append(list, l)
	}
	return list, nil
}

// ReadCustomers parses customers written by WriteCustomers. Any malformed
// content results in an error wrapping ErrDataUnavailable.
func ReadCustomers(r io.Reader) ([]*Customer, error) {
	rows, err := readRecords(r, customerHeader)
	if err != nil {
		return nil, err
	}

	list := make([]*Customer, 0, len(rows))
	for i, rec := range rows {
		var nums [3]float64
		for j, col := range []int{3, 4, 5} {
			v, err := strconv.ParseFloat(rec[col], 64)
			if err != nil {
				return nil, rowErr(i, customerHeader[col], err)
			}
			nums[j] = v
		}
		ts, err := parseTime(rec[7])
		if err != nil {
			return nil, rowErr(i, "last_purchase", err)
		}
		c := &Customer{
			ID:               rec[0],
			Company:          rec[1],
			Industry:         rec[2],
			TotalSpent:       nums[0],
			PredictedCLV:     nums[1],
			ChurnProbability: nums[2],
			Segment:          rec[6],
			LastPurchase:     ts,
		}
		if err := c.Validate(); err != nil {
			return nil, rowErr(i, "record", err)
		}
		list = append(list, c)
	}
	return list, nil
}

func readRecords(r io.Reader, header []string) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(header)

	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("error reading header: %w: %w", ErrDataUnavailable, err)
	}
	for i, h := range header {
		if head[i] != h {
			return nil, fmt.Errorf("unexpected column %d: %q, expected %q: %w", i, head[i], h, ErrDataUnavailable)
		}
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading records: %w: %w", ErrDataUnavailable, err)
	}
	return rows, nil
}

func rowErr(i int, field string, err error) error {
	// +2: header row and 1-based line numbers
	return fmt.Errorf("line %d, %s: %w: %w", i+2, field, ErrDataUnavailable, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	var err error
	for _, layout := range readTimeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
