// Package report is the aggregation and export surface: daily financial
// summaries, alert lines for the presentation layer, and the CSV export.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gudangku/backend/internal/domain"
	"gudangku/backend/internal/store"
)

const dayLayout = "2006-01-02"

// utf8BOM prefixes exported CSV files so spreadsheet tools detect UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type Service struct {
	repo              store.Repository
	reportsDir        string
	expiryWarningDays int
}

func New(repo store.Repository, reportsDir string, expiryWarningDays int) *Service {
	if expiryWarningDays < 1 {
		expiryWarningDays = 15
	}
	return &Service{
		repo:              repo,
		reportsDir:        reportsDir,
		expiryWarningDays: expiryWarningDays,
	}
}

// ExpiryWarningDays is the configured alert window in days.
func (s *Service) ExpiryWarningDays() int {
	return s.expiryWarningDays
}

// DailySummary returns the day's financials; day "" means today.
func (s *Service) DailySummary(ctx context.Context, day string) (domain.DailySummary, error) {
	day, err := normalizeDay(day)
	if err != nil {
		return domain.DailySummary{}, err
	}
	return s.repo.DailySummary(ctx, day)
}

// DailyTransactions returns the day's merged live+archived movement list.
func (s *Service) DailyTransactions(ctx context.Context, day string) ([]domain.MovementRow, error) {
	day, err := normalizeDay(day)
	if err != nil {
		return nil, err
	}
	return s.repo.DailyTransactions(ctx, day)
}

// ExportDailyCSV writes the day's summary and transaction table to
// daily_report_<date>.csv under outputDir (the configured reports directory
// when empty) and returns the file path.
func (s *Service) ExportDailyCSV(ctx context.Context, day string, outputDir string) (string, error) {
	day, err := normalizeDay(day)
	if err != nil {
		return "", err
	}

	summary, err := s.repo.DailySummary(ctx, day)
	if err != nil {
		return "", err
	}
	transactions, err := s.repo.DailyTransactions(ctx, day)
	if err != nil {
		return "", err
	}

	if outputDir == "" {
		outputDir = s.reportsDir
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, fmt.Sprintf("daily_report_%s.csv", day))

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return "", err
	}

	w := csv.NewWriter(f)
	records := [][]string{
		{"date", day},
		{"revenue", money(summary.Revenue)},
		{"purchase_cost", money(summary.PurchaseCost)},
		{"gross_profit", money(summary.GrossProfit)},
		{},
		{"timestamp", "type", "barcode", "name", "change_qty", "purchase_price", "retail_price", "sale_amount"},
	}
	for _, row := range transactions {
		// Revenue-basis amount: sales only, at the row's retail snapshot.
		amount := 0.0
		if row.Type == domain.MovementSale {
			amount = -float64(row.ChangeQty) * row.RetailPrice
		}
		records = append(records, []string{
			row.Timestamp,
			string(row.Type),
			row.Barcode,
			row.Name,
			strconv.Itoa(row.ChangeQty),
			money(row.PurchasePrice),
			money(row.RetailPrice),
			money(amount),
		})
	}
	if err := w.WriteAll(records); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// LowStockAlerts formats reorder warnings, most depleted first.
func (s *Service) LowStockAlerts(ctx context.Context) ([]string, error) {
	low, err := s.repo.LowStockProducts(ctx)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(low))
	for _, p := range low {
		lines = append(lines, fmt.Sprintf("low stock: %s [%s] current %d, min %d", p.Name, p.Barcode, p.CurrentStock, p.MinStock))
	}
	return lines, nil
}

// ExpiryAlerts formats batch expiry warnings within the given window,
// soonest first. withinDays < 1 falls back to the configured window.
func (s *Service) ExpiryAlerts(ctx context.Context, withinDays int) ([]string, error) {
	if withinDays < 1 {
		withinDays = s.expiryWarningDays
	}
	batches, err := s.repo.ExpiringBatches(ctx, withinDays)
	if err != nil {
		return nil, err
	}
	lines := make([]string, 0, len(batches))
	for _, b := range batches {
		lines = append(lines, fmt.Sprintf("expiring: %s [%s] batch %s expires %s, qty %d", b.Name, b.Barcode, b.BatchNo, b.ExpiryDate, b.CurrentQty))
	}
	return lines, nil
}

// StartupWarnings combines expiry and low-stock alerts into the block shown
// when the store opens.
func (s *Service) StartupWarnings(ctx context.Context) ([]string, error) {
	expiry, err := s.ExpiryAlerts(ctx, s.expiryWarningDays)
	if err != nil {
		return nil, err
	}
	low, err := s.LowStockAlerts(ctx)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(expiry)+len(low)+2)
	if len(expiry) > 0 {
		lines = append(lines, fmt.Sprintf("expiry warnings (within %d days):", s.expiryWarningDays))
		lines = append(lines, expiry...)
	}
	if len(low) > 0 {
		lines = append(lines, "low stock warnings:")
		lines = append(lines, low...)
	}
	return lines, nil
}

func normalizeDay(day string) (string, error) {
	if day == "" {
		return time.Now().UTC().Format(dayLayout), nil
	}
	parsed, err := time.Parse(dayLayout, day)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: want YYYY-MM-DD", day)
	}
	return parsed.Format(dayLayout), nil
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
