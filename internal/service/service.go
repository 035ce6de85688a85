// Package service is the boundary the presentation layer talks to: input
// normalization, role gating, and delegation to the store and report engines.
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"gudangku/backend/internal/domain"
	"gudangku/backend/internal/report"
	"gudangku/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Options carries the construction-time configuration; no ambient globals.
type Options struct {
	DataDir           string
	ReportsDir        string
	ExpiryWarningDays int

	// OpenStore opens a store file (running archival). Required for
	// SwitchStore; nil disables switching.
	OpenStore func(ctx context.Context, path string) (store.Repository, error)

	// OnStoreSwitched runs after a successful SwitchStore with the new
	// repository, before the previous one is closed. Collaborators holding
	// their own reference to the repository (the auth manager's user store)
	// rebind here.
	OnStoreSwitched func(repo store.Repository)
}

type Service struct {
	mu         sync.RWMutex
	repo       store.Repository
	reports    *report.Service
	activePath string
	opts       Options
}

func New(repo store.Repository, activePath string, opts Options) *Service {
	return &Service{
		repo:       repo,
		reports:    report.New(repo, opts.ReportsDir, opts.ExpiryWarningDays),
		activePath: activePath,
		opts:       opts,
	}
}

func (s *Service) repository() store.Repository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.repo
}

func (s *Service) reporter() *report.Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reports
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("admin role required")
	}
	return nil
}

func (s *Service) ListProductsWithStock(ctx context.Context) ([]domain.ProductStock, error) {
	return s.repository().ListProductsWithStock(ctx)
}

func (s *Service) ListProductBarcodes(ctx context.Context) ([]string, error) {
	return s.repository().ListProductBarcodes(ctx)
}

func (s *Service) GetProduct(ctx context.Context, barcode string) (*domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, store.ErrProductNotFound
	}
	return s.repository().GetProduct(ctx, barcode)
}

// UpsertProduct inserts or fully replaces the catalog entry for a barcode.
// Stock totals and movement history are never touched by a re-upsert.
func (s *Service) UpsertProduct(ctx context.Context, req domain.ProductUpsertRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		Barcode:       strings.TrimSpace(req.Barcode),
		Name:          strings.TrimSpace(req.Name),
		Category:      strings.TrimSpace(req.Category),
		PurchasePrice: req.PurchasePrice,
		RetailPrice:   req.RetailPrice,
		MinStock:      req.MinStock,
	}
	if product.Barcode == "" || product.Name == "" {
		return domain.Product{}, fmt.Errorf("barcode and name are required")
	}
	if product.PurchasePrice < 0 || product.RetailPrice < 0 {
		return domain.Product{}, fmt.Errorf("prices cannot be negative")
	}
	if product.MinStock < 0 {
		return domain.Product{}, fmt.Errorf("min stock cannot be negative")
	}

	if err := s.repository().UpsertProduct(ctx, product); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// StockIn records an inbound purchase, optionally tagged with an expiry
// batch. Batch tracking requires both batch number and expiry date; a lone
// value is rejected rather than silently dropped.
func (s *Service) StockIn(ctx context.Context, req domain.StockInRequest) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	barcode := strings.TrimSpace(req.Barcode)
	if barcode == "" {
		return store.ErrProductNotFound
	}
	batchNo := strings.TrimSpace(req.BatchNo)
	expiryDate := strings.TrimSpace(req.ExpiryDate)
	if (batchNo == "") != (expiryDate == "") {
		return fmt.Errorf("batch_no and expiry_date must be supplied together")
	}
	if expiryDate != "" {
		if _, err := time.Parse("2006-01-02", expiryDate); err != nil {
			return fmt.Errorf("invalid expiry_date %q: want YYYY-MM-DD", expiryDate)
		}
	}

	return s.repository().StockIn(ctx, barcode, req.Quantity, batchNo, expiryDate)
}

// Checkout runs the atomic multi-line sale. A nil ReceivedAmount means the
// full amount due was collected.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResult, error) {
	items := make([]domain.CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		item.Barcode = strings.TrimSpace(item.Barcode)
		if item.Barcode == "" {
			continue
		}
		items = append(items, item)
	}
	return s.repository().StockOut(ctx, items, req.ReceivedAmount)
}

// DailyReport bundles the day's summary with its transaction list;
// day "" means today.
func (s *Service) DailyReport(ctx context.Context, day string) (domain.DailyReportResponse, error) {
	reports := s.reporter()
	summary, err := reports.DailySummary(ctx, day)
	if err != nil {
		return domain.DailyReportResponse{}, err
	}
	transactions, err := reports.DailyTransactions(ctx, summary.Date)
	if err != nil {
		return domain.DailyReportResponse{}, err
	}
	return domain.DailyReportResponse{Summary: summary, Transactions: transactions}, nil
}

// DailyTransactions returns just the day's movement list; day "" means today.
func (s *Service) DailyTransactions(ctx context.Context, day string) ([]domain.MovementRow, error) {
	return s.reporter().DailyTransactions(ctx, day)
}

func (s *Service) ExportDailyReportCSV(ctx context.Context, day string, outputDir string) (string, error) {
	return s.reporter().ExportDailyCSV(ctx, day, strings.TrimSpace(outputDir))
}

func (s *Service) LowStockAlerts(ctx context.Context) ([]string, error) {
	return s.reporter().LowStockAlerts(ctx)
}

func (s *Service) ExpiryAlerts(ctx context.Context, withinDays int) ([]string, error) {
	return s.reporter().ExpiryAlerts(ctx, withinDays)
}

func (s *Service) StartupWarnings(ctx context.Context) ([]string, error) {
	return s.reporter().StartupWarnings(ctx)
}

// ActiveStorePath reports which store file is currently serving requests.
func (s *Service) ActiveStorePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activePath
}

// CloseStore closes whichever store is currently active.
func (s *Service) CloseStore() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo == nil {
		return nil
	}
	return s.repo.Close()
}

// SwitchStore opens the store file at path (running archival on it),
// persists the active-store pointer, and swaps it in. The previous store is
// closed once the swap is done.
func (s *Service) SwitchStore(ctx context.Context, path string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("store path is required")
	}
	if s.opts.OpenStore == nil {
		return fmt.Errorf("store switching is not enabled")
	}

	next, err := s.opts.OpenStore(ctx, path)
	if err != nil {
		return fmt.Errorf("open store %s: %w", path, err)
	}
	if err := store.SaveSelectedDBPath(s.opts.DataDir, path); err != nil {
		_ = next.Close()
		return err
	}

	s.mu.Lock()
	prev := s.repo
	s.repo = next
	s.reports = report.New(next, s.opts.ReportsDir, s.opts.ExpiryWarningDays)
	s.activePath = path
	s.mu.Unlock()

	if s.opts.OnStoreSwitched != nil {
		s.opts.OnStoreSwitched(next)
	}

	if prev != nil {
		if err := prev.Close(); err != nil {
			log.Printf("[service] WARN: closing previous store: %v", err)
		}
	}
	return nil
}
