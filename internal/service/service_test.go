package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"gudangku/backend/internal/domain"
	"gudangku/backend/internal/store"
	"gudangku/backend/internal/store/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dataDir := t.TempDir()
	repo, err := sqlite.Open(context.Background(), filepath.Join(dataDir, "inventory.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	svc := New(repo, repo.Path(), Options{
		DataDir:           dataDir,
		ReportsDir:        filepath.Join(dataDir, "reports"),
		ExpiryWarningDays: 15,
		OpenStore: func(ctx context.Context, path string) (store.Repository, error) {
			return sqlite.Open(ctx, path)
		},
	})
	t.Cleanup(func() { _ = svc.CloseStore() })
	return svc
}

func adminContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "boss", Role: "admin"})
}

func cashierContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "kasir", Role: "cashier"})
}

func TestUpsertProductRequiresAdmin(t *testing.T) {
	svc := newTestService(t)
	req := domain.ProductUpsertRequest{Barcode: "111", Name: "Kopi Susu", PurchasePrice: 2, RetailPrice: 5}

	if _, err := svc.UpsertProduct(context.Background(), req); err == nil || !strings.Contains(err.Error(), "admin role required") {
		t.Fatalf("want admin gating for anonymous caller, got %v", err)
	}
	if _, err := svc.UpsertProduct(cashierContext(), req); err == nil || !strings.Contains(err.Error(), "admin role required") {
		t.Fatalf("want admin gating for cashier, got %v", err)
	}
	if _, err := svc.UpsertProduct(adminContext(), req); err != nil {
		t.Fatalf("admin upsert: %v", err)
	}
}

func TestUpsertProductValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := adminContext()

	cases := []domain.ProductUpsertRequest{
		{Barcode: "  ", Name: "x"},
		{Barcode: "111", Name: ""},
		{Barcode: "111", Name: "x", PurchasePrice: -1},
		{Barcode: "111", Name: "x", RetailPrice: -1},
		{Barcode: "111", Name: "x", MinStock: -1},
	}
	for _, req := range cases {
		if _, err := svc.UpsertProduct(ctx, req); err == nil {
			t.Fatalf("want validation error for %+v", req)
		}
	}

	product, err := svc.UpsertProduct(ctx, domain.ProductUpsertRequest{
		Barcode: " 111 ", Name: " Kopi Susu ", Category: " drinks ",
		PurchasePrice: 2, RetailPrice: 5, MinStock: 3,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if product.Barcode != "111" || product.Name != "Kopi Susu" || product.Category != "drinks" {
		t.Fatalf("fields must be trimmed: %+v", product)
	}
}

func TestStockInBatchFieldsComeTogether(t *testing.T) {
	svc := newTestService(t)
	ctx := adminContext()

	if _, err := svc.UpsertProduct(ctx, domain.ProductUpsertRequest{Barcode: "111", Name: "Susu", PurchasePrice: 2, RetailPrice: 5}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := svc.StockIn(ctx, domain.StockInRequest{Barcode: "111", Quantity: 5, BatchNo: "B1"}); err == nil {
		t.Fatal("batch number without expiry date must fail")
	}
	if err := svc.StockIn(ctx, domain.StockInRequest{Barcode: "111", Quantity: 5, ExpiryDate: "2026-06-01"}); err == nil {
		t.Fatal("expiry date without batch number must fail")
	}
	if err := svc.StockIn(ctx, domain.StockInRequest{Barcode: "111", Quantity: 5, BatchNo: "B1", ExpiryDate: "06/01/2026"}); err == nil {
		t.Fatal("malformed expiry date must fail")
	}
	if err := svc.StockIn(ctx, domain.StockInRequest{Barcode: "111", Quantity: 5, BatchNo: "B1", ExpiryDate: "2026-06-01"}); err != nil {
		t.Fatalf("valid batch stock-in: %v", err)
	}
	if err := svc.StockIn(cashierContext(), domain.StockInRequest{Barcode: "111", Quantity: 5}); err == nil {
		t.Fatal("cashier must not stock in")
	}
}

func TestCheckoutNormalizesCart(t *testing.T) {
	svc := newTestService(t)
	ctx := adminContext()

	if _, err := svc.UpsertProduct(ctx, domain.ProductUpsertRequest{Barcode: "111", Name: "Susu", PurchasePrice: 2, RetailPrice: 5}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := svc.StockIn(ctx, domain.StockInRequest{Barcode: "111", Quantity: 10}); err != nil {
		t.Fatalf("stock in: %v", err)
	}

	// Blank lines are dropped, barcodes trimmed; cashiers can check out.
	result, err := svc.Checkout(cashierContext(), domain.CheckoutRequest{Items: []domain.CartItem{
		{Barcode: "  ", Quantity: 1},
		{Barcode: " 111 ", Quantity: 2},
	}})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if result.TotalDue != 10.0 {
		t.Fatalf("want total due 10.00, got %v", result.TotalDue)
	}

	_, err = svc.Checkout(ctx, domain.CheckoutRequest{Items: []domain.CartItem{{Barcode: " ", Quantity: 1}}})
	if !errors.Is(err, store.ErrEmptyCart) {
		t.Fatalf("want ErrEmptyCart, got %v", err)
	}
}

func TestDailyReportBundlesSummaryAndTransactions(t *testing.T) {
	svc := newTestService(t)
	ctx := adminContext()

	if _, err := svc.UpsertProduct(ctx, domain.ProductUpsertRequest{Barcode: "111", Name: "Susu", PurchasePrice: 2, RetailPrice: 5}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := svc.StockIn(ctx, domain.StockInRequest{Barcode: "111", Quantity: 10}); err != nil {
		t.Fatalf("stock in: %v", err)
	}
	if _, err := svc.Checkout(ctx, domain.CheckoutRequest{Items: []domain.CartItem{{Barcode: "111", Quantity: 3}}}); err != nil {
		t.Fatalf("checkout: %v", err)
	}

	report, err := svc.DailyReport(ctx, "")
	if err != nil {
		t.Fatalf("daily report: %v", err)
	}
	if report.Summary.Date == "" {
		t.Fatal("summary date must be filled for the default day")
	}
	if report.Summary.Revenue != 15.0 {
		t.Fatalf("want revenue 15.00, got %v", report.Summary.Revenue)
	}
	if len(report.Transactions) != 2 {
		t.Fatalf("want 2 transactions, got %d", len(report.Transactions))
	}
}

func TestSwitchStore(t *testing.T) {
	svc := newTestService(t)
	ctx := adminContext()

	if _, err := svc.UpsertProduct(ctx, domain.ProductUpsertRequest{Barcode: "111", Name: "Susu", PurchasePrice: 2, RetailPrice: 5}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := svc.SwitchStore(cashierContext(), "/tmp/elsewhere.db"); err == nil {
		t.Fatal("cashier must not switch stores")
	}
	if err := svc.SwitchStore(ctx, "  "); err == nil {
		t.Fatal("blank path must fail")
	}

	var switchedTo store.Repository
	svc.opts.OnStoreSwitched = func(repo store.Repository) { switchedTo = repo }

	next := filepath.Join(t.TempDir(), "branch.db")
	if err := svc.SwitchStore(ctx, next); err != nil {
		t.Fatalf("switch store: %v", err)
	}
	if switchedTo == nil {
		t.Fatal("switch hook must receive the new repository")
	}
	if svc.ActiveStorePath() != next {
		t.Fatalf("active path not updated: %s", svc.ActiveStorePath())
	}
	if got := store.LoadSelectedDBPath(svc.opts.DataDir, "fallback"); got != next {
		t.Fatalf("pointer file not persisted: %s", got)
	}

	// The new store starts from its own (empty) catalog.
	products, err := svc.ListProductsWithStock(ctx)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 0 {
		t.Fatalf("want empty catalog after switch, got %d", len(products))
	}
}
