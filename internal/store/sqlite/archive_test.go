package sqlite

import (
	"context"
	"os"
	"testing"

	"gudangku/backend/internal/domain"
)

func TestArchiveClosedMonths(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.now = fixedClock(t, "2026-01-15 10:00:00")
	seedProduct(t, s, "111", "Kopi Susu", 2.0, 5.0, 3)
	if err := s.StockIn(ctx, "111", 10, "", ""); err != nil {
		t.Fatalf("stock in: %v", err)
	}
	if _, err := s.StockOut(ctx, []domain.CartItem{{Barcode: "111", Quantity: 3}}, nil); err != nil {
		t.Fatalf("stock out: %v", err)
	}

	s.now = fixedClock(t, "2026-03-01 08:00:00")
	if err := s.ArchiveClosedMonths(ctx); err != nil {
		t.Fatalf("archive: %v", err)
	}

	var liveCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM stock_logs`).Scan(&liveCount); err != nil {
		t.Fatalf("count live: %v", err)
	}
	if liveCount != 0 {
		t.Fatalf("closed-month rows must leave the live ledger, got %d", liveCount)
	}

	if _, err := os.Stat(s.archiveDBPath("2026-01")); err != nil {
		t.Fatalf("archive segment missing: %v", err)
	}

	// Archival moves history, never stock.
	if qty, _ := s.CurrentStock(ctx, "111"); qty != 7 {
		t.Fatalf("want stock 7 after archival, got %d", qty)
	}

	transactions, err := s.DailyTransactions(ctx, "2026-01-15")
	if err != nil {
		t.Fatalf("daily transactions: %v", err)
	}
	if len(transactions) != 2 {
		t.Fatalf("want 2 archived rows, got %d", len(transactions))
	}
	if transactions[0].Type != domain.MovementPurchase || transactions[0].ChangeQty != 10 {
		t.Fatalf("unexpected first row: %+v", transactions[0])
	}
	if transactions[1].Attribution() != domain.OrderedSale {
		t.Fatalf("sale row must keep its order id through archival: %+v", transactions[1])
	}
}

func TestArchiveClosedMonthsIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.now = fixedClock(t, "2026-01-15 10:00:00")
	seedProduct(t, s, "111", "Kopi Susu", 2.0, 5.0, 3)
	if err := s.StockIn(ctx, "111", 4, "", ""); err != nil {
		t.Fatalf("stock in: %v", err)
	}

	s.now = fixedClock(t, "2026-02-01 08:00:00")
	if err := s.ArchiveClosedMonths(ctx); err != nil {
		t.Fatalf("first archive run: %v", err)
	}
	if err := s.ArchiveClosedMonths(ctx); err != nil {
		t.Fatalf("second archive run: %v", err)
	}

	transactions, err := s.DailyTransactions(ctx, "2026-01-15")
	if err != nil {
		t.Fatalf("daily transactions: %v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("re-running archival must not duplicate rows, got %d", len(transactions))
	}
}

func TestArchiveKeepsCurrentMonthLive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.now = fixedClock(t, "2026-03-10 10:00:00")
	seedProduct(t, s, "111", "Kopi Susu", 2.0, 5.0, 3)
	if err := s.StockIn(ctx, "111", 4, "", ""); err != nil {
		t.Fatalf("stock in: %v", err)
	}

	if err := s.ArchiveClosedMonths(ctx); err != nil {
		t.Fatalf("archive: %v", err)
	}

	var liveCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM stock_logs`).Scan(&liveCount); err != nil {
		t.Fatalf("count live: %v", err)
	}
	if liveCount != 1 {
		t.Fatalf("current-month rows must stay live, got %d", liveCount)
	}
	if _, err := os.Stat(s.archiveDBPath("2026-03")); !os.IsNotExist(err) {
		t.Fatalf("no segment should exist for the open month: %v", err)
	}
}
