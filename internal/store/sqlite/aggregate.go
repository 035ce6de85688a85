package sqlite

import (
	"context"
	"database/sql"
	"sort"

	"github.com/shopspring/decimal"

	"gudangku/backend/internal/domain"
)

// loadMainDayRows reads the day's live movements joined with current product
// snapshots.
func (s *Store) loadMainDayRows(ctx context.Context, day string) ([]domain.MovementRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			l.id AS source_id,
			l.timestamp,
			l.type,
			l.barcode,
			p.name,
			l.change_qty,
			p.purchase_price,
			p.retail_price,
			l.sale_order_id
		FROM stock_logs l
		JOIN products p ON p.barcode = l.barcode
		WHERE DATE(l.timestamp) = ?
		ORDER BY l.timestamp ASC, l.id ASC
	`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.MovementRow, 0, 64)
	for rows.Next() {
		var m domain.MovementRow
		var movementType string
		var orderID sql.NullInt64
		if err := rows.Scan(&m.SourceID, &m.Timestamp, &movementType, &m.Barcode, &m.Name, &m.ChangeQty, &m.PurchasePrice, &m.RetailPrice, &orderID); err != nil {
			return nil, err
		}
		m.Type = domain.MovementType(movementType)
		if orderID.Valid {
			id := orderID.Int64
			m.SaleOrderID = &id
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// DailyTransactions merges the day's archived and live movements into one
// deterministic list ordered by (timestamp, source id), independent of which
// segment a row lives in.
func (s *Store) DailyTransactions(ctx context.Context, day string) ([]domain.MovementRow, error) {
	archived, err := s.loadArchiveDayRows(ctx, day)
	if err != nil {
		return nil, err
	}
	live, err := s.loadMainDayRows(ctx, day)
	if err != nil {
		return nil, err
	}

	merged := make([]domain.MovementRow, 0, len(archived)+len(live))
	seen := make(map[int64]struct{}, len(archived))
	for _, row := range archived {
		seen[row.sourceID] = struct{}{}
		merged = append(merged, domain.MovementRow{
			SourceID:      row.sourceID,
			Timestamp:     row.timestamp,
			Type:          domain.MovementType(row.movementType),
			Barcode:       row.barcode,
			Name:          row.name,
			ChangeQty:     row.changeQty,
			PurchasePrice: row.purchasePrice,
			RetailPrice:   row.retailPrice,
			SaleOrderID:   row.saleOrderID,
		})
	}
	// A row can sit in both places if an archive committed but the live
	// delete did not; the archived copy wins.
	for _, row := range live {
		if _, ok := seen[row.SourceID]; ok {
			continue
		}
		merged = append(merged, row)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Timestamp != merged[j].Timestamp {
			return merged[i].Timestamp < merged[j].Timestamp
		}
		return merged[i].SourceID < merged[j].SourceID
	})
	return merged, nil
}

// DailySummary computes the day's financials. Purchases contribute purchase
// cost directly. Sales split by attribution: legacy rows (no order id) sum
// directly at product prices, order-backed rows are counted once through
// their sales order's received total and item-level snapshotted costs.
func (s *Store) DailySummary(ctx context.Context, day string) (domain.DailySummary, error) {
	logs, err := s.DailyTransactions(ctx, day)
	if err != nil {
		return domain.DailySummary{}, err
	}

	purchaseCost := decimal.Zero
	legacyRevenue := decimal.Zero
	legacyCost := decimal.Zero

	for _, row := range logs {
		qty := decimal.NewFromInt(int64(row.ChangeQty))
		switch {
		case row.Type == domain.MovementPurchase:
			purchaseCost = purchaseCost.Add(qty.Mul(decimal.NewFromFloat(row.PurchasePrice)))
		case row.Attribution() == domain.LegacySale:
			legacyRevenue = legacyRevenue.Add(qty.Neg().Mul(decimal.NewFromFloat(row.RetailPrice)))
			legacyCost = legacyCost.Add(qty.Neg().Mul(decimal.NewFromFloat(row.PurchasePrice)))
		}
	}

	var orderRevenue float64
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_received), 0)
		FROM sales_orders
		WHERE DATE(timestamp) = ?
	`, day).Scan(&orderRevenue)
	if err != nil {
		return domain.DailySummary{}, err
	}

	var orderCost float64
	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(i.quantity * i.unit_purchase_price), 0)
		FROM sales_orders o
		JOIN sales_order_items i ON i.order_id = o.id
		WHERE DATE(o.timestamp) = ?
	`, day).Scan(&orderCost)
	if err != nil {
		return domain.DailySummary{}, err
	}

	revenue := decimal.NewFromFloat(orderRevenue).Add(legacyRevenue)
	salesCost := decimal.NewFromFloat(orderCost).Add(legacyCost)
	grossProfit := revenue.Sub(salesCost)

	return domain.DailySummary{
		Date:         day,
		Revenue:      revenue.Round(2).InexactFloat64(),
		PurchaseCost: purchaseCost.Round(2).InexactFloat64(),
		GrossProfit:  grossProfit.Round(2).InexactFloat64(),
	}, nil
}
