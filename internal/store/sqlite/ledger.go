package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"gudangku/backend/internal/domain"
	"gudangku/backend/internal/store"
)

// overReceivedTolerance absorbs float rounding when comparing the received
// amount against the amount due.
var overReceivedTolerance = decimal.New(1, -6)

// StockIn appends a purchase movement, bumps the running total, and upserts
// the expiry batch when both batchNo and expiryDate are supplied. Atomic.
func (s *Store) StockIn(ctx context.Context, barcode string, quantity int, batchNo string, expiryDate string) error {
	if quantity <= 0 {
		return store.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM products WHERE barcode = ?`, barcode).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", store.ErrProductNotFound, barcode)
		}
		return err
	}

	ts := s.now().UTC().Format(timeLayout)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_logs (timestamp, type, barcode, change_qty)
		VALUES (?, ?, ?, ?)
	`, ts, string(domain.MovementPurchase), barcode, quantity)
	if err != nil {
		return err
	}

	if err := addToTotal(ctx, tx, barcode, quantity); err != nil {
		return err
	}

	if batchNo != "" && expiryDate != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO expiry_management (barcode, batch_no, expiry_date, current_qty)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(barcode, batch_no, expiry_date) DO UPDATE SET
				current_qty = current_qty + excluded.current_qty
		`, barcode, batchNo, expiryDate, quantity)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// StockOut performs the atomic multi-line sale: stock checks, one sales order
// with price-snapshotted lines, one negative movement per line, running-total
// decrements, and FIFO expiry-batch consumption. Lines with quantity <= 0 are
// dropped before validation.
func (s *Store) StockOut(ctx context.Context, items []domain.CartItem, receivedAmount *float64) (domain.CheckoutResult, error) {
	kept := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		if item.Quantity > 0 {
			kept = append(kept, item)
		}
	}
	if len(kept) == 0 {
		return domain.CheckoutResult{}, store.ErrEmptyCart
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.CheckoutResult{}, err
	}
	defer func() { _ = tx.Rollback() }()

	type orderLine struct {
		barcode  string
		quantity int
		retail   float64
		purchase float64
	}

	totalDue := decimal.Zero
	cost := decimal.Zero
	lines := make([]orderLine, 0, len(kept))

	for _, item := range kept {
		var name string
		var retail, purchase float64
		err := tx.QueryRowContext(ctx, `
			SELECT name, retail_price, purchase_price FROM products WHERE barcode = ?
		`, item.Barcode).Scan(&name, &retail, &purchase)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.CheckoutResult{}, fmt.Errorf("%w: %s", store.ErrProductNotFound, item.Barcode)
			}
			return domain.CheckoutResult{}, err
		}

		var stock int
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE(current_qty, 0) FROM stock_totals WHERE barcode = ?
		`, item.Barcode).Scan(&stock)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return domain.CheckoutResult{}, err
		}
		if stock < item.Quantity {
			return domain.CheckoutResult{}, &store.InsufficientStockError{
				Barcode:    item.Barcode,
				Name:       name,
				CurrentQty: stock,
			}
		}

		qty := decimal.NewFromInt(int64(item.Quantity))
		totalDue = totalDue.Add(decimal.NewFromFloat(retail).Mul(qty))
		cost = cost.Add(decimal.NewFromFloat(purchase).Mul(qty))
		lines = append(lines, orderLine{barcode: item.Barcode, quantity: item.Quantity, retail: retail, purchase: purchase})
	}

	due := totalDue.Round(2)
	finalReceived := due
	if receivedAmount != nil {
		finalReceived = decimal.NewFromFloat(*receivedAmount).Round(2)
	}
	if finalReceived.IsNegative() {
		return domain.CheckoutResult{}, store.ErrNegativeReceived
	}
	if finalReceived.Sub(due).GreaterThan(overReceivedTolerance) {
		return domain.CheckoutResult{}, store.ErrOverReceived
	}
	discount := due.Sub(finalReceived).Round(2)

	ts := s.now().UTC().Format(timeLayout)
	res, err := tx.ExecContext(ctx, `
		INSERT INTO sales_orders (total_due, total_received, discount, timestamp)
		VALUES (?, ?, ?, ?)
	`, due.InexactFloat64(), finalReceived.InexactFloat64(), discount.InexactFloat64(), ts)
	if err != nil {
		return domain.CheckoutResult{}, err
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return domain.CheckoutResult{}, err
	}

	for _, line := range lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sales_order_items
			(order_id, barcode, quantity, unit_retail_price, unit_purchase_price)
			VALUES (?, ?, ?, ?, ?)
		`, orderID, line.barcode, line.quantity, line.retail, line.purchase)
		if err != nil {
			return domain.CheckoutResult{}, err
		}
	}

	for _, line := range lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stock_logs (timestamp, type, barcode, change_qty, sale_order_id)
			VALUES (?, ?, ?, ?, ?)
		`, ts, string(domain.MovementSale), line.barcode, -line.quantity, orderID)
		if err != nil {
			return domain.CheckoutResult{}, err
		}
		if err := addToTotal(ctx, tx, line.barcode, -line.quantity); err != nil {
			return domain.CheckoutResult{}, err
		}
		if err := consumeExpiryBatches(ctx, tx, line.barcode, line.quantity); err != nil {
			return domain.CheckoutResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.CheckoutResult{}, err
	}

	return domain.CheckoutResult{
		TotalDue:      due.InexactFloat64(),
		TotalReceived: finalReceived.InexactFloat64(),
		Discount:      discount.InexactFloat64(),
		Revenue:       finalReceived.InexactFloat64(),
		Cost:          cost.Round(2).InexactFloat64(),
		Profit:        finalReceived.Sub(cost).Round(2).InexactFloat64(),
	}, nil
}

func addToTotal(ctx context.Context, tx *sql.Tx, barcode string, delta int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stock_totals(barcode, current_qty)
		VALUES (?, ?)
		ON CONFLICT(barcode) DO UPDATE SET current_qty = current_qty + excluded.current_qty
	`, barcode, delta)
	return err
}

// consumeExpiryBatches subtracts quantity from tracked batches in
// FIFO-by-expiry order (ties broken by batch number). Stock without batch
// info stays untracked: running out of batches is not an error, and no batch
// row ever goes negative.
func consumeExpiryBatches(ctx context.Context, tx *sql.Tx, barcode string, quantity int) error {
	type batch struct {
		batchNo    string
		expiryDate string
		currentQty int
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT batch_no, expiry_date, current_qty
		FROM expiry_management
		WHERE barcode = ? AND current_qty > 0
		ORDER BY expiry_date ASC, batch_no ASC
	`, barcode)
	if err != nil {
		return err
	}
	batches := make([]batch, 0, 8)
	for rows.Next() {
		var b batch
		if err := rows.Scan(&b.batchNo, &b.expiryDate, &b.currentQty); err != nil {
			rows.Close()
			return err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	remaining := quantity
	for _, b := range batches {
		if remaining <= 0 {
			break
		}
		consume := remaining
		if b.currentQty < consume {
			consume = b.currentQty
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE expiry_management
			SET current_qty = current_qty - ?
			WHERE barcode = ? AND batch_no = ? AND expiry_date = ?
		`, consume, barcode, b.batchNo, b.expiryDate)
		if err != nil {
			return err
		}
		remaining -= consume
	}
	return nil
}
