package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// archivedRow is the denormalized shape written to cold segments: the
// movement plus the product's name and prices as of archive time.
type archivedRow struct {
	sourceID      int64
	timestamp     string
	movementType  string
	barcode       string
	name          string
	changeQty     int
	purchasePrice float64
	retailPrice   float64
	saleOrderID   *int64
}

func (s *Store) archiveDBPath(monthKey string) string {
	return filepath.Join(s.archiveDir, fmt.Sprintf("stock_logs_%s.db", strings.ReplaceAll(monthKey, "-", "_")))
}

// ensureArchiveSchema makes an archive segment self-initializing, including
// the sale_order_id evolution for segments written before the column existed.
func ensureArchiveSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS archived_stock_logs (
			source_id INTEGER PRIMARY KEY,
			timestamp TEXT NOT NULL,
			type TEXT NOT NULL,
			barcode TEXT NOT NULL,
			name TEXT NOT NULL,
			change_qty INTEGER NOT NULL,
			purchase_price REAL NOT NULL,
			retail_price REAL NOT NULL,
			sale_order_id INTEGER
		)
	`)
	if err != nil {
		return err
	}

	hasColumn, err := tableHasColumn(ctx, db, "archived_stock_logs", "sale_order_id")
	if err != nil {
		return err
	}
	if !hasColumn {
		if _, err := db.ExecContext(ctx, `ALTER TABLE archived_stock_logs ADD COLUMN sale_order_id INTEGER`); err != nil {
			return err
		}
	}
	return nil
}

// ArchiveClosedMonths moves every movement from months strictly before the
// current one into its month's cold segment, then deletes the live rows.
// Months are processed ascending, each with archive-then-delete ordering: a
// failure mid-month leaves that month's live rows untouched and earlier
// committed months intact. Archive inserts are keyed by source id, so
// re-running is idempotent.
func (s *Store) ArchiveClosedMonths(ctx context.Context) error {
	currentMonth := s.now().UTC().Format("2006-01")

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT SUBSTR(timestamp, 1, 7) AS month_key
		FROM stock_logs
		WHERE SUBSTR(timestamp, 1, 7) < ?
		ORDER BY month_key ASC
	`, currentMonth)
	if err != nil {
		return err
	}
	months := make([]string, 0, 4)
	for rows.Next() {
		var monthKey string
		if err := rows.Scan(&monthKey); err != nil {
			rows.Close()
			return err
		}
		months = append(months, monthKey)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, monthKey := range months {
		if err := s.archiveMonth(ctx, monthKey); err != nil {
			return fmt.Errorf("archive month %s: %w", monthKey, err)
		}
	}
	return nil
}

func (s *Store) archiveMonth(ctx context.Context, monthKey string) error {
	logs, err := s.loadMonthRows(ctx, monthKey)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}

	if err := s.writeArchiveSegment(ctx, monthKey, logs); err != nil {
		return err
	}

	// Delete only after the segment is committed.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM stock_logs WHERE SUBSTR(timestamp, 1, 7) = ?
	`, monthKey); err != nil {
		return err
	}
	return tx.Commit()
}

// loadMonthRows joins a closed month's movements with the product's current
// name and prices. Archived rows freeze this snapshot as of archive time, not
// as of the original transaction.
func (s *Store) loadMonthRows(ctx context.Context, monthKey string) ([]archivedRow, error) {
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
		WHERE SUBSTR(l.timestamp, 1, 7) = ?
		ORDER BY l.id ASC
	`, monthKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]archivedRow, 0, 256)
	for rows.Next() {
		var row archivedRow
		var orderID sql.NullInt64
		if err := rows.Scan(&row.sourceID, &row.timestamp, &row.movementType, &row.barcode, &row.name, &row.changeQty, &row.purchasePrice, &row.retailPrice, &orderID); err != nil {
			return nil, err
		}
		if orderID.Valid {
			id := orderID.Int64
			row.saleOrderID = &id
		}
		logs = append(logs, row)
	}
	return logs, rows.Err()
}

func (s *Store) writeArchiveSegment(ctx context.Context, monthKey string, logs []archivedRow) error {
	archiveDB, err := openDB(s.archiveDBPath(monthKey))
	if err != nil {
		return err
	}
	defer archiveDB.Close()

	if err := ensureArchiveSchema(ctx, archiveDB); err != nil {
		return err
	}

	tx, err := archiveDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, row := range logs {
		var orderID any
		if row.saleOrderID != nil {
			orderID = *row.saleOrderID
		}
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO archived_stock_logs
			(source_id, timestamp, type, barcode, name, change_qty, purchase_price, retail_price, sale_order_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, row.sourceID, row.timestamp, row.movementType, row.barcode, row.name, row.changeQty, row.purchasePrice, row.retailPrice, orderID)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// loadArchiveDayRows reads the day's rows from its month's cold segment.
// An absent segment means no archived history for that month.
func (s *Store) loadArchiveDayRows(ctx context.Context, day string) ([]archivedRow, error) {
	if len(day) < 7 {
		return nil, fmt.Errorf("invalid day: %q", day)
	}
	path := s.archiveDBPath(day[:7])
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	archiveDB, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer archiveDB.Close()

	if err := ensureArchiveSchema(ctx, archiveDB); err != nil {
		return nil, err
	}

	rows, err := archiveDB.QueryContext(ctx, `
		SELECT source_id, timestamp, type, barcode, name, change_qty, purchase_price, retail_price, sale_order_id
		FROM archived_stock_logs
		WHERE DATE(timestamp) = ?
		ORDER BY timestamp ASC, source_id ASC
	`, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]archivedRow, 0, 64)
	for rows.Next() {
		var row archivedRow
		var orderID sql.NullInt64
		if err := rows.Scan(&row.sourceID, &row.timestamp, &row.movementType, &row.barcode, &row.name, &row.changeQty, &row.purchasePrice, &row.retailPrice, &orderID); err != nil {
			return nil, err
		}
		if orderID.Valid {
			id := orderID.Int64
			row.saleOrderID = &id
		}
		logs = append(logs, row)
	}
	return logs, rows.Err()
}
