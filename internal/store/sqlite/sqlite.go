// Package sqlite implements the store.Repository on file-backed SQLite
// databases: one live store file plus per-month cold archive segments next to
// it. Every database is schema-self-initializing so a fresh file, a legacy
// file predating the sales-order tables, and an old archive segment all open
// cleanly.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"gudangku/backend/internal/domain"
	"gudangku/backend/internal/store"
)

const (
	timeLayout = "2006-01-02 15:04:05"
	dayLayout  = "2006-01-02"
)

type Store struct {
	db         *sql.DB
	path       string
	archiveDir string

	// mu serializes mutations: single active-writer model. Reads skip the
	// mutex but share the single pooled connection, so they still queue
	// behind an in-flight write.
	mu  sync.Mutex
	now func() time.Time
}

// Open opens (creating if needed) the store file at path, applies schema
// evolution and the first-open totals backfill, then archives closed-month
// movement history before any query runs.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is empty")
	}
	dir := filepath.Dir(path)
	archiveDir := filepath.Join(dir, "archives")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return nil, err
	}

	db, err := openDB(path)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:         db,
		path:       path,
		archiveDir: archiveDir,
		now:        time.Now,
	}

	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.ensureSalesSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.ensureTotalsBackfilled(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.ArchiveClosedMonths(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func openDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single pooled connection keeps transactions
	// from contending with themselves.
	db.SetMaxOpenConns(1)
	return db, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the store file this instance is bound to.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	// stock_logs deliberately omits sale_order_id here: the column arrived
	// after the ledger existed and ensureSalesSchema adds it, so legacy files
	// and fresh files converge on the same shape.
	const schema = `
		CREATE TABLE IF NOT EXISTS products (
			barcode TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			purchase_price REAL NOT NULL DEFAULT 0,
			retail_price REAL NOT NULL DEFAULT 0,
			min_stock INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS stock_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			type TEXT NOT NULL,
			barcode TEXT NOT NULL,
			change_qty INTEGER NOT NULL,
			FOREIGN KEY (barcode) REFERENCES products (barcode)
		);
		CREATE INDEX IF NOT EXISTS idx_stock_logs_timestamp ON stock_logs(timestamp);
		CREATE TABLE IF NOT EXISTS expiry_management (
			barcode TEXT NOT NULL,
			batch_no TEXT NOT NULL,
			expiry_date TEXT NOT NULL,
			current_qty INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (barcode, batch_no, expiry_date),
			FOREIGN KEY (barcode) REFERENCES products (barcode)
		);
		CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'cashier',
			active INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// ensureSalesSchema applies the order-based sales evolution: the
// sale_order_id column on stock_logs plus the sales order tables.
func (s *Store) ensureSalesSchema(ctx context.Context) error {
	hasColumn, err := tableHasColumn(ctx, s.db, "stock_logs", "sale_order_id")
	if err != nil {
		return err
	}
	if !hasColumn {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE stock_logs ADD COLUMN sale_order_id INTEGER`); err != nil {
			return err
		}
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS sales_orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			total_due REAL NOT NULL,
			total_received REAL NOT NULL,
			discount REAL NOT NULL DEFAULT 0,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS sales_order_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id INTEGER NOT NULL,
			barcode TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_retail_price REAL NOT NULL,
			unit_purchase_price REAL NOT NULL,
			FOREIGN KEY (order_id) REFERENCES sales_orders (id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_sales_orders_timestamp ON sales_orders(timestamp);
	`)
	return err
}

// ensureTotalsBackfilled creates the running-totals table and, on first open
// of a store that already has movement history, rebuilds totals by summing
// the full ledger. Afterwards every product is guaranteed a totals row.
func (s *Store) ensureTotalsBackfilled(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS stock_totals (
			barcode TEXT PRIMARY KEY,
			current_qty INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (barcode) REFERENCES products (barcode)
		)
	`); err != nil {
		return err
	}

	var totalsCount, logsCount int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM stock_totals`).Scan(&totalsCount); err != nil {
		return err
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM stock_logs`).Scan(&logsCount); err != nil {
		return err
	}

	if totalsCount == 0 && logsCount > 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stock_totals(barcode, current_qty)
			SELECT barcode, COALESCE(SUM(change_qty), 0)
			FROM stock_logs
			GROUP BY barcode
		`); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO stock_totals(barcode, current_qty)
		SELECT barcode, 0 FROM products
	`); err != nil {
		return err
	}

	return tx.Commit()
}

func tableHasColumn(ctx context.Context, db *sql.DB, table string, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (s *Store) UpsertProduct(ctx context.Context, product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (barcode, name, category, purchase_price, retail_price, min_stock)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(barcode) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			purchase_price = excluded.purchase_price,
			retail_price = excluded.retail_price,
			min_stock = excluded.min_stock
	`, product.Barcode, product.Name, product.Category, product.PurchasePrice, product.RetailPrice, product.MinStock)
	if err != nil {
		return err
	}

	// Upserting never touches an existing total.
	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO stock_totals(barcode, current_qty) VALUES (?, 0)
	`, product.Barcode)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) GetProduct(ctx context.Context, barcode string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT barcode, name, category, purchase_price, retail_price, min_stock
		FROM products
		WHERE barcode = ?
	`, barcode).Scan(&p.Barcode, &p.Name, &p.Category, &p.PurchasePrice, &p.RetailPrice, &p.MinStock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListProductsWithStock(ctx context.Context) ([]domain.ProductStock, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			p.barcode, p.name, p.category, p.purchase_price, p.retail_price, p.min_stock,
			COALESCE(t.current_qty, 0) AS current_stock
		FROM products p
		LEFT JOIN stock_totals t ON t.barcode = p.barcode
		ORDER BY p.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.ProductStock, 0, 128)
	for rows.Next() {
		var p domain.ProductStock
		if err := rows.Scan(&p.Barcode, &p.Name, &p.Category, &p.PurchasePrice, &p.RetailPrice, &p.MinStock, &p.CurrentStock); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) ListProductBarcodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT barcode FROM products ORDER BY barcode ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	barcodes := make([]string, 0, 128)
	for rows.Next() {
		var barcode string
		if err := rows.Scan(&barcode); err != nil {
			return nil, err
		}
		barcodes = append(barcodes, barcode)
	}
	return barcodes, rows.Err()
}

func (s *Store) CurrentStock(ctx context.Context, barcode string) (int, error) {
	var qty int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(current_qty, 0) FROM stock_totals WHERE barcode = ?
	`, barcode).Scan(&qty)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return qty, nil
}

func (s *Store) LowStockProducts(ctx context.Context) ([]domain.LowStockProduct, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			p.barcode, p.name, p.min_stock,
			COALESCE(t.current_qty, 0) AS current_stock
		FROM products p
		LEFT JOIN stock_totals t ON t.barcode = p.barcode
		WHERE COALESCE(t.current_qty, 0) < p.min_stock
		ORDER BY current_stock ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	low := make([]domain.LowStockProduct, 0, 16)
	for rows.Next() {
		var p domain.LowStockProduct
		if err := rows.Scan(&p.Barcode, &p.Name, &p.MinStock, &p.CurrentStock); err != nil {
			return nil, err
		}
		low = append(low, p)
	}
	return low, rows.Err()
}

func (s *Store) ExpiringBatches(ctx context.Context, withinDays int) ([]domain.ExpiringBatch, error) {
	end := s.now().UTC().AddDate(0, 0, withinDays).Format(dayLayout)

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.barcode, p.name, e.batch_no, e.expiry_date, e.current_qty
		FROM expiry_management e
		JOIN products p ON p.barcode = e.barcode
		WHERE e.current_qty > 0
		  AND e.expiry_date <= ?
		ORDER BY e.expiry_date ASC
	`, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := make([]domain.ExpiringBatch, 0, 16)
	for rows.Next() {
		var b domain.ExpiringBatch
		if err := rows.Scan(&b.Barcode, &b.Name, &b.BatchNo, &b.ExpiryDate, &b.CurrentQty); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}
	active := 0
	if user.Active {
		active = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, user.Username, user.Password, user.Role, active, user.CreatedAt.Format(timeLayout))
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("user already exists: %s", user.Username)
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at FROM users ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		var active int
		var created string
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &active, &created); err != nil {
			return nil, err
		}
		user.Active = active != 0
		if parsed, err := time.ParseInLocation(timeLayout, created, time.UTC); err == nil {
			user.CreatedAt = parsed
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = ? WHERE username = ?
	`, password, username)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
