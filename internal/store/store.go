package store

import (
	"context"
	"errors"
	"fmt"

	"gudangku/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidQuantity   = errors.New("quantity must be greater than zero")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNegativeReceived  = errors.New("received amount cannot be negative")
	ErrOverReceived      = errors.New("received amount cannot exceed amount due")
)

// InsufficientStockError carries enough context for a user-facing message.
// errors.Is(err, ErrInsufficientStock) matches it.
type InsufficientStockError struct {
	Barcode    string
	Name       string
	CurrentQty int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %s (current %d)", e.Name, e.CurrentQty)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Repository is the durable ledger and query surface. The sqlite package is
// the only implementation; all mutations run inside a single exclusive
// transaction and roll back atomically on any failure.
type Repository interface {
	UpsertProduct(ctx context.Context, product domain.Product) error
	GetProduct(ctx context.Context, barcode string) (*domain.Product, error)
	ListProductsWithStock(ctx context.Context) ([]domain.ProductStock, error)
	ListProductBarcodes(ctx context.Context) ([]string, error)
	CurrentStock(ctx context.Context, barcode string) (int, error)

	StockIn(ctx context.Context, barcode string, quantity int, batchNo string, expiryDate string) error
	StockOut(ctx context.Context, items []domain.CartItem, receivedAmount *float64) (domain.CheckoutResult, error)

	LowStockProducts(ctx context.Context) ([]domain.LowStockProduct, error)
	ExpiringBatches(ctx context.Context, withinDays int) ([]domain.ExpiringBatch, error)

	DailySummary(ctx context.Context, day string) (domain.DailySummary, error)
	DailyTransactions(ctx context.Context, day string) ([]domain.MovementRow, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error

	Close() error
}
