package domain

import "time"

// MovementType is the closed set of ledger entry categories. Movements are
// persisted with these exact values; free-form strings never reach the store.
type MovementType string

const (
	MovementPurchase MovementType = "PURCHASE"
	MovementSale     MovementType = "SALE"
)

type Product struct {
	Barcode       string  `json:"barcode"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	PurchasePrice float64 `json:"purchase_price"`
	RetailPrice   float64 `json:"retail_price"`
	MinStock      int     `json:"min_stock"`
}

// ProductStock is a catalog row joined with its running total.
type ProductStock struct {
	Product
	CurrentStock int `json:"current_stock"`
}

type LowStockProduct struct {
	Barcode      string `json:"barcode"`
	Name         string `json:"name"`
	MinStock     int    `json:"min_stock"`
	CurrentStock int    `json:"current_stock"`
}

type ExpiringBatch struct {
	Barcode    string `json:"barcode"`
	Name       string `json:"name"`
	BatchNo    string `json:"batch_no"`
	ExpiryDate string `json:"expiry_date"`
	CurrentQty int    `json:"current_qty"`
}

type CartItem struct {
	Barcode  string `json:"barcode"`
	Quantity int    `json:"quantity"`
}

// MovementRow is a ledger entry joined with its product snapshot, as consumed
// by reporting. Timestamp keeps the store's "2006-01-02 15:04:05" UTC text
// form so merged live/archive rows sort identically to their persisted order.
type MovementRow struct {
	SourceID      int64        `json:"source_id"`
	Timestamp     string       `json:"timestamp"`
	Type          MovementType `json:"type"`
	Barcode       string       `json:"barcode"`
	Name          string       `json:"name"`
	ChangeQty     int          `json:"change_qty"`
	PurchasePrice float64      `json:"purchase_price"`
	RetailPrice   float64      `json:"retail_price"`
	SaleOrderID   *int64       `json:"sale_order_id,omitempty"`
}

// SaleAttribution names the revenue path a movement belongs to. Sales written
// before the order tables existed carry no order id and are summed directly;
// order-backed sales are attributed through their sales order instead.
type SaleAttribution int

const (
	NotSale SaleAttribution = iota
	LegacySale
	OrderedSale
)

func (m MovementRow) Attribution() SaleAttribution {
	if m.Type != MovementSale {
		return NotSale
	}
	if m.SaleOrderID == nil {
		return LegacySale
	}
	return OrderedSale
}

// CheckoutResult reports the money outcome of a completed stock-out.
// All values are rounded to 2 decimals.
type CheckoutResult struct {
	TotalDue      float64 `json:"total_due"`
	TotalReceived float64 `json:"total_received"`
	Discount      float64 `json:"discount"`
	Revenue       float64 `json:"revenue"`
	Cost          float64 `json:"cost"`
	Profit        float64 `json:"profit"`
}

type DailySummary struct {
	Date         string  `json:"date"`
	Revenue      float64 `json:"revenue"`
	PurchaseCost float64 `json:"purchase_cost"`
	GrossProfit  float64 `json:"gross_profit"`
}

type ProductUpsertRequest struct {
	Barcode       string  `json:"barcode"`
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	PurchasePrice float64 `json:"purchase_price"`
	RetailPrice   float64 `json:"retail_price"`
	MinStock      int     `json:"min_stock"`
}

type StockInRequest struct {
	Barcode    string `json:"barcode"`
	Quantity   int    `json:"quantity"`
	BatchNo    string `json:"batch_no,omitempty"`
	ExpiryDate string `json:"expiry_date,omitempty"`
}

type CheckoutRequest struct {
	Items          []CartItem `json:"items"`
	ReceivedAmount *float64   `json:"received_amount,omitempty"`
}

type DailyReportResponse struct {
	Summary      DailySummary  `json:"summary"`
	Transactions []MovementRow `json:"transactions"`
}

type ExportReportRequest struct {
	Date      string `json:"date,omitempty"`
	OutputDir string `json:"output_dir,omitempty"`
}

type ExportReportResponse struct {
	Path string `json:"path"`
}

type StoreSwitchRequest struct {
	Path string `json:"path"`
}

type ActiveStoreResponse struct {
	Path string `json:"path"`
}

type AlertsResponse struct {
	Alerts []string `json:"alerts"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
