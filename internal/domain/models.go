package domain

import "time"

const (
	PaymentTypeCash   = "Cash"
	PaymentTypeEMI    = "EMI"
	PaymentTypeCredit = "Credit"
)

const (
	SaleStatusPaid    = "Paid"
	SaleStatusPending = "Pending"
	SaleStatusBadDebt = "Bad Debt"
)

const (
	CashPaymentNote   = "Cash payment"
	CreditPaymentNote = "EMI/Credit payment"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

type Product struct {
	ID         int64  `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
}

type Sale struct {
	ID          int64      `json:"sale_id"`
	ProductName string     `json:"product_name"`
	Quantity    int        `json:"quantity"`
	TotalCents  int64      `json:"total_cents"`
	PaymentType string     `json:"payment_type"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	SaleDate    time.Time  `json:"sale_date"`
}

type Payment struct {
	ID          int64     `json:"payment_id"`
	SaleID      int64     `json:"sale_id"`
	AmountCents int64     `json:"amount_paid_cents"`
	PaymentDate time.Time `json:"payment_date"`
	Notes       string    `json:"notes,omitempty"`
}

// SaleDraft is what the ledger hands to a store when processing a sale. The
// store reads price and stock inside its transaction and fills in the rest.
type SaleDraft struct {
	ProductName string
	Quantity    int
	PaymentType string
	SaleDate    time.Time
}

type PaymentDraft struct {
	SaleID      int64
	AmountCents int64
	Notes       string
	PaidAt      time.Time
}

type PaymentReceipt struct {
	Payment        Payment `json:"payment"`
	Status         string  `json:"status"`
	PaidCents      int64   `json:"paid_cents"`
	RemainingCents int64   `json:"remaining_cents"`
}

type SaleDetail struct {
	Sale             Sale      `json:"sale"`
	Payments         []Payment `json:"payments"`
	PaidCents        int64     `json:"paid_cents"`
	OutstandingCents int64     `json:"outstanding_cents"`
}

type PendingDue struct {
	Sale             Sale  `json:"sale"`
	PaidCents        int64 `json:"paid_cents"`
	OutstandingCents int64 `json:"outstanding_cents"`
	Overdue          bool  `json:"overdue"`
}

type DuesResponse struct {
	AsOf             string       `json:"as_of"`
	Dues             []PendingDue `json:"dues"`
	OutstandingCents int64        `json:"outstanding_cents"`
	OverdueCount     int          `json:"overdue_count"`
}

type RestockRequest struct {
	Name     string `json:"name"`
	Price    Amount `json:"price"`
	Quantity int    `json:"quantity"`
}

type SaleRequest struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	PaymentType string `json:"payment_type"`
}

type PaymentRequest struct {
	Amount Amount `json:"amount"`
	Notes  string `json:"notes,omitempty"`
}

type SalesTotals struct {
	Orders       int64 `json:"orders"`
	ItemsSold    int64 `json:"items_sold"`
	RevenueCents int64 `json:"revenue_cents"`
}

type BreakdownRow struct {
	Key          string `json:"key"`
	Orders       int64  `json:"orders"`
	RevenueCents int64  `json:"revenue_cents"`
}

// LedgerStats is the raw aggregate a store returns for the dashboard.
type LedgerStats struct {
	Totals           SalesTotals    `json:"totals"`
	CollectedCents   int64          `json:"collected_cents"`
	OutstandingCents int64          `json:"outstanding_cents"`
	WrittenOffCents  int64          `json:"written_off_cents"`
	ByPaymentType    []BreakdownRow `json:"by_payment_type"`
	ByStatus         []BreakdownRow `json:"by_status"`
	ByProduct        []BreakdownRow `json:"by_product"`
}

type DashboardSummary struct {
	LedgerStats
	AverageTicketCents int64  `json:"average_ticket_cents"`
	GeneratedAt        string `json:"generated_at"`
	Cached             bool   `json:"cached"`
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

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
