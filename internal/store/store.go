package store

import (
	"context"
	"errors"

	"smartledger/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrDuplicate         = errors.New("already exists")
)

// Repository is the durable ledger state. Every write method is a single
// atomic unit of work: on error nothing it attempted is persisted.
type Repository interface {
	// RestockProduct creates the product or, when the name exists, overwrites
	// its price and adds qty to its stock.
	RestockProduct(ctx context.Context, name string, priceCents int64, qty int) (*domain.Product, error)
	GetProductByName(ctx context.Context, name string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// CreateSale checks, in order, that the product exists, the quantity is
	// positive and stock covers it, then decrements stock, inserts the sale and
	// for Cash also inserts the full settlement payment.
	CreateSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error)
	FindSaleByID(ctx context.Context, id int64) (*domain.Sale, error)
	ListSales(ctx context.Context, status string) ([]domain.Sale, error)

	// RecordPayment appends a payment and recomputes the sale status from the
	// cumulative amount paid.
	RecordPayment(ctx context.Context, draft domain.PaymentDraft) (*domain.PaymentReceipt, error)
	ListPayments(ctx context.Context, saleID int64) ([]domain.Payment, error)
	GetPaidTotals(ctx context.Context, saleIDs []int64) (map[int64]int64, error)
	MarkBadDebt(ctx context.Context, id int64) (*domain.Sale, error)

	GetLedgerStats(ctx context.Context) (domain.LedgerStats, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
