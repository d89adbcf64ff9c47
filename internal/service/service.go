package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"smartledger/backend/internal/domain"
	"smartledger/backend/internal/logger"
	"smartledger/backend/internal/metrics"
	"smartledger/backend/internal/report"
	"smartledger/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service is the ledger engine. Every write goes through exactly one
// Repository call so each operation commits or fails as a whole.
type Service struct {
	repo    store.Repository
	reports *report.Builder
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func New(repo store.Repository, reports *report.Builder, m *metrics.Metrics, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if reports == nil {
		reports = report.NewBuilder(repo, nil, 0, m, log)
	}

	return &Service{
		repo:    repo,
		reports: reports,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

func (s *Service) AddProduct(ctx context.Context, name string, priceCents int64, qty int) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" || priceCents < 0 {
		return nil, s.reject(ctx, "restock", store.ErrInvalidInput, zap.String("name", name))
	}
	if qty < 1 {
		return nil, s.reject(ctx, "restock", store.ErrInvalidQuantity, zap.String("name", name), zap.Int("quantity", qty))
	}

	product, err := s.repo.RestockProduct(ctx, name, priceCents, qty)
	if err != nil {
		return nil, s.fail(ctx, "restock", err, zap.String("name", name))
	}

	s.succeed(ctx, "restock", "product restocked",
		zap.Int64("product_id", product.ID),
		zap.String("name", product.Name),
		zap.String("price", domain.FormatCents(product.PriceCents)),
		zap.Int("added", qty),
		zap.Int("stock", product.Stock),
	)
	return product, nil
}

func (s *Service) ProcessSale(ctx context.Context, req domain.SaleRequest) (*domain.Sale, error) {
	name := strings.TrimSpace(req.ProductName)
	paymentType, known := domain.NormalizePaymentType(req.PaymentType)
	if !known {
		s.logFor(ctx).Warn("unrecognized payment type, defaulting to cash",
			zap.String("payment_type", req.PaymentType),
		)
	}

	sale, err := s.repo.CreateSale(ctx, domain.SaleDraft{
		ProductName: name,
		Quantity:    req.Quantity,
		PaymentType: paymentType,
		SaleDate:    s.now().UTC(),
	})
	if err != nil {
		return nil, s.fail(ctx, "process_sale", err,
			zap.String("product", name),
			zap.Int("quantity", req.Quantity),
		)
	}

	fields := []zap.Field{
		zap.Int64("sale_id", sale.ID),
		zap.String("product", sale.ProductName),
		zap.Int("quantity", sale.Quantity),
		zap.String("total", domain.FormatCents(sale.TotalCents)),
		zap.String("payment_type", sale.PaymentType),
		zap.String("status", sale.Status),
	}
	if sale.DueDate != nil {
		fields = append(fields, zap.String("due_date", sale.DueDate.Format("2006-01-02")))
	}
	s.succeed(ctx, "process_sale", "sale processed", fields...)
	return sale, nil
}

func (s *Service) RecordPayment(ctx context.Context, saleID int64, amountCents int64, notes string) (*domain.PaymentReceipt, error) {
	if amountCents < 1 {
		return nil, s.reject(ctx, "record_payment", store.ErrInvalidAmount, zap.Int64("sale_id", saleID))
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		notes = domain.CreditPaymentNote
	}

	receipt, err := s.repo.RecordPayment(ctx, domain.PaymentDraft{
		SaleID:      saleID,
		AmountCents: amountCents,
		Notes:       notes,
		PaidAt:      s.now().UTC(),
	})
	if err != nil {
		return nil, s.fail(ctx, "record_payment", err, zap.Int64("sale_id", saleID))
	}

	s.succeed(ctx, "record_payment", "payment recorded",
		zap.Int64("sale_id", saleID),
		zap.Int64("payment_id", receipt.Payment.ID),
		zap.String("amount", domain.FormatCents(amountCents)),
		zap.String("remaining", domain.FormatCents(receipt.RemainingCents)),
		zap.String("status", receipt.Status),
	)
	return receipt, nil
}

func (s *Service) MarkBadDebt(ctx context.Context, saleID int64) (*domain.Sale, error) {
	sale, err := s.repo.MarkBadDebt(ctx, saleID)
	if err != nil {
		return nil, s.fail(ctx, "mark_bad_debt", err, zap.Int64("sale_id", saleID))
	}

	s.succeed(ctx, "mark_bad_debt", "sale written off",
		zap.Int64("sale_id", sale.ID),
		zap.String("total", domain.FormatCents(sale.TotalCents)),
	)
	return sale, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, name string) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrInvalidInput
	}
	return s.repo.GetProductByName(ctx, name)
}

func (s *Service) GetSale(ctx context.Context, saleID int64) (domain.SaleDetail, error) {
	sale, err := s.repo.FindSaleByID(ctx, saleID)
	if err != nil {
		return domain.SaleDetail{}, err
	}
	payments, err := s.repo.ListPayments(ctx, saleID)
	if err != nil {
		return domain.SaleDetail{}, err
	}

	paid := int64(0)
	for _, p := range payments {
		paid += p.AmountCents
	}
	return domain.SaleDetail{
		Sale:             *sale,
		Payments:         payments,
		PaidCents:        paid,
		OutstandingCents: domain.OutstandingCents(sale.TotalCents, paid),
	}, nil
}

// ListSales accepts an empty status for all sales, otherwise one of the three
// statuses in any letter case.
func (s *Service) ListSales(ctx context.Context, status string) ([]domain.Sale, error) {
	normalized, err := normalizeStatus(status)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, normalized)
}

// PendingDues lists every Pending sale with its balance, earliest due first,
// flagging those whose due date fell before asOf.
func (s *Service) PendingDues(ctx context.Context, asOf time.Time) (domain.DuesResponse, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	asOf = domain.CalendarDate(asOf)

	sales, err := s.repo.ListSales(ctx, domain.SaleStatusPending)
	if err != nil {
		return domain.DuesResponse{}, err
	}

	ids := make([]int64, 0, len(sales))
	for _, sale := range sales {
		ids = append(ids, sale.ID)
	}
	paid, err := s.repo.GetPaidTotals(ctx, ids)
	if err != nil {
		return domain.DuesResponse{}, err
	}

	resp := domain.DuesResponse{
		AsOf: asOf.Format("2006-01-02"),
		Dues: make([]domain.PendingDue, 0, len(sales)),
	}
	for _, sale := range sales {
		due := domain.PendingDue{
			Sale:             sale,
			PaidCents:        paid[sale.ID],
			OutstandingCents: domain.OutstandingCents(sale.TotalCents, paid[sale.ID]),
			Overdue:          domain.IsOverdue(sale, asOf),
		}
		resp.OutstandingCents += due.OutstandingCents
		if due.Overdue {
			resp.OverdueCount++
		}
		resp.Dues = append(resp.Dues, due)
	}

	sort.SliceStable(resp.Dues, func(i, j int) bool {
		a, b := resp.Dues[i].Sale, resp.Dues[j].Sale
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return a.ID < b.ID
		case a.DueDate == nil:
			return false
		case b.DueDate == nil:
			return true
		case a.DueDate.Equal(*b.DueDate):
			return a.ID < b.ID
		default:
			return a.DueDate.Before(*b.DueDate)
		}
	})
	return resp, nil
}

func (s *Service) Dashboard(ctx context.Context) (domain.DashboardSummary, error) {
	return s.reports.Summary(ctx)
}

func (s *Service) logFor(ctx context.Context) *zap.Logger {
	log := s.log
	if scoped, ok := logger.Lookup(ctx); ok {
		log = scoped
	}
	if actor, ok := ActorFromContext(ctx); ok {
		log = log.With(zap.String("actor", actor.Username))
	}
	return log
}

func (s *Service) succeed(ctx context.Context, operation string, msg string, fields ...zap.Field) {
	s.metrics.LedgerOperation(operation, "ok")
	s.reports.Invalidate(ctx)
	s.logFor(ctx).Info(msg, fields...)
}

func (s *Service) reject(ctx context.Context, operation string, err error, fields ...zap.Field) error {
	s.metrics.LedgerOperation(operation, outcome(err))
	s.logFor(ctx).Warn(operation+" rejected", append(fields, zap.Error(err))...)
	return err
}

// fail records a store error. Validation sentinels come back unchanged;
// anything else is wrapped with the operation name.
func (s *Service) fail(ctx context.Context, operation string, err error, fields ...zap.Field) error {
	if isLedgerRejection(err) {
		return s.reject(ctx, operation, err, fields...)
	}
	s.metrics.LedgerOperation(operation, outcome(err))
	s.logFor(ctx).Error(operation+" failed", append(fields, zap.Error(err))...)
	return fmt.Errorf("%s: %w", operation, err)
}

func isLedgerRejection(err error) bool {
	return errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrInvalidInput) ||
		errors.Is(err, store.ErrInvalidQuantity) ||
		errors.Is(err, store.ErrInvalidAmount) ||
		errors.Is(err, store.ErrInsufficientStock)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, store.ErrInvalidInput), errors.Is(err, store.ErrInvalidQuantity), errors.Is(err, store.ErrInvalidAmount):
		return "invalid"
	default:
		return "error"
	}
}

func normalizeStatus(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	for _, status := range []string{domain.SaleStatusPaid, domain.SaleStatusPending, domain.SaleStatusBadDebt} {
		if strings.EqualFold(trimmed, status) {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", store.ErrInvalidInput, raw)
}
