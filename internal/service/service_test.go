package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"smartledger/backend/internal/domain"
	"smartledger/backend/internal/metrics"
	"smartledger/backend/internal/report"
	"smartledger/backend/internal/store"
	"smartledger/backend/internal/store/memory"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memory.Store, *observer.ObservedLogs) {
	t.Helper()

	repo := memory.New()
	core, logs := observer.New(zapcore.DebugLevel)
	svc := New(repo, nil, metrics.New("service-test"), zap.New(core))
	svc.now = func() time.Time { return fixedNow }
	return svc, repo, logs
}

func TestPenExampleEMILifecycle(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddProduct(ctx, "Pen", 200, 10); err != nil {
		t.Fatalf("add product: %v", err)
	}

	sale, err := svc.ProcessSale(ctx, domain.SaleRequest{ProductName: "Pen", Quantity: 3, PaymentType: "EMI"})
	if err != nil {
		t.Fatalf("process sale: %v", err)
	}
	if sale.TotalCents != 600 || sale.Status != domain.SaleStatusPending {
		t.Fatalf("unexpected sale: %+v", sale)
	}
	if sale.DueDate == nil || sale.DueDate.Format("2006-01-02") != "2024-03-31" {
		t.Fatalf("expected due date 2024-03-31, got %v", sale.DueDate)
	}

	product, _ := repo.GetProductByName(ctx, "Pen")
	if product.Stock != 7 {
		t.Fatalf("expected stock 7, got %d", product.Stock)
	}

	receipt, err := svc.RecordPayment(ctx, sale.ID, 200, "")
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if receipt.Status != domain.SaleStatusPending || receipt.RemainingCents != 400 {
		t.Fatalf("expected pending with 4.00 remaining, got %+v", receipt)
	}

	receipt, err = svc.RecordPayment(ctx, sale.ID, 400, "")
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if receipt.Status != domain.SaleStatusPaid {
		t.Fatalf("expected paid, got %s", receipt.Status)
	}

	detail, err := svc.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(detail.Payments) != 2 || detail.PaidCents != 600 || detail.OutstandingCents != 0 {
		t.Fatalf("unexpected sale detail: %+v", detail)
	}
	for _, p := range detail.Payments {
		if p.Notes != domain.CreditPaymentNote {
			t.Fatalf("expected default note, got %q", p.Notes)
		}
	}
}

func TestCashSaleIsSettledImmediately(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddProduct(ctx, "Notebook", 450, 5); err != nil {
		t.Fatalf("add product: %v", err)
	}
	sale, err := svc.ProcessSale(ctx, domain.SaleRequest{ProductName: "Notebook", Quantity: 2, PaymentType: "cash"})
	if err != nil {
		t.Fatalf("process sale: %v", err)
	}
	if sale.PaymentType != domain.PaymentTypeCash || sale.Status != domain.SaleStatusPaid || sale.DueDate != nil {
		t.Fatalf("unexpected cash sale: %+v", sale)
	}

	detail, err := svc.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(detail.Payments) != 1 {
		t.Fatalf("expected exactly one payment, got %d", len(detail.Payments))
	}
	payment := detail.Payments[0]
	if payment.AmountCents != 900 || payment.Notes != domain.CashPaymentNote || !payment.PaymentDate.Equal(sale.SaleDate) {
		t.Fatalf("unexpected cash payment: %+v", payment)
	}
}

func TestCreditSaleDueInFifteenDays(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddProduct(ctx, "Stapler", 1299, 3); err != nil {
		t.Fatalf("add product: %v", err)
	}
	sale, err := svc.ProcessSale(ctx, domain.SaleRequest{ProductName: "Stapler", Quantity: 1, PaymentType: "CREDIT"})
	if err != nil {
		t.Fatalf("process sale: %v", err)
	}
	if sale.PaymentType != domain.PaymentTypeCredit || sale.DueDate.Format("2006-01-02") != "2024-03-16" {
		t.Fatalf("unexpected credit sale: %+v due=%v", sale, sale.DueDate)
	}
}

func TestUnknownPaymentTypeFallsBackToCash(t *testing.T) {
	svc, _, logs := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddProduct(ctx, "Pen", 200, 5); err != nil {
		t.Fatalf("add product: %v", err)
	}
	sale, err := svc.ProcessSale(ctx, domain.SaleRequest{ProductName: "Pen", Quantity: 1, PaymentType: "bitcoin"})
	if err != nil {
		t.Fatalf("process sale: %v", err)
	}
	if sale.PaymentType != domain.PaymentTypeCash || sale.Status != domain.SaleStatusPaid {
		t.Fatalf("expected cash fallback, got %+v", sale)
	}
	if logs.FilterLevelExact(zapcore.WarnLevel).FilterField(zap.String("payment_type", "bitcoin")).Len() != 1 {
		t.Fatalf("expected a warning for the unknown payment type")
	}
}

func TestProcessSaleRejectionsLeaveStateUnchanged(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddProduct(ctx, "Pen", 200, 2); err != nil {
		t.Fatalf("add product: %v", err)
	}

	cases := []struct {
		name string
		req  domain.SaleRequest
		want error
	}{
		{"unknown product", domain.SaleRequest{ProductName: "Eraser", Quantity: 1, PaymentType: "Cash"}, store.ErrNotFound},
		{"zero quantity", domain.SaleRequest{ProductName: "Pen", Quantity: 0, PaymentType: "Cash"}, store.ErrInvalidQuantity},
		{"negative quantity", domain.SaleRequest{ProductName: "Pen", Quantity: -4, PaymentType: "EMI"}, store.ErrInvalidQuantity},
		{"over stock", domain.SaleRequest{ProductName: "Pen", Quantity: 3, PaymentType: "Credit"}, store.ErrInsufficientStock},
	}
	for _, tc := range cases {
		sale, err := svc.ProcessSale(ctx, tc.req)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		if sale != nil {
			t.Fatalf("%s: expected nil sale", tc.name)
		}
	}

	product, _ := repo.GetProductByName(ctx, "Pen")
	if product.Stock != 2 {
		t.Fatalf("expected stock to stay 2, got %d", product.Stock)
	}
	sales, _ := svc.ListSales(ctx, "")
	if len(sales) != 0 {
		t.Fatalf("expected no sales, got %d", len(sales))
	}
}

func TestAddProductRestockOverwritesPrice(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddProduct(ctx, "  Pen ", 200, 10); err != nil {
		t.Fatalf("add product: %v", err)
	}
	product, err := svc.AddProduct(ctx, "Pen", 250, 5)
	if err != nil {
		t.Fatalf("restock: %v", err)
	}
	if product.PriceCents != 250 || product.Stock != 15 {
		t.Fatalf("expected 15 units at 2.50, got %+v", product)
	}

	if _, err := svc.AddProduct(ctx, "   ", 100, 1); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank name, got %v", err)
	}
	if _, err := svc.AddProduct(ctx, "Pen", 100, 0); !errors.Is(err, store.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}

	products, _ := svc.ListProducts(ctx)
	if len(products) != 1 {
		t.Fatalf("expected one product, got %d", len(products))
	}
}

func TestGetProductLooksUpByTrimmedName(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddProduct(ctx, "Pen", 200, 10); err != nil {
		t.Fatalf("add product: %v", err)
	}
	product, err := svc.GetProduct(ctx, " Pen ")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.Name != "Pen" || product.Stock != 10 || product.PriceCents != 200 {
		t.Fatalf("unexpected product: %+v", product)
	}
	if _, err := svc.GetProduct(ctx, "Eraser"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetProduct(ctx, "  "); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank name, got %v", err)
	}
}

func TestOverflowingLedgerWritesAreRejected(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddProduct(ctx, "Pen", 1, math.MaxInt32); err != nil {
		t.Fatalf("add product: %v", err)
	}
	if _, err := svc.AddProduct(ctx, "Pen", 1, 1); !errors.Is(err, store.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity past the stock limit, got %v", err)
	}
	pen, err := svc.GetProduct(ctx, "Pen")
	if err != nil {
		t.Fatalf("get pen: %v", err)
	}
	if pen.Stock != math.MaxInt32 {
		t.Fatalf("expected stock to stay %d, got %d", math.MaxInt32, pen.Stock)
	}

	if _, err := svc.AddProduct(ctx, "Gold", math.MaxInt64/2+1, 2); err != nil {
		t.Fatalf("add gold: %v", err)
	}
	if _, err := svc.ProcessSale(ctx, domain.SaleRequest{ProductName: "Gold", Quantity: 2, PaymentType: "EMI"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for an overflowing total, got %v", err)
	}
	sales, _ := repo.ListSales(ctx, "")
	if len(sales) != 0 {
		t.Fatalf("expected no sale to be created, got %d", len(sales))
	}

	sale, err := svc.ProcessSale(ctx, domain.SaleRequest{ProductName: "Pen", Quantity: 1, PaymentType: "Credit"})
	if err != nil {
		t.Fatalf("process sale: %v", err)
	}
	if _, err := svc.RecordPayment(ctx, sale.ID, math.MaxInt64, ""); err != nil {
		t.Fatalf("large payment: %v", err)
	}
	if _, err := svc.RecordPayment(ctx, sale.ID, 1, ""); !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount once the paid total would overflow, got %v", err)
	}
	detail, err := svc.GetSale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if len(detail.Payments) != 1 || detail.PaidCents != math.MaxInt64 {
		t.Fatalf("expected only the first payment, got %+v", detail)
	}
}

func TestRecordPaymentValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddProduct(ctx, "Pen", 200, 5); err != nil {
		t.Fatalf("add product: %v", err)
	}
	sale, err := svc.ProcessSale(ctx, domain.SaleRequest{ProductName: "Pen", Quantity: 1, PaymentType: "EMI"})
	if err != nil {
		t.Fatalf("process sale: %v", err)
	}

	if _, err := svc.RecordPayment(ctx, sale.ID, 0, ""); !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.RecordPayment(ctx, sale.ID, -50, ""); !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.RecordPayment(ctx, 999, 100, ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	detail, _ := svc.GetSale(ctx, sale.ID)
	if len(detail.Payments) != 0 {
		t.Fatalf("expected no payments after rejections, got %d", len(detail.Payments))
	}
}

func TestOverpaymentSettlesSale(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddProduct(ctx, "Pen", 200, 5); err != nil {
		t.Fatalf("add product: %v", err)
	}
	sale, _ := svc.ProcessSale(ctx, domain.SaleRequest{ProductName: "Pen", Quantity: 1, PaymentType: "Credit"})

	receipt, err := svc.RecordPayment(ctx, sale.ID, 500, "settle up")
	if err != nil {
		t.Fatalf("payment: %v", err)
	}
	if receipt.Status != domain.SaleStatusPaid || receipt.RemainingCents != 0 || receipt.PaidCents != 500 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if receipt.Payment.Notes != "settle up" {
		t.Fatalf("expected note to be kept, got %q", receipt.Payment.Notes)
	}
}

func TestMarkBadDebt(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddProduct(ctx, "Pen", 200, 10); err != nil {
		t.Fatalf("add product: %v", err)
	}
	cash, _ := svc.ProcessSale(ctx, domain.SaleRequest{ProductName: "Pen", Quantity: 1, PaymentType: "Cash"})
	credit, _ := svc.ProcessSale(ctx, domain.SaleRequest{ProductName: "Pen", Quantity: 2, PaymentType: "Credit"})

	for _, id := range []int64{cash.ID, credit.ID} {
		sale, err := svc.MarkBadDebt(ctx, id)
		if err != nil {
			t.Fatalf("mark bad debt %d: %v", id, err)
		}
		if sale.Status != domain.SaleStatusBadDebt {
			t.Fatalf("expected bad debt, got %s", sale.Status)
		}
	}

	detail, _ := svc.GetSale(ctx, cash.ID)
	if len(detail.Payments) != 1 {
		t.Fatalf("expected payments untouched, got %d", len(detail.Payments))
	}

	if _, err := svc.MarkBadDebt(ctx, 404); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	receipt, err := svc.RecordPayment(ctx, credit.ID, 100, "late recovery")
	if err != nil {
		t.Fatalf("payment on bad debt: %v", err)
	}
	if receipt.Status != domain.SaleStatusPending {
		t.Fatalf("expected status recomputed to pending, got %s", receipt.Status)
	}

	badDebts, err := svc.ListSales(ctx, "bad debt")
	if err != nil {
		t.Fatalf("list bad debts: %v", err)
	}
	if len(badDebts) != 1 || badDebts[0].ID != cash.ID {
		t.Fatalf("unexpected bad debt list: %+v", badDebts)
	}
}

func TestListSalesRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.ListSales(context.Background(), "refunded"); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPendingDuesFlagsOverdue(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddProduct(ctx, "Pen", 200, 20); err != nil {
		t.Fatalf("add product: %v", err)
	}
	emi, _ := svc.ProcessSale(ctx, domain.SaleRequest{ProductName: "Pen", Quantity: 3, PaymentType: "EMI"})
	credit, _ := svc.ProcessSale(ctx, domain.SaleRequest{ProductName: "Pen", Quantity: 2, PaymentType: "Credit"})
	paidOff, _ := svc.ProcessSale(ctx, domain.SaleRequest{ProductName: "Pen", Quantity: 1, PaymentType: "Credit"})
	if _, err := svc.ProcessSale(ctx, domain.SaleRequest{ProductName: "Pen", Quantity: 1, PaymentType: "Cash"}); err != nil {
		t.Fatalf("cash sale: %v", err)
	}
	if _, err := svc.RecordPayment(ctx, emi.ID, 100, ""); err != nil {
		t.Fatalf("partial payment: %v", err)
	}
	if _, err := svc.RecordPayment(ctx, paidOff.ID, 200, ""); err != nil {
		t.Fatalf("full payment: %v", err)
	}

	dues, err := svc.PendingDues(ctx, time.Date(2024, 3, 20, 18, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("pending dues: %v", err)
	}
	if dues.AsOf != "2024-03-20" {
		t.Fatalf("unexpected as_of %s", dues.AsOf)
	}
	if len(dues.Dues) != 2 {
		t.Fatalf("expected 2 dues, got %d", len(dues.Dues))
	}
	if dues.Dues[0].Sale.ID != credit.ID || !dues.Dues[0].Overdue {
		t.Fatalf("expected overdue credit sale first, got %+v", dues.Dues[0])
	}
	if dues.Dues[1].Sale.ID != emi.ID || dues.Dues[1].Overdue || dues.Dues[1].OutstandingCents != 500 {
		t.Fatalf("unexpected emi due: %+v", dues.Dues[1])
	}
	if dues.OutstandingCents != 900 || dues.OverdueCount != 1 {
		t.Fatalf("unexpected totals: outstanding=%d overdue=%d", dues.OutstandingCents, dues.OverdueCount)
	}
}

type recordingCache struct {
	mu          sync.Mutex
	summary     *domain.DashboardSummary
	invalidated int
}

func (c *recordingCache) Get(_ context.Context, _ string) (*domain.DashboardSummary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.summary == nil {
		return nil, false, nil
	}
	copied := *c.summary
	return &copied, true, nil
}

func (c *recordingCache) Set(_ context.Context, _ string, value *domain.DashboardSummary, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *value
	c.summary = &copied
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = nil
	c.invalidated++
	return nil
}

func TestDashboardRefreshesAfterLedgerWrites(t *testing.T) {
	repo := memory.NewSeeded()
	cacheStore := &recordingCache{}
	builder := report.NewBuilder(repo, cacheStore, time.Minute, nil, nil)
	svc := New(repo, builder, nil, nil)
	ctx := context.Background()

	empty, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if empty.Totals.Orders != 0 {
		t.Fatalf("expected empty dashboard, got %+v", empty.Totals)
	}
	if cached, _ := svc.Dashboard(ctx); !cached.Cached {
		t.Fatalf("expected second read to be served from cache")
	}

	if _, err := svc.ProcessSale(ctx, domain.SaleRequest{ProductName: "Pen", Quantity: 3, PaymentType: "EMI"}); err != nil {
		t.Fatalf("process sale: %v", err)
	}
	if cacheStore.invalidated != 1 {
		t.Fatalf("expected one invalidation, got %d", cacheStore.invalidated)
	}

	summary, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if summary.Cached || summary.Totals.Orders != 1 || summary.OutstandingCents != 600 {
		t.Fatalf("expected fresh dashboard with one pending order, got %+v", summary)
	}
}

func TestActorIsAttachedToLogs(t *testing.T) {
	svc, _, logs := newTestService(t)
	ctx := WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})

	if _, err := svc.AddProduct(ctx, "Pen", 200, 1); err != nil {
		t.Fatalf("add product: %v", err)
	}
	if logs.FilterMessage("product restocked").FilterField(zap.String("actor", "admin")).Len() != 1 {
		t.Fatalf("expected restock log entry tagged with actor")
	}
}
