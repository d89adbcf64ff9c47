package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"smartledger/backend/internal/domain"
	"smartledger/backend/internal/store"
)

type Store struct {
	mu              sync.RWMutex
	productsByName  map[string]domain.Product
	salesByID       map[int64]domain.Sale
	paymentsBySale  map[int64][]domain.Payment
	usersByUsername map[string]domain.UserAccount
	nextProductID   int64
	nextSaleID      int64
	nextPaymentID   int64
}

func New() *Store {
	return &Store{
		productsByName:  make(map[string]domain.Product),
		salesByID:       make(map[int64]domain.Sale),
		paymentsBySale:  make(map[int64][]domain.Payment),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store with a small demo inventory.
func NewSeeded() *Store {
	s := New()
	for _, p := range []struct {
		name  string
		price int64
		stock int
	}{
		{"Pen", 200, 50},
		{"Notebook", 450, 30},
		{"Stapler", 1299, 12},
		{"Desk Lamp", 2499, 6},
	} {
		s.nextProductID++
		s.productsByName[p.name] = domain.Product{ID: s.nextProductID, Name: p.name, PriceCents: p.price, Stock: p.stock}
	}
	return s
}

func (s *Store) RestockProduct(_ context.Context, name string, priceCents int64, qty int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" || priceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if qty < 1 {
		return nil, store.ErrInvalidQuantity
	}

	product, exists := s.productsByName[name]
	stock, ok := domain.RestockedStock(product.Stock, qty)
	if !ok {
		return nil, store.ErrInvalidQuantity
	}
	if !exists {
		s.nextProductID++
		product = domain.Product{ID: s.nextProductID, Name: name}
	}
	product.PriceCents = priceCents
	product.Stock = stock
	s.productsByName[name] = product

	saved := product
	return &saved, nil
}

func (s *Store) GetProductByName(_ context.Context, name string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.productsByName[name]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.productsByName))
	for _, p := range s.productsByName {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) CreateSale(_ context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.productsByName[draft.ProductName]
	if !exists {
		return nil, store.ErrNotFound
	}
	if draft.Quantity < 1 {
		return nil, store.ErrInvalidQuantity
	}
	if product.Stock < draft.Quantity {
		return nil, store.ErrInsufficientStock
	}
	total, ok := domain.SaleTotal(product.PriceCents, draft.Quantity)
	if !ok {
		return nil, store.ErrInvalidInput
	}

	saleDate := draft.SaleDate
	if saleDate.IsZero() {
		saleDate = time.Now().UTC()
	}

	s.nextSaleID++
	sale := domain.Sale{
		ID:          s.nextSaleID,
		ProductName: product.Name,
		Quantity:    draft.Quantity,
		TotalCents:  total,
		PaymentType: draft.PaymentType,
		Status:      domain.InitialStatus(draft.PaymentType),
		DueDate:     domain.DueDate(draft.PaymentType, saleDate),
		SaleDate:    saleDate,
	}

	product.Stock -= draft.Quantity
	s.productsByName[product.Name] = product
	s.salesByID[sale.ID] = sale

	if sale.PaymentType == domain.PaymentTypeCash {
		s.nextPaymentID++
		s.paymentsBySale[sale.ID] = append(s.paymentsBySale[sale.ID], domain.Payment{
			ID:          s.nextPaymentID,
			SaleID:      sale.ID,
			AmountCents: sale.TotalCents,
			PaymentDate: saleDate,
			Notes:       domain.CashPaymentNote,
		})
	}

	return cloneSale(sale), nil
}

func (s *Store) FindSaleByID(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, status string) ([]domain.Sale, error) {
	if status != "" && !domain.IsValidStatus(status) {
		return nil, store.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0, len(s.salesByID))
	for _, sale := range s.salesByID {
		if status != "" && sale.Status != status {
			continue
		}
		sales = append(sales, *cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return compareInt64(b.ID, a.ID)
	})
	return sales, nil
}

func (s *Store) RecordPayment(_ context.Context, draft domain.PaymentDraft) (*domain.PaymentReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if draft.AmountCents < 1 {
		return nil, store.ErrInvalidAmount
	}
	sale, ok := s.salesByID[draft.SaleID]
	if !ok {
		return nil, store.ErrNotFound
	}

	paid, ok := domain.PaidAfter(sumPayments(s.paymentsBySale[sale.ID]), draft.AmountCents)
	if !ok {
		return nil, store.ErrInvalidAmount
	}
	paidAt := draft.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	s.nextPaymentID++
	payment := domain.Payment{
		ID:          s.nextPaymentID,
		SaleID:      sale.ID,
		AmountCents: draft.AmountCents,
		PaymentDate: paidAt,
		Notes:       draft.Notes,
	}
	s.paymentsBySale[sale.ID] = append(s.paymentsBySale[sale.ID], payment)

	sale.Status = domain.StatusAfterPayment(sale.TotalCents, paid)
	s.salesByID[sale.ID] = sale

	return &domain.PaymentReceipt{
		Payment:        payment,
		Status:         sale.Status,
		PaidCents:      paid,
		RemainingCents: domain.OutstandingCents(sale.TotalCents, paid),
	}, nil
}

func (s *Store) ListPayments(_ context.Context, saleID int64) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.paymentsBySale[saleID]), nil
}

func (s *Store) GetPaidTotals(_ context.Context, saleIDs []int64) (map[int64]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[int64]int64, len(saleIDs))
	for _, id := range saleIDs {
		result[id] = sumPayments(s.paymentsBySale[id])
	}
	return result, nil
}

func (s *Store) MarkBadDebt(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale.Status = domain.SaleStatusBadDebt
	s.salesByID[id] = sale
	return cloneSale(sale), nil
}

func (s *Store) GetLedgerStats(_ context.Context) (domain.LedgerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.LedgerStats{
		ByPaymentType: make([]domain.BreakdownRow, 0, 3),
		ByStatus:      make([]domain.BreakdownRow, 0, 3),
		ByProduct:     make([]domain.BreakdownRow, 0, 8),
	}
	byPaymentType := map[string]*domain.BreakdownRow{}
	byStatus := map[string]*domain.BreakdownRow{}
	byProduct := map[string]*domain.BreakdownRow{}

	for _, sale := range s.salesByID {
		stats.Totals.Orders++
		stats.Totals.ItemsSold += int64(sale.Quantity)
		stats.Totals.RevenueCents += sale.TotalCents

		paid := sumPayments(s.paymentsBySale[sale.ID])
		stats.CollectedCents += paid
		switch sale.Status {
		case domain.SaleStatusPending:
			stats.OutstandingCents += domain.OutstandingCents(sale.TotalCents, paid)
		case domain.SaleStatusBadDebt:
			stats.WrittenOffCents += domain.OutstandingCents(sale.TotalCents, paid)
		}

		addBreakdown(byPaymentType, sale.PaymentType, sale.TotalCents)
		addBreakdown(byStatus, sale.Status, sale.TotalCents)
		addBreakdown(byProduct, sale.ProductName, sale.TotalCents)
	}

	stats.ByPaymentType = sortedBreakdown(byPaymentType)
	stats.ByStatus = sortedBreakdown(byStatus)
	stats.ByProduct = sortedBreakdown(byProduct)
	return stats, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrDuplicate
	}
	user.Username = username
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func sumPayments(payments []domain.Payment) int64 {
	total := int64(0)
	for _, p := range payments {
		total += p.AmountCents
	}
	return total
}

func addBreakdown(rows map[string]*domain.BreakdownRow, key string, revenueCents int64) {
	row := rows[key]
	if row == nil {
		row = &domain.BreakdownRow{Key: key}
		rows[key] = row
	}
	row.Orders++
	row.RevenueCents += revenueCents
}

func sortedBreakdown(rows map[string]*domain.BreakdownRow) []domain.BreakdownRow {
	result := make([]domain.BreakdownRow, 0, len(rows))
	for _, row := range rows {
		result = append(result, *row)
	}
	slices.SortFunc(result, func(a, b domain.BreakdownRow) int {
		return strings.Compare(a.Key, b.Key)
	})
	return result
}

func compareInt64(a int64, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cloneSale(src domain.Sale) *domain.Sale {
	dst := src
	if src.DueDate != nil {
		due := *src.DueDate
		dst.DueDate = &due
	}
	return &dst
}
