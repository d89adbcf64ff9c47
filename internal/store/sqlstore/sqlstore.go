package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartledger/backend/internal/domain"
	"smartledger/backend/internal/store"
)

type Store struct {
	db      *sql.DB
	dialect dialect
}

// OpenPostgres connects through the pgx stdlib driver.
func OpenPostgres(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open(postgresDialect.driver, databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	return ping(ctx, db, postgresDialect)
}

// OpenSQLite opens (creating if needed) a local database file. SQLite is
// driven through a single connection so every ledger transaction runs alone.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open(sqliteDialect.driver, sqliteDSN(path))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return ping(ctx, db, sqliteDialect)
}

func ping(ctx context.Context, db *sql.DB, d dialect) (*Store, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, dialect: d}, nil
}

func (s *Store) Dialect() string {
	return s.dialect.name
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the ledger tables when they are missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate %s: %w", s.dialect.name, err)
		}
	}
	return nil
}

func (s *Store) RestockProduct(ctx context.Context, name string, priceCents int64, qty int) (*domain.Product, error) {
	if name == "" || priceCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if _, ok := domain.RestockedStock(0, qty); !ok {
		return nil, store.ErrInvalidQuantity
	}

	// The conflict update is skipped, and no row returned, when the new stock
	// would pass MaxStock.
	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (name, price_cents, stock)
		VALUES ($1, $2, $3)
		ON CONFLICT (name)
		DO UPDATE SET price_cents = excluded.price_cents, stock = products.stock + excluded.stock
		WHERE products.stock <= $4
		RETURNING product_id, name, price_cents, stock
	`, name, priceCents, qty, int64(domain.MaxStock-qty)).Scan(&product.ID, &product.Name, &product.PriceCents, &product.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrInvalidQuantity
		}
		return nil, fmt.Errorf("restock %q: %w", name, err)
	}
	return &product, nil
}

func (s *Store) GetProductByName(ctx context.Context, name string) (*domain.Product, error) {
	var product domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT product_id, name, price_cents, stock
		FROM products
		WHERE name = $1
	`, name).Scan(&product.ID, &product.Name, &product.PriceCents, &product.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, name, price_cents, stock
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Stock); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) CreateSale(ctx context.Context, draft domain.SaleDraft) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, s.dialect.txOptions)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var product domain.Product
	err = tx.QueryRowContext(ctx, `
		SELECT product_id, name, price_cents, stock
		FROM products
		WHERE name = $1`+s.dialect.forUpdate, draft.ProductName).Scan(&product.ID, &product.Name, &product.PriceCents, &product.Stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
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
	sale := domain.Sale{
		ProductName: product.Name,
		Quantity:    draft.Quantity,
		TotalCents:  total,
		PaymentType: draft.PaymentType,
		Status:      domain.InitialStatus(draft.PaymentType),
		DueDate:     domain.DueDate(draft.PaymentType, saleDate),
		SaleDate:    saleDate.UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $1
		WHERE product_id = $2
	`, sale.Quantity, product.ID)
	if err != nil {
		return nil, err
	}

	var dueArg any
	if sale.DueDate != nil {
		dueArg = s.dialect.dateArg(*sale.DueDate)
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO sales (product_name, quantity, total_cents, payment_type, status, due_date, sale_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING sale_id
	`, sale.ProductName, sale.Quantity, sale.TotalCents, sale.PaymentType, sale.Status, dueArg, s.dialect.timeArg(sale.SaleDate)).Scan(&sale.ID)
	if err != nil {
		return nil, err
	}

	if sale.PaymentType == domain.PaymentTypeCash {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payments (sale_id, amount_paid_cents, payment_date, notes)
			VALUES ($1, $2, $3, $4)
		`, sale.ID, sale.TotalCents, s.dialect.timeArg(sale.SaleDate), domain.CashPaymentNote)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) FindSaleByID(ctx context.Context, id int64) (*domain.Sale, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE sale_id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, status string) ([]domain.Sale, error) {
	if status != "" && !domain.IsValidStatus(status) {
		return nil, store.ErrInvalidInput
	}
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+saleColumns+`
			FROM sales
			ORDER BY sale_id DESC
		`)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+saleColumns+`
			FROM sales
			WHERE status = $1
			ORDER BY sale_id DESC
		`, status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) RecordPayment(ctx context.Context, draft domain.PaymentDraft) (*domain.PaymentReceipt, error) {
	if draft.AmountCents < 1 {
		return nil, store.ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, s.dialect.txOptions)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var totalCents int64
	err = tx.QueryRowContext(ctx, `
		SELECT total_cents
		FROM sales
		WHERE sale_id = $1`+s.dialect.forUpdate, draft.SaleID).Scan(&totalCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	var alreadyPaid int64
	err = tx.QueryRowContext(ctx, `
		SELECT CAST(COALESCE(SUM(amount_paid_cents), 0) AS BIGINT)
		FROM payments
		WHERE sale_id = $1
	`, draft.SaleID).Scan(&alreadyPaid)
	if err != nil {
		return nil, err
	}

	paid, ok := domain.PaidAfter(alreadyPaid, draft.AmountCents)
	if !ok {
		return nil, store.ErrInvalidAmount
	}

	paidAt := draft.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	payment := domain.Payment{
		SaleID:      draft.SaleID,
		AmountCents: draft.AmountCents,
		PaymentDate: paidAt.UTC(),
		Notes:       draft.Notes,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO payments (sale_id, amount_paid_cents, payment_date, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING payment_id
	`, payment.SaleID, payment.AmountCents, s.dialect.timeArg(payment.PaymentDate), nullIfEmpty(payment.Notes)).Scan(&payment.ID)
	if err != nil {
		return nil, err
	}

	status := domain.StatusAfterPayment(totalCents, paid)
	_, err = tx.ExecContext(ctx, `
		UPDATE sales
		SET status = $1
		WHERE sale_id = $2
	`, status, draft.SaleID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &domain.PaymentReceipt{
		Payment:        payment,
		Status:         status,
		PaidCents:      paid,
		RemainingCents: domain.OutstandingCents(totalCents, paid),
	}, nil
}

func (s *Store) ListPayments(ctx context.Context, saleID int64) ([]domain.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_id, sale_id, amount_paid_cents, payment_date, notes
		FROM payments
		WHERE sale_id = $1
		ORDER BY payment_id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, 4)
	for rows.Next() {
		var p domain.Payment
		var paidAt string
		var notes sql.NullString
		if err := rows.Scan(&p.ID, &p.SaleID, &p.AmountCents, &paidAt, &notes); err != nil {
			return nil, err
		}
		if p.PaymentDate, err = parseStoredTime(paidAt); err != nil {
			return nil, err
		}
		p.Notes = notes.String
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Store) GetPaidTotals(ctx context.Context, saleIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}

	args := make([]any, len(saleIDs))
	for i, id := range saleIDs {
		args[i] = id
		result[id] = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, CAST(COALESCE(SUM(amount_paid_cents), 0) AS BIGINT)
		FROM payments
		WHERE sale_id IN (`+placeholders(1, len(saleIDs))+`)
		GROUP BY sale_id
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, paid int64
		if err := rows.Scan(&id, &paid); err != nil {
			return nil, err
		}
		result[id] = paid
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) MarkBadDebt(ctx context.Context, id int64) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, s.dialect.txOptions)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET status = $1
		WHERE sale_id = $2
	`, domain.SaleStatusBadDebt, id)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	sale, err := scanSale(tx.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE sale_id = $1
	`, id))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) GetLedgerStats(ctx context.Context) (domain.LedgerStats, error) {
	stats := domain.LedgerStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			CAST(COUNT(*) AS BIGINT),
			CAST(COALESCE(SUM(quantity), 0) AS BIGINT),
			CAST(COALESCE(SUM(total_cents), 0) AS BIGINT)
		FROM sales
	`).Scan(&stats.Totals.Orders, &stats.Totals.ItemsSold, &stats.Totals.RevenueCents)
	if err != nil {
		return stats, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT CAST(COALESCE(SUM(amount_paid_cents), 0) AS BIGINT)
		FROM payments
	`).Scan(&stats.CollectedCents)
	if err != nil {
		return stats, err
	}

	balanceRows, err := s.db.QueryContext(ctx, `
		SELECT s.status, CAST(COALESCE(SUM(s.total_cents - COALESCE(p.paid, 0)), 0) AS BIGINT)
		FROM sales s
		LEFT JOIN (
			SELECT sale_id, SUM(amount_paid_cents) AS paid
			FROM payments
			GROUP BY sale_id
		) p ON p.sale_id = s.sale_id
		WHERE s.status IN ($1, $2)
			AND s.total_cents > COALESCE(p.paid, 0)
		GROUP BY s.status
	`, domain.SaleStatusPending, domain.SaleStatusBadDebt)
	if err != nil {
		return stats, err
	}
	for balanceRows.Next() {
		var status string
		var balance int64
		if err := balanceRows.Scan(&status, &balance); err != nil {
			_ = balanceRows.Close()
			return stats, err
		}
		switch status {
		case domain.SaleStatusPending:
			stats.OutstandingCents = balance
		case domain.SaleStatusBadDebt:
			stats.WrittenOffCents = balance
		}
	}
	if err := balanceRows.Err(); err != nil {
		_ = balanceRows.Close()
		return stats, err
	}
	_ = balanceRows.Close()

	if stats.ByPaymentType, err = s.breakdown(ctx, "payment_type"); err != nil {
		return stats, err
	}
	if stats.ByStatus, err = s.breakdown(ctx, "status"); err != nil {
		return stats, err
	}
	if stats.ByProduct, err = s.breakdown(ctx, "product_name"); err != nil {
		return stats, err
	}
	return stats, nil
}

// breakdown groups sales by one of a fixed set of columns; column is never
// caller input.
func (s *Store) breakdown(ctx context.Context, column string) ([]domain.BreakdownRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+column+`, CAST(COUNT(*) AS BIGINT), CAST(COALESCE(SUM(total_cents), 0) AS BIGINT)
		FROM sales
		GROUP BY `+column+`
		ORDER BY `+column)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.BreakdownRow, 0, 8)
	for rows.Next() {
		var row domain.BreakdownRow
		if err := rows.Scan(&row.Key, &row.Orders, &row.RevenueCents); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return store.ErrInvalidInput
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, username, user.Password, user.Role, user.Active, s.dialect.timeArg(user.CreatedAt))
	if err != nil {
		if s.dialect.uniqueErr(err) {
			return store.ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password_hash, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		var createdAt string
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &createdAt); err != nil {
			return nil, err
		}
		if user.CreatedAt, err = parseStoredTime(createdAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $1
		WHERE username = $2
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

const saleColumns = `sale_id, product_name, quantity, total_cents, payment_type, status, due_date, sale_date`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	var dueDate sql.NullString
	var saleDate string
	if err := row.Scan(&sale.ID, &sale.ProductName, &sale.Quantity, &sale.TotalCents, &sale.PaymentType, &sale.Status, &dueDate, &saleDate); err != nil {
		return sale, err
	}

	parsed, err := parseStoredTime(saleDate)
	if err != nil {
		return sale, err
	}
	sale.SaleDate = parsed

	if dueDate.Valid {
		due, err := parseStoredTime(dueDate.String)
		if err != nil {
			return sale, err
		}
		due = domain.CalendarDate(due)
		sale.DueDate = &due
	}
	return sale, nil
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
