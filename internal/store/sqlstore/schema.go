package sqlstore

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		product_id  INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT    NOT NULL UNIQUE,
		price_cents INTEGER NOT NULL CHECK (price_cents >= 0),
		stock       INTEGER NOT NULL CHECK (stock >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		sale_id      INTEGER PRIMARY KEY AUTOINCREMENT,
		product_name TEXT    NOT NULL,
		quantity     INTEGER NOT NULL CHECK (quantity > 0),
		total_cents  INTEGER NOT NULL,
		payment_type TEXT    NOT NULL CHECK (payment_type IN ('Cash', 'EMI', 'Credit')),
		status       TEXT    NOT NULL CHECK (status IN ('Paid', 'Pending', 'Bad Debt')),
		due_date     TEXT,
		sale_date    TEXT    NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		payment_id        INTEGER PRIMARY KEY AUTOINCREMENT,
		sale_id           INTEGER NOT NULL REFERENCES sales (sale_id),
		amount_paid_cents INTEGER NOT NULL,
		payment_date      TEXT    NOT NULL,
		notes             TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_sale_id ON payments (sale_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_status ON sales (status)`,
	`CREATE TABLE IF NOT EXISTS users (
		username      TEXT    PRIMARY KEY,
		password_hash TEXT    NOT NULL,
		role          TEXT    NOT NULL,
		active        INTEGER NOT NULL DEFAULT 1,
		created_at    TEXT    NOT NULL
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		product_id  BIGSERIAL PRIMARY KEY,
		name        TEXT   NOT NULL UNIQUE,
		price_cents BIGINT NOT NULL CHECK (price_cents >= 0),
		stock       INTEGER NOT NULL CHECK (stock >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		sale_id      BIGSERIAL PRIMARY KEY,
		product_name TEXT    NOT NULL,
		quantity     INTEGER NOT NULL CHECK (quantity > 0),
		total_cents  BIGINT  NOT NULL,
		payment_type TEXT    NOT NULL CHECK (payment_type IN ('Cash', 'EMI', 'Credit')),
		status       TEXT    NOT NULL CHECK (status IN ('Paid', 'Pending', 'Bad Debt')),
		due_date     DATE,
		sale_date    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		payment_id        BIGSERIAL PRIMARY KEY,
		sale_id           BIGINT NOT NULL REFERENCES sales (sale_id),
		amount_paid_cents BIGINT NOT NULL,
		payment_date      TIMESTAMPTZ NOT NULL,
		notes             TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_sale_id ON payments (sale_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_status ON sales (status)`,
	`CREATE TABLE IF NOT EXISTS users (
		username      TEXT    PRIMARY KEY,
		password_hash TEXT    NOT NULL,
		role          TEXT    NOT NULL,
		active        BOOLEAN NOT NULL DEFAULT true,
		created_at    TIMESTAMPTZ NOT NULL
	)`,
}
