package database

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id         BIGINT AUTO_INCREMENT PRIMARY KEY,
		name       VARCHAR(255)   NOT NULL,
		price      DECIMAL(12, 2) NOT NULL,
		stock      INT            NOT NULL DEFAULT 0,
		is_active  BOOLEAN        NOT NULL DEFAULT TRUE,
		CHECK (stock >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS delivery_zones (
		city           VARCHAR(100)   PRIMARY KEY,
		fee            DECIMAL(12, 2) NOT NULL,
		estimated_days INT            NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                      BIGINT AUTO_INCREMENT PRIMARY KEY,
		customer_id             VARCHAR(64)    NOT NULL,
		shipping_address        TEXT           NOT NULL,
		shipping_city           VARCHAR(100)   NOT NULL,
		shipping_postal_code    VARCHAR(20)    NOT NULL,
		shipping_country        VARCHAR(100)   NOT NULL,
		phone_number            VARCHAR(20)    NOT NULL,
		whatsapp_number         VARCHAR(20)    NOT NULL DEFAULT '',
		customer_email          VARCHAR(255)   NOT NULL DEFAULT '',
		subtotal                DECIMAL(12, 2) NOT NULL,
		delivery_fee            DECIMAL(12, 2) NOT NULL,
		estimated_delivery_days INT            NOT NULL,
		total_amount            DECIMAL(12, 2) NOT NULL,
		currency                VARCHAR(3)     NOT NULL,
		status                  VARCHAR(20)    NOT NULL DEFAULT 'pending',
		payment_status          VARCHAR(20)    NOT NULL DEFAULT 'pending',
		payment_reference       VARCHAR(100)   NULL,
		payment_redirect_url    TEXT           NULL,
		merchant_reference      VARCHAR(64)    NOT NULL DEFAULT '',
		created_at              DATETIME(6)    NOT NULL,
		updated_at              DATETIME(6)    NOT NULL,
		INDEX idx_orders_customer (customer_id, created_at),
		INDEX idx_orders_status (status)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id           BIGINT AUTO_INCREMENT PRIMARY KEY,
		order_id     BIGINT         NOT NULL,
		product_id   BIGINT         NOT NULL,
		product_name VARCHAR(255)   NOT NULL,
		quantity     INT            NOT NULL,
		unit_price   DECIMAL(12, 2) NOT NULL,
		FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS order_status_history (
		id          BIGINT AUTO_INCREMENT PRIMARY KEY,
		order_id    BIGINT      NOT NULL,
		from_status VARCHAR(20) NOT NULL,
		to_status   VARCHAR(20) NOT NULL,
		actor       VARCHAR(64) NOT NULL,
		changed_at  DATETIME(6) NOT NULL,
		FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE,
		INDEX idx_history_order (order_id, changed_at)
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT           NOT NULL,
		price      DECIMAL(12, 2) NOT NULL,
		stock      INTEGER        NOT NULL DEFAULT 0 CHECK (stock >= 0),
		is_active  BOOLEAN        NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS delivery_zones (
		city           TEXT           PRIMARY KEY,
		fee            DECIMAL(12, 2) NOT NULL,
		estimated_days INTEGER        NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id                      INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_id             TEXT           NOT NULL,
		shipping_address        TEXT           NOT NULL,
		shipping_city           TEXT           NOT NULL,
		shipping_postal_code    TEXT           NOT NULL,
		shipping_country        TEXT           NOT NULL,
		phone_number            TEXT           NOT NULL,
		whatsapp_number         TEXT           NOT NULL DEFAULT '',
		customer_email          TEXT           NOT NULL DEFAULT '',
		subtotal                DECIMAL(12, 2) NOT NULL,
		delivery_fee            DECIMAL(12, 2) NOT NULL,
		estimated_delivery_days INTEGER        NOT NULL,
		total_amount            DECIMAL(12, 2) NOT NULL,
		currency                TEXT           NOT NULL,
		status                  TEXT           NOT NULL DEFAULT 'pending',
		payment_status          TEXT           NOT NULL DEFAULT 'pending',
		payment_reference       TEXT,
		payment_redirect_url    TEXT,
		merchant_reference      TEXT           NOT NULL DEFAULT '',
		created_at              TEXT           NOT NULL,
		updated_at              TEXT           NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id     INTEGER        NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id   INTEGER        NOT NULL,
		product_name TEXT           NOT NULL,
		quantity     INTEGER        NOT NULL,
		unit_price   DECIMAL(12, 2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_status_history (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id    INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		from_status TEXT    NOT NULL,
		to_status   TEXT    NOT NULL,
		actor       TEXT    NOT NULL,
		changed_at  TEXT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_history_order ON order_status_history(order_id, changed_at)`,
}
