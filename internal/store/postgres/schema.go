package postgres

import (
	"fmt"

	"github.com/pgEdge/pgedge-storebench/internal/datagen"
	"github.com/pgEdge/pgedge-storebench/internal/store"
)

// Table names.
const (
	customersTable    = "customers"
	productsTable     = "products"
	ordersTable       = "orders"
	orderDetailsTable = "order_details"
)

// dropSchemaSQL removes every benchmark table. The metadata table is not
// touched.
const dropSchemaSQL = `
DROP TABLE IF EXISTS order_details, orders, products, customers CASCADE;
`

// createTablesSQL creates the normalized schema. Identifiers are bigserial
// so that a fresh schema numbers every table contiguously from 1.
var createTablesSQL = fmt.Sprintf(`
-- Customer: purchasing accounts
CREATE TABLE customers (
    customer_id  BIGSERIAL PRIMARY KEY,
    first_name   VARCHAR(100) NOT NULL,
    last_name    VARCHAR(100) NOT NULL,
    email        VARCHAR(255) NOT NULL UNIQUE CHECK (email ~ '%s'),
    created_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Product: catalog entries
CREATE TABLE products (
    product_id   BIGSERIAL PRIMARY KEY,
    product_name VARCHAR(255) NOT NULL,
    price        NUMERIC(10,2) NOT NULL CHECK (price >= 0 AND price <> 'NaN'),
    created_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Orders: one row per order
CREATE TABLE orders (
    order_id    BIGSERIAL PRIMARY KEY,
    customer_id BIGINT NOT NULL REFERENCES customers(customer_id),
    order_date  TIMESTAMPTZ NOT NULL
);

-- Order details: one row per order line, price copied at order time
CREATE TABLE order_details (
    order_detail_id BIGSERIAL PRIMARY KEY,
    order_id        BIGINT NOT NULL REFERENCES orders(order_id) ON DELETE CASCADE,
    product_id      BIGINT NOT NULL REFERENCES products(product_id),
    quantity        INTEGER NOT NULL CHECK (quantity BETWEEN %d AND %d),
    unit_price      NUMERIC(10,2) NOT NULL CHECK (unit_price >= 0 AND unit_price <> 'NaN')
);
`, store.EmailPatternSource, datagen.MinQuantity, datagen.MaxQuantity)

// createIndexesSQL creates the indexes the benchmark query and sampling rely on.
const createIndexesSQL = `
CREATE INDEX idx_products_name ON products(product_name);
CREATE INDEX idx_orders_customer_date ON orders(customer_id, order_date);
CREATE INDEX idx_order_details_order ON order_details(order_id);
CREATE INDEX idx_order_details_product ON order_details(product_id);
`

var (
	customerColumns    = []string{"first_name", "last_name", "email", "created_date"}
	productColumns     = []string{"product_name", "price", "created_date"}
	orderColumns       = []string{"order_id", "customer_id", "order_date"}
	orderDetailColumns = []string{"order_id", "product_id", "quantity", "unit_price"}
)

// tableFor maps an entity kind to its table and key column.
func tableFor(kind store.EntityKind) (table, key string, err error) {
	switch kind {
	case store.KindCustomer:
		return customersTable, "customer_id", nil
	case store.KindProduct:
		return productsTable, "product_id", nil
	case store.KindOrder:
		return ordersTable, "order_id", nil
	}
	return "", "", fmt.Errorf("unknown entity kind %s", kind)
}
