package postgres

import (
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"github.com/pgEdge/pgedge-storebench/internal/store"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// allocateOrderIDsSQL reserves n order identifiers so order lines can be
// copied in the same batch as their orders.
const allocateOrderIDsSQL = `
SELECT nextval(pg_get_serial_sequence('orders', 'order_id'))
FROM generate_series(1, $1)
`

// benchmarkQuery ranks customers with a matching email suffix by what they
// spent since cutoff.
func benchmarkQuery(q store.BenchmarkQuery, cutoff time.Time) (string, []any, error) {
	return psql.
		Select(
			"c.customer_id",
			"c.first_name",
			"c.last_name",
			"c.email",
			"COUNT(DISTINCT o.order_id) AS orders_count",
			"SUM(od.quantity * od.unit_price) AS total_spent",
		).
		From(ordersTable + " o").
		Join(customersTable + " c ON c.customer_id = o.customer_id").
		Join(orderDetailsTable + " od ON od.order_id = o.order_id").
		Join(productsTable + " p ON p.product_id = od.product_id").
		Where(squirrel.GtOrEq{"o.order_date": cutoff}).
		Where("right(c.email, length(?::text)) = ?::text", q.EmailSuffix, q.EmailSuffix).
		GroupBy("c.customer_id", "c.first_name", "c.last_name", "c.email").
		OrderBy("total_spent DESC", "c.customer_id").
		Limit(uint64(q.TopN)).
		ToSql()
}

// sampleQuery picks one row with a uniformly drawn key between the smallest
// and largest persisted key.
func sampleQuery(table, key string, columns ...string) (string, []any, error) {
	draw := fmt.Sprintf(
		"%[1]s >= (SELECT min(%[1]s) + floor(random() * (max(%[1]s) - min(%[1]s) + 1))::bigint FROM %[2]s)",
		key, table)
	return psql.
		Select(columns...).
		From(table).
		Where(draw).
		OrderBy(key).
		Limit(1).
		ToSql()
}

func countQuery(table string) (string, []any, error) {
	return psql.Select("count(*)").From(table).ToSql()
}
