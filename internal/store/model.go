// Package store defines the logical data model shared by every backend and
// the Store interface that backends implement.
package store

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// EntityKind identifies one of the top-level entity types. Order lines are
// always nested under an Order and have no kind of their own.
type EntityKind int

const (
	KindCustomer EntityKind = iota + 1
	KindProduct
	KindOrder
)

// String returns the lower-case name of the kind.
func (k EntityKind) String() string {
	switch k {
	case KindCustomer:
		return "customer"
	case KindProduct:
		return "product"
	case KindOrder:
		return "order"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Kinds lists every entity kind in seeding order.
func Kinds() []EntityKind {
	return []EntityKind{KindCustomer, KindProduct, KindOrder}
}

// EmailPatternSource is the address shape every backend enforces on
// customers, as a plain regular expression for server-side validators.
const EmailPatternSource = `^[^@\s]+@[^@\s]+\.[^@\s]+$`

// EmailPattern is the compiled form of EmailPatternSource.
var EmailPattern = regexp.MustCompile(EmailPatternSource)

// Identity is an opaque, backend-assigned reference to a persisted entity.
type Identity string

// Record is any entity that can be handed to Store.BulkInsert.
type Record interface {
	Kind() EntityKind
}

// Customer is a purchasing customer.
type Customer struct {
	ID          Identity
	FirstName   string
	LastName    string
	Email       string
	CreatedDate time.Time
}

// Kind implements Record.
func (*Customer) Kind() EntityKind { return KindCustomer }

// Product is a catalog entry.
type Product struct {
	ID          Identity
	ProductName string
	Price       decimal.Decimal
	CreatedDate time.Time
}

// Kind implements Record.
func (*Product) Kind() EntityKind { return KindProduct }

// OrderLine is a single product line of an order. UnitPrice is a copy of the
// product price taken when the line was built and is never recomputed.
type OrderLine struct {
	ProductID Identity
	Quantity  int
	UnitPrice decimal.Decimal
}

// Total returns quantity * unit price.
func (l OrderLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is a customer order with its lines.
type Order struct {
	ID           Identity
	CustomerID   Identity
	OrderDate    time.Time
	OrderDetails []OrderLine
}

// Kind implements Record.
func (*Order) Kind() EntityKind { return KindOrder }

// Total returns the sum of all line totals.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range o.OrderDetails {
		total = total.Add(l.Total())
	}
	return total
}

// Reference is a sampled, already persisted entity. Price is only set when
// the sampled kind is KindProduct.
type Reference struct {
	ID    Identity
	Price decimal.Decimal
}

// BenchmarkQuery parameterises the fixed benchmark workload.
type BenchmarkQuery struct {
	// WindowDays restricts orders to the trailing number of days.
	WindowDays int

	// EmailSuffix must match the end of the customer email, e.g. "@example.com".
	EmailSuffix string

	// TopN is the maximum number of rows returned.
	TopN int
}

// Cutoff returns the earliest order date included by the query.
func (q BenchmarkQuery) Cutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -q.WindowDays)
}

// Validate checks the query parameters.
func (q BenchmarkQuery) Validate() error {
	if q.WindowDays < 0 {
		return fmt.Errorf("window days must be non-negative, got %d", q.WindowDays)
	}
	if q.TopN < 1 {
		return fmt.Errorf("top n must be at least 1, got %d", q.TopN)
	}
	return nil
}

// CustomerSpend is one row of the benchmark query result.
type CustomerSpend struct {
	CustomerID  Identity
	FirstName   string
	LastName    string
	Email       string
	OrdersCount int64
	TotalSpent  decimal.Decimal
}
