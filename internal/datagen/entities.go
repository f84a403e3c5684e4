package datagen

import (
	"fmt"
	"strings"

	"github.com/pgEdge/pgedge-storebench/internal/store"
)

// DefaultEmailDomain is the domain used for generated customer emails.
const DefaultEmailDomain = "example.com"

// Line and quantity bounds for generated orders.
const (
	MinOrderLines = 1
	MaxOrderLines = 5
	MinQuantity   = 1
	MaxQuantity   = 10
)

// NewCustomer builds a customer whose email is unique for a given seq.
func NewCustomer(f *Faker, seq int, domain string) *store.Customer {
	first := f.FirstName()
	last := f.LastName()
	return &store.Customer{
		FirstName:   first,
		LastName:    last,
		Email:       Email(first, last, seq, domain),
		CreatedDate: f.RandomDate(),
	}
}

// NewProduct builds a product with a random name and price.
func NewProduct(f *Faker) *store.Product {
	return &store.Product{
		ProductName: f.ProductName(),
		Price:       f.RandomPrice(),
		CreatedDate: f.RandomDate(),
	}
}

// Email derives a collision-free address from the names and sequence number.
func Email(first, last string, seq int, domain string) string {
	if domain == "" {
		domain = DefaultEmailDomain
	}
	local := emailPart(first)
	if l := emailPart(last); l != "" {
		if local != "" {
			local += "."
		}
		local += l
	}
	if local == "" {
		local = "customer"
	}
	return fmt.Sprintf("%s.%d@%s", local, seq, strings.ToLower(domain))
}

func emailPart(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
