//-------------------------------------------------------------------------
//
// pgEdge Storage Benchmark
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package datagen provides data generation utilities.
package datagen

import (
	"errors"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
)

// ErrInvalidRange is returned by RandomInt when min > max.
var ErrInvalidRange = errors.New("invalid range")

// DateWindow is how far back RandomDate reaches.
const DateWindow = 365 * 24 * time.Hour

// Price bounds in cents: [1.00, 101.00).
const (
	minPriceCents = 100
	maxPriceCents = 10099
)

// Faker provides fake data generation using gofakeit. A Faker is not safe
// for concurrent use; give each goroutine its own.
type Faker struct {
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewFaker creates a new Faker with a random seed.
func NewFaker() *Faker {
	return NewFakerWithSeed(uint64(time.Now().UnixNano()))
}

// NewFakerWithSeed creates a new Faker with a specific seed for reproducibility.
func NewFakerWithSeed(seed uint64) *Faker {
	return &Faker{
		faker: gofakeit.New(seed),
		now:   time.Now,
	}
}

// FirstName generates a random first name.
func (f *Faker) FirstName() string {
	return f.faker.FirstName()
}

// LastName generates a random last name.
func (f *Faker) LastName() string {
	return f.faker.LastName()
}

// ProductName generates a random product name.
func (f *Faker) ProductName() string {
	return f.faker.ProductName()
}

// RandomDate returns a timestamp uniformly distributed over the past 365 days.
func (f *Faker) RandomDate() time.Time {
	now := f.now()
	return f.faker.DateRange(now.Add(-DateWindow), now)
}

// RandomPrice returns a price in [1.00, 101.00) with two decimal places.
func (f *Faker) RandomPrice() decimal.Decimal {
	cents := f.faker.IntRange(minPriceCents, maxPriceCents)
	return decimal.New(int64(cents), -2)
}

// RandomInt returns an integer uniformly distributed in [min, max].
func (f *Faker) RandomInt(min, max int) (int, error) {
	if min > max {
		return 0, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, min, max)
	}
	if min == max {
		return min, nil
	}
	return f.faker.IntRange(min, max), nil
}

// Int generates a random integer between min and max (inclusive). The bounds
// must already be ordered; use RandomInt for caller-supplied ranges.
func (f *Faker) Int(min, max int) int {
	return f.faker.IntRange(min, max)
}
