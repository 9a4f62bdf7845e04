// Package model defines the domain types shared by the ingestion pipeline.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Availability is the stock state of a product.
type Availability string

// Supported availability states.
const (
	InStock    Availability = "in_stock"
	OutOfStock Availability = "out_of_stock"
	Unknown    Availability = "unknown"
)

// ProductRecord is what an extractor produces for one page.
type ProductRecord struct {
	URL             string
	Title           string
	Price           decimal.Decimal
	PriceCurrency   string
	ItemClass       string
	Producer        string
	Rating          *float64
	AmountOfRatings int
	ImageURL        string
	Availability    Availability
}

// Product is the stored, deduplicated record keyed by canonical URL.
type Product struct {
	ID int64
	ProductRecord
}

// PriceHistory is one observed (price, currency) at a point in time.
type PriceHistory struct {
	ID            int64
	ProductID     int64
	Price         decimal.Decimal
	PriceCurrency string
	ChangeDate    time.Time
}

// User is the slice of a web-layer user needed for notifications.
type User struct {
	ID               int64
	EmailAddress     string
	IsEmailConfirmed bool
	Role             string
}

// Action is the outcome of an upsert.
type Action string

// Upsert outcomes.
const (
	ActionInserted  Action = "inserted"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
)

// UpsertResult describes what an upsert did so that callers can decide
// whether to notify without the repository knowing about notifications.
type UpsertResult struct {
	Action      Action
	ProductID   int64
	OldPrice    decimal.Decimal
	NewPrice    decimal.Decimal
	OldCurrency string
	NewCurrency string
}

// PriceChanged reports whether a history row was appended by an update.
func (r UpsertResult) PriceChanged() bool {
	return r.Action == ActionUpdated &&
		(!r.OldPrice.Equal(r.NewPrice) || r.OldCurrency != r.NewCurrency)
}

// IsPriceDrop reports whether the update lowered the price in the same currency.
func (r UpsertResult) IsPriceDrop() bool {
	return r.Action == ActionUpdated &&
		r.OldCurrency == r.NewCurrency &&
		r.NewPrice.LessThan(r.OldPrice)
}

// SameScalars reports whether two records agree on every stored field
// other than the URL.
func (r ProductRecord) SameScalars(o ProductRecord) bool {
	return r.SamePrice(o) &&
		r.Title == o.Title &&
		r.ItemClass == o.ItemClass &&
		r.Producer == o.Producer &&
		sameRating(r.Rating, o.Rating) &&
		r.AmountOfRatings == o.AmountOfRatings &&
		r.ImageURL == o.ImageURL &&
		r.Availability == o.Availability
}

// SamePrice compares the (price, currency) pair.
func (r ProductRecord) SamePrice(o ProductRecord) bool {
	return r.Price.Equal(o.Price) && r.PriceCurrency == o.PriceCurrency
}

func sameRating(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
