// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"sjsage522/pricetracker/internal/model"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("storage: not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	// Upsert inserts or updates a product keyed by its canonical URL and
	// appends a history row whenever (price, currency) changes.
	Upsert(ctx context.Context, rec model.ProductRecord) (model.UpsertResult, error)
	// MarkUnavailable sets a known product out of stock. It reports whether
	// a product matched.
	MarkUnavailable(ctx context.Context, url string) (bool, error)
	ListAllURLs(ctx context.Context) ([]string, error)
	ListTrackers(ctx context.Context, productID int64) ([]model.User, error)

	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	GetProductByURL(ctx context.Context, url string) (*model.Product, error)
	PriceHistory(ctx context.Context, productID int64) ([]model.PriceHistory, error)
	Search(ctx context.Context, f Filter) ([]model.Product, error)

	CreateUser(ctx context.Context, u *model.User) error
	AddTracker(ctx context.Context, userID, productID int64) error
	RemoveTracker(ctx context.Context, userID, productID int64) error

	Close() error
}

// Filter narrows Search. Zero values are ignored.
type Filter struct {
	Text      string
	MinPrice  decimal.NullDecimal
	MaxPrice  decimal.NullDecimal
	Producer  string
	MinRating float64
	Limit     int
}
