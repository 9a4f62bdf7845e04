package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"sjsage522/pricetracker/helpers"
	"sjsage522/pricetracker/internal/model"
	"sjsage522/pricetracker/logger"
	"sjsage522/pricetracker/pkg/currency"
	perr "sjsage522/pricetracker/pkg/errors"
)

// timeLayout is fixed-width so that TEXT timestamps in SQLite sort correctly
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 500
)

const productColumns = `id, url, title, price, price_currency, item_class, producer,
	amount_of_ratings, rating, image_url, availability`

// SQLStore implements Storage on database/sql for SQLite and PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
	log     *logger.Logger
}

// NewSQLStore wraps an open, migrated database.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
		log:     logger.ForStorage(),
	}
}

// DB returns the underlying connection pool.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Dialect returns the SQL flavour of the store.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) q(query string) string {
	return s.dialect.rebind(query)
}

// Upsert stores rec. The lookup, the write and the history append share
// one transaction. Losing an insert race to a concurrent upsert of the same
// URL retries once, which then takes the update path.
func (s *SQLStore) Upsert(ctx context.Context, rec model.ProductRecord) (model.UpsertResult, error) {
	if err := normalizeRecord(&rec); err != nil {
		return model.UpsertResult{}, err
	}

	res, err := s.upsertOnce(ctx, rec)
	if perr.Is(err, perr.ErrorTypeConflict) {
		s.log.Debug().Str("url", rec.URL).Msg("Lost insert race, retrying upsert")
		res, err = s.upsertOnce(ctx, rec)
	}
	return res, err
}

func (s *SQLStore) upsertOnce(ctx context.Context, rec model.ProductRecord) (model.UpsertResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.UpsertResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanProduct(tx.QueryRowContext(ctx,
		s.q(`SELECT `+productColumns+` FROM product WHERE url = ?`+s.dialect.lockClause()), rec.URL))
	if errors.Is(err, ErrNotFound) {
		return s.insert(ctx, tx, rec)
	}
	if err != nil {
		return model.UpsertResult{}, fmt.Errorf("select product: %w", err)
	}

	res := model.UpsertResult{
		Action:      model.ActionUnchanged,
		ProductID:   current.ID,
		OldPrice:    current.Price,
		NewPrice:    rec.Price,
		OldCurrency: current.PriceCurrency,
		NewCurrency: rec.PriceCurrency,
	}

	priceChanged := !current.SamePrice(rec)
	if !priceChanged && current.SameScalars(rec) {
		return res, tx.Commit()
	}

	if err := s.updateScalars(ctx, tx, current.ID, rec); err != nil {
		return model.UpsertResult{}, err
	}
	if priceChanged {
		if err := s.appendHistory(ctx, tx, current.ID, rec); err != nil {
			return model.UpsertResult{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return model.UpsertResult{}, fmt.Errorf("commit: %w", err)
	}

	res.Action = model.ActionUpdated
	return res, nil
}

func (s *SQLStore) insert(ctx context.Context, tx *sql.Tx, rec model.ProductRecord) (model.UpsertResult, error) {
	var id int64
	err := tx.QueryRowContext(ctx, s.q(
		`INSERT INTO product (url, title, price, price_currency, item_class, producer,
			amount_of_ratings, rating, image_url, availability)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (url) DO NOTHING
		 RETURNING id`),
		rec.URL, rec.Title, rec.Price.InexactFloat64(), rec.PriceCurrency,
		nullString(rec.ItemClass), nullString(rec.Producer), rec.AmountOfRatings,
		nullFloat(rec.Rating), nullString(rec.ImageURL), string(rec.Availability),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UpsertResult{}, perr.NewConflict("storage", "product inserted concurrently: "+rec.URL)
	}
	if err != nil {
		return model.UpsertResult{}, fmt.Errorf("insert product: %w", err)
	}

	if err := s.appendHistory(ctx, tx, id, rec); err != nil {
		return model.UpsertResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.UpsertResult{}, fmt.Errorf("commit: %w", err)
	}

	return model.UpsertResult{
		Action:      model.ActionInserted,
		ProductID:   id,
		NewPrice:    rec.Price,
		NewCurrency: rec.PriceCurrency,
	}, nil
}

func (s *SQLStore) updateScalars(ctx context.Context, tx *sql.Tx, id int64, rec model.ProductRecord) error {
	_, err := tx.ExecContext(ctx, s.q(
		`UPDATE product SET title = ?, price = ?, price_currency = ?, item_class = ?, producer = ?,
			amount_of_ratings = ?, rating = ?, image_url = ?, availability = ?
		 WHERE id = ?`),
		rec.Title, rec.Price.InexactFloat64(), rec.PriceCurrency,
		nullString(rec.ItemClass), nullString(rec.Producer), rec.AmountOfRatings,
		nullFloat(rec.Rating), nullString(rec.ImageURL), string(rec.Availability), id,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

func (s *SQLStore) appendHistory(ctx context.Context, tx *sql.Tx, productID int64, rec model.ProductRecord) error {
	_, err := tx.ExecContext(ctx, s.q(
		`INSERT INTO price_history (product_id, price, price_currency, change_date) VALUES (?, ?, ?, ?)`),
		productID, rec.Price.InexactFloat64(), rec.PriceCurrency, s.timeArg(s.now()),
	)
	if err != nil {
		return fmt.Errorf("insert price history: %w", err)
	}
	return nil
}

// MarkUnavailable sets a known product out of stock, leaving price and
// history untouched.
func (s *SQLStore) MarkUnavailable(ctx context.Context, url string) (bool, error) {
	canonical, err := helpers.CanonicalURL(url)
	if err != nil {
		return false, perr.NewValidation("storage", err.Error())
	}

	res, err := s.db.ExecContext(ctx, s.q(`UPDATE product SET availability = ? WHERE url = ?`),
		string(model.OutOfStock), canonical)
	if err != nil {
		return false, fmt.Errorf("mark unavailable: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListAllURLs returns the URL of every product.
func (s *SQLStore) ListAllURLs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM product ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query urls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// ListTrackers returns the users tracking a product.
func (s *SQLStore) ListTrackers(ctx context.Context, productID int64) ([]model.User, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT u.id, u.email_address, u.is_email_confirmed, u.role
		 FROM cart c JOIN users u ON u.id = c.user_id
		 WHERE c.product_id = ?
		 ORDER BY u.id`), productID)
	if err != nil {
		return nil, fmt.Errorf("query trackers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.EmailAddress, &u.IsEmailConfirmed, &u.Role); err != nil {
			return nil, fmt.Errorf("scan tracker: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetProduct returns a product by ID.
func (s *SQLStore) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return scanProduct(s.db.QueryRowContext(ctx,
		s.q(`SELECT `+productColumns+` FROM product WHERE id = ?`), id))
}

// GetProductByURL returns a product by URL, canonicalizing it first.
func (s *SQLStore) GetProductByURL(ctx context.Context, url string) (*model.Product, error) {
	canonical, err := helpers.CanonicalURL(url)
	if err != nil {
		return nil, perr.NewValidation("storage", err.Error())
	}
	return scanProduct(s.db.QueryRowContext(ctx,
		s.q(`SELECT `+productColumns+` FROM product WHERE url = ?`), canonical))
}

// PriceHistory returns the history of a product, oldest first.
func (s *SQLStore) PriceHistory(ctx context.Context, productID int64) ([]model.PriceHistory, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT id, product_id, price, price_currency, change_date
		 FROM price_history WHERE product_id = ?
		 ORDER BY change_date, id`), productID)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var history []model.PriceHistory
	for rows.Next() {
		var (
			h     model.PriceHistory
			price float64
			raw   any
		)
		if err := rows.Scan(&h.ID, &h.ProductID, &price, &h.PriceCurrency, &raw); err != nil {
			return nil, fmt.Errorf("scan price history: %w", err)
		}
		h.Price = decimal.NewFromFloat(price)
		if h.ChangeDate, err = scanTime(raw); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// Search returns products matching every set field of f.
func (s *SQLStore) Search(ctx context.Context, f Filter) ([]model.Product, error) {
	var (
		where []string
		args  []any
	)
	if text := strings.TrimSpace(f.Text); text != "" {
		where = append(where, s.dialect.textMatch())
		args = append(args, text)
	}
	if f.MinPrice.Valid {
		where = append(where, "price >= ?")
		args = append(args, f.MinPrice.Decimal.InexactFloat64())
	}
	if f.MaxPrice.Valid {
		where = append(where, "price <= ?")
		args = append(args, f.MaxPrice.Decimal.InexactFloat64())
	}
	if f.Producer != "" {
		where = append(where, "lower(producer) = lower(?)")
		args = append(args, f.Producer)
	}
	if f.MinRating > 0 {
		where = append(where, "rating >= ?")
		args = append(args, f.MinRating)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	query := `SELECT ` + productColumns + ` FROM product`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// CreateUser inserts a user and populates its ID.
func (s *SQLStore) CreateUser(ctx context.Context, u *model.User) error {
	role := u.Role
	if role == "" {
		role = "user"
	}
	err := s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO users (email_address, is_email_confirmed, role) VALUES (?, ?, ?) RETURNING id`),
		u.EmailAddress, u.IsEmailConfirmed, role,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.Role = role
	return nil
}

// AddTracker records that a user tracks a product. Tracking twice is a no-op.
func (s *SQLStore) AddTracker(ctx context.Context, userID, productID int64) error {
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO cart (user_id, product_id) VALUES (?, ?)
		 ON CONFLICT (user_id, product_id) DO NOTHING`), userID, productID)
	if err != nil {
		return fmt.Errorf("insert tracker: %w", err)
	}
	return nil
}

// RemoveTracker deletes a tracker if present.
func (s *SQLStore) RemoveTracker(ctx context.Context, userID, productID int64) error {
	_, err := s.db.ExecContext(ctx, s.q(
		`DELETE FROM cart WHERE user_id = ? AND product_id = ?`), userID, productID)
	if err != nil {
		return fmt.Errorf("delete tracker: %w", err)
	}
	return nil
}

// normalizeRecord canonicalizes the URL and currency and rejects records
// that cannot be stored. The price is rounded through float64 so that it
// compares equal to what a later read returns.
func normalizeRecord(rec *model.ProductRecord) error {
	canonical, err := helpers.CanonicalURL(rec.URL)
	if err != nil {
		return perr.NewValidation("storage", err.Error())
	}
	rec.URL = canonical

	rec.Title = strings.TrimSpace(rec.Title)
	if rec.Title == "" {
		return perr.NewValidation("storage", "empty title for "+canonical)
	}
	if rec.Price.IsNegative() {
		return perr.NewValidation("storage", "negative price for "+canonical)
	}
	rec.Price = decimal.NewFromFloat(rec.Price.InexactFloat64())
	rec.PriceCurrency = currency.NormalizeCode(rec.PriceCurrency)

	if rec.Availability == "" {
		rec.Availability = model.Unknown
	}
	if rec.AmountOfRatings < 0 {
		rec.AmountOfRatings = 0
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*model.Product, error) {
	var (
		p                             model.Product
		price                         float64
		itemClass, producer, imageURL sql.NullString
		rating                        sql.NullFloat64
		availability                  string
	)
	err := row.Scan(&p.ID, &p.URL, &p.Title, &price, &p.PriceCurrency, &itemClass, &producer,
		&p.AmountOfRatings, &rating, &imageURL, &availability)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}

	p.Price = decimal.NewFromFloat(price)
	p.ItemClass = itemClass.String
	p.Producer = producer.String
	p.ImageURL = imageURL.String
	p.Availability = model.Availability(availability)
	if rating.Valid {
		r := rating.Float64
		p.Rating = &r
	}
	return &p, nil
}

// timeArg formats t for the change_date column
func (s *SQLStore) timeArg(t time.Time) any {
	if s.dialect == SQLite {
		return t.UTC().Format(timeLayout)
	}
	return t.UTC()
}

func scanTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case string:
		return parseTime(t)
	case []byte:
		return parseTime(string(t))
	}
	return time.Time{}, fmt.Errorf("unexpected change_date type %T", v)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse change_date %q", s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
