package extractor

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"sjsage522/pricetracker/helpers"
	"sjsage522/pricetracker/internal/model"
	"sjsage522/pricetracker/logger"
	"sjsage522/pricetracker/pkg/currency"
	"sjsage522/pricetracker/pkg/errors"
)

// HTMLExtractor reads a product page with CSS selectors
type HTMLExtractor struct {
	config SiteConfig
	log    *logger.Logger
}

// NewHTMLExtractor creates an extractor from a site configuration
func NewHTMLExtractor(config SiteConfig) *HTMLExtractor {
	if config.DefaultAvailability == "" {
		config.DefaultAvailability = model.Unknown
	}
	return &HTMLExtractor{config: config, log: logger.ForExtractor(config.Name)}
}

// Extract implements ExtractFunc
func (e *HTMLExtractor) Extract(body []byte, pageURL string) (*model.ProductRecord, error) {
	doc, err := createDocument(body)
	if err != nil {
		return nil, errors.NewParsing(e.config.Name, "invalid HTML", err)
	}

	sel := e.config.Selectors

	title := e.processField(doc, "title", sel.Title)
	if title == "" {
		return nil, errors.NewParsing(e.config.Name, "title not found", nil)
	}

	price, err := e.extractPrice(doc)
	if err != nil {
		return nil, errors.NewParsing(e.config.Name, "price not found", err)
	}
	if price.IsNegative() {
		return nil, errors.NewParsing(e.config.Name, "negative price "+price.String(), nil)
	}

	record := &model.ProductRecord{
		URL:             pageURL,
		Title:           title,
		Price:           price,
		PriceCurrency:   e.extractCurrency(doc),
		ItemClass:       e.processField(doc, "category", sel.Category),
		Producer:        e.processField(doc, "producer", sel.Producer),
		AmountOfRatings: helpers.ParseCount(e.processField(doc, "ratingCount", sel.RatingCount)),
		Availability:    e.extractAvailability(doc),
	}

	if raw := e.processField(doc, "rating", sel.Rating); raw != "" {
		if rating, ok := helpers.ParseRating(raw); ok && rating >= 0 && rating <= 5 {
			record.Rating = &rating
		} else {
			e.log.Debug().Str("url", pageURL).Str("rating", raw).Msg("Ignoring unreadable rating")
		}
	}

	if img := e.processField(doc, "image", sel.Image); img != "" {
		base, _ := url.Parse(pageURL)
		record.ImageURL = helpers.ResolveURL(base, img)
	}

	return record, nil
}

// processField extracts the value of a field and runs its custom handler if any
func (e *HTMLExtractor) processField(doc *goquery.Document, path string, f Field) string {
	if f.empty() {
		return ""
	}

	s := f.pick(doc)
	if s.Length() == 0 {
		return ""
	}

	var raw string
	if f.Attr != "" {
		raw, _ = s.Attr(f.Attr)
	} else {
		raw = s.Text()
	}
	raw = strings.Join(strings.Fields(raw), " ")

	if handler, exists := e.config.ElementHandlers[path]; exists && handler != nil {
		return strings.TrimSpace(handler(raw))
	}
	return raw
}

func (e *HTMLExtractor) extractPrice(doc *goquery.Document) (decimal.Decimal, error) {
	sel := e.config.Selectors
	if !sel.PriceWhole.empty() {
		return helpers.JoinPrice(
			e.processField(doc, "priceWhole", sel.PriceWhole),
			e.processField(doc, "priceFraction", sel.PriceFraction),
		)
	}
	return helpers.ParsePrice(e.processField(doc, "price", sel.Price))
}

func (e *HTMLExtractor) extractCurrency(doc *goquery.Document) string {
	sel := e.config.Selectors
	if code := e.processField(doc, "currency", sel.Currency); code != "" {
		return currency.NormalizeCode(code)
	}
	if sym := e.processField(doc, "priceSymbol", sel.PriceSymbol); sym != "" {
		return currency.SymbolToCode(sym)
	}
	return currency.DefaultCode
}

func (e *HTMLExtractor) extractAvailability(doc *goquery.Document) model.Availability {
	sel := e.config.Selectors
	if sel.Availability.empty() {
		return e.config.DefaultAvailability
	}
	return availabilityFrom(e.processField(doc, "availability", sel.Availability))
}

// availabilityFrom maps a schema.org availability value to a state
func availabilityFrom(value string) model.Availability {
	switch {
	case value == "":
		return model.Unknown
	case strings.Contains(value, "InStock"):
		return model.InStock
	default:
		return model.OutOfStock
	}
}

// createDocument creates a goquery document from a page body
func createDocument(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}
