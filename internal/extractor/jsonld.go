package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/buger/jsonparser"
	"github.com/shopspring/decimal"
	"sjsage522/pricetracker/helpers"
	"sjsage522/pricetracker/internal/model"
	"sjsage522/pricetracker/pkg/currency"
	"sjsage522/pricetracker/pkg/errors"
)

// JSONLDExtractor reads the schema.org Product embedded as JSON-LD
type JSONLDExtractor struct {
	config JSONLDConfig
}

// NewJSONLDExtractor creates a JSON-LD extractor
func NewJSONLDExtractor(config JSONLDConfig) *JSONLDExtractor {
	return &JSONLDExtractor{config: config}
}

// Extract implements ExtractFunc
func (e *JSONLDExtractor) Extract(body []byte, pageURL string) (*model.ProductRecord, error) {
	doc, err := createDocument(body)
	if err != nil {
		return nil, errors.NewParsing(e.config.Name, "invalid HTML", err)
	}

	product := findProduct(doc)
	if product == nil {
		return nil, errors.NewParsing(e.config.Name, "no JSON-LD product found", nil)
	}

	title := strings.TrimSpace(getString(product, "name"))
	if title == "" {
		return nil, errors.NewParsing(e.config.Name, "title not found", nil)
	}

	offer := firstOf(product, "offers")
	if offer == nil {
		return nil, errors.NewParsing(e.config.Name, "offer not found", nil)
	}

	price, err := offerPrice(offer)
	if err != nil {
		return nil, errors.NewParsing(e.config.Name, "price not found", err)
	}
	if price.IsNegative() {
		return nil, errors.NewParsing(e.config.Name, "negative price "+price.String(), nil)
	}

	record := &model.ProductRecord{
		URL:           pageURL,
		Title:         title,
		Price:         price,
		PriceCurrency: currency.NormalizeCode(getString(offer, "priceCurrency")),
		ItemClass:     getString(product, "category"),
		Producer:      nameOf(product, "brand"),
		Availability:  availabilityFrom(getString(offer, "availability")),
	}

	if rating := firstOf(product, "aggregateRating"); rating != nil {
		if v, ok := helpers.ParseRating(getString(rating, "ratingValue")); ok && v >= 0 && v <= 5 {
			record.Rating = &v
		}
		count := getString(rating, "reviewCount")
		if count == "" {
			count = getString(rating, "ratingCount")
		}
		record.AmountOfRatings = helpers.ParseCount(count)
	}

	if !e.config.Category.empty() {
		s := e.config.Category.pick(doc)
		record.ItemClass = strings.Join(strings.Fields(s.Text()), " ")
	}

	if img := imageOf(product); img != "" {
		base, _ := url.Parse(pageURL)
		record.ImageURL = helpers.ResolveURL(base, img)
	}

	return record, nil
}

// findProduct returns the first JSON-LD object typed Product. Top-level
// arrays and @graph containers are searched too.
func findProduct(doc *goquery.Document) []byte {
	var product []byte
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		product = searchProduct([]byte(strings.TrimSpace(s.Text())))
		return product == nil
	})
	return product
}

func searchProduct(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}

	var found []byte
	switch data[0] {
	case '[':
		jsonparser.ArrayEach(data, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
			if found == nil && dataType == jsonparser.Object {
				found = searchProduct(value)
			}
		})
	case '{':
		if isProduct(data) {
			return data
		}
		if graph, dataType, _, err := jsonparser.Get(data, "@graph"); err == nil && dataType == jsonparser.Array {
			found = searchProduct(graph)
		}
	}
	return found
}

// isProduct checks @type, which can be a string or a list of strings
func isProduct(obj []byte) bool {
	value, dataType, _, err := jsonparser.Get(obj, "@type")
	if err != nil {
		return false
	}

	switch dataType {
	case jsonparser.String:
		return typeIsProduct(string(value))
	case jsonparser.Array:
		match := false
		jsonparser.ArrayEach(value, func(v []byte, t jsonparser.ValueType, _ int, _ error) {
			if t == jsonparser.String && typeIsProduct(string(v)) {
				match = true
			}
		})
		return match
	}
	return false
}

func typeIsProduct(t string) bool {
	return t == "Product" || strings.HasSuffix(t, "/Product")
}

// firstOf returns the object at key, or the first element when key holds a list
func firstOf(obj []byte, key string) []byte {
	value, dataType, _, err := jsonparser.Get(obj, key)
	if err != nil {
		return nil
	}

	switch dataType {
	case jsonparser.Object:
		return value
	case jsonparser.Array:
		first, t, _, err := jsonparser.Get(value, "[0]")
		if err == nil && t == jsonparser.Object {
			return first
		}
	}
	return nil
}

// getString returns a string or number value as text
func getString(obj []byte, keys ...string) string {
	value, dataType, _, err := jsonparser.Get(obj, keys...)
	if err != nil {
		return ""
	}

	switch dataType {
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return string(value)
		}
		return strings.TrimSpace(s)
	case jsonparser.Number:
		return string(value)
	}
	return ""
}

// nameOf reads fields like brand that are either a string or {"name": ...}
func nameOf(obj []byte, key string) string {
	if s := getString(obj, key); s != "" {
		return s
	}
	if inner := firstOf(obj, key); inner != nil {
		return getString(inner, "name")
	}
	return ""
}

// imageOf reads image as a string, a list of strings or an ImageObject
func imageOf(product []byte) string {
	if s := getString(product, "image"); s != "" {
		return s
	}
	if s := getString(product, "image", "[0]"); s != "" {
		return s
	}
	if obj := firstOf(product, "image"); obj != nil {
		return getString(obj, "url")
	}
	return ""
}

func offerPrice(offer []byte) (decimal.Decimal, error) {
	raw := getString(offer, "price")
	if raw == "" {
		raw = getString(offer, "lowPrice")
	}
	return helpers.ParsePrice(raw)
}
