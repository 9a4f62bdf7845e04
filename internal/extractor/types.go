// Package extractor turns product pages into canonical product records.
//
// Every supported site is one ExtractFunc registered in a Registry under its
// host. HTML sites are described declaratively with Selectors, sites that
// publish schema.org JSON-LD are read with the JSON-LD extractor.
package extractor

import (
	"github.com/PuerkitoBio/goquery"
	"sjsage522/pricetracker/internal/model"
)

// ExtractFunc maps the body of one product page to a record. pageURL is the
// canonical URL the page was fetched from. Missing title or price is a
// parsing error.
type ExtractFunc func(body []byte, pageURL string) (*model.ProductRecord, error)

// CustomElementHandlerFunc post-processes the raw text found for a field
type CustomElementHandlerFunc func(raw string) string

// Field locates one value on a page
type Field struct {
	Selector string
	Attr     string // attribute to read; empty reads the element text
	Index    int    // which match to use; negative counts from the end
}

// Selectors contains the fields of a product page
type Selectors struct {
	Title         Field
	Price         Field
	PriceWhole    Field
	PriceFraction Field
	PriceSymbol   Field
	Currency      Field
	Rating        Field
	RatingCount   Field
	Producer      Field
	Category      Field
	Image         Field
	Availability  Field
}

// SiteConfig contains the configuration of an HTML extractor
type SiteConfig struct {
	Name                string
	Hosts               []string
	Selectors           Selectors
	ElementHandlers     map[string]CustomElementHandlerFunc
	DefaultAvailability model.Availability
}

// JSONLDConfig contains the configuration of a JSON-LD extractor. Category
// overrides the JSON-LD category when the site keeps it only in markup.
type JSONLDConfig struct {
	Name     string
	Hosts    []string
	Category Field
}

// empty reports whether the field is configured
func (f Field) empty() bool {
	return f.Selector == ""
}

// pick returns the selection the field points at
func (f Field) pick(doc *goquery.Document) *goquery.Selection {
	return doc.Find(f.Selector).Eq(f.Index)
}
