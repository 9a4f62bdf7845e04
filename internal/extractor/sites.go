package extractor

import (
	"strings"

	"sjsage522/pricetracker/internal/model"
)

// htmlSites are read with CSS selectors
var htmlSites = []SiteConfig{
	{
		// Amazon (US and UK storefronts share markup)
		Name:  "Amazon",
		Hosts: []string{"amazon.com", "amazon.co.uk"},
		Selectors: Selectors{
			Title:         Field{Selector: "#productTitle"},
			PriceWhole:    Field{Selector: ".a-price .a-price-whole"},
			PriceFraction: Field{Selector: ".a-price .a-price-fraction"},
			PriceSymbol:   Field{Selector: ".a-price .a-price-symbol"},
			Rating:        Field{Selector: "#acrPopover .a-icon-alt"},
			RatingCount:   Field{Selector: "#acrCustomerReviewText"},
			Producer:      Field{Selector: "tr.po-brand td.po-break-word, #bylineInfo"},
			Category:      Field{Selector: "#wayfinding-breadcrumbs_feature_div ul li a", Index: -1},
			Image:         Field{Selector: "#imgTagWrapperId img", Attr: "src"},
		},
		ElementHandlers: map[string]CustomElementHandlerFunc{
			"producer": cleanAmazonBrand,
		},
		DefaultAvailability: model.InStock,
	},
	{
		// Excaliber PC uses microdata
		Name:  "ExcaliberPC",
		Hosts: []string{"excaliberpc.com"},
		Selectors: Selectors{
			Title:        Field{Selector: "h1.product-head_name"},
			Price:        Field{Selector: `meta[itemprop="price"]`, Attr: "content"},
			Currency:     Field{Selector: `meta[itemprop="priceCurrency"]`, Attr: "content"},
			Rating:       Field{Selector: `meta[itemprop="ratingValue"]`, Attr: "content"},
			RatingCount:  Field{Selector: `meta[itemprop="reviewCount"]`, Attr: "content"},
			Producer:     Field{Selector: `meta[itemprop="brand"]`, Attr: "content"},
			Category:     Field{Selector: ".breadcrumb a", Index: 2},
			Image:        Field{Selector: "img.itemphoto, #itemphoto", Attr: "src"},
			Availability: Field{Selector: `link[itemprop="availability"]`, Attr: "href"},
		},
	},
}

// jsonLDSites publish a schema.org Product as JSON-LD
var jsonLDSites = []JSONLDConfig{
	{
		Name:  "eBay",
		Hosts: []string{"ebay.com"},
	},
	{
		// Newegg's JSON-LD has no category, the breadcrumb holds it
		Name:     "Newegg",
		Hosts:    []string{"newegg.com"},
		Category: Field{Selector: "ol.breadcrumb li", Index: -2},
	},
	{
		Name:  "GameStop",
		Hosts: []string{"gamestop.com"},
	},
}

// cleanAmazonBrand turns "Visit the ASUS Store" and "Brand: ASUS" into "ASUS"
func cleanAmazonBrand(raw string) string {
	s := strings.TrimPrefix(raw, "Brand:")
	s = strings.TrimPrefix(strings.TrimSpace(s), "Visit the ")
	s = strings.TrimSuffix(s, " Store")
	return s
}
