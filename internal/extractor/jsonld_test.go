package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sjsage522/pricetracker/internal/model"
	"sjsage522/pricetracker/pkg/errors"
)

const ebayPage = `
<html><head>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"BreadcrumbList","itemListElement":[]}</script>
<script type="application/ld+json">
{
	"@context": "https://schema.org",
	"@type": "Product",
	"name": "Vintage Camera & Lens",
	"image": ["https://i.ebayimg.com/images/g/cam/s-l1600.jpg", "https://i.ebayimg.com/images/g/cam2/s-l1600.jpg"],
	"brand": {"@type": "Brand", "name": "Canon"},
	"category": "Cameras & Photo",
	"aggregateRating": {"@type": "AggregateRating", "ratingValue": "4.8", "reviewCount": "52"},
	"offers": {
		"@type": "Offer",
		"price": "149.50",
		"priceCurrency": "USD",
		"availability": "https://schema.org/InStock"
	}
}
</script>
</head><body></body></html>`

const neweggPage = `
<html><head>
<script type="application/ld+json">
{
	"@context": "http://schema.org",
	"@type": "Product",
	"name": "Graphics Card RTX",
	"image": "https://c1.neweggimages.com/productimage/gpu.jpg",
	"brand": "MSI",
	"aggregateRating": {"ratingValue": 4, "ratingCount": 310},
	"offers": {"price": 699.99, "priceCurrency": "USD", "availability": "http://schema.org/OutOfStock"}
}
</script>
</head><body>
	<ol class="breadcrumb">
		<li><a href="/">Home</a></li>
		<li><a href="/components">Components</a></li>
		<li><a href="/gpus">Desktop Graphics Cards</a></li>
		<li>Graphics Card RTX</li>
	</ol>
</body></html>`

const gamestopPage = `
<html><head>
<script type="application/ld+json">
{
	"@context": "https://schema.org",
	"@graph": [
		{"@type": "WebPage", "name": "GameStop"},
		{
			"@type": ["Product", "VideoGame"],
			"name": "Space Shooter Deluxe",
			"image": {"@type": "ImageObject", "url": "/images/space-shooter.jpg"},
			"brand": {"name": "Big Studio"},
			"category": "Video Games",
			"offers": [
				{"price": "59.99", "priceCurrency": "USD", "availability": "https://schema.org/InStock"},
				{"price": "29.99", "priceCurrency": "USD", "availability": "https://schema.org/InStock"}
			]
		}
	]
}
</script>
</head><body></body></html>`

func TestEbayExtractor(t *testing.T) {
	ext := NewJSONLDExtractor(jsonLDSites[0])

	rec, err := ext.Extract([]byte(ebayPage), "https://www.ebay.com/itm/1234")
	require.NoError(t, err)

	assert.Equal(t, "Vintage Camera & Lens", rec.Title)
	assert.Equal(t, "149.5", rec.Price.String())
	assert.Equal(t, "USD", rec.PriceCurrency)
	assert.Equal(t, "Canon", rec.Producer)
	assert.Equal(t, "Cameras & Photo", rec.ItemClass)
	require.NotNil(t, rec.Rating)
	assert.Equal(t, 4.8, *rec.Rating)
	assert.Equal(t, 52, rec.AmountOfRatings)
	assert.Equal(t, "https://i.ebayimg.com/images/g/cam/s-l1600.jpg", rec.ImageURL)
	assert.Equal(t, model.InStock, rec.Availability)
}

func TestNeweggExtractor(t *testing.T) {
	ext := NewJSONLDExtractor(jsonLDSites[1])

	rec, err := ext.Extract([]byte(neweggPage), "https://www.newegg.com/p/N82E16814")
	require.NoError(t, err)

	assert.Equal(t, "Graphics Card RTX", rec.Title)
	assert.Equal(t, "699.99", rec.Price.String())
	assert.Equal(t, "MSI", rec.Producer)
	assert.Equal(t, "Desktop Graphics Cards", rec.ItemClass)
	require.NotNil(t, rec.Rating)
	assert.Equal(t, 4.0, *rec.Rating)
	assert.Equal(t, 310, rec.AmountOfRatings)
	assert.Equal(t, "https://c1.neweggimages.com/productimage/gpu.jpg", rec.ImageURL)
	assert.Equal(t, model.OutOfStock, rec.Availability)
}

func TestGameStopExtractor(t *testing.T) {
	ext := NewJSONLDExtractor(jsonLDSites[2])

	rec, err := ext.Extract([]byte(gamestopPage), "https://www.gamestop.com/video-games/space-shooter")
	require.NoError(t, err)

	assert.Equal(t, "Space Shooter Deluxe", rec.Title)
	assert.Equal(t, "59.99", rec.Price.String())
	assert.Equal(t, "USD", rec.PriceCurrency)
	assert.Equal(t, "Big Studio", rec.Producer)
	assert.Equal(t, "Video Games", rec.ItemClass)
	assert.Nil(t, rec.Rating)
	assert.Equal(t, "https://www.gamestop.com/images/space-shooter.jpg", rec.ImageURL)
	assert.Equal(t, model.InStock, rec.Availability)
}

func TestJSONLDExtractorFailures(t *testing.T) {
	ext := NewJSONLDExtractor(jsonLDSites[0])

	testCases := []struct {
		name string
		page string
	}{
		{name: "no script", page: `<html><body><h1>Item</h1></body></html>`},
		{name: "broken json", page: `<script type="application/ld+json">{"@type": "Product", "name": </script>`},
		{name: "not a product", page: `<script type="application/ld+json">{"@type": "Organization", "name": "eBay"}</script>`},
		{name: "no name", page: `<script type="application/ld+json">{"@type": "Product", "offers": {"price": "1"}}</script>`},
		{name: "no offer", page: `<script type="application/ld+json">{"@type": "Product", "name": "X"}</script>`},
		{name: "no price", page: `<script type="application/ld+json">{"@type": "Product", "name": "X", "offers": {"priceCurrency": "USD"}}</script>`},
		{name: "negative price", page: `<script type="application/ld+json">{"@type": "Product", "name": "X", "offers": {"price": "-3.50"}}</script>`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := ext.Extract([]byte(tc.page), "https://www.ebay.com/itm/1")
			assert.Nil(t, rec)
			assert.True(t, errors.IsParsing(err), "got %v", err)
		})
	}
}

func TestJSONLDTopLevelArray(t *testing.T) {
	page := `<script type="application/ld+json">[
		{"@type": "Organization", "name": "Shop"},
		{"@type": "http://schema.org/Product", "name": "Cable", "offers": {"@type": "AggregateOffer", "lowPrice": "3.10", "priceCurrency": "GBP"}}
	]</script>`

	rec, err := NewJSONLDExtractor(jsonLDSites[0]).Extract([]byte(page), "https://www.ebay.com/itm/2")
	require.NoError(t, err)
	assert.Equal(t, "Cable", rec.Title)
	assert.Equal(t, "3.1", rec.Price.String())
	assert.Equal(t, "GBP", rec.PriceCurrency)
	assert.Equal(t, model.Unknown, rec.Availability)
}
