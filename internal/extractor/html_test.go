package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sjsage522/pricetracker/internal/model"
	"sjsage522/pricetracker/pkg/errors"
)

const amazonPage = `
<html><body>
	<div id="wayfinding-breadcrumbs_feature_div"><ul>
		<li><a href="/electronics">Electronics</a></li>
		<li><a href="/components">Computer Components</a></li>
		<li><a href="/gpu">Graphics Cards</a></li>
	</ul></div>
	<span id="productTitle">   GPU X   </span>
	<a id="bylineInfo" href="/stores/asus">Visit the ASUS Store</a>
	<span id="acrPopover" title="4.6 out of 5 stars"><span class="a-icon-alt">4.6 out of 5 stars</span></span>
	<span id="acrCustomerReviewText">1,234 ratings</span>
	<div id="corePrice_feature_div">
		<span class="a-price"><span class="a-price-symbol">$</span><span class="a-price-whole">500<span class="a-price-decimal">.</span></span><span class="a-price-fraction">00</span></span>
	</div>
	<div id="imgTagWrapperId"><img src="https://m.media-amazon.com/images/I/gpu.jpg"></div>
	<div class="other-offers">
		<span class="a-price"><span class="a-price-symbol">$</span><span class="a-price-whole">520<span class="a-price-decimal">.</span></span><span class="a-price-fraction">99</span></span>
	</div>
</body></html>`

const excaliberPage = `
<html><body>
	<div class="breadcrumb">
		<a href="/">Home</a><a href="/computers">Computers</a><a href="/computers/laptops">Laptops</a><a href="/x">Gaming</a>
	</div>
	<div itemscope itemtype="http://schema.org/Product">
		<h1 class="product-head_name">Laptop Pro 15</h1>
		<meta itemprop="brand" content="Acme">
		<img class="itemphoto" src="/images/products/laptop.jpg">
		<div itemprop="aggregateRating" itemscope itemtype="http://schema.org/AggregateRating">
			<meta itemprop="ratingValue" content="4.2">
			<meta itemprop="reviewCount" content="17">
		</div>
		<div itemprop="offers" itemscope itemtype="http://schema.org/Offer">
			<meta itemprop="price" content="1299.99">
			<meta itemprop="priceCurrency" content="usd">
			<link itemprop="availability" href="http://schema.org/InStock">
		</div>
	</div>
</body></html>`

func TestAmazonExtractor(t *testing.T) {
	ext := NewHTMLExtractor(htmlSites[0])

	rec, err := ext.Extract([]byte(amazonPage), "https://www.amazon.com/dp/B0GPUX")
	require.NoError(t, err)

	assert.Equal(t, "https://www.amazon.com/dp/B0GPUX", rec.URL)
	assert.Equal(t, "GPU X", rec.Title)
	assert.Equal(t, "500.00", rec.Price.StringFixed(2))
	assert.Equal(t, "USD", rec.PriceCurrency)
	assert.Equal(t, "ASUS", rec.Producer)
	assert.Equal(t, "Graphics Cards", rec.ItemClass)
	require.NotNil(t, rec.Rating)
	assert.Equal(t, 4.6, *rec.Rating)
	assert.Equal(t, 1234, rec.AmountOfRatings)
	assert.Equal(t, "https://m.media-amazon.com/images/I/gpu.jpg", rec.ImageURL)
	assert.Equal(t, model.InStock, rec.Availability)
}

func TestAmazonExtractorPound(t *testing.T) {
	page := `<span id="productTitle">Kettle</span>
		<span class="a-price"><span class="a-price-symbol">£</span><span class="a-price-whole">24.</span><span class="a-price-fraction">99</span></span>`

	rec, err := NewHTMLExtractor(htmlSites[0]).Extract([]byte(page), "https://www.amazon.co.uk/dp/K1")
	require.NoError(t, err)
	assert.Equal(t, "24.99", rec.Price.String())
	assert.Equal(t, "GBP", rec.PriceCurrency)
	assert.Nil(t, rec.Rating)
	assert.Equal(t, 0, rec.AmountOfRatings)
	assert.Empty(t, rec.Producer)
}

func TestAmazonExtractorMissingFields(t *testing.T) {
	ext := NewHTMLExtractor(htmlSites[0])

	testCases := []struct {
		name string
		page string
	}{
		{
			name: "no title",
			page: `<span class="a-price"><span class="a-price-whole">500.</span><span class="a-price-fraction">00</span></span>`,
		},
		{
			name: "no price",
			page: `<span id="productTitle">GPU X</span><div id="availability">Currently unavailable.</div>`,
		},
		{
			name: "empty title",
			page: `<span id="productTitle">   </span><span class="a-price"><span class="a-price-whole">5</span></span>`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := ext.Extract([]byte(tc.page), "https://www.amazon.com/dp/B0GPUX")
			assert.Nil(t, rec)
			assert.True(t, errors.IsParsing(err), "got %v", err)
		})
	}
}

func TestExcaliberExtractor(t *testing.T) {
	ext := NewHTMLExtractor(htmlSites[1])

	rec, err := ext.Extract([]byte(excaliberPage), "https://www.excaliberpc.com/12345/laptop-pro-15.html")
	require.NoError(t, err)

	assert.Equal(t, "Laptop Pro 15", rec.Title)
	assert.Equal(t, "1299.99", rec.Price.String())
	assert.Equal(t, "USD", rec.PriceCurrency)
	assert.Equal(t, "Acme", rec.Producer)
	assert.Equal(t, "Laptops", rec.ItemClass)
	require.NotNil(t, rec.Rating)
	assert.Equal(t, 4.2, *rec.Rating)
	assert.Equal(t, 17, rec.AmountOfRatings)
	assert.Equal(t, "https://www.excaliberpc.com/images/products/laptop.jpg", rec.ImageURL)
	assert.Equal(t, model.InStock, rec.Availability)
}

func TestExcaliberExtractorOutOfStock(t *testing.T) {
	page := `<h1 class="product-head_name">Mouse</h1>
		<meta itemprop="price" content="19.00">
		<link itemprop="availability" href="http://schema.org/OutOfStock">`

	rec, err := NewHTMLExtractor(htmlSites[1]).Extract([]byte(page), "https://www.excaliberpc.com/1/mouse.html")
	require.NoError(t, err)
	assert.Equal(t, model.OutOfStock, rec.Availability)
	assert.Equal(t, "USD", rec.PriceCurrency)
}

func TestHTMLExtractorRejectsOutOfRangeRating(t *testing.T) {
	page := `<h1 class="product-head_name">Mouse</h1>
		<meta itemprop="price" content="19.00">
		<meta itemprop="ratingValue" content="9.5">`

	rec, err := NewHTMLExtractor(htmlSites[1]).Extract([]byte(page), "https://www.excaliberpc.com/1/mouse.html")
	require.NoError(t, err)
	assert.Nil(t, rec.Rating)
	assert.Equal(t, model.Unknown, rec.Availability)
}

func TestHTMLExtractorRejectsNegativePrice(t *testing.T) {
	page := `<h1 class="product-head_name">Mouse</h1>
		<meta itemprop="price" content="-19.00">`

	rec, err := NewHTMLExtractor(htmlSites[1]).Extract([]byte(page), "https://www.excaliberpc.com/1/mouse.html")
	assert.Nil(t, rec)
	require.Error(t, err)
	assert.True(t, errors.IsParsing(err), "got %v", err)
	assert.Contains(t, err.Error(), "negative price")
}

func TestCleanAmazonBrand(t *testing.T) {
	assert.Equal(t, "ASUS", cleanAmazonBrand("Visit the ASUS Store"))
	assert.Equal(t, "Logitech", cleanAmazonBrand("Brand: Logitech"))
	assert.Equal(t, "Sony", cleanAmazonBrand("Sony"))
}
