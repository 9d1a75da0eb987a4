package application

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/commercekit/fulfillment/internal/order/domain"
)

func line(price string, qty int) domain.OrderLine {
	return domain.OrderLine{
		ProductID: "000000000000000000000001",
		Name:      "widget",
		UnitPrice: decimal.RequireFromString(price),
		Quantity:  qty,
	}
}

func TestPriceFreeShippingAtThreshold(t *testing.T) {
	// Reaching the threshold exactly earns free shipping.
	p := DefaultPricingPolicy()

	q := p.Price([]domain.OrderLine{line("50.00", 2)})
	assert.Equal(t, "100.00", q.ItemsPrice.StringFixed(2))
	assert.Equal(t, "0.00", q.ShippingPrice.StringFixed(2))
	assert.Equal(t, "10.00", q.TaxPrice.StringFixed(2))
	assert.Equal(t, "110.00", q.TotalPrice.StringFixed(2))

	q = p.Price([]domain.OrderLine{line("49.99", 2)})
	assert.Equal(t, "10.00", q.ShippingPrice.StringFixed(2))
}

func TestPriceBelowThreshold(t *testing.T) {
	p := DefaultPricingPolicy()
	q := p.Price([]domain.OrderLine{line("19.99", 2)})

	assert.Equal(t, "39.98", q.ItemsPrice.StringFixed(2))
	assert.Equal(t, "10.00", q.ShippingPrice.StringFixed(2))
	assert.Equal(t, "4.00", q.TaxPrice.StringFixed(2)) // 3.998 rounded
	assert.Equal(t, "53.98", q.TotalPrice.StringFixed(2))
}

func TestPriceRoundsEachDerivedField(t *testing.T) {
	p := PricingPolicy{
		FreeShippingOver: decimal.NewFromInt(100),
		ShippingFee:      decimal.NewFromInt(10),
		TaxRate:          decimal.RequireFromString("0.0825"),
	}
	q := p.Price([]domain.OrderLine{line("0.10", 3)})

	assert.Equal(t, "0.30", q.ItemsPrice.StringFixed(2))
	assert.Equal(t, "0.02", q.TaxPrice.StringFixed(2)) // 0.02475 rounds down
	assert.Equal(t, "10.32", q.TotalPrice.StringFixed(2))
}

func TestPriceEmptyLines(t *testing.T) {
	q := DefaultPricingPolicy().Price(nil)
	assert.True(t, q.ItemsPrice.IsZero())
	assert.Equal(t, "10.00", q.ShippingPrice.StringFixed(2))
}
