package application

import (
	"github.com/shopspring/decimal"

	"github.com/commercekit/fulfillment/internal/order/domain"
)

// PricingPolicy turns order lines into totals. It is a pure computation;
// every derived field is rounded to two decimal places as it is produced so
// accumulation error never reaches a stored total.
type PricingPolicy struct {
	FreeShippingOver decimal.Decimal
	ShippingFee      decimal.Decimal
	TaxRate          decimal.Decimal
}

func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		FreeShippingOver: decimal.NewFromInt(100),
		ShippingFee:      decimal.NewFromInt(10),
		TaxRate:          decimal.NewFromFloat(0.10),
	}
}

type Quote struct {
	ItemsPrice    decimal.Decimal
	ShippingPrice decimal.Decimal
	TaxPrice      decimal.Decimal
	TotalPrice    decimal.Decimal
}

func (p PricingPolicy) Price(lines []domain.OrderLine) Quote {
	items := decimal.Zero
	for _, l := range lines {
		items = items.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	items = items.Round(2)

	// Reaching the threshold earns free shipping.
	shipping := p.ShippingFee.Round(2)
	if items.GreaterThanOrEqual(p.FreeShippingOver) {
		shipping = decimal.Zero.Round(2)
	}

	tax := items.Mul(p.TaxRate).Round(2)

	return Quote{
		ItemsPrice:    items,
		ShippingPrice: shipping,
		TaxPrice:      tax,
		TotalPrice:    items.Add(shipping).Add(tax).Round(2),
	}
}
