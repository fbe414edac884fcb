// Package pricing derives order totals from cart lines.
package pricing

import "github.com/shopspring/decimal"

var (
	TaxRate      = decimal.RequireFromString("0.15")
	ShippingRate = decimal.RequireFromString("0.05")
	ShippingCap  = decimal.NewFromInt(150)
)

type Line struct {
	Price float64
	Qty   int
}

type Totals struct {
	ItemsPrice    float64 `json:"itemsPrice"`
	ShippingPrice float64 `json:"shippingPrice"`
	TaxPrice      float64 `json:"taxPrice"`
	TotalPrice    float64 `json:"totalPrice"`
}

// Calculate prices the given lines. Negative prices and quantities count as zero.
func Calculate(lines []Line) Totals {
	items := decimal.Zero
	for _, l := range lines {
		price := decimal.NewFromFloat(l.Price)
		if price.IsNegative() || l.Qty <= 0 {
			continue
		}
		items = items.Add(price.Mul(decimal.NewFromInt(int64(l.Qty))))
	}
	items = items.Round(2)

	shipping := decimal.Min(items.Mul(ShippingRate), ShippingCap).Round(2)
	tax := items.Mul(TaxRate).Round(2)
	total := items.Add(shipping).Add(tax).Round(2)

	return Totals{
		ItemsPrice:    items.InexactFloat64(),
		ShippingPrice: shipping.InexactFloat64(),
		TaxPrice:      tax.InexactFloat64(),
		TotalPrice:    total.InexactFloat64(),
	}
}

// ItemsPrice is round2(Σ price·qty), used to backfill orders stored without it.
func ItemsPrice(lines []Line) float64 {
	return Calculate(lines).ItemsPrice
}

// Cents converts a dollar amount to the smallest currency unit, rounding half away from zero.
func Cents(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}
