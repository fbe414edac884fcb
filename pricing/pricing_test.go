package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name  string
		lines []Line
		want  Totals
	}{
		{"empty cart", nil, Totals{}},
		{"single line", []Line{{Price: 100, Qty: 2}}, Totals{ItemsPrice: 200, ShippingPrice: 10, TaxPrice: 30, TotalPrice: 240}},
		{"shipping capped", []Line{{Price: 1999.99, Qty: 2}}, Totals{ItemsPrice: 3999.98, ShippingPrice: 150, TaxPrice: 600, TotalPrice: 4749.98}},
		{"cap boundary", []Line{{Price: 3000, Qty: 1}}, Totals{ItemsPrice: 3000, ShippingPrice: 150, TaxPrice: 450, TotalPrice: 3600}},
		{"rounds to cents", []Line{{Price: 19.99, Qty: 3}, {Price: 0.333, Qty: 1}}, Totals{ItemsPrice: 60.3, ShippingPrice: 3.02, TaxPrice: 9.05, TotalPrice: 72.37}},
		{"negative inputs ignored", []Line{{Price: -10, Qty: 1}, {Price: 10, Qty: -1}, {Price: 20, Qty: 1}}, Totals{ItemsPrice: 20, ShippingPrice: 1, TaxPrice: 3, TotalPrice: 24}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Calculate(tt.lines))
		})
	}
}

func TestCalculateTotalsIdentity(t *testing.T) {
	carts := [][]Line{
		{{Price: 12.49, Qty: 7}},
		{{Price: 0.01, Qty: 1}, {Price: 999.95, Qty: 4}},
		{{Price: 89.99, Qty: 1}, {Price: 599.99, Qty: 2}, {Price: 29.99, Qty: 11}},
	}

	for _, cart := range carts {
		got := Calculate(cart)

		assert.GreaterOrEqual(t, got.ItemsPrice, 0.0)
		assert.GreaterOrEqual(t, got.ShippingPrice, 0.0)
		assert.GreaterOrEqual(t, got.TaxPrice, 0.0)
		assert.LessOrEqual(t, got.ShippingPrice, 150.0)

		sum := decimal.NewFromFloat(got.ItemsPrice).
			Add(decimal.NewFromFloat(got.ShippingPrice)).
			Add(decimal.NewFromFloat(got.TaxPrice))
		assert.True(t, sum.Equal(decimal.NewFromFloat(got.TotalPrice)), "total %v != %v", got.TotalPrice, sum)
	}
}

func TestCents(t *testing.T) {
	assert.Equal(t, int64(1999), Cents(19.99))
	assert.Equal(t, int64(30), Cents(0.3))
	assert.Equal(t, int64(15000), Cents(150))
	assert.Equal(t, int64(101), Cents(1.005))
}
