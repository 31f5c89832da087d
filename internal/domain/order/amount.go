package order

import "github.com/shopspring/decimal"

// PaymentAmount sums unit price times quantity over items. An empty set
// yields zero.
func PaymentAmount(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return total
}
