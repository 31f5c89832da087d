package catalog

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juliakaiko/orderservice/internal/domain/failure"
)

func TestItemValidate(t *testing.T) {
	tests := []struct {
		name  string
		item  Item
		valid bool
	}{
		{name: "ok", item: Item{Name: "MacBook Pro", UnitPrice: decimal.RequireFromString("2500.00")}, valid: true},
		{name: "free", item: Item{Name: "Sticker", UnitPrice: decimal.Zero}, valid: true},
		{name: "blank name", item: Item{Name: "  ", UnitPrice: decimal.NewFromInt(1)}},
		{name: "long name", item: Item{Name: strings.Repeat("x", MaxNameLength+1), UnitPrice: decimal.NewFromInt(1)}},
		{name: "negative", item: Item{Name: "Mouse", UnitPrice: decimal.RequireFromString("-0.01")}},
		{name: "three digits", item: Item{Name: "Mouse", UnitPrice: decimal.RequireFromString("1.005")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidItem)
			assert.Equal(t, failure.Invalid, failure.KindOf(err))
		})
	}
}
