package receipt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/order-console-go/pkg/contracts"
)

func TestAmount(t *testing.T) {
	assert.Equal(t, "0", Amount(0))
	assert.Equal(t, "12,500", Amount(12500))
	assert.Equal(t, "1,000,000", Amount(1000000))
}

func TestRender(t *testing.T) {
	out, err := Render(contracts.PrintOrder{
		OrderNumber:        "A-17",
		StoreName:          "Gangnam Kitchen",
		StoreAddress:       "12 Teheran-ro",
		Phone:              "010-1111-2222",
		Amount:             21000,
		TableNumber:        "7",
		SpecialRequests:    "no onions",
		PaymentID:          "pm_1",
		FormattedCreatedAt: "2026-03-01 12:30",
		Items: []contracts.PrintItem{
			{Name: "Bibimbap", Quantity: 2, UnitPrice: 9000},
			{Name: "Cola", Quantity: 1, UnitPrice: 3000},
		},
	})
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, "Order #A-17")
	assert.Contains(t, s, "Table: 7")
	assert.Contains(t, s, "Bibimbap x2  18,000")
	assert.Contains(t, s, "TOTAL  21,000")
	assert.Contains(t, s, "Paid online")
	assert.Contains(t, s, "Requests: no onions")
}

func TestRenderOmitsOptionalSections(t *testing.T) {
	out, err := Render(contracts.PrintOrder{OrderNumber: "B1", Amount: 5000})
	require.NoError(t, err)
	s := string(out)
	assert.NotContains(t, s, "Table:")
	assert.NotContains(t, s, "Paid online")
	assert.NotContains(t, s, "Requests:")
}
