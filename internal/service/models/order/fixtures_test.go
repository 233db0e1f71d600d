package order_test

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/money"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/order"
	"github.com/corray333/backend-labs/marketplace/internal/service/models/orderitem"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func ptr[T any](v T) *T {
	return &v
}

func randomAddress() order.ShippingAddress {
	addr := gofakeit.Address()

	return order.ShippingAddress{
		Recipient:  gofakeit.Name(),
		Phone:      gofakeit.Phone(),
		Line1:      addr.Street,
		City:       addr.City,
		Region:     addr.State,
		PostalCode: addr.Zip,
		Country:    addr.Country,
	}
}

func randomItem(sellerID string) orderitem.OrderItem {
	return orderitem.OrderItem{
		ProductID:      gofakeit.UUID(),
		SellerID:       sellerID,
		Title:          gofakeit.ProductName(),
		UnitPrice:      money.Amount(gofakeit.Number(1, 100_000)),
		Quantity:       gofakeit.Number(1, 5),
		CommissionRate: decimal.NewFromFloat(float64(gofakeit.Number(0, 30)) / 100),
	}
}

func randomPlacement() order.Placement {
	sellers := []string{gofakeit.UUID(), gofakeit.UUID()}

	var items []orderitem.OrderItem
	for i := 0; i < gofakeit.Number(1, 5); i++ {
		items = append(items, randomItem(sellers[i%len(sellers)]))
	}

	return order.Placement{
		BuyerID:         gofakeit.UUID(),
		ShippingAddress: randomAddress(),
		PaymentMethod:   order.PaymentMobileMoney,
		Currency:        money.CurrencyUSD,
		TaxRate:         decimal.RequireFromString("0.08"),
		Items:           items,
	}
}

func randomOrder() order.Order {
	o, err := order.Place(randomPlacement(), uuid.New(), time.Now().Add(-time.Hour))
	if err != nil {
		panic(err)
	}

	return o
}
