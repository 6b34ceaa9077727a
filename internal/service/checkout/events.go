package checkout

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// orderPlacedEvent — полезная нагрузка события order.placed.
type orderPlacedEvent struct {
	OrderID       string               `json:"order_id"`
	BuyerID       string               `json:"buyer_id"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
	DiscountCode  string               `json:"discount_code,omitempty"`
	GrossTotal    decimal.Decimal      `json:"gross_total"`
	NetTotal      decimal.Decimal      `json:"net_total"`
	Currency      string               `json:"currency"`
	Lines         []placedLine         `json:"lines"`
	PlacedAt      time.Time            `json:"placed_at"`
}

type placedLine struct {
	ProductID string          `json:"product_id"`
	SellerID  string          `json:"seller_id,omitempty"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

func newOrderPlacedEvent(order domain.Order) orderPlacedEvent {
	lines := make([]placedLine, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		lines = append(lines, placedLine{
			ProductID: item.ProductID,
			SellerID:  item.SellerID,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		})
	}
	return orderPlacedEvent{
		OrderID:       order.ID,
		BuyerID:       order.BuyerID,
		PaymentMethod: order.PaymentMethod,
		DiscountCode:  order.DiscountCode,
		GrossTotal:    order.GrossTotal,
		NetTotal:      order.NetTotal,
		Currency:      order.Currency,
		Lines:         lines,
		PlacedAt:      order.PlacedAt,
	}
}

// statusChangedEvent — полезная нагрузка события order.status_changed.
type statusChangedEvent struct {
	OrderID           string                   `json:"order_id"`
	FulfillmentStatus domain.FulfillmentStatus `json:"fulfillment_status"`
	PaymentStatus     domain.PaymentStatus     `json:"payment_status,omitempty"`
	TrackingRef       string                   `json:"tracking_ref,omitempty"`
	Occurred          time.Time                `json:"occurred"`
}

func newStatusChangedEvent(update domain.StatusUpdate) statusChangedEvent {
	return statusChangedEvent{
		OrderID:           update.OrderID,
		FulfillmentStatus: update.FulfillmentStatus,
		PaymentStatus:     update.PaymentStatus,
		TrackingRef:       update.TrackingRef,
		Occurred:          update.Occurred,
	}
}
