package domain

import "time"

// FulfillmentStatus — статус исполнения заказа.
type FulfillmentStatus string

const (
	FulfillmentPending   FulfillmentStatus = "pending"
	FulfillmentPaid      FulfillmentStatus = "paid"
	FulfillmentShipped   FulfillmentStatus = "shipped"
	FulfillmentDelivered FulfillmentStatus = "delivered"
	FulfillmentCanceled  FulfillmentStatus = "canceled"
)

// Valid сообщает, является ли статус известным.
func (s FulfillmentStatus) Valid() bool {
	switch s {
	case FulfillmentPending, FulfillmentPaid, FulfillmentShipped, FulfillmentDelivered, FulfillmentCanceled:
		return true
	default:
		return false
	}
}

// PaymentStatus описывает состояние оплаты заказа.
type PaymentStatus string

const (
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusDeclined   PaymentStatus = "declined"
	PaymentStatusVoided     PaymentStatus = "voided"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// StatusUpdate — запись в журнале статусов заказа. Журнал только дополняется,
// сам заказ при этом не меняется.
type StatusUpdate struct {
	OrderID           string            `json:"order_id"`
	PaymentStatus     PaymentStatus     `json:"payment_status,omitempty"`
	FulfillmentStatus FulfillmentStatus `json:"fulfillment_status"`
	TrackingRef       string            `json:"tracking_ref,omitempty"`
	Note              string            `json:"note,omitempty"`
	Occurred          time.Time         `json:"occurred"`
}
