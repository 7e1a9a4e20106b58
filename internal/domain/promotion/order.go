package promotion

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the payment state of a promotion order.
type OrderStatus string

const (
	OrderPaymentWaiting         OrderStatus = "PAYMENT_WAITING"
	OrderPaymentCompleted       OrderStatus = "PAYMENT_COMPLETED"
	OrderRefundCompleted        OrderStatus = "REFUND_COMPLETED"
	OrderPartialRefundCompleted OrderStatus = "PARTIAL_REFUND_COMPLETED"
	OrderPaymentCancelled       OrderStatus = "PAYMENT_CANCELLED"
)

// PaymentInfo is the payment gateway's view of what was bought. Its type fields
// are cross-checked against the owned promotion.
type PaymentInfo struct {
	OrderID          string           `json:"order_id"`
	TotalAmount      decimal.Decimal  `json:"total_amount"`
	PromotionType    PromotionType    `json:"promotion_type"`
	DistributionType DistributionType `json:"distribution_type"`
}

type OrderParams struct {
	OrderStatus       OrderStatus
	PaymentType       string
	PaymentDate       time.Time
	FinalPaymentPrice decimal.Decimal
	PaymentInfo       PaymentInfo
}

// Order holds the payment facts of an application. It is immutable after construction.
type Order struct {
	orderStatus       OrderStatus
	paymentType       string
	paymentDate       time.Time
	finalPaymentPrice decimal.Decimal
	paymentInfo       PaymentInfo
}

func NewOrder(p OrderParams) (*Order, error) {
	if p.OrderStatus == "" {
		return nil, fmt.Errorf("%w: order status is required", ErrInvalidOrder)
	}
	if p.FinalPaymentPrice.IsNegative() {
		return nil, fmt.Errorf("%w: final payment price must not be negative", ErrInvalidOrder)
	}
	return &Order{
		orderStatus:       p.OrderStatus,
		paymentType:       p.PaymentType,
		paymentDate:       p.PaymentDate,
		finalPaymentPrice: p.FinalPaymentPrice,
		paymentInfo:       p.PaymentInfo,
	}, nil
}

func (o *Order) OrderStatus() OrderStatus           { return o.orderStatus }
func (o *Order) PaymentType() string                { return o.paymentType }
func (o *Order) PaymentDate() time.Time             { return o.paymentDate }
func (o *Order) FinalPaymentPrice() decimal.Decimal { return o.finalPaymentPrice }
func (o *Order) PaymentInfo() PaymentInfo           { return o.paymentInfo }

func (o *Order) IsPaymentCompleted() bool {
	return o.orderStatus == OrderPaymentCompleted
}

// IsRefunded is true for full and partial refunds.
func (o *Order) IsRefunded() bool {
	return o.orderStatus == OrderRefundCompleted || o.orderStatus == OrderPartialRefundCompleted
}
