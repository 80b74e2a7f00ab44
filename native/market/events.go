package market

import (
	"encoding/hex"
	"strconv"

	"charitychain/core/types"
)

const (
	EventTypeListingCreated   = "market.listing.created"
	EventTypeListingCancelled = "market.listing.cancelled"
	EventTypeListingDonated   = "market.listing.donated"
	EventTypeOrderPurchased   = "market.order.purchased"
	EventTypeOrderShipped     = "market.order.shipped"
	EventTypeOrderDelivered   = "market.order.delivered"
	EventTypeOrderCompleted   = "market.order.completed"
	EventTypeOrderDisputed    = "market.order.disputed"
	EventTypeOrderRefunded    = "market.order.refunded"
)

type listingCreated struct{ Listing *Listing }

func (listingCreated) EventType() string { return EventTypeListingCreated }

func (e listingCreated) Event() *types.Event {
	return newListingEvent(EventTypeListingCreated, e.Listing)
}

type listingCancelled struct{ Listing *Listing }

func (listingCancelled) EventType() string { return EventTypeListingCancelled }

func (e listingCancelled) Event() *types.Event {
	return newListingEvent(EventTypeListingCancelled, e.Listing)
}

type listingDonated struct{ Listing *Listing }

func (listingDonated) EventType() string { return EventTypeListingDonated }

func (e listingDonated) Event() *types.Event {
	return newListingEvent(EventTypeListingDonated, e.Listing)
}

type orderPurchased struct{ Order *Order }

func (orderPurchased) EventType() string { return EventTypeOrderPurchased }

func (e orderPurchased) Event() *types.Event { return newOrderEvent(EventTypeOrderPurchased, e.Order) }

type orderShipped struct{ Order *Order }

func (orderShipped) EventType() string { return EventTypeOrderShipped }

func (e orderShipped) Event() *types.Event { return newOrderEvent(EventTypeOrderShipped, e.Order) }

type orderDelivered struct{ Order *Order }

func (orderDelivered) EventType() string { return EventTypeOrderDelivered }

func (e orderDelivered) Event() *types.Event { return newOrderEvent(EventTypeOrderDelivered, e.Order) }

type orderCompleted struct{ Order *Order }

func (orderCompleted) EventType() string { return EventTypeOrderCompleted }

func (e orderCompleted) Event() *types.Event { return newOrderEvent(EventTypeOrderCompleted, e.Order) }

type orderDisputed struct{ Order *Order }

func (orderDisputed) EventType() string { return EventTypeOrderDisputed }

func (e orderDisputed) Event() *types.Event { return newOrderEvent(EventTypeOrderDisputed, e.Order) }

type orderRefunded struct{ Order *Order }

func (orderRefunded) EventType() string { return EventTypeOrderRefunded }

func (e orderRefunded) Event() *types.Event { return newOrderEvent(EventTypeOrderRefunded, e.Order) }

func newListingEvent(eventType string, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l != nil {
		attrs["id"] = strconv.FormatUint(l.ID, 10)
		attrs["seller"] = hex.EncodeToString(l.Seller[:])
		attrs["charity"] = hex.EncodeToString(l.Charity[:])
		attrs["category"] = l.Category.String()
		attrs["status"] = strconv.FormatUint(uint64(l.Status), 10)
		if l.Price != nil {
			attrs["price"] = l.Price.String()
		}
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newOrderEvent(eventType string, o *Order) *types.Event {
	attrs := make(map[string]string)
	if o != nil {
		attrs["id"] = strconv.FormatUint(o.ID, 10)
		attrs["listingId"] = strconv.FormatUint(o.ListingID, 10)
		attrs["buyer"] = hex.EncodeToString(o.Buyer[:])
		attrs["seller"] = hex.EncodeToString(o.Seller[:])
		attrs["charity"] = hex.EncodeToString(o.Charity[:])
		attrs["status"] = strconv.FormatUint(uint64(o.Status), 10)
		if o.Amount != nil {
			attrs["amount"] = o.Amount.String()
		}
		if o.ShippedAt > 0 {
			attrs["shippedAt"] = strconv.FormatInt(o.ShippedAt, 10)
		}
		if o.DeliveredAt > 0 {
			attrs["deliveredAt"] = strconv.FormatInt(o.DeliveredAt, 10)
		}
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
