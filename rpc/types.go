package rpc

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	coretypes "charitychain/core/types"
	"charitychain/crypto"
	"charitychain/native/charity"
	"charitychain/native/common"
	"charitychain/native/market"
)

func parseAddress(addr string) ([20]byte, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return [20]byte{}, fmt.Errorf("address required")
	}
	decoded, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return [20]byte{}, err
	}
	return decoded.Bytes(), nil
}

func formatAddress(addr [20]byte) string {
	return crypto.NewAddress(crypto.CharityPrefix, addr).String()
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount")
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

func parseCategory(value uint8) (coretypes.Category, error) {
	category := coretypes.Category(value)
	if !category.Valid() {
		return 0, fmt.Errorf("unknown category %d", value)
	}
	return category, nil
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func listingStatusString(status market.ListingStatus) string {
	switch status {
	case market.ListingActive:
		return "active"
	case market.ListingSold:
		return "sold"
	case market.ListingCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func orderStatusString(status market.OrderStatus) string {
	switch status {
	case market.OrderAwaitingShipment:
		return "awaiting_shipment"
	case market.OrderShipped:
		return "shipped"
	case market.OrderDelivered:
		return "delivered"
	case market.OrderCompleted:
		return "completed"
	case market.OrderDisputed:
		return "disputed"
	case market.OrderRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

func goalStatusString(status charity.GoalStatus) string {
	switch status {
	case charity.GoalActive:
		return "active"
	case charity.GoalCompleted:
		return "completed"
	case charity.GoalCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func requestStatusString(status charity.RequestStatus) string {
	switch status {
	case charity.RequestActive:
		return "active"
	case charity.RequestFulfilled:
		return "fulfilled"
	case charity.RequestCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// writeEngineError maps engine error sentinels to JSON-RPC error responses.
func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	code := codeServerError
	message := "internal_error"
	switch {
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
		code = codeNotFound
		message = "not_found"
	case errors.Is(err, common.ErrUnauthorized):
		status = http.StatusForbidden
		code = codeForbidden
		message = "forbidden"
	case errors.Is(err, common.ErrInvalidState),
		errors.Is(err, common.ErrPaymentMismatch),
		errors.Is(err, common.ErrCharityNotVerified):
		status = http.StatusConflict
		code = codeConflict
		message = "conflict"
	case errors.Is(err, common.ErrInvariant):
		status = http.StatusBadRequest
		code = codeInvalidParams
		message = "invalid_params"
	}
	writeError(w, status, id, code, message, err.Error())
}

type listingJSON struct {
	ID          uint64 `json:"id"`
	Seller      string `json:"seller"`
	MetadataRef string `json:"metadataRef"`
	Price       string `json:"price"`
	Category    string `json:"category"`
	Status      string `json:"status"`
	Charity     string `json:"charity"`
}

func formatListingJSON(l *market.Listing) listingJSON {
	return listingJSON{
		ID:          l.ID,
		Seller:      formatAddress(l.Seller),
		MetadataRef: l.MetadataRef,
		Price:       formatAmount(l.Price),
		Category:    l.Category.String(),
		Status:      listingStatusString(l.Status),
		Charity:     formatAddress(l.Charity),
	}
}

type orderJSON struct {
	ID            uint64 `json:"id"`
	ListingID     uint64 `json:"listingId"`
	Buyer         string `json:"buyer"`
	Seller        string `json:"seller"`
	Charity       string `json:"charity"`
	Amount        string `json:"amount"`
	Status        string `json:"status"`
	ShippedAt     int64  `json:"shippedAt"`
	DeliveredAt   int64  `json:"deliveredAt"`
	DisputeReason string `json:"disputeReason,omitempty"`
}

func formatOrderJSON(o *market.Order) orderJSON {
	return orderJSON{
		ID:            o.ID,
		ListingID:     o.ListingID,
		Buyer:         formatAddress(o.Buyer),
		Seller:        formatAddress(o.Seller),
		Charity:       formatAddress(o.Charity),
		Amount:        formatAmount(o.Amount),
		Status:        orderStatusString(o.Status),
		ShippedAt:     o.ShippedAt,
		DeliveredAt:   o.DeliveredAt,
		DisputeReason: o.DisputeReason,
	}
}

type charityJSON struct {
	ID            uint64 `json:"id"`
	Identity      string `json:"identity"`
	MetadataRef   string `json:"metadataRef"`
	Verified      bool   `json:"verified"`
	TotalReceived string `json:"totalReceived"`
}

func formatCharityJSON(c *charity.Charity) charityJSON {
	return charityJSON{
		ID:            c.ID,
		Identity:      formatAddress(c.Identity),
		MetadataRef:   c.MetadataRef,
		Verified:      c.Verified,
		TotalReceived: formatAmount(c.TotalReceived),
	}
}

type goalJSON struct {
	ID            uint64 `json:"id"`
	Charity       string `json:"charity"`
	MetadataRef   string `json:"metadataRef"`
	TargetAmount  string `json:"targetAmount"`
	CurrentAmount string `json:"currentAmount"`
	Deadline      int64  `json:"deadline"`
	Status        string `json:"status"`
}

func formatGoalJSON(g *charity.Goal) goalJSON {
	return goalJSON{
		ID:            g.ID,
		Charity:       formatAddress(g.Charity),
		MetadataRef:   g.MetadataRef,
		TargetAmount:  formatAmount(g.TargetAmount),
		CurrentAmount: formatAmount(g.CurrentAmount),
		Deadline:      g.Deadline,
		Status:        goalStatusString(g.Status),
	}
}

type itemRequestJSON struct {
	ID             uint64 `json:"id"`
	Charity        string `json:"charity"`
	MetadataRef    string `json:"metadataRef"`
	Category       string `json:"category"`
	Status         string `json:"status"`
	FulfilledCount uint64 `json:"fulfilledCount"`
}

func formatItemRequestJSON(r *charity.ItemRequest) itemRequestJSON {
	return itemRequestJSON{
		ID:             r.ID,
		Charity:        formatAddress(r.Charity),
		MetadataRef:    r.MetadataRef,
		Category:       r.Category.String(),
		Status:         requestStatusString(r.Status),
		FulfilledCount: r.FulfilledCount,
	}
}
