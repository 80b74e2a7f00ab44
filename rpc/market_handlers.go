package rpc

import (
	"encoding/json"
	"errors"
	"net/http"
)

var errExactlyOneParam = errors.New("exactly one parameter object expected")

type createListingParams struct {
	Caller      string `json:"caller"`
	MetadataRef string `json:"metadataRef"`
	Price       string `json:"price"`
	Category    uint8  `json:"category"`
	Charity     string `json:"charity"`
}

type donateItemParams struct {
	Caller      string `json:"caller"`
	MetadataRef string `json:"metadataRef"`
	Category    uint8  `json:"category"`
	Charity     string `json:"charity"`
}

type donateForRequestParams struct {
	Caller      string `json:"caller"`
	MetadataRef string `json:"metadataRef"`
	RequestID   uint64 `json:"requestId"`
}

type listingActorParams struct {
	Caller    string `json:"caller"`
	ListingID uint64 `json:"listingId"`
}

type purchaseParams struct {
	Caller    string `json:"caller"`
	ListingID uint64 `json:"listingId"`
	Payment   string `json:"payment"`
}

type orderActorParams struct {
	Caller  string `json:"caller"`
	OrderID uint64 `json:"orderId"`
}

type openDisputeParams struct {
	Caller  string `json:"caller"`
	OrderID uint64 `json:"orderId"`
	Reason  string `json:"reason"`
}

type resolveDisputeParams struct {
	Caller      string `json:"caller"`
	OrderID     uint64 `json:"orderId"`
	RefundBuyer bool   `json:"refundBuyer"`
}

type orderIDParams struct {
	OrderID uint64 `json:"orderId"`
}

type listingIDParams struct {
	ListingID uint64 `json:"listingId"`
}

type addressParams struct {
	Address string `json:"address"`
}

func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return errExactlyOneParam
	}
	return json.Unmarshal(req.Params[0], out)
}

func (s *Server) handleCreateListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params createListingParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	charityAddr, err := parseAddress(params.Charity)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	price, err := parseAmount(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	category, err := parseCategory(params.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, err := s.node.CreateListing(caller, params.MetadataRef, price, category, charityAddr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListingJSON(listing))
}

func (s *Server) handleCancelListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listingActorParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.CancelListing(caller, params.ListingID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleAdminCancelListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listingActorParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.AdminCancelListing(caller, params.ListingID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleDonateItemToCharity(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params donateItemParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	charityAddr, err := parseAddress(params.Charity)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	category, err := parseCategory(params.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, err := s.node.DonateItemToCharity(caller, params.MetadataRef, category, charityAddr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListingJSON(listing))
}

func (s *Server) handleDonateItemForRequest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params donateForRequestParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, err := s.node.DonateItemForRequest(caller, params.MetadataRef, params.RequestID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListingJSON(listing))
}

func (s *Server) handlePurchaseItem(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params purchaseParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	payment, err := parseAmount(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	order, err := s.node.PurchaseItem(caller, params.ListingID, payment)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatOrderJSON(order))
}

func (s *Server) handleConfirmShipment(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params orderActorParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.ConfirmShipment(caller, params.OrderID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleConfirmDelivery(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params orderActorParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.ConfirmDelivery(caller, params.OrderID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleOpenDispute(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params openDisputeParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.OpenDispute(caller, params.OrderID, params.Reason); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleResolveDispute(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params resolveDisputeParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.ResolveDispute(caller, params.OrderID, params.RefundBuyer); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleReleaseFundsToCharity(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params orderIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.ReleaseFundsToCharity(params.OrderID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleGetListing(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params listingIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, err := s.node.GetListing(params.ListingID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListingJSON(listing))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params orderIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	order, err := s.node.GetOrder(params.OrderID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatOrderJSON(order))
}

func (s *Server) handleGetDisputeReason(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params orderIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	reason, err := s.node.GetDisputeReason(params.OrderID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, reason)
}

func (s *Server) handleGetListingCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	count, err := s.node.ListingCount()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, count)
}

func (s *Server) handleGetOrderCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	count, err := s.node.OrderCount()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, count)
}

func (s *Server) handleGetSellerListings(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	seller, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	listings, err := s.node.SellerListings(seller)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := make([]listingJSON, len(listings))
	for i, listing := range listings {
		out[i] = formatListingJSON(listing)
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleGetBuyerOrders(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	buyer, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	orders, err := s.node.BuyerOrders(buyer)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := make([]orderJSON, len(orders))
	for i, order := range orders {
		out[i] = formatOrderJSON(order)
	}
	writeResult(w, req.ID, out)
}

type balanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func (s *Server) handleGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, err := s.node.GetBalance(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, balanceResult{Address: params.Address, Balance: formatAmount(balance)})
}
