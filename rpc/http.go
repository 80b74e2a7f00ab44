package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"charitychain/core"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
	rateLimitWindow = time.Minute
	maxTxPerWindow  = 30
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020
	codeNotFound       = -32022
	codeForbidden      = -32023
	codeConflict       = -32024
)

var (
	rpcRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "charitychain_rpc_requests_total",
		Help: "Number of JSON-RPC requests handled, by method.",
	}, []string{"method"})
	rpcDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "charitychain_rpc_request_seconds",
		Help:    "JSON-RPC request handling latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

var metricsOnce sync.Once

func registerMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(rpcRequests, rpcDuration)
	})
}

type rateLimiter struct {
	count       int
	windowStart time.Time
}

type Server struct {
	node *core.Node

	mu           sync.Mutex
	rateLimiters map[string]*rateLimiter
	authToken    string
}

// NewServer wires the RPC surface to the node. The mutating methods require a
// bearer token: CHARITY_RPC_TOKEN from the environment wins, otherwise the
// supplied configuration token is used.
func NewServer(node *core.Node, authToken string) *Server {
	token := strings.TrimSpace(os.Getenv("CHARITY_RPC_TOKEN"))
	if token == "" {
		token = strings.TrimSpace(authToken)
	}
	registerMetrics()
	return &Server{
		node:         node,
		rateLimiters: make(map[string]*rateLimiter),
		authToken:    token,
	}
}

func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// Handler exposes the routing mux for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	rpcRequests.WithLabelValues(req.Method).Inc()
	timer := prometheus.NewTimer(rpcDuration.WithLabelValues(req.Method))
	defer timer.ObserveDuration()

	handler, mutating := s.route(req.Method)
	if handler == nil {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
		return
	}
	if mutating {
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		source := clientSource(r)
		if !s.allowSource(source, time.Now()) {
			writeError(w, http.StatusTooManyRequests, req.ID, codeRateLimited, "request rate limit exceeded", source)
			return
		}
	}
	handler(w, r, req)
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

// route maps a method to its handler and reports whether it mutates state.
func (s *Server) route(method string) (handlerFunc, bool) {
	switch method {
	case "market_createListing":
		return s.handleCreateListing, true
	case "market_cancelListing":
		return s.handleCancelListing, true
	case "market_adminCancelListing":
		return s.handleAdminCancelListing, true
	case "market_donateItemToCharity":
		return s.handleDonateItemToCharity, true
	case "market_donateItemForRequest":
		return s.handleDonateItemForRequest, true
	case "market_purchaseItem":
		return s.handlePurchaseItem, true
	case "market_confirmShipment":
		return s.handleConfirmShipment, true
	case "market_confirmDelivery":
		return s.handleConfirmDelivery, true
	case "market_openDispute":
		return s.handleOpenDispute, true
	case "market_resolveDispute":
		return s.handleResolveDispute, true
	case "market_releaseFundsToCharity":
		return s.handleReleaseFundsToCharity, true
	case "market_getListing":
		return s.handleGetListing, false
	case "market_getOrder":
		return s.handleGetOrder, false
	case "market_getDisputeReason":
		return s.handleGetDisputeReason, false
	case "market_getListingCount":
		return s.handleGetListingCount, false
	case "market_getOrderCount":
		return s.handleGetOrderCount, false
	case "market_getSellerListings":
		return s.handleGetSellerListings, false
	case "market_getBuyerOrders":
		return s.handleGetBuyerOrders, false
	case "charity_addCharity":
		return s.handleAddCharity, true
	case "charity_updateCharity":
		return s.handleUpdateCharity, true
	case "charity_getCharity":
		return s.handleGetCharity, false
	case "charity_getCharityCount":
		return s.handleGetCharityCount, false
	case "charity_getAllCharities":
		return s.handleGetAllCharities, false
	case "charity_isVerified":
		return s.handleIsVerifiedCharity, false
	case "charity_createGoal":
		return s.handleCreateGoal, true
	case "charity_cancelGoal":
		return s.handleCancelGoal, true
	case "charity_recordGoalProgress":
		return s.handleRecordGoalProgress, true
	case "charity_getGoal":
		return s.handleGetGoal, false
	case "charity_getAllGoals":
		return s.handleGetAllGoals, false
	case "charity_getCharityGoals":
		return s.handleGetCharityGoals, false
	case "charity_createItemRequest":
		return s.handleCreateItemRequest, true
	case "charity_cancelItemRequest":
		return s.handleCancelItemRequest, true
	case "charity_markItemRequestFulfilled":
		return s.handleMarkItemRequestFulfilled, true
	case "charity_getItemRequest":
		return s.handleGetItemRequest, false
	case "charity_getAllItemRequests":
		return s.handleGetAllItemRequests, false
	case "charity_getCharityItemRequests":
		return s.handleGetCharityItemRequests, false
	case "admin_addAdmin":
		return s.handleAddAdmin, true
	case "admin_removeAdmin":
		return s.handleRemoveAdmin, true
	case "admin_transferPrimaryAdmin":
		return s.handleTransferPrimaryAdmin, true
	case "admin_getAdmins":
		return s.handleGetAdmins, false
	case "admin_getPrimaryAdmin":
		return s.handleGetPrimaryAdmin, false
	case "admin_isAdmin":
		return s.handleIsAdmin, false
	case "chain_getBalance":
		return s.handleGetBalance, false
	default:
		return nil, false
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func (s *Server) allowSource(source string, now time.Time) bool {
	if source == "" {
		source = "unknown"
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.rateLimiters[source]
	if !ok {
		limiter = &rateLimiter{windowStart: now}
		s.rateLimiters[source] = limiter
	}
	if now.Sub(limiter.windowStart) >= rateLimitWindow {
		limiter.windowStart = now
		limiter.count = 0
	}
	if limiter.count >= maxTxPerWindow {
		return false
	}
	limiter.count++
	return true
}

func clientSource(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
