package rpc

import (
	"net/http"
)

type addCharityParams struct {
	Caller      string `json:"caller"`
	Identity    string `json:"identity"`
	MetadataRef string `json:"metadataRef"`
}

type updateCharityParams struct {
	Caller      string `json:"caller"`
	Identity    string `json:"identity"`
	MetadataRef string `json:"metadataRef"`
	Verified    bool   `json:"verified"`
}

type getCharityParams struct {
	CharityID *uint64 `json:"charityId"`
	Address   string  `json:"address"`
}

type createGoalParams struct {
	Caller       string `json:"caller"`
	MetadataRef  string `json:"metadataRef"`
	TargetAmount string `json:"targetAmount"`
	Deadline     int64  `json:"deadline"`
}

type goalActorParams struct {
	Caller string `json:"caller"`
	GoalID uint64 `json:"goalId"`
}

type goalProgressParams struct {
	Caller string `json:"caller"`
	GoalID uint64 `json:"goalId"`
	Amount string `json:"amount"`
}

type goalIDParams struct {
	GoalID uint64 `json:"goalId"`
}

type createItemRequestParams struct {
	Caller      string `json:"caller"`
	MetadataRef string `json:"metadataRef"`
	Category    uint8  `json:"category"`
}

type requestActorParams struct {
	Caller    string `json:"caller"`
	RequestID uint64 `json:"requestId"`
}

type requestIDParams struct {
	RequestID uint64 `json:"requestId"`
}

func (s *Server) handleAddCharity(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addCharityParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	identity, err := parseAddress(params.Identity)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	record, err := s.node.AddCharity(caller, identity, params.MetadataRef)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatCharityJSON(record))
}

func (s *Server) handleUpdateCharity(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params updateCharityParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	identity, err := parseAddress(params.Identity)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	record, err := s.node.UpdateCharity(caller, identity, params.MetadataRef, params.Verified)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatCharityJSON(record))
}

// handleGetCharity resolves a charity either by its registration id or by its
// bech32 identity. Exactly one selector must be supplied.
func (s *Server) handleGetCharity(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params getCharityParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if (params.CharityID == nil) == (params.Address == "") {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "exactly one of charityId or address expected")
		return
	}
	if params.CharityID != nil {
		record, err := s.node.GetCharityByID(*params.CharityID)
		if err != nil {
			writeEngineError(w, req.ID, err)
			return
		}
		writeResult(w, req.ID, formatCharityJSON(record))
		return
	}
	identity, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	record, err := s.node.GetCharity(identity)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatCharityJSON(record))
}

func (s *Server) handleGetCharityCount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	count, err := s.node.GetCharityCount()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, count)
}

func (s *Server) handleGetAllCharities(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	records, err := s.node.GetAllCharities()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := make([]charityJSON, len(records))
	for i, record := range records {
		out[i] = formatCharityJSON(record)
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleIsVerifiedCharity(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	identity, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	verified, err := s.node.IsVerifiedCharity(identity)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, verified)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params createGoalParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	target, err := parseAmount(params.TargetAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	goal, err := s.node.CreateGoal(caller, params.MetadataRef, target, params.Deadline)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatGoalJSON(goal))
}

func (s *Server) handleCancelGoal(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params goalActorParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.CancelGoal(caller, params.GoalID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleRecordGoalProgress(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params goalProgressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	goal, err := s.node.RecordGoalProgress(caller, params.GoalID, amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatGoalJSON(goal))
}

func (s *Server) handleGetGoal(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params goalIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	goal, err := s.node.GetGoal(params.GoalID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatGoalJSON(goal))
}

func (s *Server) handleGetAllGoals(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	goals, err := s.node.GetAllGoals()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := make([]goalJSON, len(goals))
	for i, goal := range goals {
		out[i] = formatGoalJSON(goal)
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleGetCharityGoals(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	identity, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	goals, err := s.node.GetCharityGoals(identity)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := make([]goalJSON, len(goals))
	for i, goal := range goals {
		out[i] = formatGoalJSON(goal)
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleCreateItemRequest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params createItemRequestParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	category, err := parseCategory(params.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	request, err := s.node.CreateItemRequest(caller, params.MetadataRef, category)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatItemRequestJSON(request))
}

func (s *Server) handleCancelItemRequest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params requestActorParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.CancelItemRequest(caller, params.RequestID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleMarkItemRequestFulfilled(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params requestActorParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.MarkItemRequestFulfilled(caller, params.RequestID); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleGetItemRequest(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params requestIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	request, err := s.node.GetItemRequest(params.RequestID)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatItemRequestJSON(request))
}

func (s *Server) handleGetAllItemRequests(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	requests, err := s.node.GetAllItemRequests()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := make([]itemRequestJSON, len(requests))
	for i, request := range requests {
		out[i] = formatItemRequestJSON(request)
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleGetCharityItemRequests(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params addressParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	identity, err := parseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	requests, err := s.node.GetCharityItemRequests(identity)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := make([]itemRequestJSON, len(requests))
	for i, request := range requests {
		out[i] = formatItemRequestJSON(request)
	}
	writeResult(w, req.ID, out)
}
