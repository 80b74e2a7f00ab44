package rpc

import (
	"net/http"
)

type adminTargetParams struct {
	Caller string `json:"caller"`
	Target string `json:"target"`
}

func (s *Server) handleAddAdmin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params adminTargetParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	target, err := parseAddress(params.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.AddAdmin(caller, target); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleRemoveAdmin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params adminTargetParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	target, err := parseAddress(params.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.RemoveAdmin(caller, target); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleTransferPrimaryAdmin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params adminTargetParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	target, err := parseAddress(params.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.TransferPrimaryAdmin(caller, target); err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleGetAdmins(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	admins, err := s.node.GetAllAdmins()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := make([]string, len(admins))
	for i, addr := range admins {
		out[i] = formatAddress(addr)
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleGetPrimaryAdmin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	primary, err := s.node.GetPrimaryAdmin()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAddress(primary))
}

func (s *Server) handleIsAdmin(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
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
	ok, err := s.node.IsAdminAddress(addr)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ok)
}
