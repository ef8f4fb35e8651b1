package rpc

import (
	"encoding/json"
	"net/http"

	"github.com/driftforge/a2a-genengine/internal/task"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRPCResult(w http.ResponseWriter, id any, result any) {
	data, err := json.Marshal(result)
	if err != nil {
		writeRPCError(w, id, task.CodeInternal, "failed to encode result")
		return
	}
	writeJSON(w, http.StatusOK, task.JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: data})
}

func writeRPCError(w http.ResponseWriter, id any, code int, msg string) {
	writeJSON(w, http.StatusOK, task.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &task.JSONRPCError{Code: code, Message: msg},
	})
}
