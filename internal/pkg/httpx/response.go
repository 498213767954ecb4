// internal/pkg/httpx/response.go
package httpx

import (
	"encoding/json"
	"net/http"
)

// CommonDto 是所有成功响应的统一包装
type CommonDto struct {
	Result        any    `json:"result"`
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

// ErrorDto 是失败响应的统一包装
type ErrorDto struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteResult 用 CommonDto 包装 result
func WriteResult(w http.ResponseWriter, status int, message string, result any) {
	WriteJSON(w, status, CommonDto{Result: result, StatusCode: status, StatusMessage: message})
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorDto{StatusCode: status, StatusMessage: message})
}
