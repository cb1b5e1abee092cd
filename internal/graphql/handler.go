package graphql

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/graphql-go/graphql"
)

const maxBodyBytes = 1 << 20

// Request 是 GraphQL over HTTP 的请求体。
type Request struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Handler 通过 HTTP 执行 GraphQL 请求。
type Handler struct {
	schema graphql.Schema
}

// NewHandler 创建 GraphQL HTTP 处理器。
func NewHandler(svc Service, hook ErrorHook) (*Handler, error) {
	schema, err := NewSchema(svc, hook)
	if err != nil {
		return nil, err
	}
	return &Handler{schema: schema}, nil
}

// ServeHTTP 支持 GET ?query= 与 POST JSON 两种形式。
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req Request
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.Query = q.Get("query")
		req.OperationName = q.Get("operationName")
		if raw := q.Get("variables"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
				writeErrors(w, http.StatusBadRequest, "variables 必须是 JSON 对象")
				return
			}
		}
	case http.MethodPost:
		decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err := decoder.Decode(&req); err != nil {
			writeErrors(w, http.StatusBadRequest, "请求体必须是 JSON")
			return
		}
	default:
		w.Header().Set("Allow", "GET, POST")
		writeErrors(w, http.StatusMethodNotAllowed, "仅支持 GET 与 POST")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeErrors(w, http.StatusBadRequest, "query 不能为空")
		return
	}

	result := graphql.Do(graphql.Params{
		Schema:         h.schema,
		RequestString:  req.Query,
		VariableValues: req.Variables,
		OperationName:  req.OperationName,
		Context:        r.Context(),
	})
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func writeErrors(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]any{{
			"message":    message,
			"extensions": map[string]any{"code": "BAD_REQUEST"},
		}},
	})
}
