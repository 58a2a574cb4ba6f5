// Package rpc is the JSON-RPC transport to the remote ERP; there is no
// XML-RPC transport.
// The Client interface is the only seam the
// Orchestrator and BatchCreateProcessor see — the HTTP/JSON wire details
// stay in this package.
package rpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client is the remote-model RPC surface a module's mapping and the
// Orchestrator drive every entity through.
type Client interface {
	Search(ctx context.Context, model string, domain []any) ([]uint64, error)
	SearchCount(ctx context.Context, model string, domain []any) (int, error)
	Read(ctx context.Context, model string, ids []uint64, fields []string) ([]map[string]any, error)
	SearchRead(ctx context.Context, model string, domain []any, fields []string, limit int) ([]map[string]any, error)
	Create(ctx context.Context, model string, values map[string]any) (uint64, error)
	CreateBatch(ctx context.Context, model string, values []map[string]any) ([]uint64, error)
	Write(ctx context.Context, model string, ids []uint64, values map[string]any) error
	Unlink(ctx context.Context, model string, ids []uint64) error
	Execute(ctx context.Context, model, method string, args []any) (any, error)
	GetCompanyID(ctx context.Context) (uint64, error)
}

// JSONRPCClient implements Client over JSON-RPC 2.0 calls to the object
// endpoint, following the same HTTP-client tuning (bounded idle conns, TLS
// floor, redirect cap) as the rest of this codebase's outbound transports.
type JSONRPCClient struct {
	baseURL  string
	db       string
	uid      uint64
	password string
	client   *http.Client
	logger   *slog.Logger
}

func NewJSONRPCClient(baseURL, db, password string, uid uint64, logger *slog.Logger) *JSONRPCClient {
	return &JSONRPCClient{
		baseURL:  baseURL,
		db:       db,
		uid:      uid,
		password: password,
		client: &http.Client{
			Timeout: 2 * time.Minute,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		logger: logger.With("component", "rpc_client"),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      string `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Data.Message != "" {
		return fmt.Sprintf("%s: %s", e.Data.Name, e.Data.Message)
	}
	return e.Message
}

func (c *JSONRPCClient) call(ctx context.Context, service, method string, args []any) (json.RawMessage, error) {
	reqID := uuid.NewString()
	body := rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		ID:      reqID,
		Params: map[string]any{
			"service": service,
			"method":  method,
			"args":    args,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jsonrpc", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "rpc call failed", "service", service, "method", method, "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("do rpc request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rpc response: %w", err)
	}

	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode rpc response: %w", err)
	}
	if parsed.Error != nil {
		c.logger.WarnContext(ctx, "rpc fault", "service", service, "method", method, "error", parsed.Error.Error())
		return nil, parsed.Error
	}

	c.logger.DebugContext(ctx, "rpc call ok", "service", service, "method", method, "duration", time.Since(start))
	return parsed.Result, nil
}

func (c *JSONRPCClient) execute(ctx context.Context, model, method string, args []any) (json.RawMessage, error) {
	return c.call(ctx, "object", "execute_kw", []any{c.db, c.uid, c.password, model, method, args})
}

func (c *JSONRPCClient) Search(ctx context.Context, model string, domain []any) ([]uint64, error) {
	raw, err := c.execute(ctx, model, "search", []any{domain})
	if err != nil {
		return nil, err
	}
	var ids []uint64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}
	return ids, nil
}

func (c *JSONRPCClient) SearchCount(ctx context.Context, model string, domain []any) (int, error) {
	raw, err := c.execute(ctx, model, "search_count", []any{domain})
	if err != nil {
		return 0, err
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("decode search_count result: %w", err)
	}
	return n, nil
}

func (c *JSONRPCClient) Read(ctx context.Context, model string, ids []uint64, fields []string) ([]map[string]any, error) {
	raw, err := c.execute(ctx, model, "read", []any{ids, fields})
	if err != nil {
		return nil, err
	}
	return decodeRecords(raw)
}

func (c *JSONRPCClient) SearchRead(ctx context.Context, model string, domain []any, fields []string, limit int) ([]map[string]any, error) {
	raw, err := c.execute(ctx, model, "search_read", []any{domain, fields})
	_ = limit
	if err != nil {
		return nil, err
	}
	return decodeRecords(raw)
}

func (c *JSONRPCClient) Create(ctx context.Context, model string, values map[string]any) (uint64, error) {
	raw, err := c.execute(ctx, model, "create", []any{values})
	if err != nil {
		return 0, err
	}
	var id uint64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, fmt.Errorf("decode create result: %w", err)
	}
	return id, nil
}

func (c *JSONRPCClient) CreateBatch(ctx context.Context, model string, values []map[string]any) ([]uint64, error) {
	raw, err := c.execute(ctx, model, "create", []any{values})
	if err != nil {
		return nil, err
	}
	var ids []uint64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode create_batch result: %w", err)
	}
	return ids, nil
}

func (c *JSONRPCClient) Write(ctx context.Context, model string, ids []uint64, values map[string]any) error {
	_, err := c.execute(ctx, model, "write", []any{ids, values})
	return err
}

func (c *JSONRPCClient) Unlink(ctx context.Context, model string, ids []uint64) error {
	_, err := c.execute(ctx, model, "unlink", []any{ids})
	return err
}

func (c *JSONRPCClient) Execute(ctx context.Context, model, method string, args []any) (any, error) {
	raw, err := c.execute(ctx, model, method, args)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode execute result: %w", err)
	}
	return v, nil
}

func (c *JSONRPCClient) GetCompanyID(ctx context.Context) (uint64, error) {
	records, err := c.Read(ctx, "res.users", []uint64{c.uid}, []string{"company_id"})
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("res.users record not found for uid %d", c.uid)
	}
	pair, ok := records[0]["company_id"].([]any)
	if !ok || len(pair) == 0 {
		return 0, fmt.Errorf("unexpected company_id shape")
	}
	id, ok := pair[0].(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected company_id id type")
	}
	return uint64(id), nil
}

func decodeRecords(raw json.RawMessage) ([]map[string]any, error) {
	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}
