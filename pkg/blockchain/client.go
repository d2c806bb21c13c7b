package blockchain

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/ybbus/jsonrpc/v3"
	"go.uber.org/zap"
)

// JSON-RPC methods of the plasma node
const (
	MethodUnspent            = "plasma_unspent"
	MethodSendRawTransaction = "eth_sendRawTransaction"
)

// Client is the network boundary to the ledger node. It does not cache or
// retry; each call maps to exactly one request.
type Client struct {
	rpc     jsonrpc.RPCClient
	timeout time.Duration
	logger  *zap.Logger
}

// NewClient creates a ledger client. A zero timeout leaves calls bounded only by their context.
func NewClient(targetURL string, username, password string, timeout time.Duration, logger *zap.Logger) *Client {
	httpClient := &http.Client{
		Transport: &http.Transport{},
	}

	return &Client{
		rpc:     newRPCClient(httpClient, targetURL, username, password),
		timeout: timeout,
		logger:  logger,
	}
}

// newRPCClient created new JSON RPC client
func newRPCClient(httpClient *http.Client, targetURL string, username, password string) jsonrpc.RPCClient {
	if !strings.Contains(targetURL, "://") {
		targetURL = "http://" + targetURL
	}

	headers := make(map[string]string)
	// then check username and password overriddes
	if username != "" || password != "" {
		headers["Authorization"] = "Basic " + basicAuth(username, password)
	}

	rpcOpts := jsonrpc.RPCClientOpts{
		CustomHeaders:      headers,
		HTTPClient:         httpClient,
		AllowUnknownFields: true,
	}

	return jsonrpc.NewClientWithOpts(targetURL, &rpcOpts)
}

// basicAuth converts username and password to base64-encoded string
// that can be used in `Authorization` header with `Basic` prefix
// see https://golang.org/pkg/net/http/#Request.SetBasicAuth
func basicAuth(username, password string) string {
	auth := username + ":" + password
	return base64.StdEncoding.EncodeToString([]byte(auth))
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}
