package collector

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
)

// CompatMode selects the CometBFT RPC wire dialect a chain speaks (§6,
// "comet_version").
type CompatMode string

const (
	CompatV034 CompatMode = "v0.34"
	CompatV037 CompatMode = "v0.37"
)

// RPCClient is the subset of a CometBFT RPC client the collector needs. It
// is an interface so tests can drive the state machine without a live
// WebSocket connection.
type RPCClient interface {
	Start() error
	Stop() error
	Subscribe(ctx context.Context, subscriber, query string) (<-chan coretypes.ResultEvent, error)
	Unsubscribe(ctx context.Context, subscriber, query string) error
	Block(ctx context.Context, height *int64) (*coretypes.ResultBlock, error)
}

// Dialer constructs an RPCClient for a chain's WebSocket URL. It is a field
// on Collector (not a free function call) so tests can substitute a fake.
type Dialer func(wsURL string, compat CompatMode) (RPCClient, error)

// DialCometBFT is the production Dialer, backed by the real CometBFT JSON-RPC
// over WebSocket client. CompatMode does not change the wire client itself
// (a single cometbft-go client release talks both 0.34 and 0.37 JSON-RPC
// dialects); it is stored on the returned client but not consulted by any
// request or decode path, and the collector logs it alongside connection
// events for operator visibility.
func DialCometBFT(wsURL string, compat CompatMode) (RPCClient, error) {
	remote, endpoint, err := splitWSURL(wsURL)
	if err != nil {
		return nil, fmt.Errorf("parsing websocket url %q: %w", wsURL, err)
	}

	client, err := rpchttp.New(remote, endpoint)
	if err != nil {
		return nil, fmt.Errorf("building rpc client for %q: %w", wsURL, err)
	}

	return &cometClient{HTTP: client, compat: compat}, nil
}

type cometClient struct {
	*rpchttp.HTTP
	compat CompatMode
}

func (c *cometClient) Start() error { return c.HTTP.Start() }
func (c *cometClient) Stop() error  { return c.HTTP.Stop() }

func (c *cometClient) Subscribe(ctx context.Context, subscriber, query string) (<-chan coretypes.ResultEvent, error) {
	return c.HTTP.Subscribe(ctx, subscriber, query)
}

func (c *cometClient) Unsubscribe(ctx context.Context, subscriber, query string) error {
	return c.HTTP.Unsubscribe(ctx, subscriber, query)
}

func (c *cometClient) Block(ctx context.Context, height *int64) (*coretypes.ResultBlock, error) {
	return c.HTTP.Block(ctx, height)
}

// splitWSURL splits a "wss://host:port/websocket"-shaped URL into the
// remote CometBFT expects and the websocket path. The remote keeps the host
// and takes the scheme "https" for wss/https URLs, "http" for ws/http URLs,
// and "tcp" otherwise.
func splitWSURL(wsURL string) (remote, endpoint string, err error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "", "", err
	}

	scheme := "tcp"
	if u.Scheme == "wss" || u.Scheme == "https" {
		scheme = "https"
	} else if u.Scheme == "ws" || u.Scheme == "http" {
		scheme = "http"
	}

	endpoint = u.Path
	if endpoint == "" || endpoint == "/" {
		endpoint = "/websocket"
	}
	endpoint = path.Clean("/" + strings.TrimPrefix(endpoint, "/"))

	remote = fmt.Sprintf("%s://%s", scheme, u.Host)
	return remote, endpoint, nil
}
