package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ValentinKolb/dbatch/lib/batch"
	"github.com/ValentinKolb/dbatch/rpc/common"
	"github.com/ValentinKolb/dbatch/rpc/transport"
)

// batchPath is the route both sides agree on
const batchPath = "/batch"

func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	client *http.Client
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	// Create client with default transport
	t.client = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: max(10, config.Transport.ConnectionsPerEndpoint),
			IdleConnTimeout:     time.Duration(config.TimeoutSecond) * time.Second,
		},
	}
	return nil
}

func (t *httpClientTransport) Send(ctx context.Context, endpoint string, req []byte) ([]byte, error) {
	// Check if the transport is initialized
	if t.client == nil {
		return nil, fmt.Errorf("http transport not initialized")
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL(endpoint), bytes.NewReader(req))
	if err != nil {
		return nil, err
	}
	httpRequest.Header.Set("Content-Type", "application/octet-stream")

	httpResponse, err := t.client.Do(httpRequest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", batch.ErrNodeTimeout, endpoint)
		}
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request to %s: %w", endpoint, err)
		}
		return nil, fmt.Errorf("%w: %s: %v", batch.ErrConnection, endpoint, err)
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	// Check if the response status code is OK
	if httpResponse.StatusCode != http.StatusOK {
		return nil, batch.NewError(batch.ResultServerError, fmt.Sprintf("http error from %s: %s", endpoint, httpResponse.Status))
	}

	// Read the response body
	resp, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read from %s: %v", batch.ErrConnection, endpoint, err)
	}
	return resp, nil
}

func (t *httpClientTransport) Close() error {
	if t.client != nil {
		t.client.CloseIdleConnections()
	}
	t.client = nil
	return nil
}

// requestURL turns a node address into the batch URL, plain host:port
// addresses use http
func requestURL(endpoint string) string {
	endpoint = strings.TrimSuffix(endpoint, "/")
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	return endpoint + batchPath
}
