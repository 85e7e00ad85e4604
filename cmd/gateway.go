package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/nextlevelbuilder/gateline/internal/credentials"
	"github.com/nextlevelbuilder/gateline/internal/dashboard"
	"github.com/nextlevelbuilder/gateline/internal/scan"
	"github.com/nextlevelbuilder/gateline/pkg/protocol"
)

// gatewayClient is the CLI's API collaborator: it implements the scan
// submitter and dashboard fetcher capabilities over plain HTTP. The core
// packages only ever see the interfaces.
type gatewayClient struct {
	baseURL string
	creds   *credentials.Credentials
	http    *http.Client
}

func newGatewayClient(baseURL string, creds *credentials.Credentials) *gatewayClient {
	return &gatewayClient{
		baseURL: baseURL,
		creds:   creds,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *gatewayClient) Submit(ctx context.Context, payload, locationHint string) (protocol.ScanResult, error) {
	body, _ := json.Marshal(map[string]string{
		"qrCode":   payload,
		"location": locationHint,
	})
	raw, err := g.post(ctx, "/scan/qr", body)
	if err != nil {
		return protocol.ScanResult{}, err
	}
	var result protocol.ScanResult
	if err := json.Unmarshal(protocol.Unwrap(raw), &result); err != nil {
		return protocol.ScanResult{}, fmt.Errorf("gateway: decode scan result: %w", err)
	}
	return result, nil
}

func (g *gatewayClient) Dashboard(ctx context.Context, eventID string) (dashboard.Data, error) {
	raw, err := g.get(ctx, "/analytics/dashboard/"+eventID)
	if err != nil {
		return dashboard.Data{}, err
	}
	var data dashboard.Data
	if err := json.Unmarshal(protocol.Unwrap(raw), &data); err != nil {
		return dashboard.Data{}, fmt.Errorf("gateway: decode dashboard: %w", err)
	}
	return data, nil
}

func (g *gatewayClient) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req)
}

func (g *gatewayClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return g.do(req)
}

func (g *gatewayClient) do(req *http.Request) ([]byte, error) {
	if token := g.creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := g.http.Do(req)
	if err != nil {
		// A request that never reached the gateway is the offline case,
		// distinct from a rejection.
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", scan.ErrOffline, err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("gateway: server error %d", resp.StatusCode)
	}
	return raw, nil
}
