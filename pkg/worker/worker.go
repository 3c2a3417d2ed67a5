// Package worker ships the Master-side contract for dispatching containers
// to a Worker node. Concrete container runtime operations happen entirely
// on the Worker; the Master's only obligation is this HTTP start-RPC.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Druvan/HarmonicIO/pkg/binpack"
)

// Dispatcher starts a container on a worker and returns the short ID the
// worker assigns it.
type Dispatcher interface {
	StartContainer(ctx context.Context, addr string, port int, req *binpack.ContainerRequest, cpuShare float64) (shortID string, err error)
}

// HTTPDispatcher implements Dispatcher over the plain HTTP wire format the
// Worker exposes: a POST to /docker?token=...&command=create carrying the
// container request as a JSON body, where a 200 response body is the
// container's short ID.
type HTTPDispatcher struct {
	Client *http.Client
	Token  string
	// RequestTimeout bounds each start-RPC. Defaults to 10s if zero.
	RequestTimeout time.Duration
}

// NewHTTPDispatcher returns a dispatcher using http.DefaultClient-like
// defaults, suitable for production use.
func NewHTTPDispatcher(token string) *HTTPDispatcher {
	return &HTTPDispatcher{
		Client:         &http.Client{Timeout: 10 * time.Second},
		Token:          token,
		RequestTimeout: 10 * time.Second,
	}
}

type dispatchPayload struct {
	Image    string             `json:"container_os"`
	SizeData map[string]float64 `json:"size_data"`
	BinIndex int                `json:"bin_index"`
	CPUShare float64            `json:"cpu_share"`
}

// StartContainer issues the start-RPC and returns the worker-assigned
// short ID, or a wrapped error on any non-200 response.
func (d *HTTPDispatcher) StartContainer(ctx context.Context, addr string, port int, req *binpack.ContainerRequest, cpuShare float64) (string, error) {
	timeout := d.RequestTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload := dispatchPayload{
		Image:    req.Image,
		SizeData: req.SizeData,
		BinIndex: req.BinIndex,
		CPUShare: cpuShare,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal dispatch payload: %w", err)
	}

	url := fmt.Sprintf("http://%s:%d/docker?token=%s&command=create", addr, port, d.Token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build dispatch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("dispatch to %s:%d: %w", addr, port, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read dispatch response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("worker %s:%d rejected dispatch: status %d", addr, port, resp.StatusCode)
	}

	return string(respBody), nil
}
