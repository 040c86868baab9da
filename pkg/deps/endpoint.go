package deps

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// HTTPChecker probes an HTTP endpoint such as the release mirror
type HTTPChecker struct {
	// Name labels the result (e.g. "release-mirror")
	Name string

	// URL is the full URL to probe
	URL string

	// Method is the HTTP method to use (default: HEAD)
	Method string

	// ExpectedStatusMin is the minimum acceptable HTTP status code (default: 200)
	ExpectedStatusMin int

	// ExpectedStatusMax is the maximum acceptable HTTP status code (default: 399)
	ExpectedStatusMax int

	// Client is the HTTP client to use
	Client *http.Client
}

// NewHTTPChecker creates a new HTTP checker
func NewHTTPChecker(name, url string) *HTTPChecker {
	return &HTTPChecker{
		Name:              name,
		URL:               url,
		Method:            http.MethodHead,
		ExpectedStatusMin: 200,
		ExpectedStatusMax: 399,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Check performs the HTTP check
func (h *HTTPChecker) Check(ctx context.Context) Result {
	start := time.Now()
	result := Result{Name: h.Name, CheckedAt: start}

	req, err := http.NewRequestWithContext(ctx, h.Method, h.URL, nil)
	if err != nil {
		result.Message = fmt.Sprintf("failed to create request: %v", err)
		result.Duration = time.Since(start)
		return result
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		result.Message = fmt.Sprintf("request failed: %v", err)
		result.Duration = time.Since(start)
		return result
	}
	defer resp.Body.Close()

	result.Healthy = resp.StatusCode >= h.ExpectedStatusMin && resp.StatusCode <= h.ExpectedStatusMax
	result.Message = fmt.Sprintf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if !result.Healthy {
		result.Message = fmt.Sprintf("%s (expected %d-%d)", result.Message, h.ExpectedStatusMin, h.ExpectedStatusMax)
	}
	result.Duration = time.Since(start)
	return result
}

// Type returns the check type
func (h *HTTPChecker) Type() CheckType {
	return CheckTypeHTTP
}

// WithStatusRange sets the expected status code range
func (h *HTTPChecker) WithStatusRange(min, max int) *HTTPChecker {
	h.ExpectedStatusMin = min
	h.ExpectedStatusMax = max
	return h
}

// WithTimeout sets the HTTP client timeout
func (h *HTTPChecker) WithTimeout(timeout time.Duration) *HTTPChecker {
	h.Client.Timeout = timeout
	return h
}

// TCPChecker probes a TCP endpoint such as the cluster API server
type TCPChecker struct {
	// Name labels the result (e.g. "kube-apiserver")
	Name string

	// Address is the host:port to connect to
	Address string

	// Timeout is the connection timeout (default: 5 seconds)
	Timeout time.Duration
}

// NewTCPChecker creates a new TCP checker
func NewTCPChecker(name, address string) *TCPChecker {
	return &TCPChecker{
		Name:    name,
		Address: address,
		Timeout: 5 * time.Second,
	}
}

// Check performs the TCP check
func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()
	result := Result{Name: t.Name, CheckedAt: start}

	dialer := &net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		result.Message = fmt.Sprintf("connection failed: %v", err)
		result.Duration = time.Since(start)
		return result
	}
	defer conn.Close()

	result.Healthy = true
	result.Message = fmt.Sprintf("TCP connection to %s successful", t.Address)
	result.Duration = time.Since(start)
	return result
}

// Type returns the check type
func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}

// WithTimeout sets the connection timeout
func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}
