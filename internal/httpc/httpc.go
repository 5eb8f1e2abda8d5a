// Package httpc builds the resty client used by the CLI readiness probe.
package httpc

import (
	"context"
	"crypto/tls"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type Httpc struct {
	TLSConfig *tls.Config
	// Timeout bounds a single request; zero leaves resty's default.
	Timeout time.Duration
}

// New returns a resty.Client configured according to the receiver's TLS settings.
// Defaults: MinVersion TLS1.2 when MinVersion is zero.
func (h *Httpc) New() *resty.Client {
	c := resty.New()
	if h.Timeout > 0 {
		c.SetTimeout(h.Timeout)
	}
	cfg := h.TLSConfig
	if cfg == nil {
		return c
	}
	cfg = cfg.Clone()
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}
	c.SetTLSClientConfig(cfg)
	return c
}

// Probe sends one request and returns the status code. HEAD is honoured,
// every other method is sent as GET.
func (h *Httpc) Probe(ctx context.Context, method, url string) (int, error) {
	req := h.New().R().SetContext(ctx)

	var (
		resp *resty.Response
		err  error
	)
	if strings.EqualFold(method, http.MethodHead) {
		resp, err = req.Head(url)
	} else {
		resp, err = req.Get(url)
	}
	if resp != nil {
		return resp.StatusCode(), err
	}
	return 0, err
}

// ParseTLSVersion converts "1.2", "12", "tls1.2" and similar to a crypto/tls
// constant. Unknown strings return 0.
func ParseTLSVersion(version string) uint16 {
	switch strings.TrimSpace(strings.ToLower(version)) {
	case "1.0", "10", "tls1.0", "tls10":
		return tls.VersionTLS10
	case "1.1", "11", "tls1.1", "tls11":
		return tls.VersionTLS11
	case "1.2", "12", "tls1.2", "tls12":
		return tls.VersionTLS12
	case "1.3", "13", "tls1.3", "tls13":
		return tls.VersionTLS13
	default:
		return 0
	}
}
