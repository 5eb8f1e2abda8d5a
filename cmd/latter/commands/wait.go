package commands

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/latter"
	"github.com/loykin/latter/cmd/latter/config"
	"github.com/loykin/latter/internal/constants"
	"github.com/loykin/latter/internal/httpc"
	"github.com/loykin/latter/internal/util"
	"github.com/spf13/cobra"
)

// waitParams holds the parsed and normalized parameters for the HTTP probe
type waitParams struct {
	url      string
	method   string
	expected int
	timeout  time.Duration
	interval time.Duration
}

// parseWaitConfig parses and normalizes wait configuration with defaults
func parseWaitConfig(wc config.WaitConfig) waitParams {
	timeout, interval := wc.WaitTimeouts(constants.DefaultWaitTimeout, constants.DefaultWaitInterval)
	expected := wc.Status
	if expected == 0 {
		expected = constants.DefaultWaitStatus
	}
	url, _ := util.TrimEmptyCheck(wc.URL)
	return waitParams{
		url:      url,
		method:   strings.ToUpper(util.TrimWithDefault(wc.Method, constants.DefaultWaitMethod)),
		expected: expected,
		timeout:  timeout,
		interval: interval,
	}
}

// setupTLSConfig creates TLS configuration from client config
func setupTLSConfig(clientCfg config.ClientConfig) *tls.Config {
	// #nosec G402 -- versions come from explicit configuration
	cfg := &tls.Config{
		MinVersion: httpc.ParseTLSVersion(clientCfg.MinTLSVersion),
		MaxVersion: httpc.ParseTLSVersion(clientCfg.MaxTLSVersion),
	}
	if clientCfg.Insecure {
		// #nosec G402 -- self-signed certificates are allowed for the probe only when explicitly configured
		cfg.InsecureSkipVerify = true
	}
	return cfg
}

// performPolling repeatedly polls the endpoint until success or timeout
func performPolling(ctx context.Context, hc *httpc.Httpc, params waitParams) error {
	deadline := time.Now().Add(params.timeout)
	var lastStatus int

	for {
		status, err := hc.Probe(ctx, params.method, params.url)
		if err == nil && status == params.expected {
			return nil
		}

		lastStatus = status
		if time.Now().After(deadline) {
			return fmt.Errorf("wait: timeout waiting for %s to return %d (last=%d)",
				params.url, params.expected, lastStatus)
		}

		timer := time.NewTimer(params.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// DoWait polls an HTTP endpoint until it returns the expected status or the
// timeout elapses. An empty URL returns immediately.
func DoWait(ctx context.Context, wc config.WaitConfig, clientCfg config.ClientConfig) error {
	if _, hasURL := util.TrimEmptyCheck(wc.URL); !hasURL {
		return nil
	}
	params := parseWaitConfig(wc)
	return performPolling(ctx, &httpc.Httpc{TLSConfig: setupTLSConfig(clientCfg)}, params)
}

// waitRetry turns a timeout and interval into a fixed-delay retry policy.
func waitRetry(timeout, interval time.Duration) *latter.RetryConfig {
	if interval <= 0 {
		interval = constants.DefaultWaitInterval
	}
	rc := latter.DefaultRetryConfig()
	rc.InitialDelay = interval
	rc.MaxDelay = interval
	rc.BackoffFactor = 1
	rc.MaxRetries = int(timeout / interval)
	rc.RetryableErrors = append(rc.RetryableErrors, "dial", "i/o timeout", "no route to host", "server misbehaving")
	return rc
}

// waitForDatabase retries connecting until the database accepts connections.
func waitForDatabase(ctx context.Context, s *settings, timeout, interval time.Duration) error {
	a, err := s.adapter(waitRetry(timeout, interval))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout+interval)
	defer cancel()
	if err := a.Connect(ctx); err != nil {
		return fmt.Errorf("wait: database not ready: %w", err)
	}
	return a.Disconnect()
}

var WaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Block until the database (and optional HTTP endpoint) is ready",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		wc := s.doc.Wait
		if u, _ := cmd.Flags().GetString("url"); strings.TrimSpace(u) != "" {
			wc.URL = u
		}
		if d, _ := cmd.Flags().GetDuration("timeout"); d > 0 {
			wc.Timeout = d.String()
		}
		if d, _ := cmd.Flags().GetDuration("interval"); d > 0 {
			wc.Interval = d.String()
		}
		skipDB, _ := cmd.Flags().GetBool("http-only")

		ctx := contextOf(cmd)
		timeout, interval := wc.WaitTimeouts(constants.DefaultWaitTimeout, constants.DefaultWaitInterval)
		if !skipDB {
			if err := waitForDatabase(ctx, s, timeout, interval); err != nil {
				return err
			}
			s.logger.Info("database is ready")
		}
		if err := DoWait(ctx, wc, s.doc.Client); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "ready")
		return nil
	},
}

func init() {
	WaitCmd.Flags().String("url", "", "also poll this HTTP endpoint until it returns the expected status")
	WaitCmd.Flags().Duration("timeout", 0, "give up after this long (default 60s)")
	WaitCmd.Flags().Duration("interval", 0, "delay between attempts (default 2s)")
	WaitCmd.Flags().Bool("http-only", false, "skip the database check")
}
