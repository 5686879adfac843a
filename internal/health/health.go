// Package health probes the receiver and a running add-on. Used by the
// check command; the add-on's own /healthz lives in package addon.
package health

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/snapetech/e2catalog/internal/httpclient"
)

// CheckReceiver fetches the OpenWebif bouquet list at controlURL. Returns nil
// when the receiver answers 200 with a service list.
func CheckReceiver(ctx context.Context, controlURL string) error {
	if controlURL == "" {
		return fmt.Errorf("no receiver URL configured")
	}
	u := strings.TrimRight(controlURL, "/") + "/web/getservices"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	resp, err := httpclient.WithTimeout(15 * time.Second).Do(req)
	if err != nil {
		return fmt.Errorf("receiver unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("receiver returned HTTP %d", resp.StatusCode)
	}
	head, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if !bytes.Contains(head, []byte("<e2service")) {
		return fmt.Errorf("receiver returned no service list (is OpenWebif enabled?)")
	}
	return nil
}

// CheckEndpoints hits healthz, manifest.json and /metrics at baseURL and
// returns the first error or nil.
func CheckEndpoints(ctx context.Context, baseURL string) error {
	client := httpclient.WithTimeout(5 * time.Second)
	for _, path := range []string{"/healthz", "/manifest.json", "/metrics"} {
		url := strings.TrimRight(baseURL, "/") + path
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
		}
	}
	return nil
}
