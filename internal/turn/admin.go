package turn

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// HTTPSessionKiller implements CoturnSessionKiller against coturn's REST
// admin API (turnadmin over HTTP, as fronted by an admin sidecar), using a
// shared long-lived http.Client the way the callback deliverer does.
type HTTPSessionKiller struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSessionKiller builds a killer posting kill requests to baseURL.
func NewHTTPSessionKiller(baseURL string, timeout time.Duration) *HTTPSessionKiller {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSessionKiller{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// KillSession POSTs to the admin endpoint's session-kill route for username.
func (k *HTTPSessionKiller) KillSession(ctx context.Context, username string) error {
	target := k.baseURL + "/sessions/" + url.PathEscape(username) + "/kill"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, nil)
	if err != nil {
		return fmt.Errorf("turn: build kill request: %w", err)
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return fmt.Errorf("turn: kill request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("turn: admin returned HTTP %d", resp.StatusCode)
	}
	return nil
}
