// Package pin drives a GPIO pin on a remote board through its HTTP endpoint.
package pin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/multierr"
)

const defaultTimeout = 5 * time.Second

// Switch issues GET <BaseURL>/?pin=<value>. The response is ignored.
type Switch struct {
	BaseURL string
	Client  *http.Client
}

func New(baseURL string) *Switch {
	return &Switch{BaseURL: baseURL, Client: &http.Client{Timeout: defaultTimeout}}
}

func On(n int) string  { return "ON" + strconv.Itoa(n) }
func Off(n int) string { return "OFF" + strconv.Itoa(n) }

// Set only fails on transport errors; any HTTP status is accepted.
func (s *Switch) Set(ctx context.Context, value string) (err error) {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return fmt.Errorf("pin: bad base url %q: %w", s.BaseURL, err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawQuery = url.Values{"pin": {value}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("pin: %w", err)
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("pin: set %s: %w", value, err)
	}
	defer func() {
		err = multierr.Append(err, resp.Body.Close())
	}()
	_, err = io.Copy(io.Discard, resp.Body)
	return err
}
