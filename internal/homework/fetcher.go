package homework

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// DefaultEndpoint is the homework statuses API.
	DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"

	authScheme      = "OAuth"
	maxResponseSize = 4 << 20
)

// FetcherConfig configures a Fetcher.
//
// Client is optional; when nil a client with Timeout is created.
type FetcherConfig struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
	Client   *http.Client
}

// Fetcher issues one GET against the review endpoint per call.
// It never retries; the poll loop re-invokes it on the next tick.
type Fetcher struct {
	endpoint string
	token    string
	client   *http.Client
	now      func() time.Time
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{endpoint: endpoint, token: cfg.Token, client: client, now: time.Now}
}

// Fetch returns the decoded JSON body of the statuses endpoint for submissions
// updated since the given unix timestamp. since <= 0 means "now".
func (f *Fetcher) Fetch(ctx context.Context, since int64) (any, error) {
	if since <= 0 {
		since = f.now().Unix()
	}

	u, err := url.Parse(f.endpoint)
	if err != nil {
		return nil, newError(KindFetch, "invalid endpoint", err)
	}
	q := u.Query()
	q.Set("from_date", strconv.FormatInt(since, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, newError(KindFetch, "build request", err)
	}
	req.Header.Set("Authorization", authScheme+" "+f.token)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, newError(KindFetch, "request homework statuses", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &Error{
			Kind: KindUnexpectedStatus,
			Msg:  fmt.Sprintf("unexpected response status %d", resp.StatusCode),
			Code: resp.StatusCode,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, newError(KindFetch, "read response body", err)
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, newError(KindDecode, "decode response body", err)
	}
	return v, nil
}
