package geocode

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrNoResults = errors.New("geocode: no results")
	ErrBadCoords = errors.New("geocode: invalid coordinates")
)

// Client talks to a Nominatim-compatible address search service. The usage
// policy of the public instance caps clients at one request per second, so
// the limiter defaults to 1 rps.
type Client struct {
	base string
	hc   *http.Client
	rl   *rate.Limiter
}

func New(base string, rps int) *Client {
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 20 * time.Second},
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}
}

type result struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Search returns the first result's coordinates for a free-text address.
func (c *Client) Search(ctx context.Context, address string) (float64, float64, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("q", address)

	var results []result
	if err := c.get(ctx, c.base+"/search?"+q.Encode(), &results); err != nil {
		return 0, 0, err
	}
	if len(results) == 0 {
		return 0, 0, ErrNoResults
	}

	lat, latErr := strconv.ParseFloat(strings.TrimSpace(results[0].Lat), 64)
	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(results[0].Lon), 64)
	if latErr != nil || lngErr != nil ||
		math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return 0, 0, ErrBadCoords
	}
	return lat, lng, nil
}

// get performs a GET with client-side rate limiting and retries on 429 and
// transient 5xx, honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, url string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Accept-Language", "es")
		req.Header.Set("User-Agent", "terrenos-admin/1.0")

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			return lastErr
		}

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}

	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles each attempt (200ms, 400ms, 800ms...) with up to +50%
// jitter from crypto/rand.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	j := time.Duration(0.5 * f * float64(base))
	return base + j
}
