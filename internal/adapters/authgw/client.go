package authgw

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"terrenos/internal/domain"
)

// Client asks the auth gateway who a session token belongs to. The gateway
// owns sign-up, password verification, and session issuance; this side only
// ever resolves a bearer token to an identity.
type Client struct {
	base string
	hc   *http.Client
	key  string
}

func New(base, key string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 10 * time.Second},
		key:  key,
	}
}

type userPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (c *Client) Verify(ctx context.Context, token string) (domain.User, error) {
	if token == "" {
		return domain.User{}, domain.ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/auth/v1/user", nil)
	if err != nil {
		return domain.User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if c.key != "" {
		req.Header.Set("apikey", c.key)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return domain.User{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var u userPayload
		if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
			return domain.User{}, err
		}
		if u.Email == "" {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{ID: u.ID, Email: u.Email}, nil

	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return domain.User{}, domain.ErrUnauthorized

	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.User{}, fmt.Errorf("auth gateway status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
}
