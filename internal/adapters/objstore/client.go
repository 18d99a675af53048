package objstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"terrenos/internal/domain"
)

// listLimit matches the cap the admin panel always listed photos with.
const listLimit = 50

// Client lists objects in the photo bucket and derives their public URLs.
type Client struct {
	base   string
	hc     *http.Client
	key    string
	bucket string
}

func New(base, key, bucket string) *Client {
	return &Client{
		base:   strings.TrimRight(base, "/"),
		hc:     &http.Client{Timeout: 15 * time.Second},
		key:    key,
		bucket: bucket,
	}
}

type object struct {
	Name string `json:"name"`
}

// List returns the object names stored under prefix (a submission id).
func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	body, _ := json.Marshal(map[string]any{"prefix": prefix, "limit": listLimit})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/storage/v1/object/list/"+c.bucket, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
		req.Header.Set("apikey", c.key)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var objs []object
		if err := json.NewDecoder(resp.Body).Decode(&objs); err != nil {
			return nil, err
		}
		names := make([]string, 0, len(objs))
		for _, o := range objs {
			if o.Name != "" {
				names = append(names, o.Name)
			}
		}
		return names, nil

	case http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, domain.ErrNotFound

	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("object store status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
}

// PublicURL derives the public URL for an object path ("{id}/{name}").
func (c *Client) PublicURL(path string) string {
	return c.base + "/storage/v1/object/public/" + c.bucket + "/" + path
}
