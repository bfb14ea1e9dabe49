package httpclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client is a thin wrapper around resty used for one-time bulk fetches of
// remote datasets.
type Client struct {
	client *resty.Client
}

func New(timeout time.Duration) *Client {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)

	return &Client{client: client}
}

// GetBytes fetches the raw body at url. Non-2xx responses are errors.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode(), url)
	}
	return resp.Body(), nil
}
