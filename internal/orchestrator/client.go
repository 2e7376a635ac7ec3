// Package orchestrator asks the shard orchestrator which shards this host
// should run.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/oxyl/shardgate/pkg/gwlog"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"go.uber.org/zap"
)

// Assignment is the orchestrator's answer for one host.
type Assignment struct {
	ShardCount int    `json:"shard_count"`
	Shards     []int  `json:"shards"`
	URL        string `json:"url"`
}

type rateLimited struct {
	RetryAt int64 `json:"retry_at"` // unix milliseconds
}

type Client struct {
	gwlog.Log
	baseURL  string
	hostname string
	now      func() time.Time
}

func New(baseURL, hostname string) *Client {
	return &Client{
		Log:      gwlog.NewGWLog("Orchestrator"),
		baseURL:  strings.TrimRight(baseURL, "/"),
		hostname: hostname,
		now:      time.Now,
	}
}

// GetShards fetches the assignment, waiting out rate limits until ctx is
// done. Any other error status is returned as is.
func (c *Client) GetShards(ctx context.Context) (*Assignment, error) {
	for {
		req := rest.Request{
			Method:      rest.Get,
			BaseURL:     c.baseURL + "/shards",
			QueryParams: map[string]string{"hostname": c.hostname},
		}
		c.Debug("requesting shards", zap.String("hostname", c.hostname))
		resp, err := rest.SendWithContext(ctx, req)
		if err != nil {
			return nil, errors.Wrap(err, "request shards")
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			var rl rateLimited
			if err := json.Unmarshal([]byte(resp.Body), &rl); err != nil {
				return nil, errors.Wrap(err, "decode rate limit")
			}
			wait := time.UnixMilli(rl.RetryAt).Sub(c.now())
			c.Info("rate limited by orchestrator", zap.Duration("wait", wait))
			if err := sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		case resp.StatusCode >= 400:
			return nil, fmt.Errorf("orchestrator returned status %d: %s", resp.StatusCode, resp.Body)
		}
		var a Assignment
		if err := json.Unmarshal([]byte(resp.Body), &a); err != nil {
			return nil, errors.Wrap(err, "decode assignment")
		}
		if a.ShardCount <= 0 {
			return nil, fmt.Errorf("orchestrator returned shard count %d", a.ShardCount)
		}
		c.Info("shards assigned", zap.Int("shardCount", a.ShardCount), zap.Ints("shards", a.Shards), zap.String("url", a.URL))
		return &a, nil
	}
}

// Finished reports that every assigned shard has been started.
func (c *Client) Finished(ctx context.Context) error {
	resp, err := rest.SendWithContext(ctx, rest.Request{
		Method:  rest.Put,
		BaseURL: c.baseURL + "/finished",
	})
	if err != nil {
		return errors.Wrap(err, "report finished")
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("orchestrator returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
