// Package adminapi deletes cached entities through the cache's admin HTTP
// API. Deletes are idempotent and best effort.
package adminapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/oxyl/shardgate/pkg/gwlog"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type Client struct {
	gwlog.Log
	baseURL string
	token   string
	timeout time.Duration
	pool    *ants.Pool

	Deleted atomic.Uint64
	Failed  atomic.Uint64
}

func New(baseURL, token string, poolSize int, timeout time.Duration) (*Client, error) {
	// a full pool rejects the delete instead of stalling the shard
	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(true), ants.WithPanicHandler(func(err interface{}) {
		gwlog.Error("AdminAPI panic", zap.Any("err", err), zap.Stack("stack"))
	}))
	if err != nil {
		return nil, errors.Wrap(err, "create adminapi pool")
	}
	return &Client{
		Log:     gwlog.NewGWLog("AdminAPI"),
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
		pool:    pool,
	}, nil
}

// Delete issues one DELETE. A missing entity counts as deleted.
func (c *Client) Delete(ctx context.Context, path string) error {
	req := rest.Request{
		Method:  rest.Delete,
		BaseURL: c.baseURL + path,
		Headers: map[string]string{},
	}
	if c.token != "" {
		req.Headers["Authorization"] = c.token
	}
	resp, err := rest.SendWithContext(ctx, req)
	if err != nil {
		return err
	}
	return handleError(resp)
}

func handleError(resp *rest.Response) error {
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("adminapi returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (c *Client) submit(path string) {
	err := c.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if err := c.Delete(ctx, path); err != nil {
			c.Failed.Inc()
			c.Warn("delete failed", zap.String("path", path), zap.Error(err))
			return
		}
		c.Deleted.Inc()
	})
	if err != nil {
		c.Failed.Inc()
		c.Warn("submit delete failed", zap.String("path", path), zap.Error(err))
	}
}

func (c *Client) DeleteGuild(guildID string) {
	c.submit(fmt.Sprintf("/guilds/%s", guildID))
}

func (c *Client) DeleteChannel(guildID, channelID string) {
	c.submit(fmt.Sprintf("/channels/%s", channelID))
}

func (c *Client) DeleteRole(guildID, roleID string) {
	c.submit(fmt.Sprintf("/guilds/%s/roles/%s", guildID, roleID))
}

func (c *Client) DeleteMember(guildID, userID string) {
	c.submit(fmt.Sprintf("/guilds/%s/members/%s", guildID, userID))
}

func (c *Client) DeleteVoiceState(guildID, userID string) {
	c.submit(fmt.Sprintf("/guilds/%s/voice-states/%s", guildID, userID))
}

// Close waits up to timeout for in-flight deletes.
func (c *Client) Close(timeout time.Duration) error {
	return c.pool.ReleaseTimeout(timeout)
}
