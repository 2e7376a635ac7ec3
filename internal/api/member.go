package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oxyl/shardgate/internal/gateway"
	"github.com/oxyl/shardgate/pkg/gwhttp"
	"go.uber.org/zap"
)

var (
	errInvalidID      = errors.New("Invalid ID")
	errShardNotHosted = errors.New("shard not hosted")
)

// shardFor routes a guild to its shard by the timestamp bits of its id.
func shardFor(guildID snowflake.ID, count int) int {
	return int((uint64(guildID.Int64()) >> 22) % uint64(count))
}

func memberCacheKey(guildID string, q gateway.MemberQuery) string {
	if len(q.UserIDs) > 0 {
		return guildID + "|ids|" + strings.Join(q.UserIDs, ",")
	}
	return guildID + "|query|" + q.Query
}

func (s *Server) requestGuildMembers(c *gwhttp.Context) {
	id, err := snowflake.ParseString(c.Query("id"))
	if err != nil || id.Int64() <= 0 {
		c.ResponseError(errInvalidID)
		return
	}
	var q gateway.MemberQuery
	for _, raw := range c.QueryArray("userIds") {
		for _, uid := range strings.Split(raw, ",") {
			if uid = strings.TrimSpace(uid); uid != "" {
				q.UserIDs = append(q.UserIDs, uid)
			}
		}
	}
	if len(q.UserIDs) == 0 {
		q.Query = c.Query("query")
	}

	guildID := id.String()
	key := memberCacheKey(guildID, q)
	if s.members != nil {
		if chunk, ok := s.members.Get(key); ok {
			c.ResponseOKWithData(chunk.Members)
			return
		}
	}

	if s.cfg.ShardCount <= 0 {
		c.ResponseErrorWithStatus(http.StatusServiceUnavailable, errShardNotHosted)
		return
	}
	sh, ok := s.shards[shardFor(id, s.cfg.ShardCount)]
	if !ok {
		c.ResponseErrorWithStatus(http.StatusNotFound, errShardNotHosted)
		return
	}

	ctx := c.Request.Context()
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	chunk, err := sh.RequestMembers(ctx, guildID, q)
	if err != nil {
		s.Warn("request guild members failed", zap.String("guildID", guildID), zap.Error(err))
		status := http.StatusBadGateway
		if errors.Is(err, gateway.ErrMemberRequestTimeout) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		c.ResponseErrorWithStatus(status, err)
		return
	}
	if len(chunk.NotFound) > 0 {
		c.ResponseError(errInvalidID)
		return
	}
	if s.members != nil {
		s.members.Add(key, chunk)
	}
	members := chunk.Members
	if members == nil {
		members = []gateway.Member{}
	}
	c.ResponseOKWithData(members)
}
