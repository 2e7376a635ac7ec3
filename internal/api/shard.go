package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/oxyl/shardgate/pkg/gwhttp"
)

type sessionResp struct {
	Shard               int        `json:"shard"`
	ShardCount          int        `json:"shard_count"`
	Status              string     `json:"status"`
	SessionID           string     `json:"session_id,omitempty"`
	Sequence            *int64     `json:"seq,omitempty"`
	UserID              string     `json:"user_id,omitempty"`
	LatencyMs           int64      `json:"latency_ms"`
	LastHeartbeatSentAt *time.Time `json:"last_heartbeat_sent_at,omitempty"`
	QueuedPackets       int        `json:"queued_packets"`
}

func (s *Server) health(c *gwhttp.Context) {
	c.ResponseOK()
}

func (s *Server) sessions(c *gwhttp.Context) {
	resps := make([]sessionResp, 0, len(s.shards))
	for _, sh := range s.shards {
		sess := sh.Session()
		resp := sessionResp{
			Shard:         sess.Shard,
			ShardCount:    sess.ShardCount,
			Status:        sess.Status.String(),
			SessionID:     sess.SessionID,
			Sequence:      sess.Sequence,
			LatencyMs:     sess.Latency.Milliseconds(),
			QueuedPackets: sess.QueuedPackets,
		}
		if sess.User != nil {
			resp.UserID = sess.User.ID
		}
		if !sess.LastHeartbeatSentAt.IsZero() {
			at := sess.LastHeartbeatSentAt
			resp.LastHeartbeatSentAt = &at
		}
		resps = append(resps, resp)
	}
	sort.Slice(resps, func(i, j int) bool { return resps[i].Shard < resps[j].Shard })
	c.JSON(http.StatusOK, resps)
}
