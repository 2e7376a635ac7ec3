package gateway

import (
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Gateway close codes.
const (
	CloseAbnormal             = websocket.CloseAbnormalClosure // 1006
	CloseUnknownError         = 4000
	CloseUnknownOpcode        = 4001
	CloseDecodeError          = 4002
	CloseNotAuthenticated     = 4003
	CloseAuthenticationFailed = 4004
	CloseAlreadyAuthenticated = 4005
	CloseSessionNoLongerValid = 4006
	CloseInvalidSeq           = 4007
	CloseRateLimited          = 4008
	CloseSessionTimedOut      = 4009
	CloseInvalidShard         = 4010
	CloseShardingRequired     = 4011
)

type closePolicy struct {
	fatal         bool
	clearSession  bool
	clearSequence bool
}

// policyFor maps a close code to its recovery. Unlisted codes reconnect
// with the session intact.
func policyFor(code int) closePolicy {
	switch code {
	case CloseInvalidSeq:
		return closePolicy{clearSession: true, clearSequence: true}
	case CloseSessionTimedOut:
		return closePolicy{clearSession: true}
	case CloseInvalidShard, CloseShardingRequired:
		return closePolicy{fatal: true}
	}
	return closePolicy{}
}

// CloseError is returned from Run when the gateway closes with a code that
// must not be retried.
type CloseError struct {
	Shard  int
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("gateway: shard %d closed with fatal code %d", e.Shard, e.Code)
	}
	return fmt.Sprintf("gateway: shard %d closed with fatal code %d: %s", e.Shard, e.Code, e.Reason)
}

// closeCode extracts the close code of a read error. Anything that is not a
// websocket close frame counts as an abnormal closure.
func closeCode(err error) (int, string) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text
	}
	return CloseAbnormal, err.Error()
}
