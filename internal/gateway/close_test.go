package gateway

import (
	"errors"
	"io"
	"testing"

	"github.com/gorilla/websocket"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestClosePolicy(t *testing.T) {
	reconnect := closePolicy{}
	tests := []struct {
		code int
		want closePolicy
	}{
		{CloseAbnormal, reconnect},
		{CloseUnknownOpcode, reconnect},
		{CloseDecodeError, reconnect},
		{CloseNotAuthenticated, reconnect},
		{CloseAuthenticationFailed, reconnect},
		{CloseAlreadyAuthenticated, reconnect},
		{CloseSessionNoLongerValid, reconnect},
		{CloseInvalidSeq, closePolicy{clearSession: true, clearSequence: true}},
		{CloseRateLimited, reconnect},
		{CloseSessionTimedOut, closePolicy{clearSession: true}},
		{CloseInvalidShard, closePolicy{fatal: true}},
		{CloseShardingRequired, closePolicy{fatal: true}},
		{1000, reconnect},
		{4999, reconnect},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, policyFor(tt.code), "code %d", tt.code)
	}
}

func TestCloseCode(t *testing.T) {
	code, reason := closeCode(&websocket.CloseError{Code: 4004, Text: "Authentication failed."})
	assert.Equal(t, 4004, code)
	assert.Equal(t, "Authentication failed.", reason)

	code, _ = closeCode(pkgerrors.Wrap(&websocket.CloseError{Code: 4009}, "read"))
	assert.Equal(t, 4009, code)

	code, _ = closeCode(io.ErrUnexpectedEOF)
	assert.Equal(t, CloseAbnormal, code)
}

func TestCloseError(t *testing.T) {
	var err error = &CloseError{Shard: 3, Code: 4010, Reason: "Invalid shard."}
	assert.EqualError(t, err, "gateway: shard 3 closed with fatal code 4010: Invalid shard.")
	var ce *CloseError
	assert.True(t, errors.As(err, &ce))
}
