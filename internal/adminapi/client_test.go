package adminapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
	auth  []string
}

func (r *recorder) handler(status map[string]int) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		r.paths = append(r.paths, req.Method+" "+req.URL.Path)
		r.auth = append(r.auth, req.Header.Get("Authorization"))
		r.mu.Unlock()
		if code, ok := status[req.URL.Path]; ok {
			w.WriteHeader(code)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func TestDeletes(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(map[string]int{
		"/guilds/42/roles/800": http.StatusNotFound,
		"/channels/600":        http.StatusInternalServerError,
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/", "admin-secret", 8, time.Second)
	require.NoError(t, err)

	c.DeleteGuild("42")
	c.DeleteChannel("42", "600")
	c.DeleteRole("42", "800")
	c.DeleteMember("42", "7")
	c.DeleteVoiceState("42", "7")
	require.Eventually(t, func() bool {
		return c.Deleted.Load()+c.Failed.Load() == 5
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close(time.Second))

	assert.Equal(t, uint64(4), c.Deleted.Load())
	assert.Equal(t, uint64(1), c.Failed.Load())

	sort.Strings(rec.paths)
	assert.Equal(t, []string{
		"DELETE /channels/600",
		"DELETE /guilds/42",
		"DELETE /guilds/42/members/7",
		"DELETE /guilds/42/roles/800",
		"DELETE /guilds/42/voice-states/7",
	}, rec.paths)
	for _, a := range rec.auth {
		assert.Equal(t, "admin-secret", a)
	}
}

func TestDeleteSync(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec.handler(map[string]int{"/gone": http.StatusNotFound, "/bad": http.StatusBadRequest}))
	defer srv.Close()

	c, err := New(srv.URL, "", 1, time.Second)
	require.NoError(t, err)
	defer c.Close(time.Second)

	ctx := context.Background()
	assert.NoError(t, c.Delete(ctx, "/ok"))
	assert.NoError(t, c.Delete(ctx, "/gone"))
	assert.Error(t, c.Delete(ctx, "/bad"))
	assert.Equal(t, []string{"", "", ""}, rec.auth)
}
