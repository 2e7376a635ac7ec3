package gwhttp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oxyl/shardgate/pkg/gwlog"
	"github.com/stretchr/testify/assert"
)

func TestResponses(t *testing.T) {
	l := NewWithLogger(LoggerWithGWLog(gwlog.NewGWLog("test")))
	l.GET("/ok", func(c *Context) {
		c.ResponseOKWithData(map[string]int{"n": 1})
	})
	l.GET("/bad", func(c *Context) {
		c.ResponseError(errors.New("Invalid ID"))
	})
	l.Handle(http.MethodGet, "/raw", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	l.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"n":1}`, w.Body.String())

	w = httptest.NewRecorder()
	l.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bad", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Invalid ID"}`, w.Body.String())

	w = httptest.NewRecorder()
	l.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/raw", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}
