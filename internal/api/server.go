package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/pprof"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/oxyl/shardgate/internal/gateway"
	"github.com/oxyl/shardgate/pkg/gwhttp"
	"github.com/oxyl/shardgate/pkg/gwlog"
	"go.uber.org/zap"
)

// Shard is the part of a gateway shard the HTTP surface uses.
type Shard interface {
	ID() int
	Session() gateway.Session
	RequestMembers(ctx context.Context, guildID string, q gateway.MemberQuery) (*gateway.MembersChunk, error)
}

type Config struct {
	Addr  string
	Token string // required in the "token" header when set
	Pprof bool

	ShardCount      int
	MemberCacheSize int
	MemberCacheTTL  time.Duration
	RequestTimeout  time.Duration
}

type Server struct {
	gwlog.Log
	cfg     Config
	r       *gwhttp.GWHttp
	srv     *http.Server
	shards  map[int]Shard
	members *expirable.LRU[string, *gateway.MembersChunk]
	metrics http.Handler
}

func New(cfg Config, shards []Shard, metrics http.Handler) *Server {
	log := gwlog.NewGWLog("ApiServer")
	s := &Server{
		Log:     log,
		cfg:     cfg,
		r:       gwhttp.NewWithLogger(gwhttp.LoggerWithGWLog(log)),
		shards:  make(map[int]Shard, len(shards)),
		metrics: metrics,
	}
	for _, sh := range shards {
		s.shards[sh.ID()] = sh
	}
	if cfg.MemberCacheSize > 0 {
		s.members = expirable.NewLRU[string, *gateway.MembersChunk](cfg.MemberCacheSize, nil, cfg.MemberCacheTTL)
	}
	s.setRoutes()
	return s
}

func (s *Server) setRoutes() {
	if s.cfg.Pprof {
		pprof.Register(s.r.GetGinRoute())
	}
	s.r.GetGinRoute().Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	s.r.Use(func(c *gwhttp.Context) {
		if strings.TrimSpace(s.cfg.Token) == "" || c.Request.URL.Path == "/health" {
			c.Next()
			return
		}
		if c.GetHeader("token") != s.cfg.Token {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	})
	s.r.GET("/health", s.health)
	s.r.GET("/shards", s.sessions)
	s.r.GET("/request-guild-members", s.requestGuildMembers)
	if s.metrics != nil {
		s.r.Handle(http.MethodGet, "/metrics", s.metrics)
	}
}

func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Error("api server stopped", zap.Error(err))
		}
	}()
	s.Info("ApiServer started", zap.String("addr", s.cfg.Addr))
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// ServeHTTP serves the routes without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.r.ServeHTTP(w, req)
}
