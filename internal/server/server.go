package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/RussellLuo/timingwheel"
	"github.com/judwhite/go-svc"
	"github.com/oxyl/shardgate/internal/api"
	"github.com/oxyl/shardgate/internal/gateway"
	"github.com/oxyl/shardgate/internal/monitor"
	"github.com/oxyl/shardgate/internal/options"
	"github.com/oxyl/shardgate/internal/orchestrator"
	"github.com/oxyl/shardgate/pkg/gwlog"
	"github.com/oxyl/shardgate/version"
	"go.uber.org/zap"
)

type Server struct {
	gwlog.Log
	opts        *options.Options
	timingWheel *timingwheel.TimingWheel
	monitor     monitor.IMonitor
	sinks       *sinks
	dialer      gateway.Dialer

	apiMu     sync.Mutex
	apiServer *api.Server
	apiClosed bool

	cancel  context.CancelFunc
	done    chan struct{}
	stopMu  sync.Mutex
	stopped bool

	// exit ends the process after a fatal gateway close.
	exit func(code int)
}

func New(opts *options.Options) *Server {
	return &Server{
		Log:         gwlog.NewGWLog("Server"),
		opts:        opts,
		timingWheel: timingwheel.NewTimingWheel(opts.TimingWheel.Tick, opts.TimingWheel.Size),
		monitor:     monitor.NewMonitor(opts.Metrics.On),
		dialer:      &gateway.WSDialer{},
		done:        make(chan struct{}),
		exit:        os.Exit,
	}
}

func (s *Server) Init(env svc.Environment) error {
	if env.IsWindowsService() {
		dir := filepath.Dir(os.Args[0])
		return os.Chdir(dir)
	}
	return nil
}

func (s *Server) Start() error {
	s.Info("shardgate is starting...")
	s.Info(fmt.Sprintf("  Mode:  %s", s.opts.Mode))
	s.Info(fmt.Sprintf("  Version:  %s", version.Version))
	s.Info(fmt.Sprintf("  Git:  %s", fmt.Sprintf("%s-%s", version.CommitDate, version.Commit)))
	s.Info(fmt.Sprintf("  Go build:  %s", runtime.Version()))
	s.Info(fmt.Sprintf("  Gateway:  %s (%s)", s.opts.Gateway.URL, s.opts.Gateway.Encoding))

	if err := s.opts.Check(); err != nil {
		return err
	}
	sk, err := newSinks(s.opts)
	if err != nil {
		return err
	}
	s.sinks = sk
	s.timingWheel.Start()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		err := s.run(ctx)
		close(s.done)
		if err == nil || ctx.Err() != nil {
			return
		}
		s.Error("shards stopped", zap.Error(err))
		_ = s.Stop()
		s.exit(1)
	}()
	return nil
}

func (s *Server) run(ctx context.Context) error {
	as, err := s.assignment(ctx)
	if err != nil {
		return err
	}
	shards, err := s.newShards(as)
	if err != nil {
		return err
	}
	if s.opts.API.On {
		s.startAPI(as.ShardCount, apiShards(shards))
	}
	return runShards(ctx, shards, s.opts.Shard.StartDelay, func() {
		s.finished(ctx)
	})
}

func (s *Server) finished(ctx context.Context) {
	s.Info("all shards started")
	if !s.opts.OrchestratorOn() {
		return
	}
	err := orchestrator.New(s.opts.Orchestrator.URL, s.opts.Orchestrator.Hostname).Finished(ctx)
	if err != nil {
		s.Warn("report finished failed", zap.Error(err))
	}
}

// startAPI does nothing once stopAPI has run.
func (s *Server) startAPI(shardCount int, shards []api.Shard) {
	s.apiMu.Lock()
	defer s.apiMu.Unlock()
	if s.apiClosed {
		return
	}
	s.apiServer = api.New(api.Config{
		Addr:            s.opts.API.Addr,
		Token:           s.opts.API.Token,
		Pprof:           s.opts.API.Pprof,
		ShardCount:      shardCount,
		MemberCacheSize: s.opts.API.MemberCacheSize,
		MemberCacheTTL:  s.opts.API.MemberCacheTTL,
		RequestTimeout:  s.opts.API.RequestTimeout,
	}, shards, s.monitor.Handler())
	s.apiServer.Start()
}

func (s *Server) stopAPI() {
	s.apiMu.Lock()
	a := s.apiServer
	s.apiServer = nil
	s.apiClosed = true
	s.apiMu.Unlock()
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		s.Warn("stop api server failed", zap.Error(err))
	}
}

// Stop is safe to call more than once.
func (s *Server) Stop() error {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	s.Info("Server is stopping...")
	defer s.Info("Server is exited")

	if s.cancel != nil {
		s.cancel()
		select {
		case <-s.done:
		case <-time.After(10 * time.Second):
			s.Warn("shards did not stop in time")
		}
	}
	s.stopAPI()
	if s.sinks != nil {
		s.sinks.close()
	}
	s.timingWheel.Stop()
	_ = gwlog.Sync()
	return nil
}
