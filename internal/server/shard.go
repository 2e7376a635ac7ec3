package server

import (
	"context"
	"time"

	"github.com/oxyl/shardgate/internal/api"
	"github.com/oxyl/shardgate/internal/gateway"
	"github.com/oxyl/shardgate/internal/orchestrator"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// assignment asks the orchestrator for this host's shards, or falls back
// to the configured ones.
func (s *Server) assignment(ctx context.Context) (*orchestrator.Assignment, error) {
	if !s.opts.OrchestratorOn() {
		return &orchestrator.Assignment{
			ShardCount: s.opts.Shard.Count,
			Shards:     s.opts.LocalShards(),
			URL:        s.opts.Gateway.URL,
		}, nil
	}
	as, err := orchestrator.New(s.opts.Orchestrator.URL, s.opts.Orchestrator.Hostname).GetShards(ctx)
	if err != nil {
		return nil, err
	}
	if as.URL == "" {
		as.URL = s.opts.Gateway.URL
	}
	return as, nil
}

func (s *Server) newShards(as *orchestrator.Assignment) ([]*gateway.Shard, error) {
	opt := append(s.opts.GatewayOptions(),
		gateway.WithGatewayURL(as.URL),
		gateway.WithClock(gateway.NewWheelClock(s.timingWheel)),
		gateway.WithDialer(s.dialer),
		gateway.WithMonitor(s.monitor),
		gateway.WithMessageSink(s.sinks.messages),
		gateway.WithEntitySink(s.sinks.translator),
	)
	shards := make([]*gateway.Shard, 0, len(as.Shards))
	for _, id := range as.Shards {
		sh, err := gateway.New(id, as.ShardCount, opt...)
		if err != nil {
			return nil, errors.Wrapf(err, "create shard %d", id)
		}
		shards = append(shards, sh)
	}
	return shards, nil
}

func apiShards(shards []*gateway.Shard) []api.Shard {
	out := make([]api.Shard, 0, len(shards))
	for _, sh := range shards {
		out = append(out, sh)
	}
	return out
}

type runner interface {
	Run(ctx context.Context) error
}

// runShards starts the shards startDelay apart and waits for all of them.
// The first fatal error stops the rest and is returned. started is called
// once every shard is running.
func runShards[R runner](ctx context.Context, shards []R, startDelay time.Duration, started func()) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, sh := range shards {
		if i > 0 && startDelay > 0 {
			t := time.NewTimer(startDelay)
			select {
			case <-t.C:
			case <-gctx.Done():
				t.Stop()
				return g.Wait()
			}
		}
		sh := sh
		g.Go(func() error {
			return sh.Run(gctx)
		})
	}
	if started != nil && gctx.Err() == nil {
		started()
	}
	return g.Wait()
}
