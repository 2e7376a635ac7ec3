package gateway

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/oxyl/shardgate/pkg/gwlog"
	"github.com/oxyl/shardgate/pkg/wait"
	"github.com/oxyl/shardgate/pkg/zlibstream"
	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Session is a point-in-time copy of a shard's session state.
type Session struct {
	Shard               int
	ShardCount          int
	Status              Status
	SessionID           string
	Sequence            *int64
	User                *User
	Latency             time.Duration
	LastHeartbeatSentAt time.Time
	QueuedPackets       int
}

// MemberQuery selects members either by username prefix or by exact ids.
type MemberQuery struct {
	Query     string
	UserIDs   []string
	Limit     int
	Presences bool
}

// attempt is one connection: the transport, its decoder and the writer
// goroutine. Replaced wholesale on every reset.
type attempt struct {
	conn    Transport
	decoder *zlibstream.Decoder
	out     chan []byte
	quit    chan struct{}
	closed  bool
}

func (a *attempt) close() {
	if a.closed {
		return
	}
	a.closed = true
	close(a.quit)
	if a.decoder != nil {
		a.decoder.Close()
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
}

type frameEvent struct {
	a    *attempt
	data []byte
}

type closeEvent struct {
	a      *attempt
	code   int
	reason string
}

type dialEvent struct {
	a    *attempt
	conn Transport
	err  error
}

type callEvent func()

// Shard drives one gateway connection. All session state is owned by the
// goroutine running Run; other goroutines talk to it through events.
type Shard struct {
	Statistics
	gwlog.Log

	id    int
	count int
	opts  *Options
	codec Codec

	events  chan any
	done    chan struct{}
	started atomic.Bool

	status              Status
	sessionID           string
	resumeURL           string
	seq                 int64
	hasSeq              bool
	user                *User
	lastHeartbeatSentAt time.Time
	latency             time.Duration
	unacked             int

	attempt           *attempt
	generation        uint64
	heartbeatInterval time.Duration
	heartbeatTimer    Timer
	reconnectTimer    Timer
	drainTimer        Timer
	draining          bool
	queue             *outboundQueue
	tickets           wait.Wait[*MembersChunk]
	fatal             error

	mu   deadlock.RWMutex
	snap Session
}

func New(id, count int, opt ...Option) (*Shard, error) {
	opts := NewOptions()
	for _, o := range opt {
		if o != nil {
			o(opts)
		}
	}
	if opts.Token == "" {
		return nil, errors.New("gateway: token is required")
	}
	if count <= 0 || id < 0 || id >= count {
		return nil, errors.Errorf("gateway: invalid shard %d of %d", id, count)
	}
	if opts.WriteBufferSize <= 0 || opts.ChunkSize <= 0 {
		return nil, errors.New("gateway: write buffer and chunk size must be positive")
	}
	codec, ok := codecFor(opts.Encoding)
	if !ok {
		return nil, errors.Errorf("gateway: unsupported encoding %q", opts.Encoding)
	}
	prefix := fmt.Sprintf("%d", id)
	s := &Shard{
		Log:     gwlog.NewGWLog(fmt.Sprintf("Shard[%s]", prefix)),
		id:      id,
		count:   count,
		opts:    opts,
		codec:   codec,
		events:  make(chan any, 1024),
		done:    make(chan struct{}),
		queue:   newOutboundQueue(prefix, opts.OutboundQueueLimit),
		tickets: wait.New[*MembersChunk](),
	}
	s.publish()
	return s, nil
}

func (s *Shard) ID() int { return s.id }

// Run connects and processes events until ctx is done or the gateway closes
// with a fatal code, in which case a *CloseError is returned. Run may only
// be called once.
func (s *Shard) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrShardStopped
	}
	return s.run(ctx)
}

func (s *Shard) run(ctx context.Context) error {
	defer close(s.done)
	defer s.shutdown()

	s.Info("starting shard", zap.Int("shardCount", s.count), zap.String("encoding", s.codec.Name()))
	s.connect()
	if s.fatal != nil {
		return s.fatal
	}
	for {
		select {
		case <-ctx.Done():
			s.Info("shard stopping")
			return nil
		case ev := <-s.events:
			s.handle(ev)
			s.publish()
			if s.fatal != nil {
				return s.fatal
			}
		}
	}
}

func (s *Shard) shutdown() {
	s.stopTimers()
	s.closeAttempt()
	s.setStatus(StatusDisconnected)
	s.publish()
}

func (s *Shard) post(ev any) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// call runs fn on the shard goroutine.
func (s *Shard) call(ctx context.Context, fn func()) error {
	select {
	case s.events <- callEvent(fn):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrShardStopped
	}
}

// after arms a timer whose callback runs on the shard goroutine, unless the
// shard has been reset in the meantime.
func (s *Shard) after(d time.Duration, fn func()) Timer {
	gen := s.generation
	return s.opts.Clock.AfterFunc(d, func() {
		s.post(callEvent(func() {
			if gen != s.generation {
				return
			}
			fn()
		}))
	})
}

func (s *Shard) handle(ev any) {
	switch e := ev.(type) {
	case frameEvent:
		if e.a != s.attempt || e.a.decoder == nil {
			return
		}
		s.InBytes.Add(uint64(len(e.data)))
		e.a.decoder.Push(e.data)
	case closeEvent:
		s.onClose(e)
	case dialEvent:
		s.onDial(e)
	case callEvent:
		e()
	}
}

func (s *Shard) connect() {
	a := &attempt{
		out:  make(chan []byte, s.opts.WriteBufferSize),
		quit: make(chan struct{}),
	}
	s.attempt = a
	u, err := gatewayURL(s.dialBase(), s.opts.Version, s.codec.Name())
	if err != nil {
		s.fatal = errors.Wrap(err, "gateway url")
		return
	}
	s.Debug("dialing gateway", zap.String("url", u))
	dialer := s.opts.Dialer
	timeout := s.opts.DialTimeout
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		conn, err := dialer.Dial(ctx, u)
		s.post(dialEvent{a: a, conn: conn, err: err})
	}()
}

func (s *Shard) dialBase() string {
	if s.sessionID != "" && s.resumeURL != "" {
		return s.resumeURL
	}
	return s.opts.GatewayURL
}

func (s *Shard) onDial(e dialEvent) {
	if e.a != s.attempt || e.a.closed {
		if e.conn != nil {
			_ = e.conn.Close()
		}
		return
	}
	if e.err != nil {
		s.Warn("dial gateway failed", zap.Error(e.err))
		s.reset(true)
		return
	}
	a := e.a
	a.conn = e.conn
	a.decoder = zlibstream.NewDecoder(s.codec, func(fn func()) { s.post(callEvent(fn)) },
		func(v any) { s.onPacket(a, v) },
		func(err error) { s.onDecodeError(a, err) },
		zlibstream.WithChunkSize(s.opts.ChunkSize),
	)
	go s.readLoop(a)
	go s.writeLoop(a)
	s.Info("gateway connected")
}

func (s *Shard) readLoop(a *attempt) {
	for {
		_, data, err := a.conn.ReadMessage()
		if err != nil {
			code, reason := closeCode(err)
			s.post(closeEvent{a: a, code: code, reason: reason})
			return
		}
		s.post(frameEvent{a: a, data: data})
	}
}

func (s *Shard) writeLoop(a *attempt) {
	typ := messageType(s.codec)
	for {
		select {
		case data := <-a.out:
			if err := a.conn.WriteMessage(typ, data); err != nil {
				code, reason := closeCode(err)
				s.post(closeEvent{a: a, code: code, reason: reason})
				return
			}
		case <-a.quit:
			return
		}
	}
}

func (s *Shard) closeAttempt() {
	if s.attempt != nil {
		s.attempt.close()
		s.attempt = nil
	}
}

func (s *Shard) stopTimers() {
	for _, t := range []*Timer{&s.heartbeatTimer, &s.reconnectTimer, &s.drainTimer} {
		if *t != nil {
			(*t).Stop()
			*t = nil
		}
	}
	s.draining = false
}

// reset discards the current connection and schedules a new one after the
// settle delay. Identity survives only when reconnecting.
func (s *Shard) reset(reconnecting bool) {
	s.generation++
	if reconnecting {
		s.setStatus(StatusResuming)
	} else {
		s.clearSession()
		s.user = nil
		s.setStatus(StatusDisconnected)
	}
	s.stopTimers()
	s.unacked = 0
	s.closeAttempt()

	s.Reconnects.Inc()
	s.opts.Monitor.Reconnect(s.id)
	s.Info("reconnecting", zap.Duration("after", s.opts.SettleDelay), zap.Bool("resumable", s.sessionID != ""))
	s.reconnectTimer = s.after(s.opts.SettleDelay, func() {
		s.reconnectTimer = nil
		s.connect()
	})
}

func (s *Shard) clearSession() {
	s.sessionID = ""
	s.resumeURL = ""
	s.clearSequence()
}

func (s *Shard) clearSequence() {
	s.seq = 0
	s.hasSeq = false
}

func (s *Shard) setStatus(st Status) {
	if s.status == st {
		return
	}
	s.status = st
	s.opts.Monitor.StatusChanged(s.id, st)
}

func (s *Shard) onClose(e closeEvent) {
	if e.a != s.attempt {
		return
	}
	s.opts.Monitor.Closed(s.id, e.code)
	p := policyFor(e.code)
	if p.fatal {
		s.Error("gateway closed with fatal code", zap.Int("code", e.code), zap.String("reason", e.reason))
		s.stopTimers()
		s.closeAttempt()
		s.setStatus(StatusDisconnected)
		s.fatal = &CloseError{Shard: s.id, Code: e.code, Reason: e.reason}
		return
	}
	s.Warn("gateway closed", zap.Int("code", e.code), zap.String("reason", e.reason))
	if p.clearSession {
		s.sessionID = ""
		s.resumeURL = ""
	}
	if p.clearSequence {
		s.clearSequence()
	}
	s.reset(true)
}

func (s *Shard) onDecodeError(a *attempt, err error) {
	if a != s.attempt {
		return
	}
	s.Warn("decode gateway frame failed", zap.Error(err))
	s.reset(true)
}

func (s *Shard) onPacket(a *attempt, v any) {
	if a != s.attempt {
		return
	}
	p, err := packetFromValue(v)
	if err != nil {
		s.onDecodeError(a, err)
		return
	}
	s.InPackets.Inc()
	s.opts.Monitor.PacketIn(s.id, p.Op)
	s.packet(p)
}

func (s *Shard) packet(p Packet) {
	switch p.Op {
	case OpDispatch:
		s.dispatch(p)
	case OpHello:
		s.hello(p)
	case OpInvalidSession:
		s.Info("session invalidated, identifying")
		s.clearSession()
		s.identify()
	case OpHeartbeat:
		s.heartbeat()
	case OpReconnect:
		s.Info("gateway requested reconnect")
		s.reset(true)
	case OpHeartbeatAck:
		s.heartbeatAck()
	default:
		s.Debug("unknown opcode", zap.Int("op", int(p.Op)))
	}
}

func (s *Shard) hello(p Packet) {
	var h Hello
	if err := decodePayload(p.D, &h); err != nil || h.HeartbeatInterval <= 0 {
		s.Warn("bad hello payload", zap.Any("d", p.D))
		s.reset(true)
		return
	}
	s.heartbeatInterval = time.Duration(h.HeartbeatInterval) * time.Millisecond
	s.unacked = 0
	s.startHeartbeat()
	if s.sessionID != "" {
		s.resume()
	} else {
		s.identify()
	}
	s.heartbeat()
}

func (s *Shard) startHeartbeat() {
	if s.heartbeatTimer != nil {
		s.heartbeatTimer.Stop()
	}
	s.heartbeatTimer = s.after(s.heartbeatInterval, s.heartbeatTick)
}

func (s *Shard) heartbeatTick() {
	if s.opts.MaxMissedAcks > 0 && s.unacked >= s.opts.MaxMissedAcks {
		s.Warn("heartbeats not acknowledged", zap.Error(ErrStaleConnection), zap.Int("unacked", s.unacked))
		s.reset(true)
		return
	}
	s.startHeartbeat()
	s.heartbeat()
}

func (s *Shard) heartbeat() {
	var d any
	if s.hasSeq {
		d = s.seq
	}
	if err := s.write(Packet{Op: OpHeartbeat, D: d}); err != nil {
		s.Warn("send heartbeat failed", zap.Error(err))
		return
	}
	s.lastHeartbeatSentAt = s.opts.Clock.Now()
	s.unacked++
}

func (s *Shard) heartbeatAck() {
	s.unacked = 0
	if s.lastHeartbeatSentAt.IsZero() {
		s.latency = 0
	} else {
		s.latency = s.opts.Clock.Now().Sub(s.lastHeartbeatSentAt)
	}
	s.opts.Monitor.Latency(s.id, s.latency)
}

func (s *Shard) identify() {
	activities := []any{}
	if s.opts.Presence.ActivityName != "" {
		activities = append(activities, map[string]any{
			"name": s.opts.Presence.ActivityName,
			"type": s.opts.Presence.ActivityType,
		})
	}
	d := map[string]any{
		"token": s.opts.Token,
		"properties": map[string]any{
			"os":      runtime.GOOS,
			"browser": s.opts.Browser,
			"device":  s.opts.Device,
		},
		"shard": []any{s.id, s.count},
		"presence": map[string]any{
			"since":      nil,
			"activities": activities,
			"status":     s.opts.Presence.Status,
			"afk":        false,
		},
		"intents":         s.opts.Intents,
		"large_threshold": s.opts.LargeThreshold,
	}
	s.Debug("identifying")
	if err := s.write(Packet{Op: OpIdentify, D: d}); err != nil {
		s.Warn("send identify failed", zap.Error(err))
	}
}

func (s *Shard) resume() {
	s.setStatus(StatusResuming)
	var seq any
	if s.hasSeq {
		seq = s.seq
	}
	d := map[string]any{
		"token":      s.opts.Token,
		"session_id": s.sessionID,
		"seq":        seq,
	}
	s.Debug("resuming", zap.String("sessionID", s.sessionID))
	if err := s.write(Packet{Op: OpResume, D: d}); err != nil {
		s.Warn("send resume failed", zap.Error(err))
	}
}

func (s *Shard) dispatch(p Packet) {
	if p.S != nil {
		s.seq = *p.S
		s.hasSeq = true
	}
	ev, err := DecodeEvent(p.T, p.D)
	if err != nil {
		s.Warn("decode dispatch failed", zap.String("t", p.T), zap.Error(err))
		return
	}
	ev.Seq = s.seq

	switch ev.Kind {
	case EventReady:
		r := ev.Data.(*Ready)
		s.sessionID = r.SessionID
		s.resumeURL = r.ResumeGatewayURL
		user := r.User
		s.user = &user
		s.Info("ready", zap.String("sessionID", r.SessionID), zap.String("user", user.Username), zap.Int("guilds", len(r.Guilds)))
		s.ready()
	case EventResumed:
		s.Info("resumed", zap.String("sessionID", s.sessionID))
		s.ready()
		return
	case EventMessageCreate:
		if s.opts.MessageSink != nil {
			s.opts.MessageSink.PushMessage(s.id, ev.Data.(*Message))
		}
		return
	case EventMembersChunk:
		chunk := ev.Data.(*MembersChunk)
		if chunk.Nonce != "" {
			s.tickets.Trigger(chunk.Nonce, chunk)
		}
	case EventUserUpdate:
		if u := ev.Data.(*User); s.user != nil && u.ID == s.user.ID {
			user := *u
			s.user = &user
		}
	case EventUnknown:
		s.Debug("unhandled dispatch", zap.String("t", p.T))
		return
	}
	if s.opts.EntitySink != nil {
		s.opts.EntitySink.PushEvent(s.id, ev)
	}
}

func (s *Shard) ready() {
	s.setStatus(StatusReady)
	s.drain()
}

// send writes p, or queues it while the session is not ready. Packets
// also queue behind a drain in progress so order is kept.
func (s *Shard) send(p Packet) error {
	if p.Op.bypassesQueue() {
		return s.write(p)
	}
	if s.status != StatusReady || s.draining || s.queue.len() > 0 {
		if err := s.queue.push(p); err != nil {
			return err
		}
		s.opts.Monitor.QueueDepth(s.id, s.queue.len())
		if s.status == StatusReady {
			s.drain()
		}
		return nil
	}
	return s.write(p)
}

func (s *Shard) drain() {
	if s.draining || s.queue.len() == 0 {
		return
	}
	s.draining = true
	s.drainNext()
}

func (s *Shard) drainNext() {
	s.drainTimer = nil
	if s.status != StatusReady {
		s.draining = false
		return
	}
	p, ok := s.queue.peek()
	if !ok {
		s.draining = false
		return
	}
	if err := s.write(p); err != nil {
		switch {
		case errors.Is(err, ErrWriteBufferFull):
			// stays at the head until the writer catches up
			s.Debug("write buffer full, retrying queued packet", zap.String("op", p.Op.String()))
			s.drainTimer = s.after(s.opts.DrainInterval, s.drainNext)
			return
		case errors.Is(err, ErrNotConnected):
			s.draining = false
			return
		}
		s.Warn("send queued packet failed, dropping it", zap.String("op", p.Op.String()), zap.Error(err))
	}
	s.queue.pop()
	s.opts.Monitor.QueueDepth(s.id, s.queue.len())
	if s.queue.len() > 0 {
		s.drainTimer = s.after(s.opts.DrainInterval, s.drainNext)
	} else {
		s.draining = false
	}
}

func (s *Shard) write(p Packet) error {
	a := s.attempt
	if a == nil || a.conn == nil || a.closed {
		return ErrNotConnected
	}
	data, err := a.decoder.Encode(p.wire())
	if err != nil {
		return errors.Wrapf(err, "encode %s", p.Op)
	}
	select {
	case a.out <- data:
	default:
		return ErrWriteBufferFull
	}
	s.OutPackets.Inc()
	s.OutBytes.Add(uint64(len(data)))
	s.opts.Monitor.PacketOut(s.id, p.Op)
	return nil
}

// Send writes a packet to the gateway. Before the session is ready packets
// other than Identify, Resume and Heartbeat are queued and drained in order
// once it is.
func (s *Shard) Send(ctx context.Context, op Opcode, d any) error {
	errC := make(chan error, 1)
	if err := s.call(ctx, func() { errC <- s.send(Packet{Op: op, D: d}) }); err != nil {
		return err
	}
	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrShardStopped
	}
}

// RequestMembers asks the gateway for guild members and waits for the
// chunk answering it.
func (s *Shard) RequestMembers(ctx context.Context, guildID string, q MemberQuery) (*MembersChunk, error) {
	nonce := uuid.NewString()
	d := map[string]any{
		"guild_id": guildID,
		"nonce":    nonce,
	}
	if len(q.UserIDs) > 0 {
		d["user_ids"] = q.UserIDs
	} else {
		limit := q.Limit
		if limit <= 0 {
			limit = s.opts.MemberQueryLimit
		}
		d["query"] = q.Query
		d["limit"] = limit
	}
	if q.Presences {
		d["presences"] = true
	}

	ch, err := s.tickets.Register(nonce)
	if err != nil {
		return nil, err
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, s.opts.MemberRequestTimeout)
	defer cancel()

	if err := s.Send(timeoutCtx, OpRequestGuildMembers, d); err != nil {
		s.tickets.Cancel(nonce)
		return nil, err
	}
	select {
	case chunk := <-ch:
		return chunk, nil
	case <-timeoutCtx.Done():
		s.tickets.Cancel(nonce)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrMemberRequestTimeout
	}
}

func (s *Shard) publish() {
	snap := Session{
		Shard:               s.id,
		ShardCount:          s.count,
		Status:              s.status,
		SessionID:           s.sessionID,
		Latency:             s.latency,
		LastHeartbeatSentAt: s.lastHeartbeatSentAt,
		QueuedPackets:       s.queue.len(),
	}
	if s.hasSeq {
		seq := s.seq
		snap.Sequence = &seq
	}
	if s.user != nil {
		user := *s.user
		snap.User = &user
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// Session returns the state as of the last processed event.
func (s *Shard) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
