// Package zlibstream reassembles packets from a zlib-stream transport: one
// deflate stream shared by every frame of a connection, where each logical
// message ends with a sync-flush marker.
package zlibstream

import (
	"bytes"
	"encoding/binary"
)

// endOfStream is the suffix of a Z_SYNC_FLUSH block.
const endOfStream = 0x0000FFFF

// Codec turns one inflated message into a value and back.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}

// Executor runs fn on the goroutine that owns the Decoder. Callbacks from the
// inflater are always delivered through it, in the order they were produced.
type Executor func(fn func())

type Options struct {
	ChunkSize int // inflate output buffer size
}

func NewOptions() *Options {
	return &Options{
		ChunkSize: 128 * 1024,
	}
}

type Option func(*Options)

func WithChunkSize(size int) Option {
	return func(o *Options) {
		o.ChunkSize = size
	}
}

// IsEndOfStream reports whether frame ends with the sync-flush marker.
func IsEndOfStream(frame []byte) bool {
	return len(frame) >= 4 && binary.BigEndian.Uint32(frame[len(frame)-4:]) == endOfStream
}

// Decoder is not safe for concurrent use. Push, Close and every callback run
// on the owner's goroutine via the Executor.
type Decoder struct {
	codec    Codec
	exec     Executor
	in       *inflater
	onPacket func(any)
	onError  func(error)

	chunks   [][]byte // inflated output of the message being flushed
	queue    [][]byte // frames received while a flush is in flight
	flushing bool
	closed   bool
}

func NewDecoder(codec Codec, exec Executor, onPacket func(any), onError func(error), opt ...Option) *Decoder {
	opts := NewOptions()
	for _, o := range opt {
		o(opts)
	}
	d := &Decoder{
		codec:    codec,
		exec:     exec,
		onPacket: onPacket,
		onError:  onError,
	}
	d.in = newInflater(opts.ChunkSize,
		func(chunk []byte) {
			exec(func() { d.appendChunk(chunk) })
		},
		func(err error) {
			exec(func() { d.fail(err) })
		},
	)
	return d
}

// Push accepts one raw transport frame.
func (d *Decoder) Push(frame []byte) {
	if d.closed {
		return
	}
	if d.flushing {
		d.queue = append(d.queue, frame)
		return
	}
	d.in.write(frame)
	if IsEndOfStream(frame) {
		d.flush()
	}
}

func (d *Decoder) flush() {
	d.flushing = true
	d.in.flush(func() {
		d.exec(d.flushed)
	})
}

func (d *Decoder) appendChunk(chunk []byte) {
	if d.closed {
		return
	}
	d.chunks = append(d.chunks, chunk)
}

func (d *Decoder) flushed() {
	if d.closed {
		return
	}
	var buf []byte
	switch len(d.chunks) {
	case 0:
	case 1:
		buf = d.chunks[0]
	default:
		buf = bytes.Join(d.chunks, nil)
	}
	d.chunks = nil
	d.flushing = false

	for len(d.queue) > 0 {
		frame := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.in.write(frame)
		if IsEndOfStream(frame) {
			d.flush()
			break
		}
	}
	if len(d.queue) == 0 {
		d.queue = nil
	}

	if len(buf) == 0 {
		return
	}
	v, err := d.codec.Decode(buf)
	if err != nil {
		d.fail(err)
		return
	}
	d.onPacket(v)
}

func (d *Decoder) fail(err error) {
	if d.closed {
		return
	}
	d.onError(err)
}

// Encode serializes an outbound value. It does not touch the inflate state.
func (d *Decoder) Encode(v any) ([]byte, error) {
	return d.codec.Encode(v)
}

// Flushing reports whether a flush is in flight.
func (d *Decoder) Flushing() bool {
	return d.flushing
}

// Queued returns the number of frames waiting for the current flush.
func (d *Decoder) Queued() int {
	return len(d.queue)
}

// Close stops the inflater. It is idempotent; callbacks that were already
// in flight become no-ops.
func (d *Decoder) Close() {
	if d.closed {
		return
	}
	d.closed = true
	d.chunks = nil
	d.queue = nil
	d.in.close()
}
