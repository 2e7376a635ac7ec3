package zlibstream

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/oxyl/shardgate/pkg/bytequeue"
)

// inflater runs one zlib stream on its own goroutine. Compressed input is
// appended with write; the goroutine reads from it through a blocking byte
// source, so the flate state survives across frames.
type inflater struct {
	mu      sync.Mutex
	cond    *sync.Cond
	input   *bytequeue.ByteQueue
	closed  bool
	drained func() // flush completion, fired once all written input is consumed

	chunkSize int
	onData    func([]byte)
	onError   func(error)
	done      chan struct{}
}

func newInflater(chunkSize int, onData func([]byte), onError func(error)) *inflater {
	f := &inflater{
		input:     bytequeue.New(),
		chunkSize: chunkSize,
		onData:    onData,
		onError:   onError,
		done:      make(chan struct{}),
	}
	f.cond = sync.NewCond(&f.mu)
	go f.run()
	return f
}

func (f *inflater) run() {
	defer close(f.done)

	zr, err := zlib.NewReader(f)
	if err != nil {
		f.fail(err)
		return
	}
	defer zr.Close()

	buf := make([]byte, f.chunkSize)
	for {
		n, err := zr.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			f.onData(chunk)
		}
		if err != nil {
			f.fail(err)
			return
		}
	}
}

func (f *inflater) fail(err error) {
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		return
	}
	if err == io.EOF {
		// a gateway stream is never finished by the peer
		err = io.ErrUnexpectedEOF
	}
	f.onError(err)
}

func (f *inflater) write(p []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	_, _ = f.input.Write(p)
	f.cond.Signal()
}

// flush arranges for cb to run on the inflater goroutine once every byte
// written so far has been consumed and its output delivered to onData.
func (f *inflater) flush(cb func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.drained = cb
	f.cond.Signal()
}

func (f *inflater) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.drained = nil
	f.input.Reset()
	f.cond.Broadcast()
}

// wait blocks until input is available. Must be called with mu held.
func (f *inflater) wait() bool {
	for {
		if f.closed {
			return false
		}
		if f.input.Len() > 0 {
			return true
		}
		if cb := f.drained; cb != nil {
			f.drained = nil
			f.mu.Unlock()
			cb()
			f.mu.Lock()
			continue
		}
		f.cond.Wait()
	}
}

func (f *inflater) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.wait() {
		return 0, io.EOF
	}
	return f.input.Read(p)
}

func (f *inflater) ReadByte() (byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.wait() {
		return 0, io.EOF
	}
	return f.input.ReadByte()
}
