package wait

import (
	"errors"
	"hash/crc32"
	"sync"
)

const (
	defaultListElementLength = 64
)

var ErrDuplicateID = errors.New("wait: duplicate id")

// Wait hands out single-use tickets keyed by id.
type Wait[T any] interface {
	// Register returns a chan that receives the value passed to the first
	// Trigger with the same id.
	Register(id string) (<-chan T, error)
	// Trigger resolves the ticket for id. It reports whether one was waiting.
	Trigger(id string, x T) bool
	// Cancel forgets the ticket without resolving it.
	Cancel(id string)
	IsRegistered(id string) bool
	Len() int
}

type listElement[T any] struct {
	l sync.RWMutex
	m map[string]chan T
}

type list[T any] struct {
	e []listElement[T]
}

// New creates a Wait.
func New[T any]() Wait[T] {
	res := list[T]{
		e: make([]listElement[T], defaultListElementLength),
	}
	for i := 0; i < len(res.e); i++ {
		res.e[i].m = make(map[string]chan T)
	}
	return &res
}

func (w *list[T]) Register(id string) (<-chan T, error) {
	idx := w.strToNum(id)
	newCh := make(chan T, 1)
	w.e[idx].l.Lock()
	defer w.e[idx].l.Unlock()
	if _, ok := w.e[idx].m[id]; ok {
		return nil, ErrDuplicateID
	}
	w.e[idx].m[id] = newCh
	return newCh, nil
}

func (w *list[T]) Trigger(id string, x T) bool {
	idx := w.strToNum(id)
	w.e[idx].l.Lock()
	ch := w.e[idx].m[id]
	delete(w.e[idx].m, id)
	w.e[idx].l.Unlock()
	if ch == nil {
		return false
	}
	ch <- x
	close(ch)
	return true
}

func (w *list[T]) Cancel(id string) {
	idx := w.strToNum(id)
	w.e[idx].l.Lock()
	delete(w.e[idx].m, id)
	w.e[idx].l.Unlock()
}

func (w *list[T]) IsRegistered(id string) bool {
	idx := w.strToNum(id)
	w.e[idx].l.RLock()
	defer w.e[idx].l.RUnlock()
	_, ok := w.e[idx].m[id]
	return ok
}

func (w *list[T]) Len() int {
	n := 0
	for i := range w.e {
		w.e[i].l.RLock()
		n += len(w.e[i].m)
		w.e[i].l.RUnlock()
	}
	return n
}

func (w *list[T]) strToNum(id string) uint32 {
	return crc32.ChecksumIEEE([]byte(id)) % defaultListElementLength
}
