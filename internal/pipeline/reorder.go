package pipeline

import (
	"context"
	"sync"
)

// slot is one reassembled chunk awaiting emission in index order.
type slot struct {
	data         []byte
	plaintextLen int64
}

// reorderBuffer holds out-of-order-completed chunks keyed by index until
// they can be emitted in strict order. Analogous to spec.md §3's "reorder
// slot" entity.
type reorderBuffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	slots    map[uint64]slot
	nextEmit uint64
	closed   bool
	total    uint64
	err      error
}

func newReorderBuffer(ctx context.Context) *reorderBuffer {
	r := &reorderBuffer{slots: make(map[uint64]slot)}
	r.cond = sync.NewCond(&r.mu)
	go func() {
		<-ctx.Done()
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
	}()
	return r
}

// put stores a completed chunk for idx, waking any waiting emitter.
func (r *reorderBuffer) put(idx uint64, s slot) {
	r.mu.Lock()
	r.slots[idx] = s
	r.cond.Broadcast()
	r.mu.Unlock()
}

// setErr records the first fatal error and wakes any waiter.
func (r *reorderBuffer) setErr(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	if r.err == nil {
		r.err = err
	}
	r.cond.Broadcast()
	r.mu.Unlock()
}

// close tells the buffer that exactly total chunks will ever be put,
// allowing the emitter to recognize completion once nextEmit reaches it.
func (r *reorderBuffer) close(total uint64) {
	r.mu.Lock()
	r.closed = true
	r.total = total
	r.cond.Broadcast()
	r.mu.Unlock()
}

// next blocks until the slot at nextEmit is ready, the pipeline is
// complete (ok=false, err=nil), or a fatal error/cancellation occurred.
func (r *reorderBuffer) next(ctx context.Context) (s slot, idx uint64, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if r.err != nil {
			return slot{}, 0, false, r.err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return slot{}, 0, false, ctxErr
		}
		if r.closed && r.nextEmit >= r.total {
			return slot{}, 0, false, nil
		}
		if s, found := r.slots[r.nextEmit]; found {
			idx = r.nextEmit
			delete(r.slots, idx)
			r.nextEmit++
			return s, idx, true, nil
		}
		r.cond.Wait()
	}
}
