package workflow

import (
	"cmp"
	"slices"
	"sync"
	"sync/atomic"
)

var lockSeq atomic.Uint64

// treeLock serializes every operation on one tree. seq gives a global
// acquisition order when two trees must be locked together. ids holds every
// workflow of the tree by id and is guarded by mu.
type treeLock struct {
	mu  sync.Mutex
	seq uint64
	ids map[string]*Workflow
}

func newTreeLock() *treeLock {
	return &treeLock{
		seq: lockSeq.Add(1),
		ids: make(map[string]*Workflow),
	}
}

// lockTrees acquires the locks of the trees containing ws. A workflow's lock
// pointer only changes while its current lock is held, so after acquisition
// we re-check every pointer and retry if one moved while we were waiting.
func lockTrees(ws ...*Workflow) (unlock func()) {
	for {
		locks := make([]*treeLock, 0, len(ws))
		for _, w := range ws {
			if l := w.lock.Load(); !slices.Contains(locks, l) {
				locks = append(locks, l)
			}
		}
		slices.SortFunc(locks, func(a, b *treeLock) int { return cmp.Compare(a.seq, b.seq) })
		for _, l := range locks {
			l.mu.Lock()
		}

		release := func() {
			for i := len(locks) - 1; i >= 0; i-- {
				locks[i].mu.Unlock()
			}
		}

		stable := true
		for _, w := range ws {
			if !slices.Contains(locks, w.lock.Load()) {
				stable = false
				break
			}
		}
		if stable {
			return release
		}
		release()
	}
}

// adoptLock points every workflow of the subtree rooted at w at l and moves
// its ids into l's set. The caller holds both the old and the new lock.
func adoptLock(w *Workflow, l *treeLock) {
	stack := []*Workflow{w}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if old := cur.lock.Load(); old != nil && old != l && old.ids[cur.id] == cur {
			delete(old.ids, cur.id)
		}
		l.ids[cur.id] = cur
		cur.lock.Store(l)
		stack = append(stack, cur.children...)
	}
}
