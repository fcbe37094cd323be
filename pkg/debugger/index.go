package debugger

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// ErrNodeNotFound is returned when an id is not in the index.
var ErrNodeNotFound = errors.New("node not found in index")

// Freshness describes whether the index reflects the tree.
type Freshness string

const (
	Uninitialized Freshness = "uninitialized"
	Consistent    Freshness = "consistent"
)

// Stats counts index maintenance work since the first build.
type Stats struct {
	State    Freshness `json:"state"`
	Size     int       `json:"size"`
	RootID   string    `json:"rootId,omitempty"`
	Builds   int64     `json:"builds"`
	Inserted int64     `json:"inserted"`
	Removed  int64     `json:"removed"`
	Events   int64     `json:"events"`
}

// Index maps node ids to node records across a whole tree for O(1) lookup.
// It subscribes to a root as an Observer and is maintained incrementally:
// attaching a subtree of k nodes costs O(k), detaching O(k), and non-structural
// updates O(1). The map is never cleared and rebuilt on structural events.
type Index struct {
	ports.BaseObserver

	mu    sync.RWMutex
	nodes map[string]*domain.Node
	root  *domain.Node
	state Freshness
	stats Stats

	// guard, when set, serializes reads with mutations of the indexed tree.
	guard func(func())
}

// NewIndex creates an empty, uninitialized index.
func NewIndex() *Index {
	return &Index{
		nodes: make(map[string]*domain.Node),
		state: Uninitialized,
	}
}

// Build indexes the tree rooted at root. It is the Uninitialized → Consistent
// transition; on an already consistent index it is a no-op. It also refuses a
// root that has a parent.
func (x *Index) Build(root *domain.Node) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.buildLocked(root)
}

func (x *Index) buildLocked(root *domain.Node) {
	if x.state == Consistent || root == nil || root.Parent != nil {
		return
	}
	x.root = root
	x.insertSubtree(root)
	x.state = Consistent
	x.stats.Builds++
}

// OnEvent applies structural events incrementally.
func (x *Index) OnEvent(event domain.Event) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.stats.Events++
	if x.state != Consistent {
		// The first OnTreeChanged performs the initial build.
		return
	}

	switch ev := event.(type) {
	case domain.ChildAttached:
		x.insertSubtree(ev.Child)
	case domain.ChildDetached:
		x.removeSubtree(ev.ChildID)
	case domain.TreeUpdated:
		x.root = ev.Root
	}
}

// OnTreeChanged builds an uninitialized index; afterwards the root is already
// tracked through OnEvent. A root that has a parent means the indexed tree was
// attached under another one: no events arrive from then on, so the index
// drops back to Uninitialized and is built again once the tree is detached.
func (x *Index) OnTreeChanged(root *domain.Node) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if root != nil && root.Parent != nil {
		x.nodes = make(map[string]*domain.Node)
		x.root = nil
		x.state = Uninitialized
		return
	}
	if x.state != Consistent {
		x.buildLocked(root)
	}
}

// insertSubtree adds every node under n using an explicit stack.
func (x *Index) insertSubtree(n *domain.Node) {
	if n == nil {
		return
	}
	stack := []*domain.Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x.nodes[cur.ID] = cur
		x.stats.Inserted++
		stack = append(stack, cur.Children...)
	}
}

// removeSubtree resolves id through the index's own reference, collects the
// subtree breadth-first and deletes it in one batch. Unknown ids are ignored.
func (x *Index) removeSubtree(id string) {
	start, ok := x.nodes[id]
	if !ok {
		return
	}
	var doomed []string
	queue := []*domain.Node{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		doomed = append(doomed, cur.ID)
		queue = append(queue, cur.Children...)
	}
	for _, nodeID := range doomed {
		delete(x.nodes, nodeID)
	}
	x.stats.Removed += int64(len(doomed))
}

// Lookup returns the indexed record for id.
func (x *Index) Lookup(id string) (*domain.Node, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n, ok := x.nodes[id]
	return n, ok
}

// Len returns the number of indexed nodes.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.nodes)
}

// Root returns the cached root record.
func (x *Index) Root() *domain.Node {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.root
}

// State returns the freshness of the index.
func (x *Index) State() Freshness {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.state
}

// Stats returns a copy of the maintenance counters.
func (x *Index) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s := x.stats
	s.State = x.state
	s.Size = len(x.nodes)
	if x.root != nil {
		s.RootID = x.root.ID
	}
	return s
}

// Path returns the ids from the root down to id. Parent links are followed
// with a visited set, so a corrupted tree yields an IntegrityError.
func (x *Index) Path(id string) ([]string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	n, ok := x.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	visited := make(map[*domain.Node]struct{})
	var path []string
	for cur := n; cur != nil; cur = cur.Parent {
		if _, seen := visited[cur]; seen {
			return nil, &domain.IntegrityError{Op: "index path", NodeID: cur.ID, Msg: "circular parent-child relationship detected"}
		}
		visited[cur] = struct{}{}
		path = append(path, cur.ID)
	}
	slices.Reverse(path)
	return path, nil
}

// Verify compares the map with a full traversal from the cached root. It is
// O(n) and used by tests and diagnostics only.
func (x *Index) Verify() error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.state != Consistent {
		return fmt.Errorf("index is %s", x.state)
	}
	reachable := 0
	var mismatch error
	x.root.Walk(func(n *domain.Node) bool {
		reachable++
		if got, ok := x.nodes[n.ID]; !ok || got != n {
			mismatch = fmt.Errorf("node %s reachable from root but not indexed", n.Label())
			return false
		}
		return true
	})
	if mismatch != nil {
		return mismatch
	}
	if reachable != len(x.nodes) {
		return fmt.Errorf("index holds %d nodes but %d are reachable from root %s", len(x.nodes), reachable, x.root.Label())
	}
	return nil
}

// Read runs fn under the guard of the indexed tree, if one was installed by
// Attach. Adapters use it to walk records while mutations may be in flight.
func (x *Index) Read(fn func()) {
	x.mu.RLock()
	guard := x.guard
	x.mu.RUnlock()

	if guard == nil {
		fn()
		return
	}
	guard(fn)
}
