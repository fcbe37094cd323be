package ports

import "github.com/aretw0/canopy/pkg/domain"

// Observer receives callbacks from a root workflow for every log line and
// event raised anywhere in its subtree.
//
// Callbacks run synchronously inside the tree's critical section: they must
// not block and must not call mutating workflow methods. A panicking callback
// is isolated and does not prevent delivery to the remaining observers.
type Observer interface {
	OnLog(entry domain.LogEntry)
	OnEvent(event domain.Event)
	OnStateUpdated(node *domain.Node)
	OnTreeChanged(root *domain.Node)
}

// BaseObserver implements Observer with no-ops. Embed it to override only the
// callbacks you need.
type BaseObserver struct{}

func (BaseObserver) OnLog(domain.LogEntry)       {}
func (BaseObserver) OnEvent(domain.Event)        {}
func (BaseObserver) OnStateUpdated(*domain.Node) {}
func (BaseObserver) OnTreeChanged(*domain.Node)  {}
