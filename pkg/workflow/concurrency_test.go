package workflow_test

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentReparenting(t *testing.T) {
	const (
		parents = 4
		kids    = 16
		rounds  = 200
	)

	ps := make([]*workflow.Workflow, parents)
	for i := range ps {
		ps[i] = newWorkflow(t, fmt.Sprintf("p%d", i))
	}
	cs := make([]*workflow.Workflow, kids)
	for i := range cs {
		cs[i] = newWorkflow(t, fmt.Sprintf("c%d", i))
	}

	var wg sync.WaitGroup
	for g := 0; g < kids; g++ {
		wg.Add(1)
		go func(c *workflow.Workflow, g int) {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				p := ps[(g+i)%parents]
				if err := p.AttachChild(c); err != nil {
					continue
				}
				_ = c.Log(slog.LevelDebug, "hop", "round", i)
				_ = c.EmitEvent(domain.NewStepStart(c.Node(), "hop"))
				_ = p.DetachChild(c)
			}
		}(cs[g], g)
	}
	wg.Wait()

	for _, p := range ps {
		assert.NoError(t, p.Verify())
	}
	for _, c := range cs {
		root, err := c.Root()
		require.NoError(t, err)
		assert.NoError(t, root.Verify())
	}
}

func TestConcurrentNestedAttach(t *testing.T) {
	rec := &recorder{}
	root := newWorkflow(t, "root", workflow.WithObservers(rec))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			parent, err := workflow.New(fmt.Sprintf("branch%d", g), workflow.WithID(fmt.Sprintf("branch%d", g)))
			if err != nil {
				return
			}
			for i := 0; i < 10; i++ {
				_, _ = workflow.New("leaf", workflow.WithID(fmt.Sprintf("leaf%d-%d", g, i)), workflow.WithParent(parent))
			}
			_ = root.AttachChild(parent)
		}(g)
	}
	wg.Wait()

	assert.NoError(t, root.Verify())
	assert.Equal(t, 1+8*11, root.Node().Size())
	assert.Len(t, rec.kinds(), 8)
}
