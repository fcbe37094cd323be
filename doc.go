/*
Package canopy keeps hierarchical workflow trees consistent and observable.

A workflow tree exists twice: as runtime entities (workflow.Workflow) and as
plain node records (domain.Node) that observers and debuggers read. Canopy
keeps both representations in lockstep and rejects every mutation that would
break the tree shape.

# Concept

Every mutation goes through AttachChild or DetachChild on a workflow. Each
precondition is validated before anything changes, so a rejected call leaves
both trees exactly as they were:

  - Duplicate attachment: the child is already attached to this parent.
  - Parent conflict: the child belongs to another parent and must be detached first.
  - Circular reference: the child is the parent itself or one of its ancestors.

Accepted mutations emit exactly one event on the root's observers. Observers
are registered on roots only, and a panicking observer never affects the
others or the caller.

# Debugging

The debugger package keeps an id → node index that is updated incrementally
from events. Attach wires that index together with metrics, live event
streams and an optional event trail:

	root, _ := workflow.New("pipeline")
	build, _ := workflow.New("build", workflow.WithParent(root))

	dbg, err := canopy.Attach(root, canopy.WithTrailSink(memory.NewTrailStore(0)))
	if err != nil {
		log.Fatal(err)
	}
	go dbg.Run(ctx)

	node, _ := dbg.Index.Lookup(build.ID())

# Adapters

The tree can be inspected over HTTP (pkg/adapters/http), through MCP tools
(pkg/adapters/mcp) or from the canopy CLI, which replays scenario files.
*/
package canopy
