/*
Package debugger maintains an incremental id → node index over a workflow tree.

The Index subscribes to a root workflow as an observer and updates itself from the
event stream instead of rebuilding: childAttached inserts the attached subtree,
childDetached removes the detached subtree resolved through the index's own stored
reference, and treeUpdated only refreshes the cached root. All walks use explicit
worklists so deep trees cannot overflow the stack.

	idx, root, err := debugger.Attach(wf)
	node, ok := idx.Lookup(id)
*/
package debugger
