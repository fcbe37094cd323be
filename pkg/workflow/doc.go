/*
Package workflow implements the runtime workflow tree.

A Workflow owns exactly one domain.Node record and keeps it structurally identical
to itself (the mirror invariant): whenever a child is attached or detached, both the
runtime tree and the record tree change inside the same critical section, and a
single event is dispatched to the observers registered on the tree's root.

# Invariants

  - Single parent: a workflow has at most one parent.
  - Mirror: w.Node().Parent == w.Parent().Node() and the children lists match in order.
  - Acyclicity: following parents from any workflow terminates.
  - Ids never change after construction.

Validation runs before any mutation, so a rejected AttachChild or DetachChild leaves
both trees untouched. Traversals (Root, cycle checks) use an explicit visited set and
cost O(depth).

# Concurrency

Every workflow in a tree shares one lock. Mutations and event dispatch hold it for
their whole duration; attaching merges the child's subtree into the parent's lock and
detaching gives the subtree a fresh one. Observer callbacks run under the lock and
must not call mutating methods.
*/
package workflow
