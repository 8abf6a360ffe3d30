// Package model defines the data structures shared by the pro-forma
// calculation engine: the container hierarchy, calculation periods, financial
// items, financing facilities, and equity structures.
package model

import (
	"fmt"
	"sort"
)

// ContainerKind identifies a level of the inventory hierarchy.
type ContainerKind string

const (
	KindProject ContainerKind = "project"
	KindArea    ContainerKind = "area"
	KindPhase   ContainerKind = "phase"
	KindParcel  ContainerKind = "parcel"
	KindLot     ContainerKind = "lot"
)

// ContainerID identifies a node in the container tree. IDs are assigned by
// the persistence layer and are unique within a project.
type ContainerID int64

// Container is a node in the hierarchical inventory tree. ParentID is zero
// for the project root.
type Container struct {
	ID       ContainerID
	Kind     ContainerKind
	ParentID ContainerID
	Name     string
	Order    int
}

// ContainerTree is an arena of containers keyed by id with parent pointers.
// Child lists are derived once at construction so bottom-up traversal never
// chases object graphs.
type ContainerTree struct {
	nodes    map[ContainerID]*Container
	children map[ContainerID][]ContainerID
	root     ContainerID
}

// NewContainerTree builds and validates the tree. It requires exactly one
// project-kind root, that every other node has an existing parent, and that
// parent links contain no cycle.
func NewContainerTree(containers []Container) (*ContainerTree, error) {
	t := &ContainerTree{
		nodes:    make(map[ContainerID]*Container, len(containers)),
		children: make(map[ContainerID][]ContainerID),
	}

	for i := range containers {
		c := containers[i]
		if _, exists := t.nodes[c.ID]; exists {
			return nil, fmt.Errorf("duplicate container id %d", c.ID)
		}
		t.nodes[c.ID] = &c
	}

	for _, c := range t.nodes {
		if c.ParentID == 0 {
			if c.Kind != KindProject {
				return nil, fmt.Errorf("container %d has no parent but kind %s; only the project root may be parentless", c.ID, c.Kind)
			}
			if t.root != 0 {
				return nil, fmt.Errorf("multiple project roots: %d and %d", t.root, c.ID)
			}
			t.root = c.ID
			continue
		}
		if _, ok := t.nodes[c.ParentID]; !ok {
			return nil, fmt.Errorf("container %d references missing parent %d", c.ID, c.ParentID)
		}
		t.children[c.ParentID] = append(t.children[c.ParentID], c.ID)
	}
	if t.root == 0 {
		return nil, fmt.Errorf("container tree has no project root")
	}

	// Walking to the root from every node must terminate; a revisit within a
	// single walk means the parent links form a cycle.
	for id := range t.nodes {
		seen := map[ContainerID]bool{}
		for cur := id; cur != 0; cur = t.nodes[cur].ParentID {
			if seen[cur] {
				return nil, fmt.Errorf("container parent links contain a cycle through %d", cur)
			}
			seen[cur] = true
		}
	}

	// Deterministic child ordering: display order, then id.
	for parent := range t.children {
		ids := t.children[parent]
		sort.Slice(ids, func(i, j int) bool {
			a, b := t.nodes[ids[i]], t.nodes[ids[j]]
			if a.Order != b.Order {
				return a.Order < b.Order
			}
			return a.ID < b.ID
		})
		t.children[parent] = ids
	}

	return t, nil
}

// Root returns the project root id.
func (t *ContainerTree) Root() ContainerID { return t.root }

// Node returns the container for the given id, or nil if unknown.
func (t *ContainerTree) Node(id ContainerID) *Container { return t.nodes[id] }

// Children returns the ordered direct children of the given container.
func (t *ContainerTree) Children(id ContainerID) []ContainerID { return t.children[id] }

// Len returns the number of containers in the tree.
func (t *ContainerTree) Len() int { return len(t.nodes) }

// Contains reports whether the id names a container in the tree.
func (t *ContainerTree) Contains(id ContainerID) bool {
	_, ok := t.nodes[id]
	return ok
}

// BottomUpOrder returns every container id such that all children appear
// before their parent. The order is deterministic across calls.
func (t *ContainerTree) BottomUpOrder() []ContainerID {
	order := make([]ContainerID, 0, len(t.nodes))
	var walk func(id ContainerID)
	walk = func(id ContainerID) {
		for _, child := range t.children[id] {
			walk(child)
		}
		order = append(order, id)
	}
	walk(t.root)
	return order
}

// IDs returns all container ids in ascending order.
func (t *ContainerTree) IDs() []ContainerID {
	ids := make([]ContainerID, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
