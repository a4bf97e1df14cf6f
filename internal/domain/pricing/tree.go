package pricing

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Tree is an immutable snapshot of the venture forest. Nodes are stored in
// pre-order so every subtree is a contiguous slice of the arena: node i owns
// the positions [i, last[i]].
type Tree struct {
	nodes  []*Venture
	parent []int
	depth  []int
	last   []int
	index  map[uuid.UUID]int
}

// NewTree builds a tree from a flat list of ventures. Siblings are ordered by
// name, then by venture ID. It fails with ErrDanglingParent when a parent is
// missing and ErrCycle when a venture cannot be reached from any root.
func NewTree(ventures []*Venture) (*Tree, error) {
	byID := make(map[uuid.UUID]*Venture, len(ventures))
	for _, v := range ventures {
		if _, dup := byID[v.ID]; dup {
			return nil, fmt.Errorf("duplicate venture %s", v.ID)
		}
		byID[v.ID] = v
	}

	children := make(map[uuid.UUID][]*Venture, len(ventures))
	var roots []*Venture
	for _, v := range ventures {
		if v.ParentID == nil {
			roots = append(roots, v)
			continue
		}
		if _, ok := byID[*v.ParentID]; !ok {
			return nil, fmt.Errorf("venture %d: %w", v.VentureID, ErrDanglingParent)
		}
		children[*v.ParentID] = append(children[*v.ParentID], v)
	}

	t := &Tree{
		nodes:  make([]*Venture, 0, len(ventures)),
		parent: make([]int, 0, len(ventures)),
		depth:  make([]int, 0, len(ventures)),
		last:   make([]int, 0, len(ventures)),
		index:  make(map[uuid.UUID]int, len(ventures)),
	}

	type frame struct {
		v      *Venture
		parent int
		depth  int
	}
	sortSiblings(roots)
	stack := make([]frame, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{v: roots[i], parent: -1})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		pos := len(t.nodes)
		t.index[f.v.ID] = pos
		t.nodes = append(t.nodes, f.v)
		t.parent = append(t.parent, f.parent)
		t.depth = append(t.depth, f.depth)
		t.last = append(t.last, pos)

		kids := children[f.v.ID]
		sortSiblings(kids)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, frame{v: kids[i], parent: pos, depth: f.depth + 1})
		}
	}

	if len(t.nodes) != len(ventures) {
		for _, v := range ventures {
			if _, ok := t.index[v.ID]; !ok {
				return nil, fmt.Errorf("venture %d: %w", v.VentureID, ErrCycle)
			}
		}
	}

	// Walk backwards so children close before their parents.
	for i := len(t.nodes) - 1; i >= 0; i-- {
		if p := t.parent[i]; p >= 0 && t.last[i] > t.last[p] {
			t.last[p] = t.last[i]
		}
	}
	return t, nil
}

func sortSiblings(vs []*Venture) {
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].Name != vs[j].Name {
			return vs[i].Name < vs[j].Name
		}
		return vs[i].VentureID < vs[j].VentureID
	})
}

// Len returns the number of ventures in the tree
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Get returns the venture with the given ID
func (t *Tree) Get(id uuid.UUID) (*Venture, bool) {
	i, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return t.nodes[i], true
}

// Closure returns id followed by all of its descendants in pre-order.
// An unknown id yields nil.
func (t *Tree) Closure(id uuid.UUID) []uuid.UUID {
	i, ok := t.index[id]
	if !ok {
		return nil
	}
	ids := make([]uuid.UUID, 0, t.last[i]-i+1)
	for _, v := range t.nodes[i : t.last[i]+1] {
		ids = append(ids, v.ID)
	}
	return ids
}

// Contains reports whether node is ancestor itself or one of its descendants
func (t *Tree) Contains(ancestor, node uuid.UUID) bool {
	a, ok := t.index[ancestor]
	if !ok {
		return false
	}
	n, ok := t.index[node]
	if !ok {
		return false
	}
	return a <= n && n <= t.last[a]
}

// Depth returns the distance from the venture to its root
func (t *Tree) Depth(id uuid.UUID) int {
	if i, ok := t.index[id]; ok {
		return t.depth[i]
	}
	return -1
}

// Walk visits every venture in pre-order along with its depth
func (t *Tree) Walk(fn func(v *Venture, depth int)) {
	for i, v := range t.nodes {
		fn(v, t.depth[i])
	}
}
