package spanning

import (
	"code.hybscloud.com/atomix"
)

// A Forest is a concurrent union-find over compacted node indices.
//
// Roots only ever move towards smaller indices, so the compare-and-swap
// in Merge can never create a cycle. Path compression stores are racy
// but always replace a parent with one of its ancestors, which keeps
// every chain valid.
type Forest struct {
	parent []atomix.Int64
	marked []atomix.Int32
}

// NewForest returns a forest of n singleton components.
func NewForest(n int) *Forest {
	f := &Forest{
		parent: make([]atomix.Int64, n),
		marked: make([]atomix.Int32, n),
	}
	for i := range f.parent {
		f.parent[i].Store(int64(i))
	}
	return f
}

// Len returns the number of nodes.
func (f *Forest) Len() int { return len(f.parent) }

// Find returns the component root of x, compressing the path behind it.
func (f *Forest) Find(x int32) int32 {
	root := x
	for {
		p := int32(f.parent[root].Load())
		if p == root {
			break
		}
		root = p
	}
	for x != root {
		p := int32(f.parent[x].Load())
		f.parent[x].Store(int64(root))
		x = p
	}
	return root
}

// Merge unites the components of a and b, reporting whether they were
// distinct. The larger root is attached under the smaller.
func (f *Forest) Merge(a, b int32) bool {
	for {
		ra, rb := f.Find(a), f.Find(b)
		if ra == rb {
			return false
		}
		if ra < rb {
			ra, rb = rb, ra
		}
		if f.parent[ra].CompareAndSwapAcqRel(int64(ra), int64(rb)) {
			return true
		}
	}
}

// claim marks node as belonging to the tree rooted at root, reporting
// whether the caller was first. Demo uses it to visit each node exactly
// once; a claimed node's parent link points directly at root, and the
// tree edges themselves are recorded by the caller.
func (f *Forest) claim(node, root int32) bool {
	if !f.marked[node].CompareAndSwapAcqRel(0, 1) {
		return false
	}
	f.parent[node].Store(int64(root))
	return true
}
