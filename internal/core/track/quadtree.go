package track

const (
	quadCapacity = 8
	quadMaxDepth = 6
)

// rect is an axis-aligned rectangle on the XZ plane.
type rect struct {
	X0, Z0 float64
	X1, Z1 float64
}

func (r rect) intersects(o rect) bool {
	return r.X0 <= o.X1 && r.X1 >= o.X0 && r.Z0 <= o.Z1 && r.Z1 >= o.Z0
}

func (r rect) contains(o rect) bool {
	return o.X0 >= r.X0 && o.X1 <= r.X1 && o.Z0 >= r.Z0 && o.Z1 <= r.Z1
}

func (r rect) grow(d float64) rect {
	return rect{X0: r.X0 - d, Z0: r.Z0 - d, X1: r.X1 + d, Z1: r.Z1 + d}
}

func rectAround(x0, z0, x1, z1 float64) rect {
	return rect{X0: min(x0, x1), Z0: min(z0, z1), X1: max(x0, x1), Z1: max(z0, z1)}
}

type quadItem struct {
	id     int
	bounds rect
}

// quadNode indexes segment ids by bounding box. Built once, read-only after.
type quadNode struct {
	bounds rect
	depth  int
	items  []quadItem
	child  [4]*quadNode
}

func newQuadNode(bounds rect, depth int) *quadNode {
	return &quadNode{
		bounds: bounds,
		depth:  depth,
		items:  make([]quadItem, 0, quadCapacity),
	}
}

func (n *quadNode) insert(id int, bounds rect) {
	if n.child[0] != nil {
		if c := n.childThatContains(bounds); c != nil {
			c.insert(id, bounds)
			return
		}
	}

	n.items = append(n.items, quadItem{id: id, bounds: bounds})

	if len(n.items) > quadCapacity && n.depth < quadMaxDepth {
		n.subdivide()
		kept := n.items[:0]
		for _, it := range n.items {
			if c := n.childThatContains(it.bounds); c != nil {
				c.insert(it.id, it.bounds)
			} else {
				kept = append(kept, it)
			}
		}
		n.items = kept
	}
}

// query appends the ids whose bounds touch r.
func (n *quadNode) query(r rect, out []int) []int {
	if !n.bounds.intersects(r) {
		return out
	}
	for _, it := range n.items {
		if it.bounds.intersects(r) {
			out = append(out, it.id)
		}
	}
	if n.child[0] == nil {
		return out
	}
	for _, c := range n.child {
		out = c.query(r, out)
	}
	return out
}

func (n *quadNode) subdivide() {
	if n.child[0] != nil {
		return
	}
	mx := (n.bounds.X0 + n.bounds.X1) * 0.5
	mz := (n.bounds.Z0 + n.bounds.Z1) * 0.5
	n.child[0] = newQuadNode(rect{X0: n.bounds.X0, Z0: n.bounds.Z0, X1: mx, Z1: mz}, n.depth+1)
	n.child[1] = newQuadNode(rect{X0: mx, Z0: n.bounds.Z0, X1: n.bounds.X1, Z1: mz}, n.depth+1)
	n.child[2] = newQuadNode(rect{X0: n.bounds.X0, Z0: mz, X1: mx, Z1: n.bounds.Z1}, n.depth+1)
	n.child[3] = newQuadNode(rect{X0: mx, Z0: mz, X1: n.bounds.X1, Z1: n.bounds.Z1}, n.depth+1)
}

func (n *quadNode) childThatContains(b rect) *quadNode {
	for _, c := range n.child {
		if c != nil && c.bounds.contains(b) {
			return c
		}
	}
	return nil
}
