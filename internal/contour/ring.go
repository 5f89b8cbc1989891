package contour

// Node is one element of a circular doubly linked sequence. Next and Prev
// are mutual inverses.
type Node[T any] struct {
	Value T

	next, prev *Node[T]
}

// Next returns the following node.
func (n *Node[T]) Next() *Node[T] { return n.next }

// Prev returns the preceding node.
func (n *Node[T]) Prev() *Node[T] { return n.prev }

// Ring is a circular sequence with a distinguished head. Following Next from
// any node visits every node exactly once before returning to it.
type Ring[T any] struct {
	head *Node[T]
	size int
}

// NewRing links values into a ring in order; the first value is the head.
func NewRing[T any](values []T) *Ring[T] {
	r := &Ring[T]{}
	var last *Node[T]
	for _, v := range values {
		if last == nil {
			r.head = &Node[T]{Value: v}
			r.head.next, r.head.prev = r.head, r.head
			r.size = 1
			last = r.head
			continue
		}
		last = r.InsertAfter(last, v)
	}
	return r
}

// Head returns the first node, or nil for an empty ring.
func (r *Ring[T]) Head() *Node[T] { return r.head }

// Len returns the number of nodes.
func (r *Ring[T]) Len() int { return r.size }

// InsertAfter links a new node holding v right after n and returns it.
func (r *Ring[T]) InsertAfter(n *Node[T], v T) *Node[T] {
	node := &Node[T]{Value: v, prev: n, next: n.next}
	n.next.prev = node
	n.next = node
	r.size++
	return node
}

// Remove unlinks n. Removing the head moves the head to its successor.
func (r *Ring[T]) Remove(n *Node[T]) {
	if r.size == 1 {
		r.head = nil
		r.size = 0
		return
	}
	if n == r.head {
		r.head = n.next
	}
	n.prev.next = n.next
	n.next.prev = n.prev
	n.next, n.prev = nil, nil
	r.size--
}

// Do calls fn on every node starting at the head.
func (r *Ring[T]) Do(fn func(*Node[T])) {
	if r.head == nil {
		return
	}
	n := r.head
	for i := 0; i < r.size; i++ {
		next := n.next
		fn(n)
		n = next
	}
}

// Values returns the node values starting at the head.
func (r *Ring[T]) Values() []T {
	out := make([]T, 0, r.size)
	r.Do(func(n *Node[T]) { out = append(out, n.Value) })
	return out
}
