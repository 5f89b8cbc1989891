// Package lineage tracks objects across frames and divisions and projects
// spine coordinates along the resulting lineage.
package lineage

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"cell-spine/internal/spine"
)

var (
	// ErrUnknownObject is returned for an ID that was never added.
	ErrUnknownObject = errors.New("unknown object")
	// ErrAlreadyLinked is returned when a child already has a parent.
	ErrAlreadyLinked = errors.New("object already has a parent")
	// ErrTooManyChildren is returned when a parent already has two children.
	ErrTooManyChildren = errors.New("object already has two children")
	// ErrFrameOrder is returned when a link does not go forward in time.
	ErrFrameOrder = errors.New("child frame must follow parent frame")
)

// Object is one tracked object in one frame.
type Object struct {
	ID     uuid.UUID
	Frame  int
	Label  int
	Result *spine.Result
}

// Lineage is the parent/child graph of tracked objects. A parent with two
// children divided; a parent with one child continues in the next frame.
// It is not safe for concurrent mutation.
type Lineage struct {
	objects  map[uuid.UUID]*Object
	parent   map[uuid.UUID]uuid.UUID
	children map[uuid.UUID][]uuid.UUID
}

// New returns an empty lineage.
func New() *Lineage {
	return &Lineage{
		objects:  make(map[uuid.UUID]*Object),
		parent:   make(map[uuid.UUID]uuid.UUID),
		children: make(map[uuid.UUID][]uuid.UUID),
	}
}

// Add registers an object with a fresh ID.
func (l *Lineage) Add(frame, label int, res *spine.Result) *Object {
	o := &Object{ID: uuid.New(), Frame: frame, Label: label, Result: res}
	l.objects[o.ID] = o
	return o
}

// Object looks up an object by ID.
func (l *Lineage) Object(id uuid.UUID) (*Object, bool) {
	o, ok := l.objects[id]
	return o, ok
}

// Objects returns all objects ordered by frame, then label.
func (l *Lineage) Objects() []*Object {
	out := make([]*Object, 0, len(l.objects))
	for _, o := range l.objects {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Frame != out[j].Frame {
			return out[i].Frame < out[j].Frame
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Link records child as a successor of parent.
func (l *Lineage) Link(parent, child uuid.UUID) error {
	p, ok := l.objects[parent]
	if !ok {
		return fmt.Errorf("%w: parent %s", ErrUnknownObject, parent)
	}
	c, ok := l.objects[child]
	if !ok {
		return fmt.Errorf("%w: child %s", ErrUnknownObject, child)
	}
	if c.Frame <= p.Frame {
		return fmt.Errorf("%w: %d -> %d", ErrFrameOrder, p.Frame, c.Frame)
	}
	if _, linked := l.parent[child]; linked {
		return fmt.Errorf("%w: %s", ErrAlreadyLinked, child)
	}
	if len(l.children[parent]) >= 2 {
		return fmt.Errorf("%w: %s", ErrTooManyChildren, parent)
	}
	l.parent[child] = parent
	l.children[parent] = append(l.children[parent], child)
	return nil
}

// Parent returns the predecessor of id.
func (l *Lineage) Parent(id uuid.UUID) (uuid.UUID, bool) {
	p, ok := l.parent[id]
	return p, ok
}

// Children returns the successors of id in link order.
func (l *Lineage) Children(id uuid.UUID) []uuid.UUID {
	return append([]uuid.UUID(nil), l.children[id]...)
}

// Divided reports whether id has two children.
func (l *Lineage) Divided(id uuid.UUID) bool {
	return len(l.children[id]) == 2
}

// Sibling returns the other daughter of id's parent.
func (l *Lineage) Sibling(id uuid.UUID) (uuid.UUID, bool) {
	p, ok := l.parent[id]
	if !ok {
		return uuid.Nil, false
	}
	for _, c := range l.children[p] {
		if c != id {
			return c, true
		}
	}
	return uuid.Nil, false
}

// Ancestors returns id's predecessors, nearest first, at most limit of them
// (all when limit <= 0).
func (l *Lineage) Ancestors(id uuid.UUID, limit int) []uuid.UUID {
	var out []uuid.UUID
	for cur, ok := l.parent[id]; ok; cur, ok = l.parent[cur] {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, cur)
	}
	return out
}

// Path returns the chain of objects leading from one object to another
// through their closest common ancestor, both ends included.
func (l *Lineage) Path(from, to uuid.UUID) ([]uuid.UUID, bool) {
	if _, ok := l.objects[from]; !ok {
		return nil, false
	}
	if _, ok := l.objects[to]; !ok {
		return nil, false
	}

	up := append([]uuid.UUID{from}, l.Ancestors(from, 0)...)
	index := make(map[uuid.UUID]int, len(up))
	for i, id := range up {
		index[id] = i
	}

	var down []uuid.UUID
	for cur := to; ; {
		if i, ok := index[cur]; ok {
			path := append([]uuid.UUID(nil), up[:i+1]...)
			for j := len(down) - 1; j >= 0; j-- {
				path = append(path, down[j])
			}
			return path, true
		}
		down = append(down, cur)
		p, ok := l.parent[cur]
		if !ok {
			return nil, false
		}
		cur = p
	}
}

// Localizers maps objects to the localizer of their spine. It is filled
// once and read-only afterwards.
type Localizers map[uuid.UUID]*spine.Localizer

// BuildLocalizers wraps the spine of every object that has one, building
// the localizers concurrently.
func BuildLocalizers(objects []*Object) Localizers {
	locs := make([]*spine.Localizer, len(objects))
	var wg sync.WaitGroup

	for i := range objects {
		if objects[i].Result == nil {
			continue
		}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			locs[idx] = spine.NewLocalizer(objects[idx].Result.Spine)
		}(i)
	}

	wg.Wait()
	out := make(Localizers, len(objects))
	for i, loc := range locs {
		if loc != nil {
			out[objects[i].ID] = loc
		}
	}
	return out
}
