package exec

import (
	"sort"

	"github.com/gekko3d/deform/rt/geo"
	"github.com/gekko3d/deform/rt/vex"
)

// Mutation is one attribute write. A range write copies Count elements of
// Value to [Start, Start+Count). An element write (Create set) copies the
// single element of Value to Start, creating the attribute first if the
// geometry does not have it.
type Mutation struct {
	Owner  geo.Owner
	Start  int
	Count  int
	Value  *vex.Value
	Create bool
}

// MutationQueue holds the writes one chunk produced, in issue order.
type MutationQueue struct {
	ChunkID   int
	mutations []Mutation
}

func NewMutationQueue(chunkID int) *MutationQueue {
	return &MutationQueue{ChunkID: chunkID}
}

func (q *MutationQueue) WriteRange(owner geo.Owner, start int, v *vex.Value, n int) {
	q.mutations = append(q.mutations, Mutation{Owner: owner, Start: start, Count: n, Value: v})
}

func (q *MutationQueue) WriteElement(owner geo.Owner, elem int, v vex.Value) {
	q.mutations = append(q.mutations, Mutation{Owner: owner, Start: elem, Count: 1, Value: &v, Create: true})
}

func (q *MutationQueue) Len() int { return len(q.mutations) }

func (q *MutationQueue) Mutations() []Mutation { return q.mutations }

// Apply performs the writes in order and returns how many succeeded.
func (q *MutationQueue) Apply(d *geo.Detail, log Logger) int {
	applied := 0
	for _, m := range q.mutations {
		if m.Create && !ensureAttribute(d, m.Owner, m.Value, log) {
			continue
		}
		if SetTyped(d, m.Owner, m.Value, m.Start, m.Count, log) {
			applied++
		}
	}
	return applied
}

// Merge concatenates queues in ascending chunk ID, whatever order they
// arrive in. Nil queues are skipped.
func Merge(queues []*MutationQueue) *MutationQueue {
	ordered := make([]*MutationQueue, 0, len(queues))
	for _, q := range queues {
		if q != nil {
			ordered = append(ordered, q)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ChunkID < ordered[j].ChunkID })

	merged := &MutationQueue{}
	for _, q := range ordered {
		merged.mutations = append(merged.mutations, q.mutations...)
	}
	return merged
}

// ensureAttribute creates the attribute a program output needs. Float
// kinds become float tuples of their width, integers become int scalars.
func ensureAttribute(d *geo.Detail, owner geo.Owner, v *vex.Value, log Logger) bool {
	if d.FindAttribute(owner, v.Name) != nil {
		return true
	}
	var err error
	if v.Kind == vex.Integer {
		_, err = d.AddIntTuple(owner, v.Name, 1)
	} else {
		_, err = d.AddFloatTuple(owner, v.Name, v.Kind.Width())
	}
	if err != nil {
		warnOnce(log, "cannot create %s attribute %s: %v", owner, v.Name, err)
		return false
	}
	return true
}
