package k8s

// Table groups resources by kind. Kinds keep first-seen order and each
// bucket keeps insertion order.
type Table struct {
	kinds   []string
	buckets map[string][]*Resource
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{buckets: map[string][]*Resource{}}
}

// Add appends r to the bucket of its kind.
func (t *Table) Add(r *Resource) {
	kind := r.Kind()
	if _, ok := t.buckets[kind]; !ok {
		t.kinds = append(t.kinds, kind)
	}

	t.buckets[kind] = append(t.buckets[kind], r)
}

// Kinds returns the kinds in first-seen order.
func (t *Table) Kinds() []string {
	out := make([]string, len(t.kinds))
	copy(out, t.kinds)

	return out
}

// Get returns the bucket of kind.
func (t *Table) Get(kind string) []*Resource {
	return t.buckets[kind]
}

// All returns every resource, kind by kind.
func (t *Table) All() []*Resource {
	var out []*Resource

	for _, k := range t.kinds {
		out = append(out, t.buckets[k]...)
	}

	return out
}

// Len returns the total number of resources.
func (t *Table) Len() int {
	n := 0
	for _, b := range t.buckets {
		n += len(b)
	}

	return n
}

// Counts returns the number of resources per kind.
func (t *Table) Counts() map[string]int {
	out := make(map[string]int, len(t.buckets))
	for k, b := range t.buckets {
		out[k] = len(b)
	}

	return out
}

// DeepCopy returns a Table with independent copies of every resource.
func (t *Table) DeepCopy() *Table {
	c := NewTable()
	for _, r := range t.All() {
		c.Add(r.DeepCopy())
	}

	return c
}
