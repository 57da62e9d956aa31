// Package questtree implements pure operations over the nested quest
// forest. Every mutating function returns a new slice and copies only the
// path from the roots down to the affected node; sibling subtrees keep
// their identity so callers can cheaply diff or cache them.
package questtree

import "time"

// Quest is one node of a storyline's forest. A quest appears in exactly one
// place: parent references strictly decrease depth, so no cycles.
type Quest struct {
	ID        int64
	Title     string
	Completed bool
	ParentID  *int64
	Position  int
	CreatedAt time.Time
	Subquests []*Quest
}

// Patch carries the fields Update may rewrite. Nil fields are untouched.
type Patch struct {
	Title     *string
	Completed *bool
}

// Find returns the quest with the given id, searching depth-first, or nil.
func Find(forest []*Quest, id int64) *Quest {
	for _, q := range forest {
		if q.ID == id {
			return q
		}
		if sub := Find(q.Subquests, id); sub != nil {
			return sub
		}
	}
	return nil
}

// Insert appends q to the subquests of parentID, or to the root level when
// parentID is nil. When no node with parentID exists the input is returned
// unchanged and ok is false; callers must treat that as a logic error
// rather than swallow it.
func Insert(forest []*Quest, q *Quest, parentID *int64) ([]*Quest, bool) {
	if parentID == nil {
		out := make([]*Quest, 0, len(forest)+1)
		out = append(out, forest...)
		return append(out, q), true
	}

	for i, node := range forest {
		if node.ID == *parentID {
			copied := *node
			copied.Subquests = append(append([]*Quest{}, node.Subquests...), q)
			return replaceAt(forest, i, &copied), true
		}
		if sub, ok := Insert(node.Subquests, q, parentID); ok {
			copied := *node
			copied.Subquests = sub
			return replaceAt(forest, i, &copied), true
		}
	}
	return forest, false
}

// Update rewrites the single node with the given id, applying the non-nil
// patch fields. Branches that do not contain the node are returned by
// identity. ok reports whether the node was found.
func Update(forest []*Quest, id int64, patch Patch) ([]*Quest, bool) {
	for i, node := range forest {
		if node.ID == id {
			copied := *node
			if patch.Title != nil {
				copied.Title = *patch.Title
			}
			if patch.Completed != nil {
				copied.Completed = *patch.Completed
			}
			return replaceAt(forest, i, &copied), true
		}
		if sub, ok := Update(node.Subquests, id, patch); ok {
			copied := *node
			copied.Subquests = sub
			return replaceAt(forest, i, &copied), true
		}
	}
	return forest, false
}

// Rewrite replaces the node with the given id by fn's result, copying only
// the path down to it. fn receives a copy, so it can change any field
// including the id; Update is the patch-shaped special case of this.
func Rewrite(forest []*Quest, id int64, fn func(Quest) Quest) ([]*Quest, bool) {
	for i, node := range forest {
		if node.ID == id {
			copied := fn(*node)
			return replaceAt(forest, i, &copied), true
		}
		if sub, ok := Rewrite(node.Subquests, id, fn); ok {
			copied := *node
			copied.Subquests = sub
			return replaceAt(forest, i, &copied), true
		}
	}
	return forest, false
}

// Remove filters out the node with the given id from whichever level it
// lives at. The whole subtree below it disappears with it.
func Remove(forest []*Quest, id int64) ([]*Quest, bool) {
	for i, node := range forest {
		if node.ID == id {
			out := make([]*Quest, 0, len(forest)-1)
			out = append(out, forest[:i]...)
			return append(out, forest[i+1:]...), true
		}
		if sub, ok := Remove(node.Subquests, id); ok {
			copied := *node
			copied.Subquests = sub
			return replaceAt(forest, i, &copied), true
		}
	}
	return forest, false
}

// ReorderRoots rebuilds the root-level sequence to match orderedIDs and
// reassigns each root's Position to its new index. Reordering is defined at
// the root level only; nested quests keep their order. Ids missing from the
// forest are skipped, roots missing from orderedIDs keep their relative
// order after the reordered ones.
func ReorderRoots(forest []*Quest, orderedIDs []int64) []*Quest {
	byID := make(map[int64]*Quest, len(forest))
	for _, q := range forest {
		byID[q.ID] = q
	}

	out := make([]*Quest, 0, len(forest))
	seen := make(map[int64]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if q, ok := byID[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, q)
		}
	}
	for _, q := range forest {
		if !seen[q.ID] {
			out = append(out, q)
		}
	}

	for i, q := range out {
		if q.Position != i {
			copied := *q
			copied.Position = i
			out[i] = &copied
		}
	}
	return out
}

// Count returns the total number of nodes in the forest.
func Count(forest []*Quest) int {
	n := 0
	for _, q := range forest {
		n += 1 + Count(q.Subquests)
	}
	return n
}

// IDs returns every id in the forest in depth-first order.
func IDs(forest []*Quest) []int64 {
	var out []int64
	var walk func([]*Quest)
	walk = func(qs []*Quest) {
		for _, q := range qs {
			out = append(out, q.ID)
			walk(q.Subquests)
		}
	}
	walk(forest)
	return out
}

// Walk visits every node depth-first until fn returns false.
func Walk(forest []*Quest, fn func(*Quest) bool) {
	var walk func([]*Quest) bool
	walk = func(qs []*Quest) bool {
		for _, q := range qs {
			if !fn(q) {
				return false
			}
			if !walk(q.Subquests) {
				return false
			}
		}
		return true
	}
	walk(forest)
}

func replaceAt(forest []*Quest, i int, q *Quest) []*Quest {
	out := make([]*Quest, len(forest))
	copy(out, forest)
	out[i] = q
	return out
}
