// Package queststore owns the in-memory storyline forests and drives their
// synchronization with the remote store. Every mutation follows the same
// discipline: apply the change locally through the questtree codec first,
// then fire the remote request and reconcile its result. Remote failures
// are logged and the optimistic local state is left standing; there is no
// compensating rollback in this baseline.
package queststore

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"

	"questline/database/models"
	"questline/database/repositories"
	"questline/progression"
	"questline/questtree"
)

const forestCacheSize = 32

// Storyline is the in-memory view of one storyline and its quest forest.
// Callers receive it as a read-only snapshot; nodes are shared
// copy-on-write structures and must not be mutated outside the store.
type Storyline struct {
	ID        int64
	Title     string
	CreatedAt time.Time
	Quests    []*questtree.Quest
}

// RemoteStore is the persistence contract the store drives. The concrete
// implementation is interchangeable; the bun/Postgres adapter in
// database/repositories is the production one.
type RemoteStore interface {
	CreateStoryline(ctx context.Context, storyline *models.Storyline) (*models.Storyline, error)
	DeleteStoryline(ctx context.Context, id int64) error
	ListStorylines(ctx context.Context, userID string) ([]*models.Storyline, error)

	CreateQuest(ctx context.Context, quest *models.Quest) (*models.Quest, error)
	UpdateQuest(ctx context.Context, id int64, patch models.QuestPatch) error
	DeleteQuest(ctx context.Context, id int64) error
	BulkReposition(ctx context.Context, storylineID int64, positions []models.QuestPosition) error
	ListQuests(ctx context.Context, storylineID int64) ([]*models.Quest, error)
}

// Progression receives the XP signals quest completion emits.
type Progression interface {
	AddXP(ctx context.Context, delta int64) *progression.Result
}

type Store struct {
	userID      string
	remote      RemoteStore
	progression Progression
	questXP     int64
	undo        *UndoStack

	// dispatch runs outbound remote calls; the default detaches them on
	// their own goroutine, mirroring the unqueued fire-and-forget model.
	dispatch func(fn func())

	mu      sync.Mutex
	metas   map[int64]*models.Storyline
	forests *lru.Cache // storylineID -> []*questtree.Quest, clean forests only
	// pinned holds forests that still contain placeholder nodes. They are
	// exempt from LRU eviction; losing one would lose optimistic state the
	// remote store has not confirmed yet.
	pinned map[int64][]*questtree.Quest
	// pending queues remote operations keyed by the placeholder id they
	// wait on. reconcileCreate releases them with the server id.
	pending    map[int64][]func(serverID int64)
	positional bool  // false after the remote store reported a missing position column
	nextTemp   int64 // placeholder ids for optimistic inserts, always negative
}

func New(userID string, remote RemoteStore, prog Progression, cfg *progression.Config) *Store {
	cache, _ := lru.New(forestCacheSize)
	return &Store{
		userID:      userID,
		remote:      remote,
		progression: prog,
		questXP:     cfg.QuestXP,
		undo:        NewUndoStack(),
		dispatch:    func(fn func()) { go fn() },
		metas:       make(map[int64]*models.Storyline),
		forests:     cache,
		pinned:      make(map[int64][]*questtree.Quest),
		pending:     make(map[int64][]func(int64)),
		positional:  true,
		nextTemp:    -1,
	}
}

// Undo exposes the stack for callers that need its depth; mutation goes
// through DeleteQuest and RestoreLastDeleted.
func (s *Store) Undo() *UndoStack {
	return s.undo
}

// Load pulls the user's storylines and their forests from the remote store.
// Forests load in parallel; quests arrive position-ordered with created_at
// as tie-break, or created_at only when the position column is missing.
func (s *Store) Load(ctx context.Context) error {
	metas, err := s.remote.ListStorylines(ctx, s.userID)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	forests := make([][]*questtree.Quest, len(metas))
	for i, meta := range metas {
		group.Go(func() error {
			rows, err := s.remote.ListQuests(groupCtx, meta.ID)
			if err != nil {
				return err
			}
			forests[i] = buildForest(rows)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.metas = make(map[int64]*models.Storyline, len(metas))
	for i, meta := range metas {
		s.metas[meta.ID] = meta
		s.setForest(meta.ID, forests[i])
	}
	return nil
}

// Storylines returns the user's storyline rows ordered by creation time.
func (s *Store) Storylines() []*models.Storyline {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Storyline, 0, len(s.metas))
	for _, meta := range s.metas {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Storyline returns the snapshot for one storyline, loading its forest
// from the remote store if it fell out of the cache.
func (s *Store) Storyline(ctx context.Context, id int64) (*Storyline, error) {
	s.mu.Lock()
	meta, ok := s.metas[id]
	if !ok {
		s.mu.Unlock()
		return nil, &repositories.NotFoundError{Entity: "storyline", ID: id}
	}
	if forest, ok := s.cachedForest(id); ok {
		snapshot := &Storyline{ID: meta.ID, Title: meta.Title, CreatedAt: meta.CreatedAt, Quests: forest}
		s.mu.Unlock()
		return snapshot, nil
	}
	s.mu.Unlock()

	rows, err := s.remote.ListQuests(ctx, id)
	if err != nil {
		return nil, err
	}
	forest := buildForest(rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setForest(id, forest)
	return &Storyline{ID: meta.ID, Title: meta.Title, CreatedAt: meta.CreatedAt, Quests: forest}, nil
}

// AddStoryline creates a new empty storyline. Creation is synchronous; the
// server-assigned id is needed before any quest can reference it.
func (s *Store) AddStoryline(ctx context.Context, title string) (*models.Storyline, error) {
	created, err := s.remote.CreateStoryline(ctx, &models.Storyline{
		UserID:    s.userID,
		Title:     title,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.metas[created.ID] = created
	s.setForest(created.ID, []*questtree.Quest{})
	return created, nil
}

// DeleteStoryline drops the storyline and every quest in it.
func (s *Store) DeleteStoryline(ctx context.Context, id int64) error {
	s.mu.Lock()
	if _, ok := s.metas[id]; !ok {
		s.mu.Unlock()
		return &repositories.NotFoundError{Entity: "storyline", ID: id}
	}
	delete(s.metas, id)
	s.forests.Remove(id)
	delete(s.pinned, id)
	s.mu.Unlock()

	s.dispatch(func() {
		if err := s.remote.DeleteStoryline(context.Background(), id); err != nil {
			slog.Error("Failed to delete storyline remotely",
				slog.String("type", "db"),
				slog.Int64("storyline_id", id),
				slog.Any("error", err))
		}
	})
	return nil
}

// AddQuest inserts a new incomplete quest appended after its siblings,
// either at the root level (parentQuestID nil) or under the given parent.
// The in-memory node carries a placeholder id until the server id arrives.
func (s *Store) AddQuest(ctx context.Context, storylineID int64, title string, parentQuestID *int64) (*questtree.Quest, error) {
	return s.addQuest(ctx, storylineID, title, parentQuestID, false)
}

func (s *Store) addQuest(ctx context.Context, storylineID int64, title string, parentQuestID *int64, completed bool) (*questtree.Quest, error) {
	forest, err := s.forest(ctx, storylineID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	position := len(forest)
	if parentQuestID != nil {
		parent := questtree.Find(forest, *parentQuestID)
		if parent == nil {
			s.mu.Unlock()
			return nil, &repositories.NotFoundError{Entity: "quest", ID: *parentQuestID}
		}
		position = len(parent.Subquests)
	}

	node := &questtree.Quest{
		ID:        s.nextTemp,
		Title:     title,
		Completed: completed,
		ParentID:  parentQuestID,
		Position:  position,
		CreatedAt: time.Now(),
	}
	s.nextTemp--

	updated, ok := questtree.Insert(forest, node, parentQuestID)
	if !ok {
		// Find succeeded above, so this indicates a codec bug.
		s.mu.Unlock()
		slog.Error("Quest insert failed despite existing parent",
			slog.String("type", "error"),
			slog.Int64("storyline_id", storylineID),
			slog.Int64("parent_id", *parentQuestID))
		return nil, &repositories.NotFoundError{Entity: "quest", ID: *parentQuestID}
	}
	s.setForest(storylineID, updated)
	placeholder := node.ID
	row := &models.Quest{
		StorylineID: storylineID,
		ParentID:    parentQuestID,
		Title:       title,
		Completed:   completed,
		Position:    position,
		CreatedAt:   node.CreatedAt,
	}
	if parentQuestID != nil && *parentQuestID < 0 {
		// the parent row does not exist remotely yet; hold this create
		// until its server id arrives instead of persisting parent_id < 0
		s.pending[*parentQuestID] = append(s.pending[*parentQuestID], func(parentID int64) {
			pid := parentID
			row.ParentID = &pid
			s.reconcileCreate(storylineID, placeholder, row)
		})
		s.mu.Unlock()
		return node, nil
	}
	s.mu.Unlock()

	s.dispatch(func() {
		s.reconcileCreate(storylineID, placeholder, row)
	})
	return node, nil
}

// reconcileCreate sends the insert, merges the server-assigned id back into
// the placeholder node by exact id match, repoints the node's children at
// the new id, and releases the operations that were queued on the
// placeholder. A failed create abandons the queued operations with it.
func (s *Store) reconcileCreate(storylineID, placeholder int64, row *models.Quest) {
	created, err := s.remote.CreateQuest(context.Background(), row)
	if err != nil {
		slog.Error("Failed to create quest remotely",
			slog.String("type", "db"),
			slog.Int64("storyline_id", storylineID),
			slog.Any("error", err))
		s.mu.Lock()
		delete(s.pending, placeholder)
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if forest, ok := s.cachedForest(storylineID); ok {
		updated, ok := questtree.Rewrite(forest, placeholder, func(q questtree.Quest) questtree.Quest {
			q.ID = created.ID
			q.CreatedAt = created.CreatedAt
			if len(q.Subquests) > 0 {
				subs := make([]*questtree.Quest, len(q.Subquests))
				for i, child := range q.Subquests {
					copied := *child
					parentID := created.ID
					copied.ParentID = &parentID
					subs[i] = &copied
				}
				q.Subquests = subs
			}
			return q
		})
		if ok {
			s.setForest(storylineID, updated)
		} else {
			slog.Warn("Quest vanished before create confirmation",
				slog.Int64("storyline_id", storylineID),
				slog.Int64("placeholder_id", placeholder))
		}
	}
	waiters := s.pending[placeholder]
	delete(s.pending, placeholder)
	s.mu.Unlock()

	// waiters run even when the node is gone locally; a queued delete must
	// still remove the row that was just created
	for _, fn := range waiters {
		fn(created.ID)
	}
}

// RenameQuest retitles a quest. Renaming to the current title is a no-op.
func (s *Store) RenameQuest(ctx context.Context, storylineID, questID int64, newTitle string) error {
	forest, err := s.forest(ctx, storylineID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	node := questtree.Find(forest, questID)
	if node == nil {
		s.mu.Unlock()
		return &repositories.NotFoundError{Entity: "quest", ID: questID}
	}
	if node.Title == newTitle {
		s.mu.Unlock()
		return nil
	}

	updated, _ := questtree.Update(forest, questID, questtree.Patch{Title: &newTitle})
	s.setForest(storylineID, updated)
	if questID < 0 {
		s.pending[questID] = append(s.pending[questID], func(serverID int64) {
			s.pushQuestPatch(serverID, models.QuestPatch{Title: &newTitle})
		})
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.dispatch(func() {
		s.pushQuestPatch(questID, models.QuestPatch{Title: &newTitle})
	})
	return nil
}

// pushQuestPatch sends a quest update to the remote store under the
// silent-log policy.
func (s *Store) pushQuestPatch(questID int64, patch models.QuestPatch) {
	if err := s.remote.UpdateQuest(context.Background(), questID, patch); err != nil {
		slog.Error("Failed to update quest remotely",
			slog.String("type", "db"),
			slog.Int64("quest_id", questID),
			slog.Any("error", err))
	}
}

// CompleteQuest flips a quest's completed flag. A false→true transition
// awards the configured quest XP, true→false reclaims it symmetrically, so
// toggling a quest nets to zero. Re-applying the current state changes
// nothing and emits no XP. The progression result, when any, is returned
// for the caller's notification surface.
func (s *Store) CompleteQuest(ctx context.Context, storylineID, questID int64, isCompleted bool) (*progression.Result, error) {
	forest, err := s.forest(ctx, storylineID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	node := questtree.Find(forest, questID)
	if node == nil {
		s.mu.Unlock()
		return nil, &repositories.NotFoundError{Entity: "quest", ID: questID}
	}
	if node.Completed == isCompleted {
		s.mu.Unlock()
		return nil, nil
	}

	updated, _ := questtree.Update(forest, questID, questtree.Patch{Completed: &isCompleted})
	s.setForest(storylineID, updated)
	completed := isCompleted
	if questID < 0 {
		s.pending[questID] = append(s.pending[questID], func(serverID int64) {
			s.pushQuestPatch(serverID, models.QuestPatch{Completed: &completed})
		})
		s.mu.Unlock()
	} else {
		s.mu.Unlock()
		s.dispatch(func() {
			s.pushQuestPatch(questID, models.QuestPatch{Completed: &completed})
		})
	}

	delta := s.questXP
	if !isCompleted {
		delta = -delta
	}
	return s.progression.AddXP(ctx, delta), nil
}

// DeleteQuest snapshots the node (title and completed flag only, the
// subtree is discarded) onto the undo stack, then removes the node and all
// of its descendants.
func (s *Store) DeleteQuest(ctx context.Context, storylineID, questID int64) error {
	forest, err := s.forest(ctx, storylineID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	node := questtree.Find(forest, questID)
	if node == nil {
		s.mu.Unlock()
		return &repositories.NotFoundError{Entity: "quest", ID: questID}
	}

	s.undo.Push(DeletedQuestRecord{
		Title:       node.Title,
		Completed:   node.Completed,
		StorylineID: storylineID,
		ParentID:    node.ParentID,
	})

	updated, _ := questtree.Remove(forest, questID)
	s.setForest(storylineID, updated)
	if questID < 0 {
		s.pending[questID] = append(s.pending[questID], func(serverID int64) {
			s.removeRemoteQuest(serverID)
		})
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.dispatch(func() {
		s.removeRemoteQuest(questID)
	})
	return nil
}

func (s *Store) removeRemoteQuest(questID int64) {
	if err := s.remote.DeleteQuest(context.Background(), questID); err != nil {
		slog.Error("Failed to delete quest remotely",
			slog.String("type", "db"),
			slog.Int64("quest_id", questID),
			slog.Any("error", err))
	}
}

// RestoreLastDeleted re-inserts the most recently deleted quest as a new
// childless node under its original parent, or at the root when the parent
// is gone. The snapshotted completed flag carries over without emitting an
// XP signal; the deletion did not reclaim XP either. With nothing recorded
// it is a no-op returning nil.
func (s *Store) RestoreLastDeleted(ctx context.Context) (*questtree.Quest, error) {
	s.mu.Lock()
	record, ok := s.undo.Pop()
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	restored, err := s.addQuest(ctx, record.StorylineID, record.Title, record.ParentID, record.Completed)
	if repositories.IsNotFound(err) && record.ParentID != nil {
		slog.Warn("Restore target parent is gone, restoring at root",
			slog.Int64("storyline_id", record.StorylineID),
			slog.Int64("parent_id", *record.ParentID))
		restored, err = s.addQuest(ctx, record.StorylineID, record.Title, nil, record.Completed)
	}
	return restored, err
}

// ReorderQuests reorders the root-level quests of a storyline to match
// orderedIDs and reassigns positions. Only roots are reorderable; nested
// quests keep their order. A SchemaError from the remote store degrades to
// session-only ordering without surfacing a failure.
func (s *Store) ReorderQuests(ctx context.Context, storylineID int64, orderedIDs []int64) error {
	forest, err := s.forest(ctx, storylineID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	updated := questtree.ReorderRoots(forest, orderedIDs)
	s.setForest(storylineID, updated)

	persist := s.positional
	positions := make([]models.QuestPosition, 0, len(updated))
	for _, q := range updated {
		if q.ID > 0 {
			positions = append(positions, models.QuestPosition{ID: q.ID, Position: q.Position})
		}
	}
	s.mu.Unlock()

	if !persist {
		return nil
	}

	s.dispatch(func() {
		err := s.remote.BulkReposition(context.Background(), storylineID, positions)
		if err == nil {
			return
		}
		if repositories.IsSchemaError(err) {
			slog.Warn("Remote store cannot persist ordering, keeping it session-only",
				slog.Int64("storyline_id", storylineID),
				slog.Any("error", err))
			s.mu.Lock()
			s.positional = false
			s.mu.Unlock()
			return
		}
		slog.Error("Failed to persist quest order",
			slog.String("type", "db"),
			slog.Int64("storyline_id", storylineID),
			slog.Any("error", err))
	})
	return nil
}

// forest returns the cached forest for a storyline, loading it on demand.
func (s *Store) forest(ctx context.Context, storylineID int64) ([]*questtree.Quest, error) {
	snapshot, err := s.Storyline(ctx, storylineID)
	if err != nil {
		return nil, err
	}
	return snapshot.Quests, nil
}

// setForest stores a forest, pinning it outside the LRU while it still
// holds placeholder nodes. Mutations re-evaluate on every write, so a
// forest moves back under eviction as soon as reconciliation drains it.
func (s *Store) setForest(storylineID int64, forest []*questtree.Quest) {
	if hasPlaceholder(forest) {
		s.forests.Remove(storylineID)
		s.pinned[storylineID] = forest
		return
	}
	delete(s.pinned, storylineID)
	s.forests.Add(storylineID, forest)
}

func (s *Store) cachedForest(storylineID int64) ([]*questtree.Quest, bool) {
	if forest, ok := s.pinned[storylineID]; ok {
		return forest, true
	}
	cached, ok := s.forests.Get(storylineID)
	if !ok {
		return nil, false
	}
	return cached.([]*questtree.Quest), true
}

func hasPlaceholder(forest []*questtree.Quest) bool {
	dirty := false
	questtree.Walk(forest, func(q *questtree.Quest) bool {
		if q.ID < 0 {
			dirty = true
			return false
		}
		return true
	})
	return dirty
}

// buildForest nests flat quest rows into a forest, preserving the row
// order the repository established (position, then created_at).
func buildForest(rows []*models.Quest) []*questtree.Quest {
	nodes := make(map[int64]*questtree.Quest, len(rows))
	for _, row := range rows {
		nodes[row.ID] = &questtree.Quest{
			ID:        row.ID,
			Title:     row.Title,
			Completed: row.Completed,
			ParentID:  row.ParentID,
			Position:  row.Position,
			CreatedAt: row.CreatedAt,
		}
	}

	var roots []*questtree.Quest
	for _, row := range rows {
		node := nodes[row.ID]
		if row.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*row.ParentID]
		if !ok {
			// Orphaned row; surface it at the root rather than drop it.
			slog.Warn("Quest row references missing parent",
				slog.Int64("quest_id", row.ID),
				slog.Int64("parent_id", *row.ParentID))
			roots = append(roots, node)
			continue
		}
		parent.Subquests = append(parent.Subquests, node)
	}
	return roots
}
