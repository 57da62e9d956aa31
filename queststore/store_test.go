package queststore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questline/database/models"
	"questline/database/repositories"
	"questline/progression"
)

// fakeRemote is an in-memory RemoteStore. Per-method error hooks let tests
// simulate remote failures without a database.
type fakeRemote struct {
	mu         sync.Mutex
	nextID     int64
	storylines map[int64]*models.Storyline
	quests     map[int64]*models.Quest
	positions  []models.QuestPosition

	createQuestErr error
	updateErr      error
	deleteErr      error
	repositionErr  error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		nextID:     100,
		storylines: make(map[int64]*models.Storyline),
		quests:     make(map[int64]*models.Quest),
	}
}

func (f *fakeRemote) CreateStoryline(_ context.Context, storyline *models.Storyline) (*models.Storyline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	created := *storyline
	created.ID = f.nextID
	f.storylines[created.ID] = &created
	return &created, nil
}

func (f *fakeRemote) DeleteStoryline(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.storylines, id)
	for qid, q := range f.quests {
		if q.StorylineID == id {
			delete(f.quests, qid)
		}
	}
	return nil
}

func (f *fakeRemote) ListStorylines(_ context.Context, userID string) ([]*models.Storyline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Storyline
	for _, s := range f.storylines {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRemote) CreateQuest(_ context.Context, quest *models.Quest) (*models.Quest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createQuestErr != nil {
		return nil, f.createQuestErr
	}
	f.nextID++
	created := *quest
	created.ID = f.nextID
	f.quests[created.ID] = &created
	return &created, nil
}

func (f *fakeRemote) UpdateQuest(_ context.Context, id int64, patch models.QuestPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	q, ok := f.quests[id]
	if !ok {
		return &repositories.NotFoundError{Entity: "quest", ID: id}
	}
	if patch.Title != nil {
		q.Title = *patch.Title
	}
	if patch.Completed != nil {
		q.Completed = *patch.Completed
	}
	return nil
}

func (f *fakeRemote) DeleteQuest(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.quests, id)
	return nil
}

func (f *fakeRemote) BulkReposition(_ context.Context, _ int64, positions []models.QuestPosition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.repositionErr != nil {
		return f.repositionErr
	}
	f.positions = append([]models.QuestPosition{}, positions...)
	for _, p := range positions {
		if q, ok := f.quests[p.ID]; ok {
			q.Position = p.Position
		}
	}
	return nil
}

func (f *fakeRemote) ListQuests(_ context.Context, storylineID int64) ([]*models.Quest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Quest
	for _, q := range f.quests {
		if q.StorylineID == storylineID {
			out = append(out, q)
		}
	}
	return out, nil
}

// fakeProgression records AddXP deltas.
type fakeProgression struct {
	deltas []int64
}

func (f *fakeProgression) AddXP(_ context.Context, delta int64) *progression.Result {
	f.deltas = append(f.deltas, delta)
	return &progression.Result{XPGained: delta, Level: 1}
}

// newTestStore returns a store whose remote calls run inline, so every
// reconcile completes before the mutating call returns.
func newTestStore(t *testing.T) (*Store, *fakeRemote, *fakeProgression) {
	t.Helper()
	remote := newFakeRemote()
	prog := &fakeProgression{}
	s := New("user-1", remote, prog, progression.NewDefaultConfig())
	s.dispatch = func(fn func()) { fn() }
	return s, remote, prog
}

func mustStoryline(t *testing.T, s *Store) *models.Storyline {
	t.Helper()
	created, err := s.AddStoryline(context.Background(), "The Long Road")
	require.NoError(t, err)
	return created
}

func TestAddStoryline(t *testing.T) {
	s, remote, _ := newTestStore(t)

	created := mustStoryline(t, s)
	assert.Equal(t, "The Long Road", created.Title)
	assert.Positive(t, created.ID)
	assert.Contains(t, remote.storylines, created.ID)

	lines := s.Storylines()
	require.Len(t, lines, 1)
	assert.Equal(t, created.ID, lines[0].ID)
}

func TestStorylinesOrderedByCreation(t *testing.T) {
	s, _, _ := newTestStore(t)

	first := mustStoryline(t, s)
	second, err := s.AddStoryline(context.Background(), "Second")
	require.NoError(t, err)

	lines := s.Storylines()
	require.Len(t, lines, 2)
	assert.Equal(t, first.ID, lines[0].ID)
	assert.Equal(t, second.ID, lines[1].ID)
}

func TestAddQuestReconcilesServerID(t *testing.T) {
	s, remote, _ := newTestStore(t)
	line := mustStoryline(t, s)

	node, err := s.AddQuest(context.Background(), line.ID, "Reach the pass", nil)
	require.NoError(t, err)
	// the returned node still carries the placeholder
	assert.Negative(t, node.ID)

	// with inline dispatch the reconcile already ran
	snapshot, err := s.Storyline(context.Background(), line.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.Quests, 1)
	assert.Positive(t, snapshot.Quests[0].ID)
	assert.Equal(t, "Reach the pass", snapshot.Quests[0].Title)
	assert.Contains(t, remote.quests, snapshot.Quests[0].ID)
}

func TestAddQuestKeepsLocalStateOnRemoteFailure(t *testing.T) {
	s, remote, _ := newTestStore(t)
	line := mustStoryline(t, s)
	remote.createQuestErr = errors.New("connection refused")

	_, err := s.AddQuest(context.Background(), line.ID, "Orphaned", nil)
	require.NoError(t, err)

	snapshot, err := s.Storyline(context.Background(), line.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.Quests, 1)
	// quest survives locally with its placeholder id
	assert.Negative(t, snapshot.Quests[0].ID)
	assert.Empty(t, remote.quests)
}

func TestAddSubquest(t *testing.T) {
	s, _, _ := newTestStore(t)
	line := mustStoryline(t, s)

	_, err := s.AddQuest(context.Background(), line.ID, "Parent", nil)
	require.NoError(t, err)
	snapshot, err := s.Storyline(context.Background(), line.ID)
	require.NoError(t, err)
	parentID := snapshot.Quests[0].ID

	_, err = s.AddQuest(context.Background(), line.ID, "Child", &parentID)
	require.NoError(t, err)

	snapshot, err = s.Storyline(context.Background(), line.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.Quests, 1)
	require.Len(t, snapshot.Quests[0].Subquests, 1)
	assert.Equal(t, "Child", snapshot.Quests[0].Subquests[0].Title)
	assert.Equal(t, 0, snapshot.Quests[0].Subquests[0].Position)
}

func TestAddQuestMissingParent(t *testing.T) {
	s, _, _ := newTestStore(t)
	line := mustStoryline(t, s)

	ghost := int64(424242)
	_, err := s.AddQuest(context.Background(), line.ID, "Nowhere", &ghost)
	assert.True(t, repositories.IsNotFound(err))
}

func TestRenameQuest(t *testing.T) {
	s, remote, _ := newTestStore(t)
	line := mustStoryline(t, s)

	_, err := s.AddQuest(context.Background(), line.ID, "Old Title", nil)
	require.NoError(t, err)
	snapshot, _ := s.Storyline(context.Background(), line.ID)
	id := snapshot.Quests[0].ID

	require.NoError(t, s.RenameQuest(context.Background(), line.ID, id, "New Title"))

	snapshot, _ = s.Storyline(context.Background(), line.ID)
	assert.Equal(t, "New Title", snapshot.Quests[0].Title)
	assert.Equal(t, "New Title", remote.quests[id].Title)
}

func TestCompleteQuestXPFlow(t *testing.T) {
	s, remote, prog := newTestStore(t)
	line := mustStoryline(t, s)

	_, err := s.AddQuest(context.Background(), line.ID, "Slay the beast", nil)
	require.NoError(t, err)
	snapshot, _ := s.Storyline(context.Background(), line.ID)
	id := snapshot.Quests[0].ID

	result, err := s.CompleteQuest(context.Background(), line.ID, id, true)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, []int64{50}, prog.deltas)
	assert.True(t, remote.quests[id].Completed)

	// re-applying the same state is a no-op with no XP signal
	result, err = s.CompleteQuest(context.Background(), line.ID, id, true)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, []int64{50}, prog.deltas)

	// un-completing reclaims the XP symmetrically
	result, err = s.CompleteQuest(context.Background(), line.ID, id, false)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, []int64{50, -50}, prog.deltas)
	assert.False(t, remote.quests[id].Completed)
}

func TestDeleteQuestRemovesSubtree(t *testing.T) {
	s, remote, _ := newTestStore(t)
	line := mustStoryline(t, s)

	_, err := s.AddQuest(context.Background(), line.ID, "Parent", nil)
	require.NoError(t, err)
	snapshot, _ := s.Storyline(context.Background(), line.ID)
	parentID := snapshot.Quests[0].ID
	_, err = s.AddQuest(context.Background(), line.ID, "Child", &parentID)
	require.NoError(t, err)

	require.NoError(t, s.DeleteQuest(context.Background(), line.ID, parentID))

	snapshot, _ = s.Storyline(context.Background(), line.ID)
	assert.Empty(t, snapshot.Quests)
	assert.Equal(t, 1, s.Undo().Len())
	assert.NotContains(t, remote.quests, parentID)
}

func TestRestoreLastDeletedIsChildless(t *testing.T) {
	s, _, prog := newTestStore(t)
	line := mustStoryline(t, s)

	_, err := s.AddQuest(context.Background(), line.ID, "Parent", nil)
	require.NoError(t, err)
	snapshot, _ := s.Storyline(context.Background(), line.ID)
	parentID := snapshot.Quests[0].ID
	_, err = s.AddQuest(context.Background(), line.ID, "Child", &parentID)
	require.NoError(t, err)

	_, err = s.CompleteQuest(context.Background(), line.ID, parentID, true)
	require.NoError(t, err)

	require.NoError(t, s.DeleteQuest(context.Background(), line.ID, parentID))

	deltasBefore := len(prog.deltas)
	restored, err := s.RestoreLastDeleted(context.Background())
	require.NoError(t, err)
	require.NotNil(t, restored)

	snapshot, _ = s.Storyline(context.Background(), line.ID)
	require.Len(t, snapshot.Quests, 1)
	assert.Equal(t, "Parent", snapshot.Quests[0].Title)
	// completed flag carries over, but restore emits no XP
	assert.True(t, snapshot.Quests[0].Completed)
	assert.Empty(t, snapshot.Quests[0].Subquests)
	assert.Equal(t, deltasBefore, len(prog.deltas))
	assert.Equal(t, 0, s.Undo().Len())
}

func TestRestoreFallsBackToRootWhenParentGone(t *testing.T) {
	s, _, _ := newTestStore(t)
	line := mustStoryline(t, s)

	_, err := s.AddQuest(context.Background(), line.ID, "Parent", nil)
	require.NoError(t, err)
	snapshot, _ := s.Storyline(context.Background(), line.ID)
	parentID := snapshot.Quests[0].ID
	_, err = s.AddQuest(context.Background(), line.ID, "Child", &parentID)
	require.NoError(t, err)
	snapshot, _ = s.Storyline(context.Background(), line.ID)
	childID := snapshot.Quests[0].Subquests[0].ID

	require.NoError(t, s.DeleteQuest(context.Background(), line.ID, childID))
	require.NoError(t, s.DeleteQuest(context.Background(), line.ID, parentID))

	// restoring the child: its recorded parent no longer exists
	restored, err := s.RestoreLastDeleted(context.Background()) // parent first (LIFO)
	require.NoError(t, err)
	assert.Equal(t, "Parent", restored.Title)

	restored, err = s.RestoreLastDeleted(context.Background())
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, "Child", restored.Title)

	snapshot, _ = s.Storyline(context.Background(), line.ID)
	// the restored parent is a brand new id, so the child lands at root
	require.Len(t, snapshot.Quests, 2)
	assert.Empty(t, snapshot.Quests[0].Subquests)
}

func TestRestoreEmptyStackIsNoop(t *testing.T) {
	s, _, _ := newTestStore(t)

	restored, err := s.RestoreLastDeleted(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, restored)
}

func TestReorderQuestsPersistsPositions(t *testing.T) {
	s, remote, _ := newTestStore(t)
	line := mustStoryline(t, s)

	_, err := s.AddQuest(context.Background(), line.ID, "First", nil)
	require.NoError(t, err)
	_, err = s.AddQuest(context.Background(), line.ID, "Second", nil)
	require.NoError(t, err)
	snapshot, _ := s.Storyline(context.Background(), line.ID)
	firstID, secondID := snapshot.Quests[0].ID, snapshot.Quests[1].ID

	require.NoError(t, s.ReorderQuests(context.Background(), line.ID, []int64{secondID, firstID}))

	snapshot, _ = s.Storyline(context.Background(), line.ID)
	assert.Equal(t, secondID, snapshot.Quests[0].ID)
	assert.Equal(t, 0, snapshot.Quests[0].Position)
	assert.Equal(t, 1, snapshot.Quests[1].Position)

	require.Len(t, remote.positions, 2)
	assert.Equal(t, models.QuestPosition{ID: secondID, Position: 0}, remote.positions[0])
	assert.Equal(t, models.QuestPosition{ID: firstID, Position: 1}, remote.positions[1])
}

func TestReorderDegradesOnSchemaError(t *testing.T) {
	s, remote, _ := newTestStore(t)
	line := mustStoryline(t, s)

	_, err := s.AddQuest(context.Background(), line.ID, "First", nil)
	require.NoError(t, err)
	_, err = s.AddQuest(context.Background(), line.ID, "Second", nil)
	require.NoError(t, err)
	snapshot, _ := s.Storyline(context.Background(), line.ID)
	firstID, secondID := snapshot.Quests[0].ID, snapshot.Quests[1].ID

	remote.repositionErr = &repositories.SchemaError{Entity: "quest", Err: errors.New("column \"position\" does not exist")}
	require.NoError(t, s.ReorderQuests(context.Background(), line.ID, []int64{secondID, firstID}))

	// session ordering still applied
	snapshot, _ = s.Storyline(context.Background(), line.ID)
	assert.Equal(t, secondID, snapshot.Quests[0].ID)

	// subsequent reorders skip persistence entirely
	remote.repositionErr = nil
	remote.positions = nil
	require.NoError(t, s.ReorderQuests(context.Background(), line.ID, []int64{firstID, secondID}))
	assert.Nil(t, remote.positions)
	snapshot, _ = s.Storyline(context.Background(), line.ID)
	assert.Equal(t, firstID, snapshot.Quests[0].ID)
}

func TestDeleteStoryline(t *testing.T) {
	s, remote, _ := newTestStore(t)
	line := mustStoryline(t, s)
	_, err := s.AddQuest(context.Background(), line.ID, "Doomed", nil)
	require.NoError(t, err)

	require.NoError(t, s.DeleteStoryline(context.Background(), line.ID))

	assert.Empty(t, s.Storylines())
	assert.NotContains(t, remote.storylines, line.ID)
	assert.Empty(t, remote.quests)

	err = s.DeleteStoryline(context.Background(), line.ID)
	assert.True(t, repositories.IsNotFound(err))
}

func TestLoadBuildsNestedForests(t *testing.T) {
	remote := newFakeRemote()
	remote.storylines[1] = &models.Storyline{ID: 1, UserID: "user-1", Title: "Loaded"}
	parent := int64(10)
	remote.quests[10] = &models.Quest{ID: 10, StorylineID: 1, Title: "Root", Position: 0}
	remote.quests[11] = &models.Quest{ID: 11, StorylineID: 1, ParentID: &parent, Title: "Leaf", Position: 0}

	s := New("user-1", remote, &fakeProgression{}, progression.NewDefaultConfig())
	s.dispatch = func(fn func()) { fn() }

	require.NoError(t, s.Load(context.Background()))

	snapshot, err := s.Storyline(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, snapshot.Quests, 1)
	require.Len(t, snapshot.Quests[0].Subquests, 1)
	assert.Equal(t, "Leaf", snapshot.Quests[0].Subquests[0].Title)
}

func TestSearchQuests(t *testing.T) {
	s, _, _ := newTestStore(t)
	line := mustStoryline(t, s)

	for _, title := range []string{"Gather firewood", "Find the hermit", "Forge a blade"} {
		_, err := s.AddQuest(context.Background(), line.ID, title, nil)
		require.NoError(t, err)
	}

	got, err := s.SearchQuests(context.Background(), line.ID, "forge")
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "Forge a blade", got[0].Title)

	got, err = s.SearchQuests(context.Background(), line.ID, "zzzz")
	require.NoError(t, err)
	assert.Empty(t, got)
}

// dispatchQueue defers remote calls until flush, modeling the window where
// an optimistic mutation is applied but its remote call has not run yet.
type dispatchQueue struct {
	fns []func()
}

func (d *dispatchQueue) enqueue(fn func()) { d.fns = append(d.fns, fn) }

func (d *dispatchQueue) flush() {
	for len(d.fns) > 0 {
		fn := d.fns[0]
		d.fns = d.fns[1:]
		fn()
	}
}

func newDeferredStore(t *testing.T) (*Store, *fakeRemote, *dispatchQueue) {
	t.Helper()
	remote := newFakeRemote()
	s := New("user-1", remote, &fakeProgression{}, progression.NewDefaultConfig())
	queue := &dispatchQueue{}
	s.dispatch = queue.enqueue
	return s, remote, queue
}

func TestChildCreateWaitsForParentServerID(t *testing.T) {
	s, remote, queue := newDeferredStore(t)
	line, err := s.AddStoryline(context.Background(), "Deferred")
	require.NoError(t, err)

	parent, err := s.AddQuest(context.Background(), line.ID, "Parent", nil)
	require.NoError(t, err)
	require.Negative(t, parent.ID)
	_, err = s.AddQuest(context.Background(), line.ID, "Child", &parent.ID)
	require.NoError(t, err)

	// nothing reached the remote store yet
	assert.Empty(t, remote.quests)

	queue.flush()

	// both rows persisted, and no row carries a placeholder parent id
	require.Len(t, remote.quests, 2)
	for _, row := range remote.quests {
		assert.Positive(t, row.ID)
		if row.ParentID != nil {
			assert.Positive(t, *row.ParentID)
		}
	}

	snapshot, err := s.Storyline(context.Background(), line.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.Quests, 1)
	root := snapshot.Quests[0]
	assert.Positive(t, root.ID)
	require.Len(t, root.Subquests, 1)
	assert.Positive(t, root.Subquests[0].ID)
	require.NotNil(t, root.Subquests[0].ParentID)
	assert.Equal(t, root.ID, *root.Subquests[0].ParentID)
}

func TestPlaceholderMutationsWaitForServerID(t *testing.T) {
	s, remote, queue := newDeferredStore(t)
	line, err := s.AddStoryline(context.Background(), "Deferred")
	require.NoError(t, err)

	node, err := s.AddQuest(context.Background(), line.ID, "Draft", nil)
	require.NoError(t, err)
	require.NoError(t, s.RenameQuest(context.Background(), line.ID, node.ID, "Final"))
	_, err = s.CompleteQuest(context.Background(), line.ID, node.ID, true)
	require.NoError(t, err)

	// no remote call carried the negative id
	assert.Empty(t, remote.quests)

	queue.flush()

	require.Len(t, remote.quests, 1)
	for _, row := range remote.quests {
		assert.Equal(t, "Final", row.Title)
		assert.True(t, row.Completed)
	}
}

func TestDeletePlaceholderQuestRemovesRemoteRow(t *testing.T) {
	s, remote, queue := newDeferredStore(t)
	line, err := s.AddStoryline(context.Background(), "Deferred")
	require.NoError(t, err)

	node, err := s.AddQuest(context.Background(), line.ID, "Fleeting", nil)
	require.NoError(t, err)
	require.NoError(t, s.DeleteQuest(context.Background(), line.ID, node.ID))

	queue.flush()

	// the create landed first, the queued delete cleaned it up
	assert.Empty(t, remote.quests)
	snapshot, err := s.Storyline(context.Background(), line.ID)
	require.NoError(t, err)
	assert.Empty(t, snapshot.Quests)
}

func TestUnreconciledForestSurvivesCacheChurn(t *testing.T) {
	s, _, queue := newDeferredStore(t)
	line, err := s.AddStoryline(context.Background(), "Pinned")
	require.NoError(t, err)
	node, err := s.AddQuest(context.Background(), line.ID, "Unsent", nil)
	require.NoError(t, err)

	// churn well past the cache capacity
	for i := 0; i < forestCacheSize+8; i++ {
		_, err := s.AddStoryline(context.Background(), fmt.Sprintf("Filler %d", i))
		require.NoError(t, err)
	}

	// the optimistic quest is still there, not reloaded from the remote
	snapshot, err := s.Storyline(context.Background(), line.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.Quests, 1)
	assert.Equal(t, node.ID, snapshot.Quests[0].ID)

	queue.flush()

	snapshot, err = s.Storyline(context.Background(), line.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.Quests, 1)
	assert.Positive(t, snapshot.Quests[0].ID)
}

func TestUndoStack(t *testing.T) {
	stack := NewUndoStack()

	_, ok := stack.Pop()
	assert.False(t, ok)

	stack.Push(DeletedQuestRecord{Title: "a"})
	stack.Push(DeletedQuestRecord{Title: "b"})
	assert.Equal(t, 2, stack.Len())

	record, ok := stack.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", record.Title)
	record, ok = stack.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", record.Title)
	assert.Equal(t, 0, stack.Len())
}
