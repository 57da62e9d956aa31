package queststore

// DeletedQuestRecord snapshots a destructively deleted quest. Only the
// node's own title and completed flag survive; the subtree below it is
// discarded, so a restore brings back a childless quest. Records live in
// process memory only and do not survive restarts.
type DeletedQuestRecord struct {
	Title       string
	Completed   bool
	StorylineID int64
	ParentID    *int64
}

// UndoStack is the LIFO record of destructive deletions. It is owned by the
// Store that feeds it; it is not a hidden global.
type UndoStack struct {
	records []DeletedQuestRecord
}

func NewUndoStack() *UndoStack {
	return &UndoStack{}
}

func (u *UndoStack) Push(record DeletedQuestRecord) {
	u.records = append(u.records, record)
}

// Pop removes and returns the most recent record. ok is false when the
// stack is empty; undoing with nothing recorded is a no-op for callers.
func (u *UndoStack) Pop() (DeletedQuestRecord, bool) {
	if len(u.records) == 0 {
		return DeletedQuestRecord{}, false
	}
	record := u.records[len(u.records)-1]
	u.records = u.records[:len(u.records)-1]
	return record, true
}

func (u *UndoStack) Len() int {
	return len(u.records)
}
