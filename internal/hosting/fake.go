package hosting

import (
	"context"
	"fmt"
	"strings"
	"sync"

	gserrors "gitstack.dev/gitstack/internal/errors"
)

// Op records a single call made against the Fake
type Op struct {
	Method string
	MRID   int
	Detail string
}

type fakeMR struct {
	review   Review
	desc     string
	notes    []Note
	blocking []int
}

// Fake is an in-memory Client that records every call and returns
// programmable results, enabling deterministic engine tests without any
// network access.
type Fake struct {
	mu         sync.Mutex
	mrs        map[int]*fakeMR
	nextID     int
	nextNoteID int
	ops        []Op

	// FailOn maps a method name to the error its calls return
	FailOn map[string]error

	// DependenciesUnsupported makes SetDependencies report the
	// capability as missing
	DependenciesUnsupported bool
}

// NewFake creates an empty fake hosting backend.
func NewFake() *Fake {
	return &Fake{
		mrs:        map[int]*fakeMR{},
		nextID:     1,
		nextNoteID: 1,
		FailOn:     map[string]error{},
	}
}

func (f *Fake) record(method string, mrID int, detail string) {
	f.ops = append(f.ops, Op{Method: method, MRID: mrID, Detail: detail})
}

func (f *Fake) failure(method string) error {
	if err, ok := f.FailOn[method]; ok {
		return err
	}
	return nil
}

// Ops returns the ordered log of calls made so far.
func (f *Fake) Ops() []Op {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Op, len(f.ops))
	copy(out, f.ops)
	return out
}

// CountOps returns how many calls were made to the given method.
func (f *Fake) CountOps(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, op := range f.ops {
		if op.Method == method {
			n++
		}
	}
	return n
}

// Review returns a copy of the stored review, for assertions.
func (f *Fake) Review(id int) (Review, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mr, ok := f.mrs[id]
	if !ok {
		return Review{}, false
	}
	return mr.review, true
}

// Notes returns the stored comments of a review, for assertions.
func (f *Fake) Notes(id int) []Note {
	f.mu.Lock()
	defer f.mu.Unlock()
	mr, ok := f.mrs[id]
	if !ok {
		return nil
	}
	out := make([]Note, len(mr.notes))
	copy(out, mr.notes)
	return out
}

// Blocking returns the recorded blocking review ids, for assertions.
func (f *Fake) Blocking(id int) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	mr, ok := f.mrs[id]
	if !ok {
		return nil
	}
	out := make([]int, len(mr.blocking))
	copy(out, mr.blocking)
	return out
}

// SetState overrides a review's state, used to simulate merges/closes
// that happen outside the tool.
func (f *Fake) SetState(id int, state State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if mr, ok := f.mrs[id]; ok {
		mr.review.State = state
	}
}

// AddReview seeds a review that exists remotely before the run, used to
// simulate downstream commits.
func (f *Fake) AddReview(review Review) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if review.ID == 0 {
		review.ID = f.nextID
		f.nextID++
	} else if review.ID >= f.nextID {
		f.nextID = review.ID + 1
	}
	if review.State == "" {
		review.State = StateOpen
	}
	f.mrs[review.ID] = &fakeMR{review: review}
	return review.ID
}

// CreateMR opens a fake review request.
func (f *Fake) CreateMR(ctx context.Context, source, target, title, description string) (*Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CreateMR"); err != nil {
		return nil, err
	}

	id := f.nextID
	f.nextID++
	review := Review{
		ID:           id,
		URL:          fmt.Sprintf("https://gitlab.example.com/project/merge_requests/%d", id),
		Title:        title,
		SourceBranch: source,
		TargetBranch: target,
		State:        StateOpen,
	}
	f.mrs[id] = &fakeMR{review: review, desc: description}
	f.record("CreateMR", id, source+" -> "+target)
	return &review, nil
}

// UpdateMR updates a fake review request.
func (f *Fake) UpdateMR(ctx context.Context, id int, title, targetBranch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("UpdateMR"); err != nil {
		return err
	}

	mr, ok := f.mrs[id]
	if !ok {
		return fmt.Errorf("review %d not found", id)
	}
	mr.review.Title = title
	if targetBranch != "" {
		mr.review.TargetBranch = targetBranch
	}
	f.record("UpdateMR", id, targetBranch)
	return nil
}

// GetMRState returns a fake review's state.
func (f *Fake) GetMRState(ctx context.Context, id int) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("GetMRState"); err != nil {
		return "", err
	}

	mr, ok := f.mrs[id]
	if !ok {
		return "", fmt.Errorf("review %d not found", id)
	}
	f.record("GetMRState", id, string(mr.review.State))
	return mr.review.State, nil
}

// CloseMR closes a fake review request.
func (f *Fake) CloseMR(ctx context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("CloseMR"); err != nil {
		return err
	}

	mr, ok := f.mrs[id]
	if !ok {
		return fmt.Errorf("review %d not found", id)
	}
	mr.review.State = StateClosed
	f.record("CloseMR", id, "")
	return nil
}

// AddNote adds a comment to a fake review.
func (f *Fake) AddNote(ctx context.Context, id int, body string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("AddNote"); err != nil {
		return 0, err
	}

	mr, ok := f.mrs[id]
	if !ok {
		return 0, fmt.Errorf("review %d not found", id)
	}
	noteID := f.nextNoteID
	f.nextNoteID++
	mr.notes = append(mr.notes, Note{ID: noteID, Body: body})
	f.record("AddNote", id, "")
	return noteID, nil
}

// UpdateNote replaces the body of a fake comment.
func (f *Fake) UpdateNote(ctx context.Context, id, noteID int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("UpdateNote"); err != nil {
		return err
	}

	mr, ok := f.mrs[id]
	if !ok {
		return fmt.Errorf("review %d not found", id)
	}
	for i := range mr.notes {
		if mr.notes[i].ID == noteID {
			mr.notes[i].Body = body
			f.record("UpdateNote", id, "")
			return nil
		}
	}
	return fmt.Errorf("note %d not found on review %d", noteID, id)
}

// ListNotes returns a fake review's comments.
func (f *Fake) ListNotes(ctx context.Context, id int) ([]Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("ListNotes"); err != nil {
		return nil, err
	}

	mr, ok := f.mrs[id]
	if !ok {
		return nil, fmt.Errorf("review %d not found", id)
	}
	f.record("ListNotes", id, "")
	out := make([]Note, len(mr.notes))
	copy(out, mr.notes)
	return out, nil
}

// SetDependencies records blocking reviews, or reports the capability as
// missing when DependenciesUnsupported is set.
func (f *Fake) SetDependencies(ctx context.Context, id int, blocking []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DependenciesUnsupported {
		f.record("SetDependencies", id, "unsupported")
		return gserrors.ErrDependenciesUnsupported
	}
	if err := f.failure("SetDependencies"); err != nil {
		return err
	}

	mr, ok := f.mrs[id]
	if !ok {
		return fmt.Errorf("review %d not found", id)
	}
	mr.blocking = append([]int(nil), blocking...)
	f.record("SetDependencies", id, fmt.Sprint(blocking))
	return nil
}

// FindByStackName returns fake reviews whose source branch belongs to
// the named stack.
func (f *Fake) FindByStackName(ctx context.Context, stackName string) ([]Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("FindByStackName"); err != nil {
		return nil, err
	}

	marker := "@" + stackName + "@"
	var reviews []Review
	for _, mr := range f.mrs {
		if strings.Contains(mr.review.SourceBranch, marker) {
			reviews = append(reviews, mr.review)
		}
	}
	f.record("FindByStackName", 0, stackName)
	return reviews, nil
}

// FindBySourceBranch returns the open fake review for a source branch.
func (f *Fake) FindBySourceBranch(ctx context.Context, branch string) (*Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failure("FindBySourceBranch"); err != nil {
		return nil, err
	}

	for _, mr := range f.mrs {
		if mr.review.SourceBranch == branch && mr.review.State == StateOpen {
			review := mr.review
			f.record("FindBySourceBranch", review.ID, branch)
			return &review, nil
		}
	}
	f.record("FindBySourceBranch", 0, branch)
	return nil, nil
}
