// Package formstore holds the in-progress intake form of one session.
//
// A Store is an explicitly owned handle: every edit is merged with the pure
// Merge function, re-derived, and written through a Saver before it becomes
// the current state. A failed save leaves the previous state in place.
package formstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/go-ports/casefile/internal/derive"
	"github.com/go-ports/casefile/internal/jsonpatch"
	"github.com/go-ports/casefile/internal/models"
)

// ErrBadPatch is returned when a patch cannot be merged into a form.
var ErrBadPatch = errors.New("invalid form patch")

// Saver persists drafts between wizard steps.
// LoadDraft returns (nil, nil) when the session has no draft.
type Saver interface {
	SaveDraft(ctx context.Context, sessionID string, form *models.IntakeForm) error
	LoadDraft(ctx context.Context, sessionID string) (*models.IntakeForm, error)
	DeleteDraft(ctx context.Context, sessionID string) error
}

// Merge applies the JSON merge patch to old and returns the merged form.
// old is never modified. Keys set to null in the patch are cleared; arrays
// such as dependent are replaced whole.
func Merge(old *models.IntakeForm, patch []byte) (*models.IntakeForm, error) {
	doc, err := json.Marshal(old.Clone())
	if err != nil {
		return nil, fmt.Errorf("formstore.Merge: encode form: %w", err)
	}
	merged, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPatch, err)
	}
	out := &models.IntakeForm{}
	if err := json.Unmarshal(merged, out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadPatch, err)
	}
	return out, nil
}

// Store is the form state of one session.
type Store struct {
	id     string
	engine *derive.Engine
	saver  Saver

	mu   sync.Mutex
	form *models.IntakeForm
	last derive.Result
}

// New returns an empty store. A nil engine uses derive.New(); a nil saver
// keeps the store in memory only.
func New(id string, engine *derive.Engine, saver Saver) *Store {
	if engine == nil {
		engine = derive.New()
	}
	s := &Store{id: id, engine: engine, saver: saver}
	s.last = engine.Derive(nil)
	s.form = s.last.Form
	return s
}

// Open returns the store for id, restoring its saved draft if there is one.
// The restored draft is re-derived so ages reflect today's date.
func Open(ctx context.Context, id string, engine *derive.Engine, saver Saver) (*Store, error) {
	s := New(id, engine, saver)
	if saver == nil {
		return s, nil
	}
	draft, err := saver.LoadDraft(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("formstore.Open %s: %w", id, err)
	}
	if draft != nil {
		s.last = s.engine.Derive(draft)
		s.form = s.last.Form
	}
	return s, nil
}

// ID returns the session id.
func (s *Store) ID() string { return s.id }

// Update merges patch into the current form, re-derives it and persists it.
func (s *Store) Update(ctx context.Context, patch []byte) (derive.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, err := Merge(s.form, patch)
	if err != nil {
		return derive.Result{}, err
	}
	return s.commit(ctx, merged)
}

// Apply runs fn on a copy of the current form, then re-derives and persists
// the result. An error from fn discards the copy.
func (s *Store) Apply(ctx context.Context, fn func(form *models.IntakeForm) error) (derive.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.form.Clone()
	if err := fn(next); err != nil {
		return derive.Result{}, err
	}
	return s.commit(ctx, next)
}

// Replace sets the whole form.
func (s *Store) Replace(ctx context.Context, form *models.IntakeForm) (derive.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, form.Clone())
}

// Clear resets the form to empty and deletes the saved draft.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.saver != nil {
		if err := s.saver.DeleteDraft(ctx, s.id); err != nil {
			return fmt.Errorf("formstore.Clear %s: %w", s.id, err)
		}
	}
	s.last = s.engine.Derive(nil)
	s.form = s.last.Form
	return nil
}

// Snapshot returns a copy of the current form.
func (s *Store) Snapshot() *models.IntakeForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form.Clone()
}

// Last returns the derive result of the most recent change.
func (s *Store) Last() derive.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := s.last
	res.Form = s.last.Form.Clone()
	return res
}

// commit derives next and makes it current once it is saved. s.mu is held.
func (s *Store) commit(ctx context.Context, next *models.IntakeForm) (derive.Result, error) {
	res := s.engine.Derive(next)
	if s.saver != nil {
		if err := s.saver.SaveDraft(ctx, s.id, res.Form); err != nil {
			return derive.Result{}, fmt.Errorf("formstore.save %s: %w", s.id, err)
		}
	}
	s.form = res.Form
	s.last = res
	out := res
	out.Form = res.Form.Clone()
	return out, nil
}
