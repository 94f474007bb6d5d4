package posts

import (
	"context"
	"errors"
)

var (
	// ErrDraftActive is returned by Add and Edit while a draft is open
	ErrDraftActive = errors.New("a draft is already open")
	// ErrNoDraft is returned by Save, Cancel and SetDraft when idle
	ErrNoDraft = errors.New("no draft open")
)

type EditorState int

const (
	Idle EditorState = iota
	Drafting
)

func (s EditorState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drafting:
		return "drafting"
	default:
		return "unknown"
	}
}

// Editor drives one draft form on top of a Repository.
//
//	Idle -> Drafting  on Add or Edit(id)
//	Drafting -> Idle  on Save or Cancel
//
// Save of a draft opened by Edit updates that post; a draft opened by Add is
// created. Cancel never touches the repository. An Editor is not safe for
// concurrent use; each form owns its own.
type Editor struct {
	repo     Repository
	state    EditorState
	targetID int64
	editing  bool
	draft    Fields
}

func NewEditor(repo Repository) *Editor {
	return &Editor{repo: repo}
}

func (e *Editor) State() EditorState {
	return e.state
}

// Target returns the id the draft will be saved over, if it was opened by Edit.
func (e *Editor) Target() (int64, bool) {
	return e.targetID, e.editing
}

func (e *Editor) Draft() Fields {
	return e.draft
}

// SetDraft replaces the draft fields
func (e *Editor) SetDraft(f Fields) error {
	if e.state != Drafting {
		return ErrNoDraft
	}
	e.draft = f
	return nil
}

// Add opens an empty draft for a new post.
func (e *Editor) Add() error {
	if e.state == Drafting {
		return ErrDraftActive
	}
	e.open(Fields{}, 0, false)
	return nil
}

// Edit opens a draft preloaded with the post's current fields. An unknown id
// leaves the editor idle.
func (e *Editor) Edit(ctx context.Context, id int64) error {
	if e.state == Drafting {
		return ErrDraftActive
	}
	p, err := e.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	e.open(p.Fields(), id, true)
	return nil
}

// Save commits the draft and returns to idle. On error the draft stays open
// so the caller can retry or cancel.
func (e *Editor) Save(ctx context.Context) (Post, error) {
	if e.state != Drafting {
		return Post{}, ErrNoDraft
	}

	var (
		p   Post
		err error
	)
	if e.editing {
		p, err = e.repo.Update(ctx, e.targetID, e.draft)
	} else {
		p, err = e.repo.Create(ctx, e.draft)
	}
	if err != nil {
		return Post{}, err
	}
	e.reset()
	return p, nil
}

// Cancel discards the draft.
func (e *Editor) Cancel() error {
	if e.state != Drafting {
		return ErrNoDraft
	}
	e.reset()
	return nil
}

func (e *Editor) open(f Fields, id int64, editing bool) {
	e.state = Drafting
	e.draft = f
	e.targetID = id
	e.editing = editing
}

func (e *Editor) reset() {
	e.state = Idle
	e.draft = Fields{}
	e.targetID = 0
	e.editing = false
}
