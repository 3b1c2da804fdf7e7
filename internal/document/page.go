package document

import "fmt"

// PageState is the lifecycle state of a page handle
type PageState int

const (
	// StateDraft accepts staged fills; the page may not be copied yet
	StateDraft PageState = iota
	// StateCommitted has its fills persisted and may be copied
	StateCommitted
)

// String returns the state name
func (s PageState) String() string {
	switch s {
	case StateDraft:
		return "draft"
	case StateCommitted:
		return "committed"
	default:
		return fmt.Sprintf("PageState(%d)", int(s))
	}
}

// PageHandle wraps one source page through the Draft -> Committed transition.
// Fills are staged while in Draft; Materialize commits them through the
// backend. Only a Committed handle can be copied into an Output.
type PageHandle struct {
	backend Backend
	index   int
	size    Size
	state   PageState
	staged  []Fill
}

// OpenPage returns a Draft handle for the source page at index
func OpenPage(b Backend, index int) (*PageHandle, error) {
	if index < 0 || index >= b.PageCount() {
		return nil, NewErrorWithDetails(ErrInvalidInput, "page index out of range",
			fmt.Sprintf("index %d, page count %d", index, b.PageCount()), nil)
	}
	size, err := b.PageSize(index)
	if err != nil {
		return nil, NewErrorWithPage(ErrInvalidInput, "failed to read page size", index+1, err)
	}
	return &PageHandle{
		backend: b,
		index:   index,
		size:    size,
		state:   StateDraft,
	}, nil
}

// Index returns the 0-based source page index
func (h *PageHandle) Index() int { return h.index }

// Size returns the page dimensions
func (h *PageHandle) Size() Size { return h.size }

// State returns the current lifecycle state
func (h *PageHandle) State() PageState { return h.state }

// Staged returns a copy of the fills waiting for Materialize
func (h *PageHandle) Staged() []Fill {
	out := make([]Fill, len(h.staged))
	copy(out, h.staged)
	return out
}

// Stage queues a fill. Staging on a committed page is an error.
func (h *PageHandle) Stage(f Fill) error {
	if h.state != StateDraft {
		return NewErrorWithPage(ErrInvalidState, "cannot stage fill on committed page", h.index+1, nil)
	}
	if f.Rect.Empty() {
		return nil
	}
	h.staged = append(h.staged, f)
	return nil
}

// Materialize commits staged fills and moves the handle to Committed.
// Calling it again on a committed handle is a no-op.
func (h *PageHandle) Materialize() error {
	if h.state == StateCommitted {
		return nil
	}
	if err := h.backend.Commit(h.index, h.staged); err != nil {
		return NewErrorWithPage(ErrPersistence, "failed to materialize page", h.index+1, err)
	}
	h.staged = nil
	h.state = StateCommitted
	return nil
}

// Output collects copied pages into the result document
type Output struct {
	backend Backend
	pages   []*OutputPage
}

// NewOutput starts an empty output document on the backend
func NewOutput(b Backend) *Output {
	return &Output{backend: b}
}

// OutputPage is a page of the output document
type OutputPage struct {
	backend Backend
	index   int
	source  int
	size    Size
}

// Index returns the 0-based output page index
func (p *OutputPage) Index() int { return p.index }

// Source returns the source page index this page was copied from
func (p *OutputPage) Source() int { return p.source }

// Size returns the page dimensions
func (p *OutputPage) Size() Size { return p.size }

// InsertTextBox draws wrapped text inside a box on this page
func (p *OutputPage) InsertTextBox(box TextBox) error {
	if err := p.backend.InsertText(p.index, box); err != nil {
		return NewErrorWithPage(ErrPersistence, "failed to insert text", p.index+1, err)
	}
	return nil
}

// CopyPage appends a committed source page to the output
func (o *Output) CopyPage(h *PageHandle) (*OutputPage, error) {
	if h.State() != StateCommitted {
		return nil, NewErrorWithPage(ErrInvalidState, "page must be materialized before copy", h.index+1, nil)
	}
	idx, err := o.backend.CopyPage(h.index)
	if err != nil {
		return nil, NewErrorWithPage(ErrPersistence, "failed to copy page", h.index+1, err)
	}
	page := &OutputPage{
		backend: o.backend,
		index:   idx,
		source:  h.index,
		size:    h.size,
	}
	o.pages = append(o.pages, page)
	return page, nil
}

// PageCount returns the number of pages copied so far
func (o *Output) PageCount() int {
	return len(o.pages)
}

// Pages returns the copied pages in output order
func (o *Output) Pages() []*OutputPage {
	return o.pages
}

// Save persists the output document
func (o *Output) Save(path string) error {
	if err := o.backend.Save(path); err != nil {
		return NewError(ErrPersistence, "failed to save output document", err)
	}
	return nil
}
