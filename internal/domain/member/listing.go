package member

import (
	"errors"

	"github.com/google/uuid"

	"github.com/Ignacioamaya1993/Padron-de-Afiliados-sub000/pkg/pagination"
)

var (
	ErrAlreadyEditing     = errors.New("another member is already being edited")
	ErrNotEditing         = errors.New("this member is not being edited")
	ErrPagingWhileEditing = errors.New("finish or cancel the current edit before changing page")
)

// Mode is the listing's interaction mode.
type Mode string

const (
	ModeViewing Mode = "viewing"
	ModeEditing Mode = "editing"
)

// ListState is one user's position in the member listing: the active
// filter, the page, and which record, if any, is open for editing.
type ListState struct {
	Filter    Filter            `json:"filter"`
	Page      pagination.Params `json:"page"`
	Total     int               `json:"total"`
	Mode      Mode              `json:"mode"`
	EditingID *uuid.UUID        `json:"editing_id,omitempty"`
}

// NewListState starts at the first page in viewing mode.
func NewListState(limit int) ListState {
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	return ListState{Page: pagination.Params{Limit: limit}, Mode: ModeViewing}
}

// Action is an event applied to a ListState by Dispatch.
type Action interface {
	action()
}

type (
	// NewSearch replaces the filter and returns to the first page.
	NewSearch struct {
		Filter Filter
		Limit  int
	}
	NextPage struct{}
	PrevPage struct{}
	// PageLoaded records the total reported by the last query.
	PageLoaded struct{ Total int }
	BeginEdit  struct{ ID uuid.UUID }
	CancelEdit struct{}
	SaveEdit   struct{ ID uuid.UUID }
)

func (NewSearch) action()  {}
func (NextPage) action()   {}
func (PrevPage) action()   {}
func (PageLoaded) action() {}
func (BeginEdit) action()  {}
func (CancelEdit) action() {}
func (SaveEdit) action()   {}

// Dispatch applies a to s and returns the next state. On error s is
// returned unchanged.
func Dispatch(s ListState, a Action) (ListState, error) {
	if s.Mode == "" {
		s.Mode = ModeViewing
	}
	if s.Page.Limit <= 0 {
		s.Page.Limit = pagination.DefaultLimit
	}

	switch a := a.(type) {
	case NewSearch:
		if s.Mode == ModeEditing {
			return s, ErrPagingWhileEditing
		}
		next := NewListState(a.Limit)
		if a.Limit <= 0 {
			next.Page.Limit = s.Page.Limit
		}
		next.Filter = a.Filter
		return next, nil

	case NextPage:
		if s.Mode == ModeEditing {
			return s, ErrPagingWhileEditing
		}
		if s.Page.HasNext(s.Total) {
			s.Page.Offset = s.Page.NextOffset()
		}
		return s, nil

	case PrevPage:
		if s.Mode == ModeEditing {
			return s, ErrPagingWhileEditing
		}
		s.Page.Offset = s.Page.PreviousOffset()
		return s, nil

	case PageLoaded:
		s.Total = a.Total
		// Rows deleted since the last query can leave the offset past the end.
		if s.Page.Offset > 0 && s.Page.Offset >= a.Total {
			last := 0
			if a.Total > 0 {
				last = (a.Total - 1) / s.Page.Limit * s.Page.Limit
			}
			s.Page.Offset = last
		}
		return s, nil

	case BeginEdit:
		if s.Mode == ModeEditing {
			if s.EditingID != nil && *s.EditingID == a.ID {
				return s, nil
			}
			return s, ErrAlreadyEditing
		}
		id := a.ID
		s.Mode = ModeEditing
		s.EditingID = &id
		return s, nil

	case CancelEdit:
		if s.Mode != ModeEditing {
			return s, ErrNotEditing
		}
		s.Mode = ModeViewing
		s.EditingID = nil
		return s, nil

	case SaveEdit:
		if s.Mode != ModeEditing || s.EditingID == nil || *s.EditingID != a.ID {
			return s, ErrNotEditing
		}
		s.Mode = ModeViewing
		s.EditingID = nil
		return s, nil
	}
	return s, nil
}

// IsEditing reports whether id is the record open for editing.
func (s ListState) IsEditing(id uuid.UUID) bool {
	return s.Mode == ModeEditing && s.EditingID != nil && *s.EditingID == id
}
