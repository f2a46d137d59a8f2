// Package editor implements the profile edit session: a private working copy
// of the profile document, field-level mutation with path validation, and
// explicit commit/cancel semantics.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/LilyAva000/office-work/internal/profile"
	"github.com/LilyAva000/office-work/internal/session"
)

var (
	// ErrAlreadyEditing is returned by BeginEdit while an edit session is open.
	ErrAlreadyEditing = errors.New("edit session already open")

	// ErrNotEditing is returned by mutation, commit and cancel calls when no
	// edit session is open.
	ErrNotEditing = errors.New("no edit session open")

	// ErrCommitInFlight is returned by Cancel while a commit's gateway call
	// is outstanding.
	ErrCommitInFlight = errors.New("commit in flight")

	// ErrPathNotFound is returned when a section, subsection, or field does
	// not exist in the working copy. Sections are never created implicitly.
	ErrPathNotFound = errors.New("path not found")

	// ErrIndexOutOfRange is returned for list mutations at an invalid index.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Committer writes the working copy through to the backend. Satisfied by
// gateway.Client.
type Committer interface {
	UpdateProfile(ctx context.Context, personID string, doc profile.Document) error
}

type state int

const (
	stateIdle state = iota
	stateEditing
	stateCommitting
)

// Editor owns at most one working copy at a time. Operations are meant to be
// driven from a single flow; the committing state guards the one cross-call
// interleaving that matters, Cancel during an outstanding commit.
type Editor struct {
	store     *session.Store
	committer Committer

	state   state
	working profile.Document
}

// New creates an Editor bound to a session store and a committer.
func New(store *session.Store, committer Committer) *Editor {
	return &Editor{store: store, committer: committer}
}

// BeginEdit opens an edit session over a deep copy of doc. The document must
// be structurally complete.
func (e *Editor) BeginEdit(doc profile.Document) error {
	if e.state != stateIdle {
		return ErrAlreadyEditing
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	e.working = doc.Clone()
	e.state = stateEditing
	return nil
}

// Editing reports whether an edit session is open.
func (e *Editor) Editing() bool {
	return e.state != stateIdle
}

// Working returns a copy of the current working document.
func (e *Editor) Working() (profile.Document, error) {
	if e.state == stateIdle {
		return profile.Document{}, ErrNotEditing
	}
	return e.working.Clone(), nil
}

// SetField sets a scalar field. For basic_info the subsection selects
// personal_info or work_info; for evaluation the subsection is empty and the
// field is the year label. Fields inside the open basic-info maps must
// already exist; the editor mirrors a form, it does not grow one.
func (e *Editor) SetField(section, subsection, field, value string) error {
	if e.state != stateEditing {
		return ErrNotEditing
	}

	switch section {
	case profile.SectionBasicInfo:
		var m map[string]string
		switch subsection {
		case profile.SubsectionPersonalInfo:
			m = e.working.BasicInfo.PersonalInfo
		case profile.SubsectionWorkInfo:
			m = e.working.BasicInfo.WorkInfo
		default:
			return fmt.Errorf("%w: %s.%s", ErrPathNotFound, section, subsection)
		}
		if _, ok := m[field]; !ok {
			return fmt.Errorf("%w: %s.%s.%s", ErrPathNotFound, section, subsection, field)
		}
		m[field] = value
		return nil

	case profile.SectionEvaluation:
		if subsection != "" {
			return fmt.Errorf("%w: %s.%s", ErrPathNotFound, section, subsection)
		}
		if _, ok := e.working.Evaluation[field]; !ok {
			return fmt.Errorf("%w: %s.%s", ErrPathNotFound, section, field)
		}
		e.working.Evaluation[field] = value
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrPathNotFound, section)
	}
}

// SetListItemField sets one field of the index-th element of an ordered-list
// section (resume, rewards, or family). The whole update applies or none of
// it does.
func (e *Editor) SetListItemField(section string, index int, field, value string) error {
	if e.state != stateEditing {
		return ErrNotEditing
	}

	switch section {
	case profile.SectionResume:
		if index < 0 || index >= len(e.working.Resume) {
			return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, section, index)
		}
		entry := e.working.Resume[index]
		switch field {
		case "time":
			entry.Time = value
		case "type":
			entry.Type = value
		case "content":
			entry.Content = value
		default:
			return fmt.Errorf("%w: %s.%s", ErrPathNotFound, section, field)
		}
		e.working.Resume[index] = entry
		return nil

	case profile.SectionRewards:
		if index < 0 || index >= len(e.working.Rewards) {
			return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, section, index)
		}
		entry := e.working.Rewards[index]
		switch field {
		case "time":
			entry.Time = value
		case "name":
			entry.Name = value
		case "unit":
			entry.Unit = value
		case "reason":
			entry.Reason = value
		default:
			return fmt.Errorf("%w: %s.%s", ErrPathNotFound, section, field)
		}
		e.working.Rewards[index] = entry
		return nil

	case profile.SectionFamily:
		if index < 0 || index >= len(e.working.Family) {
			return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, section, index)
		}
		entry := e.working.Family[index]
		switch field {
		case "relation":
			entry.Relation = value
		case "name":
			entry.Name = value
		case "age":
			entry.Age = value
		case "id_number":
			entry.IDNumber = value
		case "political_status":
			entry.PoliticalStatus = value
		case "employer":
			entry.Employer = value
		default:
			return fmt.Errorf("%w: %s.%s", ErrPathNotFound, section, field)
		}
		e.working.Family[index] = entry
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrPathNotFound, section)
	}
}

// AppendListItem appends a new element built from template fields to an
// ordered-list section. Unknown template fields are rejected before anything
// is appended.
func (e *Editor) AppendListItem(section string, template map[string]string) error {
	if e.state != stateEditing {
		return ErrNotEditing
	}

	switch section {
	case profile.SectionResume:
		var entry profile.ResumeEntry
		for k, v := range template {
			switch k {
			case "time":
				entry.Time = v
			case "type":
				entry.Type = v
			case "content":
				entry.Content = v
			default:
				return fmt.Errorf("%w: %s.%s", ErrPathNotFound, section, k)
			}
		}
		e.working.Resume = append(e.working.Resume, entry)
		return nil

	case profile.SectionRewards:
		var entry profile.RewardEntry
		for k, v := range template {
			switch k {
			case "time":
				entry.Time = v
			case "name":
				entry.Name = v
			case "unit":
				entry.Unit = v
			case "reason":
				entry.Reason = v
			default:
				return fmt.Errorf("%w: %s.%s", ErrPathNotFound, section, k)
			}
		}
		e.working.Rewards = append(e.working.Rewards, entry)
		return nil

	case profile.SectionFamily:
		var entry profile.FamilyMember
		for k, v := range template {
			switch k {
			case "relation":
				entry.Relation = v
			case "name":
				entry.Name = v
			case "age":
				entry.Age = v
			case "id_number":
				entry.IDNumber = v
			case "political_status":
				entry.PoliticalStatus = v
			case "employer":
				entry.Employer = v
			default:
				return fmt.Errorf("%w: %s.%s", ErrPathNotFound, section, k)
			}
		}
		e.working.Family = append(e.working.Family, entry)
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrPathNotFound, section)
	}
}

// RemoveListItemAt removes the element at index from an ordered-list section,
// shifting subsequent elements down by one.
func (e *Editor) RemoveListItemAt(section string, index int) error {
	if e.state != stateEditing {
		return ErrNotEditing
	}

	switch section {
	case profile.SectionResume:
		if index < 0 || index >= len(e.working.Resume) {
			return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, section, index)
		}
		e.working.Resume = append(e.working.Resume[:index], e.working.Resume[index+1:]...)
		return nil
	case profile.SectionRewards:
		if index < 0 || index >= len(e.working.Rewards) {
			return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, section, index)
		}
		e.working.Rewards = append(e.working.Rewards[:index], e.working.Rewards[index+1:]...)
		return nil
	case profile.SectionFamily:
		if index < 0 || index >= len(e.working.Family) {
			return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, section, index)
		}
		e.working.Family = append(e.working.Family[:index], e.working.Family[index+1:]...)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrPathNotFound, section)
	}
}

// AppendEvaluation inserts a year → result pair into the evaluation mapping.
// An empty year defaults to the current year. An existing year is silently
// overwritten (last write wins).
func (e *Editor) AppendEvaluation(year, result string) error {
	if e.state != stateEditing {
		return ErrNotEditing
	}
	if year == "" {
		year = strconv.Itoa(time.Now().Year())
	}
	e.working.Evaluation[year] = result
	return nil
}

// RemoveEvaluation removes a year from the evaluation mapping.
func (e *Editor) RemoveEvaluation(year string) error {
	if e.state != stateEditing {
		return ErrNotEditing
	}
	if _, ok := e.working.Evaluation[year]; !ok {
		return fmt.Errorf("%w: %s.%s", ErrPathNotFound, profile.SectionEvaluation, year)
	}
	delete(e.working.Evaluation, year)
	return nil
}

// RenameEvaluationYear moves the value from oldYear to newYear. A prior value
// under newYear is overwritten (last-write-wins).
func (e *Editor) RenameEvaluationYear(oldYear, newYear string) error {
	if e.state != stateEditing {
		return ErrNotEditing
	}
	v, ok := e.working.Evaluation[oldYear]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrPathNotFound, profile.SectionEvaluation, oldYear)
	}
	delete(e.working.Evaluation, oldYear)
	e.working.Evaluation[newYear] = v
	return nil
}

// Commit validates the working copy, writes it through the committer, and on
// success replaces the authoritative document in the session store and closes
// the edit session. On committer failure the edit session stays open and the
// session store is untouched.
func (e *Editor) Commit(ctx context.Context) error {
	if e.state != stateEditing {
		return ErrNotEditing
	}
	if err := e.working.Validate(); err != nil {
		return err
	}

	e.state = stateCommitting
	err := e.committer.UpdateProfile(ctx, e.store.PersonID(), e.working.Clone())
	if err != nil {
		e.state = stateEditing
		return fmt.Errorf("committing profile: %w", err)
	}

	if err := e.store.Set(session.KeyUserInfo, e.working); err != nil {
		e.state = stateEditing
		return fmt.Errorf("updating session store: %w", err)
	}

	e.working = profile.Document{}
	e.state = stateIdle
	return nil
}

// Cancel discards the working copy and closes the edit session. Disallowed
// while a commit's gateway call is outstanding.
func (e *Editor) Cancel() error {
	switch e.state {
	case stateIdle:
		return ErrNotEditing
	case stateCommitting:
		return ErrCommitInFlight
	}
	e.working = profile.Document{}
	e.state = stateIdle
	return nil
}
