// Package viewer holds the front end's upload → question → answer flow as
// an explicit state machine, one per browser session.
package viewer

import (
	"errors"
	"fmt"

	"github.com/fpang/cert-teacher/internal/store"
)

// State is the step a viewer session is on.
type State string

const (
	StateIdle          State = "idle"
	StateUploaded      State = "uploaded"
	StateQuestionShown State = "question_shown"
	StateAnswerShown   State = "answer_shown"
)

var (
	// ErrNothingUploaded is returned when the question is requested before
	// any upload in this session.
	ErrNothingUploaded = errors.New("no image uploaded in this session")

	// ErrQuestionNotShown is returned when the answer is requested before
	// the question was displayed.
	ErrQuestionNotShown = errors.New("question has not been shown yet")
)

// Flow tracks one session. The zero value is an idle flow.
type Flow struct {
	state    State
	filename string
}

// State returns the current state.
func (f *Flow) State() State {
	if f.state == "" {
		return StateIdle
	}
	return f.state
}

// Filename returns the name of the last uploaded file.
func (f *Flow) Filename() string { return f.filename }

// Upload records a new upload. It is allowed from any state and resets
// whatever was shown for the previous file.
func (f *Flow) Upload(filename string) error {
	if filename == "" {
		return fmt.Errorf("upload: empty filename")
	}
	f.filename = filename
	f.state = StateUploaded
	return nil
}

// ShowQuestion moves to StateQuestionShown. Showing the question again
// after the answer is allowed and keeps the answer hidden.
func (f *Flow) ShowQuestion() error {
	if f.State() == StateIdle {
		return ErrNothingUploaded
	}
	f.state = StateQuestionShown
	return nil
}

// ShowAnswer moves to StateAnswerShown. It requires the question to have
// been shown for the current upload.
func (f *Flow) ShowAnswer() error {
	switch f.State() {
	case StateQuestionShown, StateAnswerShown:
		f.state = StateAnswerShown
		return nil
	case StateIdle:
		return ErrNothingUploaded
	default:
		return ErrQuestionNotShown
	}
}

// RecordID is the id of the record the pipeline writes for the current
// upload: the filename without its final extension.
func (f *Flow) RecordID() string {
	return store.RecordID(f.filename)
}
