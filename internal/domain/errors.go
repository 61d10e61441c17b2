package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a session id is unknown to the store.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNameTaken is returned when an active participant already holds the display name.
	ErrNameTaken = errors.New("display name already taken in this session")
	// ErrUnauthorized is returned when the caller lacks the role an action requires.
	// Transport drops it silently so callers cannot probe for sessions.
	ErrUnauthorized = errors.New("caller not authorized for this action")
	// ErrDuplicateAnswer is returned on a second answer from the same connection.
	ErrDuplicateAnswer = errors.New("answer already submitted for this question")
	// ErrQuestionOpen is returned when opening a question while one is still open.
	ErrQuestionOpen = errors.New("a question is already open")
	// ErrQuestionClosed marks the timer/early-close race; callers treat it as a no-op.
	ErrQuestionClosed = errors.New("question already closed")
	// ErrNoOpenQuestion is returned when an answer arrives with no question open.
	ErrNoOpenQuestion = errors.New("no question is currently open")
	// ErrQuestionNotFound is returned when a question id is unknown to the session.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrParticipantNotFound is returned when a kick targets no active participant.
	ErrParticipantNotFound = errors.New("participant not found in session")
)
