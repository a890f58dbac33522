package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no quiz has been started for the
	// caller's session ID, or the backing store expired it.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrBankEmpty indicates the question bank loaded zero questions.
	ErrBankEmpty = errors.New("question bank is empty")
	// ErrBankFormat indicates the question bank source is malformed.
	ErrBankFormat = errors.New("malformed question bank")
)
