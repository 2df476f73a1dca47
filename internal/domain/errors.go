package domain

import "errors"

var (
	// ErrBankNotFound indicates the question bank could not be loaded.
	ErrBankNotFound = errors.New("question bank not found")
	// ErrEmptyBank is returned when a bank has no questions.
	ErrEmptyBank = errors.New("question bank is empty")
	// ErrQuestionNotFound indicates a question id is not in the loaded bank.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrTeamNotFound indicates a team id is not part of the session.
	ErrTeamNotFound = errors.New("team not found")
	// ErrUnknownMessage is returned when decoding a message type nobody handles.
	ErrUnknownMessage = errors.New("unknown message type")
	// ErrChannelClosed is returned when publishing on a closed channel.
	ErrChannelClosed = errors.New("channel closed")
)
