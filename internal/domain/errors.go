package domain

import "errors"

var (
	// ErrPromptNotFound indicates the prompt catalog has no such prompt.
	ErrPromptNotFound = errors.New("prompt not found")
	// ErrAlreadySubmitted is returned when a second submission arrives for the
	// same (user, prompt) pair.
	ErrAlreadySubmitted = errors.New("already submitted for this prompt")
	// ErrVotingClosed is returned when submitting against a closed prompt.
	ErrVotingClosed = errors.New("voting is closed for this prompt")
	// ErrResultsSealed is returned when revealing a prompt that is still active.
	ErrResultsSealed = errors.New("results are sealed until the prompt closes")
	// ErrInvalidOption indicates a vote or prediction index out of range.
	ErrInvalidOption = errors.New("option index out of range")
	// ErrInvalidProposal indicates a community proposal failed validation.
	ErrInvalidProposal = errors.New("proposal needs a question and 4 distinct options")
	// ErrShuttingDown is returned when the service stops during a lock delay.
	ErrShuttingDown = errors.New("service is shutting down")
)
