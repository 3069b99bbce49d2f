package errors

import "errors"

var (
	ErrInvalidAttempt       = errors.New("vote attempt is malformed")
	ErrTargetNotFound       = errors.New("vote target not found")
	ErrVoteNotFound         = errors.New("vote not found")
	ErrVoteNotFlagged       = errors.New("vote is not flagged for review")
	ErrDuplicateLedgerEntry = errors.New("duplicate ledger entry for voting window")
	ErrInvalidReviewAction  = errors.New("invalid review action")
	ErrInvalidListFilter    = errors.New("invalid list filter")
	ErrConflict             = errors.New("ledger conflict")
)
