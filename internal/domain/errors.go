package domain

import "errors"

var (
	// ErrDuelNotFound is returned when the backend has no duel with the requested id.
	ErrDuelNotFound = errors.New("duel not found")
	// ErrNotInProgress is returned for actions that need an active round.
	ErrNotInProgress = errors.New("duel is not in progress")
	// ErrAlreadyAnswered is returned when the local player already answered the current round.
	ErrAlreadyAnswered = errors.New("round already answered")
	// ErrInvalidAnswer indicates an answer index outside the question's options.
	ErrInvalidAnswer = errors.New("answer index out of range")
	// ErrNotParticipant is returned when the local player is not seated in the duel.
	ErrNotParticipant = errors.New("not a participant of this duel")
	// ErrAbandonBlocked is returned while abandoning is temporarily blocked.
	ErrAbandonBlocked = errors.New("abandon temporarily blocked")
	// ErrAbandonNotConfirmed is returned when abandon is issued without prior confirmation.
	ErrAbandonNotConfirmed = errors.New("abandon not confirmed")
	// ErrNoSnapshot indicates there is no cached duel snapshot.
	ErrNoSnapshot = errors.New("no cached snapshot")
)
