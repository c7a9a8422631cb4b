package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrMissionNotFound is returned when a mission row does not exist.
	ErrMissionNotFound = errors.New("mission not found")
	// ErrMissionTerminal is returned when a transition targets a mission
	// already in a terminal status.
	ErrMissionTerminal = errors.New("mission is already in a terminal status")
	// ErrResultNotFound is returned when a mission_results row does not exist.
	ErrResultNotFound = errors.New("mission result not found")
	// ErrCentroidRequired is returned when completion is attempted before a
	// result row with a non-null centroid exists.
	ErrCentroidRequired = errors.New("mission result with centroid is required before completion")
)
