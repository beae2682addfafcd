package service

import "errors"

// Sentinel kinds for orchestration errors.
var (
	// ErrLeagueBusy means a cycle for the league is already running.
	ErrLeagueBusy = errors.New("league is already being processed")
	// ErrRefresh means upstream data could not be refreshed; the cycle did not run.
	ErrRefresh = errors.New("refresh league data")
)
