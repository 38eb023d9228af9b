package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")

	// ErrRunInProgress is returned when a run is started while another one is active.
	ErrRunInProgress = errors.New("a run is already in progress")
	// ErrCanceled is returned when the user canceled the run.
	ErrCanceled = errors.New("canceled by user")
	// ErrAuthentication is returned when the privilege elevation rejected the credential.
	ErrAuthentication = errors.New("privileged authentication failed")
	// ErrCommandFailed is returned when a command ended unsuccessfully.
	ErrCommandFailed = errors.New("command failed")
	// ErrInputDeclined is returned when the user declined an input request.
	ErrInputDeclined = errors.New("input declined by user")
	// ErrRequestInFlight is returned when an input request is made while another is waiting.
	ErrRequestInFlight = errors.New("an input request is already waiting for an answer")
)
