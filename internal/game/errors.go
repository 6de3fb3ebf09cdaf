package game

import "errors"

// Errors returned by Handle for requests rejected before any pipeline runs.
var (
	ErrNoDescription  = errors.New("missing scene description")
	ErrSceneActive    = errors.New("there is already an active scene")
	ErrSceneStarting  = errors.New("a scene is already being created")
	ErrNoScene        = errors.New("no active scene")
	ErrAlreadyReplied = errors.New("already replied to this scene")
	ErrNotSceneReply  = errors.New("message does not reply to the active scene")
	ErrUnknownRequest = errors.New("unknown request type")

	// ErrEmptyResult is returned when a pipeline succeeded but produced no text.
	ErrEmptyResult = errors.New("storyteller returned no text")
)

// IsUserError reports whether err is a rejected request rather than a failure.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrNoDescription, ErrSceneActive, ErrSceneStarting,
		ErrNoScene, ErrAlreadyReplied, ErrNotSceneReply, ErrUnknownRequest,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
