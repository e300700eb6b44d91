package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyLoaded is returned by Load while a handle is still Loaded.
	ErrAlreadyLoaded = errors.New("engine already loaded")
	// ErrNotLoaded is returned when a handle is used after Unload.
	ErrNotLoaded = errors.New("engine not loaded")
)

type artifactKind int

const (
	kindNotFound artifactKind = iota
	kindMalformed
)

// artifactError describes a model or tokenizer artifact that cannot be used.
type artifactError struct {
	kind artifactKind
	what string // "model" or "tokenizer"
	path string
	err  error
}

func (e artifactError) Error() string {
	switch e.kind {
	case kindNotFound:
		return fmt.Sprintf("%s artifact missing or unreadable: %s: %v", e.what, e.path, e.err)
	default:
		return fmt.Sprintf("%s artifact malformed: %s: %v", e.what, e.path, e.err)
	}
}

func (e artifactError) Unwrap() error { return e.err }

func errNotFound(what, path string, err error) error {
	return artifactError{kind: kindNotFound, what: what, path: path, err: err}
}

func errMalformed(what, path string, err error) error {
	return artifactError{kind: kindMalformed, what: what, path: path, err: err}
}

// IsArtifactNotFound reports whether err indicates a missing or unreadable artifact.
func IsArtifactNotFound(err error) bool {
	var a artifactError
	return errors.As(err, &a) && a.kind == kindNotFound
}

// IsArtifactMalformed reports whether err indicates a truncated or corrupt artifact.
func IsArtifactMalformed(err error) bool {
	var a artifactError
	return errors.As(err, &a) && a.kind == kindMalformed
}
