package subaru

import (
	"errors"
	"fmt"
)

// ErrMissingCustomCommand is returned when a descriptor selects the custom
// build method but carries no command to run.
var ErrMissingCustomCommand = errors.New("custom build method requires a command")

// FetchError reports a failed download after all transports were tried.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// UnsupportedFormatError reports an archive whose suffix matches none of the
// supported container formats.
type UnsupportedFormatError struct {
	Archive string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported archive format: %s", e.Archive)
}

// SourceDirNotFoundError reports that no source directory could be located
// for an extracted archive after all resolution tiers were exhausted.
type SourceDirNotFoundError struct {
	Archive string
}

func (e *SourceDirNotFoundError) Error() string {
	return fmt.Sprintf("could not locate source directory for %s", e.Archive)
}

// UnknownMethodError reports a descriptor naming a build method the engine
// does not implement.
type UnknownMethodError struct {
	Package string
	Method  string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("package %s: unknown build method %q", e.Package, e.Method)
}

// BuildError reports a build-tool step exiting non-zero. Stage is one of
// fetch/extract/resolve/bootstrap/configure/build/install/pre-hook/post-hook/custom.
type BuildError struct {
	Package string
	Stage   string
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("package %s failed during %s: %v", e.Package, e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }
