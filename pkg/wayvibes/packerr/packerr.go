// Package packerr defines the error taxonomy shared by the sound pack
// import pipeline and the pack store.
//
// Every error surfaced by the pipeline can be classified with errors.Is
// against one of the sentinel kinds below:
//
//	if errors.Is(err, packerr.ErrDependencyMissing) {
//	    // tell the user to install wayvibes
//	}
package packerr

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds.
var (
	// ErrIO is any underlying filesystem or process I/O failure.
	ErrIO = errors.New("i/o failure")

	// ErrUnsupportedFormat is returned when an archive suffix is not recognized.
	ErrUnsupportedFormat = errors.New("unsupported archive format")

	// ErrInvalidArchiveEntry is returned when an archive entry tries to escape
	// the extraction root.
	ErrInvalidArchiveEntry = errors.New("invalid archive entry")

	// ErrCorruptArchive is returned when an archive cannot be decoded.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrInvalidPack covers missing manifests, empty identifiers, validator
	// rejections, identifier collisions and malformed manifest JSON.
	ErrInvalidPack = errors.New("invalid pack")

	// ErrDependencyMissing is returned when the external wayvibes binary is absent.
	ErrDependencyMissing = errors.New("dependency missing")

	// ErrNotFound is returned when a pack does not exist. It is also an ErrInvalidPack.
	ErrNotFound = fmt.Errorf("%w: pack not found", ErrInvalidPack)
)

// Error is a classified pipeline error with a human-readable message.
type Error struct {
	// Kind is one of the sentinel errors of this package.
	Kind error

	// Op names the operation that failed (e.g., "extract", "commit").
	Op string

	// Msg is the human-readable description.
	Msg string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Kind != nil && e.Err == nil:
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil {
		if e.Msg != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// New returns a classified error with a formatted message.
func New(kind error, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. It returns nil when err is nil.
// Errors that are already classified keep their original kind.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// IO classifies err as an I/O failure.
func IO(op string, err error) error {
	return Wrap(ErrIO, op, err)
}

// InvalidPack returns an ErrInvalidPack error with a formatted message.
func InvalidPack(op, format string, args ...interface{}) error {
	return New(ErrInvalidPack, op, format, args...)
}

// KindOf returns the sentinel kind of err, or nil if err is unclassified.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrNotFound,
		ErrDependencyMissing,
		ErrUnsupportedFormat,
		ErrInvalidArchiveEntry,
		ErrCorruptArchive,
		ErrInvalidPack,
		ErrIO,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
