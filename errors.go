package gonitf

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat    = errors.New("gonitf: unsupported pixel format")
	ErrInvalidRegion        = errors.New("gonitf: invalid region")
	ErrInvalidBandSelection = errors.New("gonitf: invalid band selection")
	ErrNoSuchSegment        = errors.New("gonitf: no such image segment")
	ErrSourceRead           = errors.New("gonitf: source read failed")
	ErrInvalidLayout        = errors.New("gonitf: invalid segment layout")
)

// SourceReadError reports a failed window read. Row is the source row
// (relative to the requested region) that failed, or -1 when the whole
// image was requested in one call.
type SourceReadError struct {
	Segment int
	Row     int
	Err     error
}

func (e *SourceReadError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("gonitf: reading segment %d: %v", e.Segment, e.Err)
	}
	return fmt.Sprintf("gonitf: reading segment %d row %d: %v", e.Segment, e.Row, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrSourceRead) match any SourceReadError.
func (e *SourceReadError) Is(target error) bool { return target == ErrSourceRead }
