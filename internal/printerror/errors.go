// Package printerror defines the three kinds of failure that can abort the
// generation of print data: a bad parameter, an image that couldn't be
// converted, and an image that couldn't be loaded in the first place.
package printerror

import (
	"errors"
	"fmt"
)

type Kind byte

const (
	Unknown Kind = iota
	Parameter
	Conversion
	Input
)

func (k Kind) String() string {
	switch k {
	case Parameter:
		return "parameter error"
	case Conversion:
		return "conversion error"
	case Input:
		return "input error"
	default:
		return "unknown error"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Sentinels for use with errors.Is; any *Error of the same kind matches.
var (
	ErrParameter  = &Error{Kind: Parameter}
	ErrConversion = &Error{Kind: Conversion}
	ErrInput      = &Error{Kind: Input}
)

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Err == nil
}

func Parameterf(format string, args ...any) error {
	return &Error{Kind: Parameter, Msg: fmt.Sprintf(format, args...)}
}

func Conversionf(format string, args ...any) error {
	return &Error{Kind: Conversion, Msg: fmt.Sprintf(format, args...)}
}

func NewConversion(msg string, err error) error {
	return &Error{Kind: Conversion, Msg: msg, Err: err}
}

func NewInput(msg string, err error) error {
	return &Error{Kind: Input, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
