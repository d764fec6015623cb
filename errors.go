package bitweave

import (
	"github.com/mewkiz/bitweave/errs"
)

// Kind identifies the class of failure a codec operation returns, mirroring
// errs.Kind for callers who only import the root package.
type Kind = errs.Kind

const (
	NotEnoughData     = errs.NotEnoughData
	Parse             = errs.Parse
	InvalidParam      = errs.InvalidParam
	Assertion         = errs.Assertion
	NoMatchingVariant = errs.NoMatchingVariant
	Magic             = errs.Magic
	Incomplete        = errs.Incomplete
	Write             = errs.Write
)

// Error is the concrete error type every exported entry point returns,
// mirroring errs.Error for callers who only import the root package.
type Error = errs.Error

// Is reports whether err is a Kind-classified Error of the given kind.
func Is(err error, kind Kind) bool {
	return errs.Is(err, kind)
}

// ElideAssertionMessages suppresses an Assertion error's descriptive
// message, keeping only the offending field name; see errs.
// ElideAssertionMessages.
func ElideAssertionMessages(elide bool) {
	errs.ElideAssertionMessages = elide
}

// errInvalidParam builds an InvalidParam error; entry points wrap it with
// errors.WithStack for a %+v-printable trace, matching the teacher's
// cmd/wav2flac/main.go convention.
func errInvalidParam(format string, args ...any) error {
	return errs.InvalidParamf(format, args...)
}
