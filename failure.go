package bootloader

import (
	"errors"
	"fmt"

	"github.com/pitabwire/bootloader/entry"
	"github.com/pitabwire/bootloader/locale"
	"github.com/pitabwire/bootloader/workerpool"
)

// Codes shown on the diagnostic page. Every one ends the boot attempt.
const (
	CodeLocaleFetchFailed        = "LOCALE_FETCH_FAILED"
	CodeAppFetchFailed           = "APP_FETCH_FAILED"
	CodeSomethingHappened        = "SOMETHING_HAPPENED"
	CodeSomethingHappenedInAsync = "SOMETHING_HAPPENED_IN_PROMISE"
	CodeUpdateCheckFailed        = "UPDATE_CHECK_FAILED"
)

// Failure is what the diagnostic page reports.
type Failure struct {
	Code    string
	Details string
	Err     error `json:"-" yaml:"-"`
}

func (f *Failure) Error() string {
	return f.Code + ": " + f.Details
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// classify maps an error from a boot task to its failure code. Panics become
// SOMETHING_HAPPENED; errors nothing else claims become SOMETHING_HAPPENED_IN_PROMISE.
func classify(err error) *Failure {
	if err == nil {
		return nil
	}

	var failure *Failure
	if errors.As(err, &failure) {
		return failure
	}

	var panicErr *workerpool.PanicError
	switch {
	case errors.As(err, &panicErr):
		return &Failure{Code: CodeSomethingHappened, Details: fmt.Sprint(panicErr.Value), Err: err}
	case errors.Is(err, locale.ErrLocaleFetchFailed):
		return &Failure{Code: CodeLocaleFetchFailed, Details: err.Error(), Err: err}
	case errors.Is(err, entry.ErrAppFetchFailed):
		return &Failure{Code: CodeAppFetchFailed, Details: err.Error(), Err: err}
	default:
		return &Failure{Code: CodeSomethingHappenedInAsync, Details: err.Error(), Err: err}
	}
}

// updateCheckFailure reports a failed update check on top of the failure that
// triggered it.
func updateCheckFailure(original *Failure, checkErr error) *Failure {
	return &Failure{
		Code:    CodeUpdateCheckFailed,
		Details: fmt.Sprintf("%s: %s; update check: %v", original.Code, original.Details, checkErr),
		Err:     errors.Join(original.Err, checkErr),
	}
}
