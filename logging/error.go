package logging

import "errors"

// StructuredError is an error that carries a log record, so the code that
// handles it can log it with its original level and fields.
type StructuredError struct {
	Record Record
	Err    error
}

// NewError returns a StructuredError at error level.
func NewError(msg string, fields ...Fields) *StructuredError {
	return &StructuredError{Record: NewRecord(LevelError, msg, fields...)}
}

// Wrap attaches err as the cause.
func (e *StructuredError) Wrap(err error) *StructuredError {
	e.Err = err
	return e
}

func (e *StructuredError) Error() string {
	if e.Err != nil {
		return e.Record.Text() + ": " + e.Err.Error()
	}
	return e.Record.Text()
}

func (e *StructuredError) Unwrap() error {
	return e.Err
}

// LogError logs err through l. A StructuredError anywhere in the chain is
// logged with its own level and fields; other errors are logged at error
// level.
func LogError(l Logger, err error) {
	if l == nil || err == nil {
		return
	}
	var se *StructuredError
	if errors.As(err, &se) {
		r := se.Record
		if se.Err != nil {
			r.Fields = mergeFields(r.Fields, Fields{"error": se.Err.Error()})
		}
		l.Log(r)
		return
	}
	l.Error(err.Error())
}
