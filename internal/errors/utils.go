package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a ViewError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *ViewError {
	if err == nil {
		return nil
	}

	var ve *ViewError
	if errors.As(err, &ve) {
		return &ViewError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       ve,
			Path:        ve.Path,
			Context:     ve.Context,
			Recoverable: recoverable(errType),
		}
	}

	return &ViewError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: recoverable(errType),
	}
}

func recoverable(errType ErrorType) bool {
	return errType == ErrorTypeValidation || errType == ErrorTypeRead
}

// WrapRead wraps an error as a fragment read failure for path
func WrapRead(err error, path string) *ViewError {
	ve := Wrap(err, ErrorTypeRead, ErrCodeReadFragment, "read fragment")
	if ve != nil {
		ve.Path = path
	}
	return ve
}

// WrapWrite wraps an error as an artifact write failure for path
func WrapWrite(err error, path string) *ViewError {
	ve := Wrap(err, ErrorTypeWrite, ErrCodeWriteArtifact, "write artifact")
	if ve != nil {
		ve.Path = path
	}
	return ve
}
