package errno

import (
	"errors"
	"fmt"
)

// Errno is a stable error class carried alongside the wrapped cause.
type Errno struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *Errno) Error() string {
	return e.Message
}

var (
	// ErrObjectNotFound marks a missing key in the object store.
	ErrObjectNotFound = &Errno{Code: 40401, Message: "object not found"}
	// ErrInvalidJob marks a malformed or incomplete job descriptor.
	ErrInvalidJob = &Errno{Code: 40001, Message: "invalid job descriptor"}
	// ErrInvalidTransition marks a state write that skips states.
	ErrInvalidTransition = &Errno{Code: 40002, Message: "illegal state transition"}

	// ErrTransientInfra covers unreachable queue/object store. Retry with
	// backoff; never fail the job for these.
	ErrTransientInfra = &Errno{Code: 50301, Message: "transient infrastructure error"}
	// ErrModelLoad is fatal for the worker process: it must not claim work.
	ErrModelLoad = &Errno{Code: 50001, Message: "model load failure"}
	// ErrAudioProcessing covers malformed or corrupt input audio.
	ErrAudioProcessing = &Errno{Code: 42201, Message: "audio processing failure"}
	// ErrTranscription covers model failures mid-inference.
	ErrTranscription = &Errno{Code: 50002, Message: "transcription failure"}
)

type classified struct {
	class *Errno
	cause error
}

func (c *classified) Error() string {
	return fmt.Sprintf("%s: %v", c.class.Message, c.cause)
}

func (c *classified) Unwrap() error { return c.cause }

func (c *classified) Is(target error) bool { return target == c.class }

// Classify attaches an error class to a cause while preserving the chain.
func Classify(class *Errno, cause error) error {
	if cause == nil {
		return nil
	}
	return &classified{class: class, cause: cause}
}

// IsTransient reports whether the error is a retryable infrastructure error.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientInfra)
}

// IsNotFound reports whether the error marks a missing object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}
