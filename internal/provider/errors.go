package provider

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      error = errors.New("exactly one of file or file_url must be provided")
	ErrTransport         error = errors.New("provider transport failure")
	ErrMalformedResponse error = errors.New("malformed provider response")
)

// DefaultErrorMessage is used when a failed provider response carries no readable error.
const DefaultErrorMessage = "Internal Server Error"

// ProviderError is a non-success HTTP answer from the provider.
type ProviderError struct {
	Message string
	Code    int
}

func (e *ProviderError) Error() string {
	if e.Code == 0 {
		return e.Message
	}
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// TransportError is a network-level failure talking to the provider or downloading its result.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
