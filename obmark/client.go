package obmark

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Object API abstraction the benchmark workers are written against.
// Implementations must be safe for concurrent use.
type ObjectClient interface {
	CreateBucket(ctx context.Context, bucket string) error
	Put(ctx context.Context, bucket string, key string, body []byte) error
	Get(ctx context.Context, bucket string, key string) (io.ReadCloser, error)
	ListObjectsPage(ctx context.Context, bucket string, prefix string, token string) (ListPage, error)
}

type ObjectDescriptor struct {
	Key  string
	Size int64
}

// One page of a listing. An empty NextToken marks the last page.
type ListPage struct {
	Objects   []ObjectDescriptor
	NextToken string
}

// TransportError is returned when a request could not be dispatched or its
// response could not be received (connection refused, reset, DNS, TLS).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err carries a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
