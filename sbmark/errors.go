package sbmark

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/lumafield/s3-loadgen/obmark"
)

var (
	ErrEmptyListing = errors.New("no objects found under prefix")
	ErrMissingBody  = errors.New("no body in response")
)

type ErrorKind int

const (
	KindTransport ErrorKind = iota
	KindStore
	KindMissingBody
	KindEmptyListing
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStore:
		return "store"
	case KindMissingBody:
		return "missing_body"
	case KindEmptyListing:
		return "empty_listing"
	}
	return "unknown"
}

func kindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrEmptyListing):
		return KindEmptyListing
	case obmark.IsTransport(err):
		return KindTransport
	case errors.Is(err, ErrMissingBody):
		return KindMissingBody
	}
	return KindStore
}

// ErrorEvent describes a failed operation. Workers never stop on errors,
// they hand them to an ErrorSink and carry on.
type ErrorEvent struct {
	Op     OpKind
	Phase  string // put, get, list
	Worker int
	Key    string
	Kind   ErrorKind
	Err    error
}

type ErrorSink interface {
	Report(ev ErrorEvent)
}

// LogSink writes error events to a logrus logger.
type LogSink struct {
	Logger logrus.FieldLogger
}

func (s *LogSink) Report(ev ErrorEvent) {
	entry := s.Logger.WithFields(logrus.Fields{
		"worker": ev.Worker,
		"op":     ev.Op.String(),
		"phase":  ev.Phase,
		"kind":   ev.Kind.String(),
	})
	if ev.Key != "" {
		entry = entry.WithField("key", ev.Key)
	}
	if ev.Kind == KindTransport {
		entry.WithError(ev.Err).Warn("request dispatch failed")
		return
	}
	entry.WithError(ev.Err).Errorf("error during %s", ev.Phase)
}

type MultiSink []ErrorSink

func (m MultiSink) Report(ev ErrorEvent) {
	for _, s := range m {
		s.Report(ev)
	}
}
