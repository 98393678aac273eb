// Package multi fans records out to several sinks at once.
package multi

import (
	"context"
	"errors"

	"github.com/KhavKivar/piwebapi-etl/internal/model"
	"github.com/KhavKivar/piwebapi-etl/internal/sink"
)

// Sink delivers every call to all wrapped sinks. A failing sink never
// prevents delivery to its siblings; errors are joined and returned.
type Sink struct {
	sinks []sink.Sink
}

// New wraps the given sinks.
func New(sinks ...sink.Sink) *Sink {
	return &Sink{sinks: sinks}
}

func (m *Sink) Init(ctx context.Context) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Init(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Sink) Write(ctx context.Context, records []model.FlatRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Sink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
