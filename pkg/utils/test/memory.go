// Package testutils provides doubles shared by mnemo's package tests.
package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/mnemo/pkg/eventstream"
	"github.com/papercomputeco/mnemo/pkg/storage"
)

// ErrInjected is returned by FlakyDriver for operations set to fail.
var ErrInjected = errors.New("injected storage failure")

// FlakyDriver wraps a storage.Driver and fails selected operations.
type FlakyDriver struct {
	storage.Driver

	// FailAppend causes AppendTurn to return a StorageError.
	FailAppend bool

	// FailRemove causes RemoveOldestTurn to return a StorageError.
	FailRemove bool

	// FailList causes ListTurns to return a StorageError.
	FailList bool

	// FailCreate causes CreateSession to return a StorageError.
	FailCreate bool
}

// NewFlakyDriver wraps driver with every operation succeeding.
func NewFlakyDriver(driver storage.Driver) *FlakyDriver {
	return &FlakyDriver{Driver: driver}
}

func (d *FlakyDriver) CreateSession(ctx context.Context, id, title string) (bool, error) {
	if d.FailCreate {
		return false, &storage.StorageError{Op: "create session", Err: ErrInjected}
	}
	return d.Driver.CreateSession(ctx, id, title)
}

func (d *FlakyDriver) AppendTurn(ctx context.Context, turn *storage.StoredTurn) (*storage.StoredTurn, error) {
	if d.FailAppend {
		return nil, &storage.StorageError{Op: "append turn", Err: ErrInjected}
	}
	return d.Driver.AppendTurn(ctx, turn)
}

func (d *FlakyDriver) RemoveOldestTurn(ctx context.Context, sessionID string, accept func(*storage.StoredTurn) error) (*storage.StoredTurn, error) {
	if d.FailRemove {
		return nil, &storage.StorageError{Op: "remove oldest turn", Err: ErrInjected}
	}
	return d.Driver.RemoveOldestTurn(ctx, sessionID, accept)
}

func (d *FlakyDriver) ListTurns(ctx context.Context, sessionID string) ([]*storage.StoredTurn, error) {
	if d.FailList {
		return nil, &storage.StorageError{Op: "list turns", Err: ErrInjected}
	}
	return d.Driver.ListTurns(ctx, sessionID)
}

// RecordingPublisher is an eventstream.Publisher that keeps every event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.Event
	closed bool

	// Fail causes Publish to return an error without recording.
	Fail bool
}

// NewRecordingPublisher creates an empty recording publisher.
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

func (p *RecordingPublisher) Publish(_ context.Context, event *eventstream.Event) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	if p.Fail {
		return errors.New("publisher unavailable")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns the recorded events in publish order.
func (p *RecordingPublisher) Events() []*eventstream.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.Event(nil), p.events...)
}

// EventTypes returns the type of every recorded event in publish order.
func (p *RecordingPublisher) EventTypes() []string {
	events := p.Events()
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType)
	}
	return types
}

func (p *RecordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (p *RecordingPublisher) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
