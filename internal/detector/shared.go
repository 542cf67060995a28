package detector

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Handle is a lazily initialized detector that is created at most once and
// kept for the life of the process. Loading the model is expensive, so
// tracking sessions borrow the same instance instead of owning one.
//
// A failed initialization is cached as well: every later Get returns the
// same error.
type Handle struct {
	get     func() (Detector, error)
	created atomic.Bool
}

// NewHandle wraps factory so it runs at most once.
func NewHandle(factory func() (Detector, error)) *Handle {
	h := &Handle{}
	h.get = sync.OnceValues(func() (Detector, error) {
		d, err := factory()
		if err == nil && d != nil {
			h.created.Store(true)
		}
		return d, err
	})
	return h
}

// Get returns the shared detector, initializing it on first use.
func (h *Handle) Get() (Detector, error) {
	return h.get()
}

// Initialized reports whether a detector was successfully created.
func (h *Handle) Initialized() bool {
	return h.created.Load()
}

// Close closes the detector if it was ever created. It is meant for process
// exit; the handle cannot be used afterwards.
func (h *Handle) Close() error {
	if !h.created.Load() {
		return nil
	}
	d, err := h.get()
	if err != nil {
		return nil
	}
	return d.Close()
}

// MediaPipeHandle returns a Handle that starts the MediaPipe service and
// waits for the model to load on first use.
func MediaPipeHandle(config Config, log zerolog.Logger) *Handle {
	return NewHandle(func() (Detector, error) {
		d, err := NewMediaPipeDetector(config, log)
		if err != nil {
			return nil, err
		}
		if err := d.Start(); err != nil {
			return nil, fmt.Errorf("load face model: %w", err)
		}
		return d, nil
	})
}

// StaticHandle returns a Handle that always yields d.
func StaticHandle(d Detector) *Handle {
	return NewHandle(func() (Detector, error) { return d, nil })
}
