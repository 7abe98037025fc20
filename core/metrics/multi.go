package metrics

import "errors"

// MultiRecorder fans events out to several recorders. Every recorder sees
// every event; errors are joined.
type MultiRecorder struct {
	Recorders []Recorder
}

// NewMultiRecorder creates a MultiRecorder with the provided recorders.
func NewMultiRecorder(recs ...Recorder) *MultiRecorder {
	return &MultiRecorder{Recorders: recs}
}

func (m *MultiRecorder) RecordConnectAttempt(ev ConnectAttemptEvent) error {
	var errs []error
	for _, r := range m.Recorders {
		errs = append(errs, r.RecordConnectAttempt(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiRecorder) RecordSessionState(ev SessionStateEvent) error {
	var errs []error
	for _, r := range m.Recorders {
		errs = append(errs, r.RecordSessionState(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiRecorder) RecordLinkJoined(ev LinkEvent) error {
	var errs []error
	for _, r := range m.Recorders {
		errs = append(errs, r.RecordLinkJoined(ev))
	}
	return errors.Join(errs...)
}

func (m *MultiRecorder) RecordMessage(ev MessageEvent) error {
	var errs []error
	for _, r := range m.Recorders {
		errs = append(errs, r.RecordMessage(ev))
	}
	return errors.Join(errs...)
}

// Close closes every recorder implementing Closer.
func (m *MultiRecorder) Close() error {
	var errs []error
	for _, r := range m.Recorders {
		if c, ok := r.(Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
