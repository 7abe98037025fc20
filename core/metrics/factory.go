package metrics

import (
	"errors"

	"github.com/kilianp07/mqttwatch/core/factory"
)

// SinkConfig selects a recorder implementation by type.
type SinkConfig = factory.Selector

var recorderRegistry = factory.NewRegistry[Recorder]()

// RegisterRecorder adds a recorder builder identified by name.
func RegisterRecorder(name string, b factory.Builder[Recorder]) error {
	return recorderRegistry.Register(name, b)
}

// RegisteredRecorders lists the known recorder types.
func RegisteredRecorders() []string { return recorderRegistry.Types() }

// NewRecorder creates a Recorder from the provided configuration. If any
// sink fails to build, the ones already built are closed.
func NewRecorder(cfgs []SinkConfig) (Recorder, error) {
	if len(cfgs) == 0 {
		return NopRecorder{}, nil
	}
	if len(cfgs) == 1 {
		return recorderRegistry.Create(cfgs[0])
	}
	recs := make([]Recorder, 0, len(cfgs))
	for _, c := range cfgs {
		r, err := recorderRegistry.Create(c)
		if err != nil {
			return nil, errors.Join(err, NewMultiRecorder(recs...).Close())
		}
		recs = append(recs, r)
	}
	return NewMultiRecorder(recs...), nil
}
