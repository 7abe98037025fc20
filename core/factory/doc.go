// Package factory holds the generic registry behind the metrics sink list.
// A sink is selected by a type name plus a map of raw settings; its builder
// decodes the settings into a typed struct and returns the implementation.
//
//	reg := factory.NewRegistry[metrics.Recorder]()
//	reg.Register("prometheus", func(conf map[string]any) (metrics.Recorder, error) {
//	    var c struct{ Address string `json:"address"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return newPromRecorder(c.Address)
//	})
//	r, err := reg.Create(factory.Selector{Type: "prometheus", Conf: map[string]any{"address": ":9100"}})
package factory
