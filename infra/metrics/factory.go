package metrics

import (
	"github.com/kilianp07/mqttwatch/core/factory"
	coremetrics "github.com/kilianp07/mqttwatch/core/metrics"
)

// PromConfig is the conf block of a prometheus sink.
type PromConfig struct {
	Address string `json:"address"`
}

// InfluxConfig is the conf block of an influx sink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// init registers built-in recorders.
func init() {
	_ = coremetrics.RegisterRecorder("nop", func(map[string]any) (coremetrics.Recorder, error) {
		return coremetrics.NopRecorder{}, nil
	})

	_ = coremetrics.RegisterRecorder("prometheus", func(conf map[string]any) (coremetrics.Recorder, error) {
		var c PromConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		// Address is used by the HTTP server only; see PromAddress.
		return NewPromRecorder()
	})

	_ = coremetrics.RegisterRecorder("influx", func(conf map[string]any) (coremetrics.Recorder, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxRecorderWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})
}

// PromAddress returns the listen address of the first prometheus sink with
// one configured, or "".
func PromAddress(cfgs []coremetrics.SinkConfig) (string, error) {
	for _, c := range cfgs {
		if c.Type != "prometheus" {
			continue
		}
		var pc PromConfig
		if err := factory.Decode(c.Conf, &pc); err != nil {
			return "", err
		}
		if pc.Address != "" {
			return pc.Address, nil
		}
	}
	return "", nil
}
