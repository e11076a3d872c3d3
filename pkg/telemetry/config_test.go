package telemetry

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	for name, cfg := range map[string]*Config{
		"default":     DefaultConfig(),
		"development": DevelopmentConfig(),
		"production":  ProductionConfig(),
	} {
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s config invalid: %v", name, err)
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "shout" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"bad exporter", func(c *Config) { c.Tracing.Exporter = "carrier-pigeon" }},
		{"sampling rate too high", func(c *Config) { c.Tracing.SamplingRate = 1.5 }},
		{"missing service name", func(c *Config) { c.ServiceName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}
