package subdialog

import (
	"math/rand/v2"
	"time"

	"github.com/spf13/viper"
)

// Config carries the tunables for a Set/Sub tree. NewSet fills a zero T1,
// empty metrics names and a nil RandIntn from DefaultConfig; MetricsEnabled
// is used as given.
type Config struct {
	// T1 is the base SIP retransmission interval; Timer N duration is
	// derived as 64*T1. Defaults to the package T1 constant.
	T1 time.Duration

	// MetricsEnabled turns on the Prometheus recorders in Metrics.
	MetricsEnabled bool
	// MetricsNamespace/MetricsSubsystem prefix the Prometheus metric names.
	MetricsNamespace string
	MetricsSubsystem string

	// RandIntn returns a pseudo-random integer in [0, n), used to compute
	// the Retry-After value on an overlapping SUBSCRIBE/REFER. Defaults to
	// math/rand/v2.
	RandIntn func(n int) int
}

// DefaultConfig returns the package defaults, matching RFC 6665's Timer N
// duration of 64*T1 with T1's SIP default of 500ms.
func DefaultConfig() Config {
	return Config{
		T1:               T1,
		MetricsEnabled:   true,
		MetricsNamespace: "sip",
		MetricsSubsystem: "subdialog",
		RandIntn:         rand.IntN,
	}
}

// TimerN returns the RFC 6665 Timer N duration for this configuration.
func (c Config) TimerN() time.Duration { return 64 * c.T1 }

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.T1 <= 0 {
		c.T1 = d.T1
	}
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = d.MetricsNamespace
	}
	if c.MetricsSubsystem == "" {
		c.MetricsSubsystem = d.MetricsSubsystem
	}
	if c.RandIntn == nil {
		c.RandIntn = d.RandIntn
	}
	return c
}

// LoadConfig reads optional overrides for T1 (subdialog.t1_ms), metrics
// enablement (subdialog.metrics_enabled) and metrics naming
// (subdialog.metrics_namespace / subdialog.metrics_subsystem) from v, a
// caller-supplied viper instance that may already have a config file, env
// prefix, or flags bound to it. A nil v, or one with none of these keys
// set, yields DefaultConfig() unchanged.
func LoadConfig(v *viper.Viper) Config {
	cfg := DefaultConfig()
	if v == nil {
		return cfg
	}

	if v.IsSet("subdialog.t1_ms") {
		cfg.T1 = time.Duration(v.GetInt64("subdialog.t1_ms")) * time.Millisecond
	}
	if v.IsSet("subdialog.metrics_enabled") {
		cfg.MetricsEnabled = v.GetBool("subdialog.metrics_enabled")
	}
	if v.IsSet("subdialog.metrics_namespace") {
		cfg.MetricsNamespace = v.GetString("subdialog.metrics_namespace")
	}
	if v.IsSet("subdialog.metrics_subsystem") {
		cfg.MetricsSubsystem = v.GetString("subdialog.metrics_subsystem")
	}
	return cfg.withDefaults()
}
