package app

import (
	"flag"

	"github.com/grafana/dskit/flagext"
	"github.com/grafana/dskit/server"

	"github.com/grafana/logrooms/modules/ingest"
	"github.com/grafana/logrooms/modules/room"
	"github.com/grafana/logrooms/modules/subscription"
	"github.com/grafana/logrooms/pkg/util/log"
)

// Target names the module(s) Run() should bring up. Unlike tempo's
// many deployment targets (distributor, ingester, querier, ...), the room
// server has exactly one meaningful target: everything runs together,
// since Non-goal "cross-process sharding" rules out splitting components
// across processes.
const SingleBinary = "all"

// Config is the root configuration struct, registered and YAML-decoded
// exactly the way cmd/tempo/app.Config is.
type Config struct {
	Target string `yaml:"target"`

	PrintConfig bool `yaml:"-"`

	LogLevel  log.Level  `yaml:"log_level"`
	LogFormat log.Format `yaml:"log_format"`

	Server       server.Config       `yaml:"server,omitempty"`
	Room         room.Config         `yaml:"room,omitempty"`
	Ingest       ingest.Config       `yaml:"ingest,omitempty"`
	Subscription subscription.Config `yaml:"subscription,omitempty"`
}

// RegisterFlagsAndApplyDefaults registers every sub-config's flags under
// their own prefix, matching cmd/tempo/app.Config's convention.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	c.Target = SingleBinary

	f.StringVar(&c.Target, "target", SingleBinary, "module to run (only \"all\" is currently meaningful)")

	c.LogLevel = log.LevelInfo
	c.LogFormat = log.FormatLogfmt
	f.StringVar((*string)(&c.LogLevel), "log.level", string(log.LevelInfo), "Only log messages with the given severity or above. One of: [debug, info, warn, error]")
	f.StringVar((*string)(&c.LogFormat), "log.format", string(log.FormatLogfmt), "Log format to use: logfmt or json.")

	flagext.DefaultValues(&c.Server)
	f.IntVar(&c.Server.HTTPListenPort, "server.http-listen-port", 8080, "HTTP server listen port.")

	c.Room.RegisterFlagsAndApplyDefaults(prefix+"room", f)
	c.Ingest.RegisterFlagsAndApplyDefaults(prefix+"ingest", f)
	c.Subscription.RegisterFlagsAndApplyDefaults(prefix+"subscription", f)
}

// ConfigWarning bundles a message and an explanation, mirroring
// cmd/tempo/app.ConfigWarning.
type ConfigWarning struct {
	Message string
	Explain string
}

var warnTraceTimeoutBelowThrottle = ConfigWarning{
	Message: "room.trace-timeout is shorter than subscription.entry-throttle",
	Explain: "traces may age out before their final entry is ever batched to a subscriber",
}

var warnCapacityOutOfRange = ConfigWarning{
	Message: "room.ring-capacity or room.stream-capacity is out of the configured valid range",
	Explain: "ring capacity must be 1000-1000000, stream capacity 100-100000",
}

// CheckConfig checks for suspect configurations and returns a bundled list
// of warnings, mirroring cmd/tempo/app.Config.CheckConfig.
func (c *Config) CheckConfig() []ConfigWarning {
	var warnings []ConfigWarning

	if c.Room.TraceTimeout > 0 && c.Subscription.EntryThrottle > 0 && c.Room.TraceTimeout < c.Subscription.EntryThrottle {
		warnings = append(warnings, warnTraceTimeoutBelowThrottle)
	}

	if err := c.Room.Validate(); err != nil {
		warnings = append(warnings, warnCapacityOutOfRange)
	}

	return warnings
}
