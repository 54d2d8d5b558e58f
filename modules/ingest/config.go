package ingest

import "flag"

// Config configures the TCP ingest listener.
type Config struct {
	ListenAddr   string `yaml:"listen_address"`
	AuthToken    string `yaml:"auth_token"`
	AuthRequired bool   `yaml:"auth_required"`
}

// RegisterFlagsAndApplyDefaults wires Config's flags under prefix, matching
// tempo's per-module config convention.
func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&c.ListenAddr, prefix+".listen-address", ":9411", "TCP address the ingest listener binds to.")
	f.StringVar(&c.AuthToken, prefix+".auth-token", "", "Bearer token producers must present when auth is required.")
	f.BoolVar(&c.AuthRequired, prefix+".auth-required", false, "Require producers to authenticate with auth-token.")
}
