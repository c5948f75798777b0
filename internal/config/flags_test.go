package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestRegisterFlagsParsesOverrides(t *testing.T) {
	fs := pflag.NewFlagSet("aaeq-test", pflag.ContinueOnError)
	f := RegisterFlags(fs)

	require.NoError(t, fs.Parse([]string{"--sink=airplay", "-o", "Kitchen", "--log-level=debug"}))
	require.Equal(t, "airplay", f.SinkType)
	require.Equal(t, "Kitchen", f.DeviceName)
	require.Equal(t, "debug", f.LogLevel)
	require.Equal(t, "aaeq.yaml", f.ConfigPath)
}

func TestApplyOverlaysOnlyNonEmptyFields(t *testing.T) {
	cfg := Default()
	f := &Flags{SinkType: "dlna"}
	f.Apply(cfg)

	require.Equal(t, "dlna", cfg.Output.SinkType)
	require.Equal(t, ":7100", cfg.AANP.ListenAddr)
}

func TestApplyOverridesFrontendListenAddrIndependentlyOfAANP(t *testing.T) {
	cfg := Default()
	f := &Flags{HTTPListenAddr: ":9090"}
	f.Apply(cfg)

	require.Equal(t, ":9090", cfg.Frontend.ListenAddr)
	require.Equal(t, ":7100", cfg.AANP.ListenAddr)
}

func TestApplyLeavesDefaultsWhenFlagsUnset(t *testing.T) {
	cfg := Default()
	before := *cfg
	(&Flags{}).Apply(cfg)
	require.Equal(t, before, *cfg)
}
