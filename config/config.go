// Package config defines the Medea signalling core's environment-driven
// configuration: a struct embedding frame's ConfigurationDefault,
// populated from env/envDefault tags.
package config

import (
	"strings"

	"github.com/pitabwire/frame/config"
)

// MedeaConfig holds every tunable the signalling core needs: Room RPC
// defaults (spec §3), Liveness Monitor thresholds (spec §4.7), Turn
// Coordinator mode (spec §4.8), and callback delivery tuning (spec §4.6).
type MedeaConfig struct {
	config.ConfigurationDefault

	// Room RPC defaults, inherited by any Member that doesn't override them.
	DefaultIdleTimeoutSec      int `envDefault:"10" env:"DEFAULT_IDLE_TIMEOUT_SEC"`
	DefaultReconnectTimeoutSec int `envDefault:"10" env:"DEFAULT_RECONNECT_TIMEOUT_SEC"`
	DefaultPingIntervalSec     int `envDefault:"3"  env:"DEFAULT_PING_INTERVAL_SEC"`

	// Liveness Monitor.
	LivenessInitTimeoutSec int `envDefault:"15" env:"LIVENESS_INIT_TIMEOUT_SEC"`
	LivenessMaxLagSec      int `envDefault:"10" env:"LIVENESS_MAX_LAG_SEC"`
	LivenessWindowSamples  int `envDefault:"5"  env:"LIVENESS_QUALITY_WINDOW_SAMPLES"`
	LivenessTickIntervalMs int `envDefault:"1000" env:"LIVENESS_TICK_INTERVAL_MS"`

	// Turn Coordinator.
	TurnMode          string `envDefault:"static" env:"TURN_MODE"`
	TurnURLs          string `envDefault:""        env:"TURN_URLS"`
	TurnRealm         string `envDefault:""        env:"TURN_REALM"`
	TurnCredentialTTLSec int `envDefault:"3600"  env:"TURN_CREDENTIAL_TTL_SEC"`
	TurnStaticServersFile string `envDefault:"" env:"TURN_STATIC_SERVERS_FILE"`
	TurnAdminURL      string `envDefault:""        env:"TURN_ADMIN_URL"`

	// Callback delivery.
	CallbackSecret        string `envDefault:""    env:"CALLBACK_SECRET"`
	CallbackMaxRetries    int    `envDefault:"5"   env:"CALLBACK_MAX_RETRIES"`
	CallbackTimeoutSec    int    `envDefault:"10"  env:"CALLBACK_TIMEOUT_SEC"`
	CallbackBackoffSec    int    `envDefault:"1"   env:"CALLBACK_BACKOFF_INITIAL_SEC"`
	CallbackBackoffMaxSec int    `envDefault:"300" env:"CALLBACK_BACKOFF_MAX_SEC"`
	CBFailThreshold       int    `envDefault:"5"   env:"CB_FAILURE_THRESHOLD"`
	CBResetTimeoutSec     int    `envDefault:"60"  env:"CB_RESET_TIMEOUT_SEC"`
	CallbackGRPCBaseURL   string `envDefault:""    env:"CALLBACK_GRPC_BASE_URL"`

	// Client signalling transport.
	SignallingListenAddr string `envDefault:"0.0.0.0:8080" env:"SIGNALLING_LISTEN_ADDR"`
}

// StaticTurnURLs splits the comma-separated TurnURLs setting.
func (c *MedeaConfig) StaticTurnURLs() []string {
	if c.TurnURLs == "" {
		return nil
	}
	return strings.Split(c.TurnURLs, ",")
}
