package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Seednode/climb/engine"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind              string
	bonusWindow       time.Duration
	countdownInterval time.Duration
	heartbeatTimeout  time.Duration
	matchDuration     time.Duration
	maxRoomSize       int
	port              int
	prefix            string
	profile           bool
	publicRoomSize    int
	sweepInterval     time.Duration
	tlsCert           string
	tlsKey            string
	verbose           bool
	version           bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.sweepInterval <= 0 {
		return fmt.Errorf("invalid sweep interval (must be positive): %s", c.sweepInterval)
	}
	if c.countdownInterval <= 0 {
		return fmt.Errorf("invalid countdown interval (must be positive): %s", c.countdownInterval)
	}
	if c.heartbeatTimeout < 0 || c.matchDuration < 0 || c.bonusWindow < 0 {
		return errors.New("--heartbeat-timeout, --match-duration and --bonus-window must not be negative")
	}
	if c.heartbeatTimeout > 0 && c.heartbeatTimeout < pongWait {
		return fmt.Errorf("invalid heartbeat timeout (must be 0 or at least %s): %s", pongWait, c.heartbeatTimeout)
	}
	if c.publicRoomSize < 2 {
		return fmt.Errorf("invalid public room size (must be at least 2): %d", c.publicRoomSize)
	}
	if c.maxRoomSize < 2 {
		return fmt.Errorf("invalid max room size (must be at least 2): %d", c.maxRoomSize)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// engineOptions maps the configuration onto the engine's tunables.
func (c *Config) engineOptions() engine.Options {
	return engine.Options{
		SweepInterval:     c.sweepInterval,
		HeartbeatTimeout:  c.heartbeatTimeout,
		CountdownInterval: c.countdownInterval,
		MatchDuration:     c.matchDuration,
		BonusWindow:       c.bonusWindow,
		PublicRoomSize:    c.publicRoomSize,
		MaxRoomSize:       c.maxRoomSize,
		Logf: func(format string, args ...any) {
			logf(c, format, args...)
		},
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("CLIMB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "climb",
		Short:         "Real-time multiplayer server for a race-to-the-top arithmetic climbing game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	defaults := engine.DefaultOptions()

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: CLIMB_BIND)")
	fs.DurationVar(&cfg.bonusWindow, "bonus-window", defaults.BonusWindow, "time after the start within which reaching the top earns a bonus (env: CLIMB_BONUS_WINDOW)")
	fs.DurationVar(&cfg.countdownInterval, "countdown-interval", defaults.CountdownInterval, "time between pre-game countdown ticks (env: CLIMB_COUNTDOWN_INTERVAL)")
	fs.DurationVar(&cfg.heartbeatTimeout, "heartbeat-timeout", 0, "time without a heartbeat before a player is swept, at least 1m or 0 to rely on disconnects only (env: CLIMB_HEARTBEAT_TIMEOUT)")
	fs.DurationVar(&cfg.matchDuration, "match-duration", defaults.MatchDuration, "length of a match, 0 to never end automatically (env: CLIMB_MATCH_DURATION)")
	fs.IntVar(&cfg.maxRoomSize, "max-room-size", defaults.MaxRoomSize, "largest capacity a private room may request (env: CLIMB_MAX_ROOM_SIZE)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: CLIMB_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: CLIMB_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: CLIMB_PROFILE)")
	fs.IntVar(&cfg.publicRoomSize, "public-room-size", defaults.PublicRoomSize, "capacity of quick-play rooms (env: CLIMB_PUBLIC_ROOM_SIZE)")
	fs.DurationVar(&cfg.sweepInterval, "sweep-interval", defaults.SweepInterval, "time between disconnected-player sweeps (env: CLIMB_SWEEP_INTERVAL)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: CLIMB_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: CLIMB_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: CLIMB_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: CLIMB_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("climb v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
