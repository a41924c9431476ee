package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Station-Manager/dmx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// ConfigPathEnv if set, will load the config from that path.
	ConfigPathEnv = "DMXCTL_CONFIG"

	PortCfgKey      = "port"
	LogLevelCfgKey  = "log.level"
	LogFormatCfgKey = "log.format"
	LogFileCfgKey   = "log.file"
)

// errNoPort is returned when neither --port nor the config names a port.
var errNoPort = errors.New("no serial port given")

// app is the state shared by the subcommands once the root pre-run has
// loaded the configuration.
type app struct {
	v       *viper.Viper
	svc     *dmx.Service
	logger  zerolog.Logger
	logFile io.Closer
}

func newRootCmd(v *viper.Viper) (*cobra.Command, *app) {
	a := &app{v: v, logger: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:   "dmxctl",
		Short: "Drive a serial DMX controller",
		Long: `dmxctl talks to a DMX controller on a serial port.

It can list the serial ports, confirm that a port has a compatible
controller attached (handshake) and set channel values. Every call opens
the port, performs one exchange and closes it again.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().String("config", "", "config file (default is $XDG_CONFIG_HOME/dmxctl/config.yaml)")
	cmd.PersistentFlags().String("log-level", "warn", "log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "console", "log format (console or json)")
	cmd.PersistentFlags().String("log-file", "", "also write logs to this file, rotated by size")
	_ = v.BindPFlag(LogLevelCfgKey, cmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag(LogFormatCfgKey, cmd.PersistentFlags().Lookup("log-format"))
	_ = v.BindPFlag(LogFileCfgKey, cmd.PersistentFlags().Lookup("log-file"))

	cmd.AddCommand(
		portsCmd(a),
		checkCmd(a),
		sendCmd(a),
		setPortCmd(a),
	)

	return cmd, a
}

// execute runs cmd and tears the app down afterwards. cobra skips the
// post-run hooks when a command fails, so teardown is done here instead.
func (a *app) execute(ctx context.Context, cmd *cobra.Command) error {
	err := cmd.ExecuteContext(ctx)
	if terr := a.teardown(); err == nil {
		err = terr
	}
	return err
}

func (a *app) setup(cmd *cobra.Command) error {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	if err := loadConfig(a.v, path); err != nil {
		return err
	}

	logger, closer, err := newLogger(
		a.v.GetString(LogLevelCfgKey),
		a.v.GetString(LogFormatCfgKey),
		a.v.GetString(LogFileCfgKey),
		cmd.ErrOrStderr(),
	)
	if err != nil {
		return err
	}

	a.logger = logger
	a.logFile = closer
	log.Logger = logger
	a.svc = dmx.NewService(logger)
	return nil
}

func (a *app) teardown() error {
	if a.svc != nil {
		a.logger.Debug().Interface("metrics", a.svc.MetricsSnapshot()).Msg("link metrics")
	}
	if a.logFile == nil {
		return nil
	}
	err := a.logFile.Close()
	a.logFile = nil
	return err
}

// resolvePort picks the --port flag when given, otherwise the configured port.
func (a *app) resolvePort(cmd *cobra.Command) (string, error) {
	port, err := cmd.Flags().GetString("port")
	if err != nil {
		return "", err
	}
	if !cmd.Flags().Changed("port") {
		port = a.v.GetString(PortCfgKey)
	}
	if port == "" {
		return "", fmt.Errorf("%w: pass --port or run 'dmxctl set-port'", errNoPort)
	}
	return port, nil
}

// DefaultConfigPath returns the config file used when --config and
// DMXCTL_CONFIG are both unset.
func DefaultConfigPath() (string, error) {
	if path, ok := os.LookupEnv(ConfigPathEnv); ok {
		return path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dmxctl", "config.yaml"), nil
}

func loadConfig(v *viper.Viper, path string) error {
	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
	}

	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetEnvPrefix("DMXCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

// savePort stores port in the config file at path and leaves every other key
// as the file has it. A fresh viper is used so values that came from flags or
// the environment for this run are not written back.
func savePort(path, port string) error {
	fv := viper.New()
	fv.SetConfigType("yaml")
	fv.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := fv.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	fv.Set(PortCfgKey, port)
	return WriteConfig(fv)
}

// WriteConfig persists v to the file it was loaded from, creating the
// directory when needed.
func WriteConfig(v *viper.Viper) error {
	file := v.ConfigFileUsed()
	dir := filepath.Dir(file)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return v.WriteConfigAs(file)
}

func newLogger(level, format, file string, stderr io.Writer) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var out io.Writer
	switch format {
	case "json":
		out = stderr
	case "console", "":
		out = zerolog.ConsoleWriter{Out: stderr, TimeFormat: "15:04:05.000"}
	default:
		return zerolog.Nop(), nil, fmt.Errorf("invalid log format %q (use console or json)", format)
	}

	var closer io.Closer
	if file != "" {
		lj := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		out = zerolog.MultiLevelWriter(out, lj)
		closer = lj
	}

	logger := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return logger, closer, nil
}
