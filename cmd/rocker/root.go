package main

import (
	"fmt"
	"strings"

	"github.com/eigerco/rocker/pkg/db/options"
	"github.com/eigerco/rocker/pkg/dispatch"
	"github.com/eigerco/rocker/pkg/log"
	"github.com/eigerco/rocker/pkg/rocker"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const Version = "0.3.0"

// app carries the configuration shared by every command.
type app struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "rocker",
		Short: "inspect and modify an embedded key-value database",
		Long: fmt.Sprintf(`rocker (v%s)

Operates on a pebble or leveldb database directory: point reads and writes,
atomic batches, scans and keyspace management.`, Version),
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.report,
	}

	flags := root.PersistentFlags()
	flags.String("path", "", "database directory")
	flags.String("engine", "", "storage engine (pebble, leveldb); detected from the database when empty")
	flags.String("options", "", "YAML file of engine options")
	flags.Bool("create", false, "create the database if it does not exist")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.Bool("stats", false, "print this run's operation counters in Prometheus text format")

	root.AddCommand(
		a.getCmd(),
		a.putCmd(),
		a.deleteCmd(),
		a.scanCmd(),
		a.batchCmd(),
		a.keyspacesCmd(),
		a.destroyCmd(),
		a.repairCmd(),
		versionCmd(),
	)
	return root
}

// setup loads env files, binds flags to viper and initialises logging.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	a.v.SetEnvPrefix("rocker")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	level, err := log.ParseLogLevel(a.v.GetString("log-level"))
	if err != nil {
		return err
	}
	format, err := log.ParseLoggerType(a.v.GetString("log-format"))
	if err != nil {
		return err
	}
	log.Init(log.Options{LogLevel: level, Type: format, Output: cmd.ErrOrStderr()})
	log.CLI.Debug().Str("command", cmd.Name()).Msg("starting")
	return nil
}

// report prints the operation counters once the command has run. They are
// process-wide, so they only cover the work done by this invocation.
func (a *app) report(cmd *cobra.Command, _ []string) error {
	if a.v.GetBool("stats") {
		rocker.WriteMetrics(cmd.OutOrStdout())
	}
	return nil
}

func (a *app) path() (string, error) {
	path := a.v.GetString("path")
	if path == "" {
		return "", fmt.Errorf("--path (or ROCKER_PATH) is required")
	}
	return path, nil
}

// engineOptions merges the option file with the engine and create flags.
func (a *app) engineOptions() (map[string]any, error) {
	values := map[string]any{}
	if file := a.v.GetString("options"); file != "" {
		loaded, err := options.Load(file)
		if err != nil {
			return nil, err
		}
		values = loaded
	}
	if engine := a.v.GetString("engine"); engine != "" {
		values["engine"] = engine
	}
	if a.v.GetBool("create") {
		values["create_if_missing"] = true
	}
	return values, nil
}

// withDB opens the database for the duration of fn.
func (a *app) withDB(fn func(d *rocker.DB) error) (err error) {
	path, err := a.path()
	if err != nil {
		return err
	}
	values, err := a.engineOptions()
	if err != nil {
		return err
	}
	d, err := rocker.Open(path, values)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := d.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(d)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and protocol tag",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rocker v%s (protocol %s)\n", Version, dispatch.ProtocolVersion)
		},
	}
}
