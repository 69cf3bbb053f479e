// Package conf builds the command line of the modelbench programs.
//
// Every flag registered through an App can also be provided as an environment
// variable: the flag name upper-cased, dashes turned into underscores and
// prefixed with MODELBENCH_. For instance --log-level can be set with
// MODELBENCH_LOG_LEVEL. Flags given on the command line win over the
// environment, which wins over the default.
package conf

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/alecthomas/kingpin.v2"

	benchErrors "github.com/YuminosukeSato/modelbench/pkg/errors"
	"github.com/YuminosukeSato/modelbench/pkg/log"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "MODELBENCH"

// Common holds the flags shared by all modelbench programs.
type Common struct {
	LogLevel  string
	LogFormat string
	OutDir    string
	Seed      uint64
	Format    string
	DumpJSON  bool
}

// App wraps a kingpin application and registers the common flags on it.
type App struct {
	app    *kingpin.Application
	Common Common
}

// New creates an App named name with the common flags registered.
func New(name, help string) *App {
	a := &App{app: kingpin.New(name, help)}
	a.app.HelpFlag.Short('h')

	a.Flag("log-level", "Log level: debug, info, warn, error.").
		Default("info").EnumVar(&a.Common.LogLevel, "debug", "info", "warn", "error")
	a.Flag("log-format", "Log output format: json or console.").
		Default("console").EnumVar(&a.Common.LogFormat, "json", "console")
	a.Flag("out", "Directory receiving charts and series dumps.").
		Default("output").StringVar(&a.Common.OutDir)
	a.Flag("seed", "Seed for data generation and estimators.").
		Default("0").Uint64Var(&a.Common.Seed)
	a.Flag("format", "Chart image format.").
		Default("png").EnumVar(&a.Common.Format, "png", "svg", "pdf")
	a.Flag("json", "Also dump the collected series as JSON.").
		BoolVar(&a.Common.DumpJSON)
	return a
}

// EnvName returns the environment variable backing flag name.
func EnvName(name string) string {
	return fmt.Sprintf("%s_%s", EnvPrefix, strings.ToUpper(strings.ReplaceAll(name, "-", "_")))
}

// Flag registers a program-specific flag with its environment fallback.
func (a *App) Flag(name, help string) *kingpin.FlagClause {
	return a.app.Flag(name, help).Envar(EnvName(name))
}

// Name returns the application name.
func (a *App) Name() string {
	return a.app.Name
}

// Parse parses args (normally os.Args[1:]) together with the environment.
func (a *App) Parse(args []string) error {
	if _, err := a.app.Parse(args); err != nil {
		return benchErrors.Wrapf(err, "could not parse command line flags")
	}
	return nil
}

// SetupLogging installs the package-level logger according to the parsed
// --log-level and --log-format flags.
func (a *App) SetupLogging(w io.Writer) error {
	return log.SetupLogger(a.Common.LogLevel, a.Common.LogFormat, w)
}

// LogLevel returns the parsed log level, falling back to info.
func (a *App) LogLevel() log.Level {
	level, err := log.ParseLevel(a.Common.LogLevel)
	if err != nil {
		return log.LevelInfo
	}
	return level
}

// Dump renders the current configuration as shell exports, one per flag,
// so a run can be reproduced from the environment alone.
func (a *App) Dump() string {
	flags := a.app.Model().Flags
	sort.Slice(flags, func(i, j int) bool { return flags[i].Name < flags[j].Name })

	buffer := &bytes.Buffer{}
	for _, flag := range flags {
		if flag.Name == "help" || strings.HasPrefix(flag.Name, "help-") || flag.Name == "version" {
			continue
		}
		fmt.Fprintf(buffer, "# %s\n", flag.Help)
		fmt.Fprintf(buffer, "export %s=%q\n", EnvName(flag.Name), flag.Value.String())
	}
	return buffer.String()
}
