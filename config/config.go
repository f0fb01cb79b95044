// Package config loads the settings of a session: from defaults, then a config file, then
// PGGATE_ environment variables, then command line flags; each overrides the one before.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/leftmike/pggate/docdb"
	"github.com/leftmike/pggate/flags"
)

const (
	DefaultSessionTimeout = 60 * time.Second
	DefaultPrefetchLimit  = 1024
	DefaultStore          = "btree"
)

type Config struct {
	SessionTimeout time.Duration
	PrefetchLimit  int
	Store          string
	DataDir        string
	LogFile        string
	LogLevel       string
	LogStderr      bool
	Flags          flags.Flags
}

type setting struct {
	name  string
	def   interface{}
	usage string
}

var settings = []setting{
	{"session_timeout", DefaultSessionTimeout, "timeout for each request to the store"},
	{"prefetch_limit", DefaultPrefetchLimit, "rows examined by the store for each batch"},
	{"store", DefaultStore, "store: badger, bbolt, btree, or pebble"},
	{"data_dir", "testdata", "`directory` containing the store's files"},
	{"log_file", "pggate.log", "`file` to use for logging"},
	{"log_level", "info", "log level: trace, debug, info, warn, error, fatal, or panic"},
	{"log_stderr", false, "log to standard error"},
}

func init() {
	flags.ListFlags(
		func(nam string, f flags.Flag, def bool) {
			settings = append(settings, setting{nam, def, "enable " + nam})
		})
}

func isSetting(nam string) bool {
	for _, s := range settings {
		if s.name == nam {
			return true
		}
	}
	return false
}

func flagName(nam string) string {
	return strings.ReplaceAll(nam, "_", "-")
}

// AddFlags adds a command line flag for each setting to fs.
func AddFlags(fs *pflag.FlagSet) {
	for _, s := range settings {
		switch def := s.def.(type) {
		case time.Duration:
			fs.Duration(flagName(s.name), def, s.usage)
		case int:
			fs.Int(flagName(s.name), def, s.usage)
		case string:
			fs.String(flagName(s.name), def, s.usage)
		case bool:
			fs.Bool(flagName(s.name), def, s.usage)
		default:
			panic(fmt.Sprintf("config: setting %s: unexpected type %T", s.name, s.def))
		}
	}
}

func (c *Config) loadFile(v *viper.Viper, file string) error {
	b, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	var m map[string]interface{}
	err = hcl.Decode(&m, string(b))
	if err != nil {
		return fmt.Errorf("config: %s: %s", file, err)
	}
	for nam := range m {
		if !isSetting(nam) {
			return fmt.Errorf("config: %s: %s is not a setting", file, nam)
		}
	}
	return v.MergeConfigMap(m)
}

// Load returns the configuration. file may be empty, and fs may be nil; flags in fs are only
// used if they were set on the command line.
func Load(file string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for _, s := range settings {
		v.SetDefault(s.name, s.def)
	}

	var c Config
	if file != "" {
		err := c.loadFile(v, file)
		if err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix("pggate")
	v.AutomaticEnv()

	if fs != nil {
		for _, s := range settings {
			if f := fs.Lookup(flagName(s.name)); f != nil {
				err := v.BindPFlag(s.name, f)
				if err != nil {
					return nil, err
				}
			}
		}
	}

	c.SessionTimeout = v.GetDuration("session_timeout")
	c.PrefetchLimit = v.GetInt("prefetch_limit")
	c.Store = v.GetString("store")
	c.DataDir = v.GetString("data_dir")
	c.LogFile = v.GetString("log_file")
	c.LogLevel = v.GetString("log_level")
	c.LogStderr = v.GetBool("log_stderr")
	c.Flags = flags.Default()
	flags.ListFlags(
		func(nam string, f flags.Flag, def bool) {
			c.Flags.SetFlag(f, v.GetBool(nam))
		})

	if c.SessionTimeout <= 0 {
		return nil, fmt.Errorf("config: session_timeout must be positive: %s", c.SessionTimeout)
	}
	if c.PrefetchLimit <= 0 {
		return nil, fmt.Errorf("config: prefetch_limit must be positive: %d", c.PrefetchLimit)
	}
	if !validStore(c.Store) {
		return nil, fmt.Errorf("config: store must be one of %v: %q", docdb.Stores, c.Store)
	}
	return &c, nil
}

func validStore(kind string) bool {
	for _, st := range docdb.Stores {
		if st == kind {
			return true
		}
	}
	return false
}

// Default returns the configuration with every setting at its default.
func Default() *Config {
	c, err := Load("", nil)
	if err != nil {
		panic(err)
	}
	return c
}

// List calls fn with each setting and its value, in name order.
func (c *Config) List(fn func(nam, val string)) {
	vals := map[string]string{
		"session_timeout": c.SessionTimeout.String(),
		"prefetch_limit":  fmt.Sprint(c.PrefetchLimit),
		"store":           c.Store,
		"data_dir":        c.DataDir,
		"log_file":        c.LogFile,
		"log_level":       c.LogLevel,
		"log_stderr":      fmt.Sprint(c.LogStderr),
	}
	flags.ListFlags(
		func(nam string, f flags.Flag, def bool) {
			vals[nam] = fmt.Sprint(c.Flags.GetFlag(f))
		})

	names := make([]string, 0, len(vals))
	for nam := range vals {
		names = append(names, nam)
	}
	sort.Strings(names)
	for _, nam := range names {
		fn(nam, vals[nam])
	}
}
