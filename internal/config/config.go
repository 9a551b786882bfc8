// Package config holds the options shared by the vartree commands and
// fills them from flags, VARTREE_* environment variables and an optional
// config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/agentic-research/vartree/internal/cdt"
	"github.com/agentic-research/vartree/internal/logging"
	"github.com/agentic-research/vartree/internal/nv"
)

// EnvPrefix prefixes every environment variable the commands read.
const EnvPrefix = "VARTREE"

// Options holds the CLI configuration.
type Options struct {
	LogLevel   string
	Layout     string
	Indent     int
	Export     bool
	NoFollow   bool
	Unordered  bool
	DBPath     string
	ListenAddr string
	Writable   bool
	MountPoint string
	ConfigFile string
}

// NewOptions returns the defaults.
func NewOptions() *Options {
	return &Options{
		LogLevel:   "info",
		Layout:     nv.LayoutPretty.String(),
		DBPath:     "vartree.db",
		ListenAddr: "127.0.0.1:0",
	}
}

// AddFlags registers the options as persistent flags of cmd.
func (o *Options) AddFlags(cmd *cobra.Command) {
	o.BindFlags(cmd.PersistentFlags())
}

// BindFlags attaches the option flags to fs and returns their names.
func (o *Options) BindFlags(fs *pflag.FlagSet) []string {
	var names []string
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level (debug, info, warn, error)")
	names = append(names, "log-level")
	fs.StringVarP(&o.Layout, "layout", "l", o.Layout, "Output layout (pretty, flat, compact)")
	names = append(names, "layout")
	fs.IntVar(&o.Indent, "indent", o.Indent, "Starting tab depth for the pretty layout")
	names = append(names, "indent")
	fs.BoolVarP(&o.Export, "export", "x", o.Export, "Render in the single-line export form")
	names = append(names, "export")
	fs.BoolVar(&o.NoFollow, "no-follow", o.NoFollow, "Render stored values without running get disciplines")
	names = append(names, "no-follow")
	fs.BoolVar(&o.Unordered, "unordered", o.Unordered, "Keep members in insertion order instead of sorted")
	names = append(names, "unordered")
	fs.StringVar(&o.DBPath, "db", o.DBPath, "Snapshot database path")
	names = append(names, "db")
	fs.StringVar(&o.ListenAddr, "listen", o.ListenAddr, "NFS listen address")
	names = append(names, "listen")
	fs.BoolVarP(&o.Writable, "writable", "w", o.Writable, "Allow writes through the NFS server")
	names = append(names, "writable")
	fs.StringVar(&o.MountPoint, "mount", o.MountPoint, "Mount the NFS server at this directory")
	names = append(names, "mount")
	fs.StringVar(&o.ConfigFile, "config", o.ConfigFile, "Config file (default: config.yaml in the search directories)")
	names = append(names, "config")
	return names
}

// Validate checks the option values.
func (o *Options) Validate() error {
	if _, err := nv.ParseLayout(o.Layout); err != nil {
		return err
	}
	if _, err := logging.Level(o.LogLevel); err != nil {
		return err
	}
	if o.Indent < 0 {
		return fmt.Errorf("indent must not be negative, got %d", o.Indent)
	}
	return nil
}

// RenderOptions converts the output options for nv.Store.Render.
func (o *Options) RenderOptions() (nv.RenderOptions, error) {
	layout, err := nv.ParseLayout(o.Layout)
	if err != nil {
		return nv.RenderOptions{}, err
	}
	return nv.RenderOptions{Layout: layout, Indent: o.Indent, Export: o.Export, NoFollow: o.NoFollow}, nil
}

// Method returns the container method selected by the options.
func (o *Options) Method() cdt.Method {
	if o.Unordered {
		return cdt.Unordered
	}
	return cdt.Ordered
}

// BindViper backfills every flag in sets that was not given on the command
// line from the environment or the config file. An explicit config file
// must exist; the default one is optional.
func BindViper(configFile string, sets ...*pflag.FlagSet) error {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	if configFile == "" {
		configFile = os.Getenv(EnvPrefix + "_CONFIG")
	}
	configureConfigFile(v, configFile)

	for _, fs := range sets {
		if err := v.BindPFlags(fs); err != nil {
			return err
		}
	}
	if err := readConfigFile(v, configFile != ""); err != nil {
		return err
	}
	var errs []error
	for _, fs := range sets {
		fs.VisitAll(func(f *pflag.Flag) {
			if f.Changed || !v.IsSet(f.Name) {
				return
			}
			val := fmt.Sprintf("%v", v.Get(f.Name))
			if val == "" {
				return
			}
			if err := f.Value.Set(val); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
			}
		})
	}
	return errors.Join(errs...)
}

func configureConfigFile(v *viper.Viper, explicitPath string) {
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		return
	}
	v.SetConfigName("config")
	for _, dir := range SearchDirs() {
		v.AddConfigPath(dir)
	}
}

func readConfigFile(v *viper.Viper, strict bool) error {
	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if errors.As(err, &cfgErr) && !strict {
			return nil
		}
		return err
	}
	return nil
}

// SearchDirs lists the directories searched for config.yaml.
func SearchDirs() []string {
	added := make(map[string]struct{})
	var dirs []string
	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := added[path]; ok {
			return
		}
		added[path] = struct{}{}
		dirs = append(dirs, path)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		add(filepath.Join(xdg, "vartree"))
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		add(filepath.Join(home, ".config", "vartree"))
		add(filepath.Join(home, ".vartree"))
	}
	add(".")
	return dirs
}
