package options

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

const (
	flagConfig        = "config"
	flagHelp          = "help"
	flagDefaultConfig = "default-config"
)

type Optioner interface {
	AddFlags(*pflag.FlagSet)
	GetBaseOptions() *BaseOptions
}

// BaseOptions are shared by every command: the config file and logging.
type BaseOptions struct {
	ConfigFile string               `json:"-"`
	Logging    LoggingConfiguration `json:"logging"`
}

func NewDefaultBaseOptions() BaseOptions {
	return BaseOptions{
		Logging: NewDefaultLoggingConfiguration(),
	}
}

func (bo *BaseOptions) GetBaseOptions() *BaseOptions {
	return bo
}

func (bo *BaseOptions) AddBaseFlags(cmd *cobra.Command, fs *pflag.FlagSet) {
	bo.addConfigFile(fs)
	bo.Logging.BindLoggingFlags(fs)
	addHelpAndUsage(cmd, fs)
	fs.Bool(flagDefaultConfig, false, "Print the default configuration as yaml and exit")
}

func (bo *BaseOptions) addConfigFile(fs *pflag.FlagSet) {
	fs.StringVarP(&bo.ConfigFile, flagConfig, "c", bo.ConfigFile, "Yaml file with the initial configuration, relative paths start at the working directory. Command-line flags override the file")
}

func (bo *BaseOptions) ValidateAndApply() error {
	return bo.Logging.ValidateAndApply()
}

// PrintHelpAndExitIfRequested exits after printing the help when --help is set.
func PrintHelpAndExitIfRequested(cmd *cobra.Command, fs *pflag.FlagSet) {
	help, err := fs.GetBool(flagHelp)
	if err != nil {
		klog.ErrorS(err, "Flag is not a bool", "flag", flagHelp)
		os.Exit(1)
	}
	if help {
		_ = cmd.Help()
		os.Exit(0)
	}
}

// PrintDefaultConfigAndExitIfRequested exits after printing config when
// --default-config is set.
func PrintDefaultConfigAndExitIfRequested(config interface{}, fs *pflag.FlagSet) {
	requested, err := fs.GetBool(flagDefaultConfig)
	if err != nil {
		klog.ErrorS(err, "Flag is not a bool", "flag", flagDefaultConfig)
		os.Exit(1)
	}
	if !requested {
		return
	}
	if err = WriteDefaultConfig(os.Stdout, config); err != nil {
		klog.ErrorS(err, "Failed to print default config")
		os.Exit(1)
	}
	os.Exit(0)
}

// WriteDefaultConfig writes config as a commented yaml document.
func WriteDefaultConfig(w io.Writer, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "marshal default config")
	}
	_, err = fmt.Fprintf(w, "# Default configuration, pass a modified copy with --%s.\n\n%s", flagConfig, data)
	return err
}

func addHelpAndUsage(cmd *cobra.Command, fs *pflag.FlagSet) {
	fs.BoolP(flagHelp, "h", false, fmt.Sprintf("help for %s", cmd.Name()))

	// cobra's own usage would list its global flags, the command parses fs itself
	const usageFmt = "Usage:\n  %s\n\nFlags:\n%s"
	cmd.SetUsageFunc(func(cmd *cobra.Command) error {
		_, _ = fmt.Fprintf(cmd.OutOrStderr(), usageFmt, cmd.UseLine(), fs.FlagUsagesWrapped(2))
		return nil
	})
	cmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n"+usageFmt, cmd.Long, cmd.UseLine(), fs.FlagUsagesWrapped(2))
	})
}

// ParseAndApplyConfigFile loads the config file into o, then parses args
// again so flags win over the file.
func ParseAndApplyConfigFile(o Optioner, args []string) error {
	path := o.GetBaseOptions().ConfigFile
	if len(path) == 0 {
		return nil
	}
	if err := decodeConfigFile(path, o); err != nil {
		return err
	}

	fs := pflag.NewFlagSet("", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	o.AddFlags(fs)
	o.GetBaseOptions().addConfigFile(fs)
	o.GetBaseOptions().Logging.BindLoggingFlags(fs)
	return errors.Wrap(fs.Parse(args), "parse flags")
}

// decodeConfigFile decodes the yaml file over the defaults already in out, so
// keys missing from the file keep their default.
func decodeConfigFile(path string, out interface{}) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "config file path")
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		klog.ErrorS(err, "Failed to read config file", "file", abs)
		return errors.Wrapf(err, "read %s", abs)
	}
	if err = yaml.Unmarshal(data, out); err != nil {
		klog.ErrorS(err, "Failed to unmarshal config file", "file", abs)
		return errors.Wrapf(err, "decode %s", abs)
	}
	return nil
}
