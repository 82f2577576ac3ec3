package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cxd309/apf-engine/internal/config"
	"github.com/cxd309/apf-engine/internal/engine"
	"github.com/cxd309/apf-engine/internal/geometry"
	"github.com/cxd309/apf-engine/internal/observability"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set at build time with
// -ldflags "-X main.Version=1.2.3".
var Version = "dev"

// app carries state shared by every subcommand of one root command.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "apf",
		Short:         "Artificial potential field path planner.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			observability.Initialize(a.cfg.Logger, zapcore.Lock(zapcore.AddSync(cmd.ErrOrStderr())))
			observability.GetLogger().Debug("configuration loaded", zap.String("file", a.v.ConfigFileUsed()))
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default ./apf.yaml)")
	root.SetVersionTemplate("{{printf \"%s\\n\" .Version}}")

	root.AddCommand(newPlanCommand(a), newServeCommand(a), newVersionCommand())
	return root
}

// loadConfig reads the config file, if any, and APF_* environment variables
// over the defaults.
func (a *app) loadConfig() error {
	config.SetDefaults(a.v)
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("apf")
		a.v.SetConfigType("yaml")
	}
	a.v.SetEnvPrefix("APF")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := config.NewConfigFromViper(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// readScene decodes the scene named by args, or stdin, over the configured
// arena and engine settings.
func (a *app) readScene(cmd *cobra.Command, args []string) (engine.SceneInput, error) {
	var (
		data []byte
		err  error
	)
	if len(args) > 0 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return engine.SceneInput{}, fmt.Errorf("error reading input: %w", err)
	}

	base := engine.SceneInput{
		Arena:  geometry.Arena{Width: a.cfg.Arena.Width, Height: a.cfg.Arena.Height},
		Engine: a.cfg.Engine,
	}
	return engine.DecodeScene(data, base)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), Version)
			return err
		},
	}
}
