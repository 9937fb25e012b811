// agui - command-line companion for AG-UI agents: stream runs, check
// recorded event streams and host a development server.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string

	config *fileConfig
	logger *logrus.Logger
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "agui",
		Short: "Command-line companion for AG-UI agents",
		Long: `agui - command-line companion for AG-UI agents.

Stream a run against an agent endpoint, validate a recorded event stream,
or host the built-in echo agent for local development.

Environment:
  NATS_URL    NATS server used by "serve --nats" when no URL is configured`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (default: warning)")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "log format: text or json")

	cmd.AddCommand(newRunCmd(g))
	cmd.AddCommand(newValidateCmd(g))
	cmd.AddCommand(newServeCmd(g))
	return cmd
}

// load reads the config file and sets up logging. Flags override the file.
func (g *globalFlags) load(cmd *cobra.Command) error {
	cfg, err := loadConfig(g.configPath)
	if err != nil {
		return err
	}
	g.config = cfg

	level := cfg.LogLevel
	if g.logLevel != "" {
		level = g.logLevel
	}
	if level == "" {
		level = "warning"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	format := cfg.LogFormat
	if g.logFormat != "" {
		format = g.logFormat
	}

	g.logger = logrus.New()
	g.logger.SetOutput(cmd.ErrOrStderr())
	g.logger.SetLevel(lvl)
	if format == "json" {
		g.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return nil
}
