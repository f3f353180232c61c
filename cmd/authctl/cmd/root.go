package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pilab-dev/talent-auth/config"
	"github.com/pilab-dev/talent-auth/log"
)

// AppName is the binary name used in help output.
const AppName = "authctl"

type options struct {
	configFile string
	logLevel   string
	cfg        *config.Config
	logger     log.Logger
}

// NewRootCommand builds the authctl command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           AppName,
		Short:         "authctl is an operator tool for the talent-auth service",
		Long:          `A command-line interface for hashing passwords, generating signing keys and issuing or inspecting session tokens with the same configuration the server uses.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "",
		"config file (default searches ./authd.yaml, /etc/talent-auth/, $HOME/.talent-auth)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newHashPasswordCommand(),
		newIssueTokenCommand(opts),
		newVerifyTokenCommand(opts),
		newGenerateKeysCommand(),
	)
	return root
}

// load reads configuration. Only the token commands need it.
func (o *options) load(cmd *cobra.Command) error {
	zl := log.SetupWithWriter(cmd.ErrOrStderr(), o.logLevel, true)
	o.logger = log.NewZerologAdapter(zl)

	cfg, err := config.LoadConfig(o.configFile)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logger.Debug(cmd.Context(), "configuration loaded", map[string]interface{}{
		"signing_method": cfg.Token.SigningMethod,
		"issuer":         cfg.Token.Issuer,
	})
	return nil
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
