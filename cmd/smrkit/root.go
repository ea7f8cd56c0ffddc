package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shimarch/smrkit/config"
	"github.com/shimarch/smrkit/logging"
	"github.com/shimarch/smrkit/observe"
	"github.com/shimarch/smrkit/secret"
	"github.com/shimarch/smrkit/secret/awssm"
	"github.com/shimarch/smrkit/secret/vault"
)

// app holds what every subcommand shares once the root command has run
// its setup.
type app struct {
	// flags
	configPath string
	logLevel   string
	logFile    string
	dryRun     bool

	cfg      *config.Config
	logger   *logging.StructuredLogger
	registry *secret.Registry
	secrets  *secret.Manager
	observer observe.Observer
	mw       *observe.Middleware
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "smrkit",
		Short: "Secrets, Google Chat and Google Sheets from the command line",
		Long: `smrkit reads secrets from a configurable backend and uses them to talk to
Google Chat webhooks and the Google Sheets API.

Configuration comes from defaults, an optional YAML file (--config) and
SMRKIT_* environment variables, in increasing precedence.

Examples:
  # Read a secret from the default .env backend
  smrkit secret get API_TOKEN

  # Post to the space whose webhook is stored in GCHAT_WEBHOOK_OPS
  smrkit chat send ops "Deploy" "v1.2.0 is live"

  # Print a worksheet
  smrkit sheets read 1AbC...xyz Sheet1`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "path to a YAML configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: 0=silent, 1=normal, 10=verbose, 100=debug")
	flags.StringVar(&a.logFile, "log-file", "", "path to a log file")
	flags.BoolVar(&a.dryRun, "dry-run", false, "log actions without changing anything")

	root.AddCommand(newSecretCmd(a), newChatCmd(a), newSheetsCmd(a))
	return root
}

// setup loads configuration, installs the logger and opens the secret
// manager.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if err := a.open(cmd); err != nil {
		return errors.Join(err, a.teardown(cmd.Context()))
	}
	return nil
}

func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		level, err := logging.ParseLevel(a.logLevel)
		if err != nil {
			return err
		}
		cfg.Logging.Level = level
	}
	if a.logFile != "" {
		cfg.Logging.LogFile = a.logFile
	}
	if a.dryRun {
		cfg.Logging.DryRun = true
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Logging, logging.WithConsole(cmd.ErrOrStderr()), logging.WithInput(cmd.InOrStdin()))
	if err != nil {
		return err
	}
	a.logger = logger
	logging.Initialize(logger)

	ctx := cmd.Context()
	if cfg.Telemetry.Tracing.Enabled || cfg.Telemetry.Metrics.Enabled {
		obs, err := observe.NewObserver(ctx, cfg.Telemetry, observe.WithWriter(cmd.ErrOrStderr()))
		if err != nil {
			return err
		}
		a.observer = obs
		if a.mw, err = observe.MiddlewareFromObserver(obs, logger); err != nil {
			return err
		}
	}

	if a.registry == nil {
		a.registry = secret.NewDefaultRegistry()
		if err := errors.Join(vault.Register(a.registry), awssm.Register(a.registry)); err != nil {
			return err
		}
	}

	secrets := cfg.Secrets
	if secrets.Options, err = expandOptions(secrets.Options); err != nil {
		return fmt.Errorf("secrets.options: %w", err)
	}
	a.secrets, err = secrets.NewManager(a.registry,
		secret.WithLogger(logger),
		secret.WithMiddleware(a.mw),
	)
	if err != nil {
		return err
	}
	logger.Debug("smrkit ready", logging.Fields{"backend": secrets.Backend, "config": a.configPath})
	return nil
}

// run wraps a RunE so resources opened by setup are released whether or
// not the command succeeds.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			err = errors.Join(err, a.teardown(cmd.Context()))
		}()
		return fn(cmd, args)
	}
}

func (a *app) teardown(ctx context.Context) error {
	var errs []error
	if a.secrets != nil {
		errs = append(errs, a.secrets.Close())
		a.secrets = nil
	}
	if a.observer != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		errs = append(errs, a.observer.Shutdown(ctx))
		a.observer = nil
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
		logging.Reset()
		a.logger = nil
	}
	return errors.Join(errs...)
}

// expandOptions expands ${VAR} references in string option values so
// tokens can be kept out of the configuration file.
func expandOptions(opts map[string]any) (map[string]any, error) {
	if opts == nil {
		return nil, nil
	}
	out := make(map[string]any, len(opts))
	for k, v := range opts {
		switch val := v.(type) {
		case string:
			s, err := secret.ExpandEnvStrict(val)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = s
		case map[string]any:
			nested, err := expandOptions(val)
			if err != nil {
				return nil, fmt.Errorf("%s.%w", k, err)
			}
			out[k] = nested
		default:
			out[k] = v
		}
	}
	return out, nil
}
