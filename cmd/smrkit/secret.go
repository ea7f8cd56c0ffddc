package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shimarch/smrkit/health"
	"github.com/shimarch/smrkit/logging"
	"github.com/shimarch/smrkit/secret"
)

func newSecretCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Read and write secrets in the configured backend",
	}

	var showValues bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List secret keys",
		Long: `List the keys held by the backend. Values are masked unless --show-values
is given. Backends that cannot enumerate their keys return an error.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			all, err := a.secrets.All(cmd.Context())
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, k := range keys {
				v := mask(all[k])
				if showValues {
					v = all[k]
				}
				fmt.Fprintf(w, "%s\t%s\n", k, v)
			}
			return w.Flush()
		}),
	}
	list.Flags().BoolVar(&showValues, "show-values", false, "print values instead of masking them")

	get := &cobra.Command{
		Use:   "get KEY",
		Short: "Print a secret value",
		Args:  cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			v, err := a.secrets.Require(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		}),
	}

	set := &cobra.Command{
		Use:   "set KEY [VALUE]",
		Short: "Store a secret value",
		Long: `Store a secret value. The value is read from standard input when it is
not given as an argument, so it stays out of the shell history.

Keys that already exist are only replaced when listed in
secrets.allow_overwrite.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			value := ""
			if len(args) == 2 {
				value = args[1]
			} else {
				raw, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), 1<<20))
				if err != nil {
					return fmt.Errorf("read value: %w", err)
				}
				value = strings.TrimRight(string(raw), "\r\n")
			}
			if a.dryRun {
				a.logger.Info("Would store secret", logging.Fields{"key": args[0]})
				return nil
			}
			if err := a.secrets.Set(cmd.Context(), args[0], value); err != nil {
				return err
			}
			a.logger.Success("Secret stored", logging.Fields{"key": args[0]})
			return nil
		}),
	}

	var strict bool
	resolve := &cobra.Command{
		Use:   "resolve VALUE",
		Short: "Expand environment variables and secret references in a value",
		Long: `Expand $VAR and ${VAR} from the environment, then replace
secretref:secrets:KEY and secretref:env:KEY references.

Examples:
  smrkit secret resolve 'postgres://app:secretref:secrets:DB_PASSWORD@db:5432/app'`,
		Args: cobra.ExactArgs(1),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			r := secret.NewResolver(strict)
			r.Register("secrets", a.secrets)
			r.Register(secret.KindEnv, secret.NewEnv(""))
			v, err := r.ResolveValue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		}),
	}
	resolve.Flags().BoolVar(&strict, "strict", false, "fail when a referenced secret is empty")

	check := &cobra.Command{
		Use:   "check",
		Short: "Check that the secret backend is reachable",
		Args:  cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			agg := health.NewAggregator(health.AggregatorConfig{Timeout: a.cfg.Secrets.Timeout})
			if err := agg.Register(a.secrets.HealthChecker("secret:" + a.cfg.Secrets.Backend)); err != nil {
				return err
			}
			reports := agg.CheckAll(cmd.Context())

			counts := map[health.Status]int{}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, r := range reports {
				counts[r.Status]++
				detail := r.Message
				if r.Err != nil {
					detail = r.Err.Error()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Status, r.Duration.Round(time.Millisecond), detail)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			a.logger.Summary("Health check", []logging.SummaryRow{
				{Label: "healthy", Value: counts[health.StatusHealthy], Color: "2"},
				{Label: "degraded", Value: counts[health.StatusDegraded], Color: "3"},
				{Label: "unhealthy", Value: counts[health.StatusUnhealthy], Color: "1"},
				{Label: "total", Value: len(reports)},
			}, "total")

			if health.Overall(reports) == health.StatusUnhealthy {
				return fmt.Errorf("secret backend %q is unhealthy", a.cfg.Secrets.Backend)
			}
			return nil
		}),
	}

	cmd.AddCommand(list, get, set, resolve, check)
	return cmd
}

func mask(v string) string {
	if v == "" {
		return ""
	}
	return "********"
}

// stdinOrFile reads path, or standard input when path is "-".
func stdinOrFile(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
