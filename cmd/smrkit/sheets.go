package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shimarch/smrkit/logging"
	"github.com/shimarch/smrkit/sheets"
)

func newSheetsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Read and write Google Sheets",
		Long: `Read and write Google Sheets with the credentials stored in the secret
backend: GSHEET_CLIENT_SECRET and GSHEET_REFRESH_TOKEN for a user, or
GSHEET_SERVICE_ACCOUNT with sheets.service_account enabled.

Run "smrkit sheets auth" once to obtain and store a user token.`,
	}

	var asJSON bool
	read := &cobra.Command{
		Use:   "read SPREADSHEET_ID [SHEET]",
		Short: "Print the values of a worksheet",
		Args:  cobra.RangeArgs(1, 2),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			sheet := sheets.DefaultSheet
			if len(args) == 2 {
				sheet = args[1]
			}
			client, err := a.sheetsClient(cmd)
			if err != nil {
				return err
			}
			rows, err := client.Values(cmd.Context(), args[0], sheet)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, row := range rows {
				fmt.Fprintln(w, strings.Join(row, "\t"))
			}
			return w.Flush()
		}),
	}
	read.Flags().BoolVar(&asJSON, "json", false, "print rows as a JSON array")

	write := &cobra.Command{
		Use:   "write SPREADSHEET_ID SHEET FILE",
		Short: "Replace a worksheet with rows from a JSON file",
		Long: `Replace the contents of SHEET with the JSON array of objects in FILE ("-"
reads standard input). The keys of the first object become the header row.
The worksheet is created when it does not exist.

Examples:
  smrkit sheets write 1AbC...xyz Report rows.json
  jq '[.items[] | {name, total}]' export.json | smrkit sheets write 1AbC...xyz Report -`,
		Args: cobra.ExactArgs(3),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			data, err := stdinOrFile(cmd, args[2])
			if err != nil {
				return fmt.Errorf("read rows: %w", err)
			}
			if a.dryRun {
				a.logger.Info("Would update worksheet", logging.Fields{"spreadsheet_id": args[0], "sheet": args[1], "bytes": len(data)})
				return nil
			}
			client, err := a.sheetsClient(cmd)
			if err != nil {
				return err
			}
			return client.UpdateJSON(cmd.Context(), args[0], args[1], data)
		}),
	}

	auth := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access and store the refresh token",
		Long: `Print the Google consent page URL for the client in GSHEET_CLIENT_SECRET,
read the authorization code from standard input and store the resulting
token under GSHEET_REFRESH_TOKEN.`,
		Args: cobra.NoArgs,
		RunE: a.run(func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			oc, err := sheets.OAuthConfig(ctx, a.secrets, a.cfg.Sheets.Scopes...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sheets.AuthCodeURL(oc, "smrkit"))
			code, err := a.logger.Ask("Enter the authorization code", false)
			code = strings.TrimSpace(code)
			if code == "" {
				return errors.Join(errors.New("no authorization code entered"), err)
			}
			if a.dryRun {
				a.logger.Info("Would exchange the authorization code and store the token")
				return nil
			}
			if _, err := sheets.ExchangeCode(ctx, a.secrets, oc, code); err != nil {
				return err
			}
			a.logger.Success("Token saved", logging.Fields{"key": sheets.RefreshTokenKey})
			return nil
		}),
	}

	cmd.AddCommand(read, write, auth)
	return cmd
}

func (a *app) sheetsClient(cmd *cobra.Command) (*sheets.Client, error) {
	return sheets.New(cmd.Context(), a.secrets,
		sheets.WithConfig(a.cfg.Sheets),
		sheets.WithLogger(a.logger),
		sheets.WithMiddleware(a.mw),
	)
}
