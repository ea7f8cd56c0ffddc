package main

import (
	"github.com/spf13/cobra"

	"github.com/shimarch/smrkit/chat"
	"github.com/shimarch/smrkit/logging"
	"github.com/shimarch/smrkit/resilience"
)

func newChatCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Send Google Chat messages",
	}

	var retries int
	send := &cobra.Command{
		Use:   "send SPACE TITLE MESSAGE",
		Short: "Send a text message to a space",
		Long: `Send "*TITLE*" followed by MESSAGE to a Google Chat space. The webhook URL
is read from the secret GCHAT_WEBHOOK_<SPACE>.

Examples:
  smrkit chat send ops "Nightly import" "42 rows written"
  smrkit chat send ops "Nightly import" "failed" --retries 3`,
		Args: cobra.ExactArgs(3),
		RunE: a.run(func(cmd *cobra.Command, args []string) error {
			space, title, message := args[0], args[1], args[2]
			opts := []chat.Option{
				chat.WithConfig(a.cfg.Chat),
				chat.WithLogger(a.logger),
				chat.WithMiddleware(a.mw),
			}
			if retries > 1 {
				opts = append(opts, chat.WithRetry(resilience.RetryConfig{
					Attempts: retries,
					RetryIf:  chat.Retryable,
				}))
			}
			client, err := chat.New(a.secrets, opts...)
			if err != nil {
				return err
			}
			if a.dryRun {
				if _, err := client.WebhookURL(cmd.Context(), space); err != nil {
					return err
				}
				a.logger.Info("Would send Google Chat message", logging.Fields{"space": space, "title": title})
				return nil
			}
			return client.SendText(cmd.Context(), space, title, message)
		}),
	}
	send.Flags().IntVar(&retries, "retries", 1, "attempts for transient failures")

	cmd.AddCommand(send)
	return cmd
}
