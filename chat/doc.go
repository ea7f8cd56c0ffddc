// Package chat posts messages to Google Chat spaces through incoming
// webhooks.
//
// Webhook URLs are secrets: the URL for space "ops" is read from key
// GCHAT_WEBHOOK_OPS of a secret.Manager and is never logged. Calls run
// through a resilience.Executor with a per-space rate limiter (Chat accepts
// about one message per second per space) and a timeout. Retries are
// opt-in with WithRetry.
//
//	logging.Initialize(nil)
//	c, err := chat.New(manager)
//	if err != nil {
//	    return err
//	}
//	err = c.SendText(ctx, "ops", "Deploy", "v1.4.2 is live")
package chat
