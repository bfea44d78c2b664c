// Package notify sends outbound email and SMS notifications.
//
// Notifications are fire-and-forget. The Dispatcher hands each Message to a
// job scheduler and returns immediately; delivery errors, including a provider
// that suppresses sends while in testing mode, are logged and counted but
// never reach the operation that triggered them.
//
// Notifier implementations:
//
//   - WebhookNotifier posts a signed JSON payload to an email/SMS relay
//   - LogNotifier writes the message to the log, for development
//   - MemoryNotifier records messages, for tests
package notify
