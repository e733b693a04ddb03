// Package notify delivers verification reports.
//
// Sinks implement verify.Sink. LogSink writes a structured log record,
// Outbox stores the report in SQLite (and records every job result),
// WebhookSink posts it to a chat webhook, and Fanout sends to several.
package notify
