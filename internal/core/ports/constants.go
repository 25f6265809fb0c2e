package ports

const (
	WebhookBodyLimit     = 1 << 20 // Max accepted webhook payload size
	IdempotencyKeyHeader = "Idempotency-Key"
)
