package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/quickbite/food-ordering-app/backend/internal/core/ports"
)

// PaymentExpirer worker fails orders whose payment window ran out.
type PaymentExpirer struct {
	logger       *slog.Logger
	orderService ports.OrderService

	// Duration after which an unpaid order is considered abandoned
	paymentWindow time.Duration

	// How often to run the sweep
	sweepInterval time.Duration
}

// NewPaymentExpirer creates a new payment expirer worker
func NewPaymentExpirer(
	logger *slog.Logger,
	orderService ports.OrderService,
	paymentWindow time.Duration,
	sweepInterval time.Duration,
) *PaymentExpirer {
	return &PaymentExpirer{
		logger:        logger,
		orderService:  orderService,
		paymentWindow: paymentWindow,
		sweepInterval: sweepInterval,
	}
}

// Start begins the periodic sweep of stale unpaid orders
func (pe *PaymentExpirer) Start(ctx context.Context) {
	pe.logger.Info("Starting payment expirer worker",
		"payment_window", pe.paymentWindow.String(),
		"sweep_interval", pe.sweepInterval.String())

	// Run an initial sweep immediately
	if err := pe.sweep(ctx); err != nil {
		pe.logger.Error("Initial payment sweep failed", "error", err)
	}

	ticker := time.NewTicker(pe.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			pe.logger.Info("Payment expirer worker stopped")
			return
		case <-ticker.C:
			if err := pe.sweep(ctx); err != nil {
				pe.logger.Error("Payment sweep failed", "error", err)
			}
		}
	}
}

func (pe *PaymentExpirer) sweep(ctx context.Context) error {
	pe.logger.Debug("Sweeping unpaid orders", "older_than", pe.paymentWindow.String())

	count, err := pe.orderService.ExpireStalePayments(ctx, pe.paymentWindow)
	if err != nil {
		return err
	}

	if count > 0 {
		pe.logger.Info("Expired unpaid orders", "count", count, "older_than", pe.paymentWindow.String())
	} else {
		pe.logger.Debug("No unpaid orders to expire")
	}

	return nil
}
