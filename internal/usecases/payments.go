package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/quickbite/food-ordering-app/backend/internal/entities"
)

// PaymentService finalizes payments reported by the client callback path.
// The webhook path converges on the same repository commit, so whichever
// arrives first wins and the other becomes a no-op.
type PaymentService struct {
	logger        *slog.Logger
	repo          OrdersRepository
	paymentSecret string
}

func NewPaymentService(logger *slog.Logger, repo OrdersRepository, paymentSecret string) *PaymentService {
	return &PaymentService{
		logger:        logger,
		repo:          repo,
		paymentSecret: paymentSecret,
	}
}

// VerifyAndCommit authenticates the gateway signature and marks the order
// PAID exactly once. A replay against an already paid order succeeds
// without a second write.
func (s *PaymentService) VerifyAndCommit(ctx context.Context, orderID uuid.UUID, gatewayOrderID, gatewayPaymentID, signature string) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	if order.RazorpayOrderID != gatewayOrderID {
		s.logger.Warn("Payment callback for mismatched gateway order",
			"order_id", orderID, "got", gatewayOrderID, "want", order.RazorpayOrderID)
		return entities.ErrSignatureInvalid
	}

	if !VerifyPaymentSignature(s.paymentSecret, gatewayOrderID, gatewayPaymentID, signature) {
		s.logger.Warn("Invalid payment signature", "order_id", orderID, "payment_id", gatewayPaymentID)
		return entities.ErrSignatureInvalid
	}

	err = s.repo.CommitPayment(ctx, orderID, gatewayPaymentID, order.Version)
	if errors.Is(err, entities.ErrVersionConflict) {
		// Lost the race against the webhook or another callback. Re-read:
		// if the order got paid meanwhile this call is a success, otherwise
		// retry once against the fresh version.
		order, err = s.repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status.AtLeastPaid() {
			s.logger.Info("Payment already committed by concurrent path",
				"order_id", orderID, "status", order.Status)
			return nil
		}
		err = s.repo.CommitPayment(ctx, orderID, gatewayPaymentID, order.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to commit payment: %w", err)
	}

	s.logger.Info("Payment committed", "order_id", orderID, "payment_id", gatewayPaymentID)
	return nil
}
