package roster

import (
	"context"
	"errors"

	"teesheet/internal/metrics"
	"teesheet/internal/models"
)

var ErrUnknownBillingAction = errors.New("unknown billing action")

// ApplyBilling runs a payment action with optimistic local state: the
// cached financial summary is mutated immediately, the backend call
// follows, and on failure the pre-mutation snapshot is restored. Success
// still triggers an authoritative refetch — the optimistic state is
// provisional either way.
func (m *Manager) ApplyBilling(ctx context.Context, participantID, action, reason string) error {
	switch action {
	case models.BillingConfirm, models.BillingConfirmAll,
		models.BillingWaive, models.BillingWaiveAll,
		models.BillingUseGuestPass:
	default:
		return ErrUnknownBillingAction
	}

	key := billingKey(participantID)
	if participantID == "" {
		key = billingKey(action)
	}
	if !m.inflight.begin(key) {
		return ErrOperationPending
	}
	defer m.inflight.end(key)

	m.mu.Lock()
	if m.roster == nil {
		m.mu.Unlock()
		return ErrNoRoster
	}
	snapshot := m.roster.FinancialSummary.Clone()
	passSnapshot := m.roster.GuestPassContext
	m.applyOptimistic(participantID, action)
	m.mu.Unlock()

	err := m.api.ApplyBillingAction(ctx, m.bookingID, models.BillingActionRequest{
		ParticipantID: participantID,
		Action:        action,
		Reason:        reason,
	})
	if err != nil {
		m.mu.Lock()
		if m.roster != nil {
			m.roster.FinancialSummary = snapshot
			m.roster.GuestPassContext = passSnapshot
		}
		m.mu.Unlock()
		metrics.IncBillingRollback()
		m.logger.Warn().Err(err).
			Str("participant", participantID).
			Str("action", action).
			Msg("billing action failed; optimistic state rolled back")
		return err
	}

	if rerr := m.Refresh(ctx); rerr != nil {
		m.logger.Error().Err(rerr).Str("action", action).Msg("roster refresh after billing action failed")
	}
	return nil
}

// applyOptimistic mutates the cached summary in place. Caller holds the
// lock.
func (m *Manager) applyOptimistic(participantID, action string) {
	summary := &m.roster.FinancialSummary

	setStatus := func(fee *models.ParticipantFee, status string) {
		if fee.Status == models.PaymentPending {
			fee.Status = status
		}
	}

	switch action {
	case models.BillingConfirmAll:
		for i := range summary.Fees {
			setStatus(&summary.Fees[i], models.PaymentPaid)
		}
	case models.BillingWaiveAll:
		for i := range summary.Fees {
			setStatus(&summary.Fees[i], models.PaymentWaived)
		}
	case models.BillingConfirm:
		if fee := summary.Fee(participantID); fee != nil {
			setStatus(fee, models.PaymentPaid)
		}
	case models.BillingWaive:
		if fee := summary.Fee(participantID); fee != nil {
			setStatus(fee, models.PaymentWaived)
		}
	case models.BillingUseGuestPass:
		if fee := summary.Fee(participantID); fee != nil {
			setStatus(fee, models.PaymentGuestPass)
		}
		if m.roster.GuestPassContext.Remaining > 0 {
			m.roster.GuestPassContext.Remaining--
		}
	}
}
