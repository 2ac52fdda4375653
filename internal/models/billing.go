package models

// Billing actions accepted by PATCH /api/bookings/{id}/payments.
const (
	BillingConfirm      = "confirm"
	BillingConfirmAll   = "confirm_all"
	BillingWaive        = "waive"
	BillingWaiveAll     = "waive_all"
	BillingUseGuestPass = "use_guest_pass"
)

// Per-participant payment statuses as reported by the backend.
const (
	PaymentPending   = "pending"
	PaymentPaid      = "paid"
	PaymentWaived    = "waived"
	PaymentGuestPass = "guest_pass"
)

// Fee line-item kinds.
const (
	FeeOverage = "overage"
	FeeGuest   = "guest"
)

// ParticipantFee is one server-computed fee line item.
type ParticipantFee struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	AmountCents   int64  `json:"amountCents"`
	Status        string `json:"status"`
	Note          string `json:"note,omitempty"`
}

// FinancialSummary aggregates fee line items for a booking. It is derived
// and non-authoritative: the backend owns fee math, the console only
// renders it and triggers recompute via mutating calls.
type FinancialSummary struct {
	Fees       []ParticipantFee `json:"fees"`
	TotalCents int64            `json:"totalCents"`
}

// Clone returns a deep copy, used as the rollback snapshot for optimistic
// billing toggles.
func (f FinancialSummary) Clone() FinancialSummary {
	out := FinancialSummary{TotalCents: f.TotalCents}
	if f.Fees != nil {
		out.Fees = make([]ParticipantFee, len(f.Fees))
		copy(out.Fees, f.Fees)
	}
	return out
}

// Fee returns the line item for a participant, if present.
func (f *FinancialSummary) Fee(participantID string) *ParticipantFee {
	for i := range f.Fees {
		if f.Fees[i].ParticipantID == participantID {
			return &f.Fees[i]
		}
	}
	return nil
}

// BillingActionRequest is the body of PATCH /api/bookings/{id}/payments.
type BillingActionRequest struct {
	ParticipantID string `json:"participantId,omitempty"`
	Action        string `json:"action"`
	Reason        string `json:"reason,omitempty"`
}
