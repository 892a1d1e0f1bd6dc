package payment

// CreatePaymentResponse is returned from POST /appointments/{id}/payments.
// The caller must redirect the patient to ApprovalURL to approve the
// charge at the gateway.
type CreatePaymentResponse struct {
	PaymentID        int64  `json:"payment_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	ApprovalURL      string `json:"approval_url"`
	Status           string `json:"status"`
}

// ExecutePaymentResponse is returned from the gateway return URL. A false
// Synced does not mean the charge failed: the money is captured and the
// monitor will repair the appointment row.
type ExecutePaymentResponse struct {
	Synced  bool        `json:"synced"`
	Payment *View       `json:"payment"`
	Sync    *SyncResult `json:"sync"`
}

// SyncStatusResponse wraps the monitor snapshot for the admin surface.
type SyncStatusResponse struct {
	Monitor MonitorStatus `json:"monitor"`
}

// CheckSyncResponse reports one on-demand sweep.
type CheckSyncResponse struct {
	Repaired int `json:"repaired"`
}
