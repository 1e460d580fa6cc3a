package models

import "time"

// Transaction statuses for a HimKosh payment attempt.
const (
	TransactionStatusInitiated = "initiated"
	TransactionStatusSuccess   = "success"
	TransactionStatusFailed    = "failed"
)

// HimkoshTransaction is the append-only record of one payment attempt
// against the Cyber Treasury Portal. Rows are never deleted; the outbound
// fields (RequestString, Checksum, EncRequest) are written once at
// initiation and must stay byte-identical to what was sent, since they are
// the audit trail for dispute resolution.
type HimkoshTransaction struct {
	BaseModel
	AppRefNo      string `gorm:"uniqueIndex" json:"app_ref_no"`
	ApplicationID string `gorm:"type:uuid;index" json:"application_id"`
	DeptRefNo     string `gorm:"index" json:"dept_ref_no"`

	// TotalAmount is what the gateway was asked to collect; ActualAmount is
	// the real fee. They diverge only in test mode.
	TotalAmount  int64 `json:"total_amount"`
	ActualAmount int64 `json:"actual_amount"`

	MerchantCode string `json:"merchant_code"`
	DeptID       string `gorm:"column:dept_id" json:"dept_id"`
	ServiceCode  string `json:"service_code"`
	Ddo          string `json:"ddo"`
	Head1        string `json:"head1"`
	Amount1      int64  `json:"amount1"`
	Head2        string `json:"head2"`
	Amount2      int64  `json:"amount2"`
	PeriodFrom   string `json:"period_from"`
	PeriodTo     string `json:"period_to"`

	RequestString string `gorm:"type:text" json:"request_string"`
	Checksum      string `json:"checksum"`
	EncRequest    string `gorm:"type:text" json:"enc_request"`

	// Callback result, populated asynchronously.
	HimgrnNo         string `gorm:"column:himgrn_no;index" json:"himgrn_no"`
	BankCode         string `json:"bank_code"`
	BankRefNo        string `gorm:"column:bank_ref_no" json:"bank_ref_no"`
	BankName         string `json:"bank_name"`
	PaymentDate      string `json:"payment_date"`
	StatusText       string `json:"status_text"`
	StatusCode       string `json:"status_code"`
	ResponseChecksum string `json:"response_checksum"`

	TransactionStatus string `gorm:"index" json:"transaction_status"`

	// Manual server-to-server reconciliation against the gateway.
	DoubleVerified bool       `json:"double_verified"`
	VerifyPayload  string     `gorm:"type:text" json:"verify_payload"`
	VerifiedAt     *time.Time `json:"verified_at"`
}
