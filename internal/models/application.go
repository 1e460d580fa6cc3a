package models

import "time"

// Application statuses relevant to the payment flow.
const (
	ApplicationStatusSubmitted      = "submitted"
	ApplicationStatusUnderScrutiny  = "under_scrutiny"
	ApplicationStatusPaymentPending = "payment_pending"
	ApplicationStatusApproved       = "approved"
	ApplicationStatusRejected       = "rejected"
)

// Application is a homestay registration application. The portal's intake
// and scrutiny workflow owns most of its lifecycle; the payment core reads
// it and, on a successful payment, moves it to approved.
type Application struct {
	BaseModel
	ApplicationNo string  `gorm:"uniqueIndex" json:"application_no"`
	ApplicantName string  `json:"applicant_name"`
	District      string  `gorm:"index" json:"district"`
	PropertyName  string  `json:"property_name"`
	TotalFee      float64 `json:"total_fee"`
	Status        string  `gorm:"index" json:"status"`
}

// DistrictDDOMapping maps a district to its treasury Drawing and Disbursing
// Officer code. Administered externally; read-only here.
type DistrictDDOMapping struct {
	BaseModel
	District string `gorm:"uniqueIndex" json:"district"`
	DDOCode  string `gorm:"column:ddo_code" json:"ddo_code"`
	Treasury string `json:"treasury"`
}

// Certificate is the registration certificate minted when an application's
// fee payment succeeds.
type Certificate struct {
	BaseModel
	CertificateNo string    `gorm:"uniqueIndex" json:"certificate_no"`
	ApplicationID string    `gorm:"type:uuid;index" json:"application_id"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}
