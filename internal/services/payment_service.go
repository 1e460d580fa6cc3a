package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/himstay/internal/config"
	"github.com/example/himstay/internal/himkosh"
	"github.com/example/himstay/internal/models"
)

// Domain precondition errors surfaced to the HTTP layer.
var (
	ErrApplicationNotFound   = errors.New("application not found")
	ErrApplicationNotPayable = errors.New("application is not in a payable state")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrGatewayUnavailable    = errors.New("treasury gateway unreachable")
)

// Gateway field limit for the correlation reference.
const maxAppRefNoLen = 20

// HimKosh reports success with StatusCd=1; everything else is a failure.
const statusCdSuccess = "1"

// Registration certificates stay valid for three years.
const certificateValidity = 3

const gatewayDateFormat = "02/01/2006"

// PaymentService owns the lifecycle of a payment attempt against the
// Cyber Treasury Portal: initiation, the asynchronous callback, and manual
// server-to-server reconciliation.
type PaymentService struct {
	db     *gorm.DB
	engine *himkosh.Engine
	cfg    config.HimKoshConfig
	client *http.Client
	now    func() time.Time
}

func NewPaymentService(db *gorm.DB, engine *himkosh.Engine, cfg config.HimKoshConfig) *PaymentService {
	return &PaymentService{
		db:     db,
		engine: engine,
		cfg:    cfg,
		client: &http.Client{Timeout: 20 * time.Second},
		now:    time.Now,
	}
}

// InitiateResult is everything the caller needs for the redirect-based
// handoff to the treasury payment page. The checksum is embedded inside
// EncData and never exposed as a separate field.
type InitiateResult struct {
	PaymentURL   string `json:"paymentUrl"`
	MerchantCode string `json:"merchantCode"`
	EncData      string `json:"encdata"`
	AppRefNo     string `json:"appRefNo"`
	TotalAmount  int64  `json:"totalAmount"`
	ActualAmount int64  `json:"actualAmount"`
	IsTestMode   bool   `json:"isTestMode"`
	IsConfigured bool   `json:"isConfigured"`
}

// Initiate builds, records and returns an encrypted payment request for
// the given application.
func (s *PaymentService) Initiate(ctx context.Context, applicationID uuid.UUID) (*InitiateResult, error) {
	var app models.Application
	if err := s.db.WithContext(ctx).First(&app, "id = ?", applicationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}

	if app.Status != models.ApplicationStatusPaymentPending {
		return nil, fmt.Errorf("%w: status is %s", ErrApplicationNotPayable, app.Status)
	}

	ddo := s.resolveDDO(ctx, app.District)
	appRefNo := s.generateAppRefNo()

	actualAmount := int64(math.Round(app.TotalFee))
	gatewayAmount := actualAmount
	if s.cfg.TestMode {
		// Sandbox runs send a nominal rupee to the gateway; the real fee is
		// kept on the record for display and audit.
		gatewayAmount = 1
	}

	periodFrom, periodTo := s.accountingPeriod()

	params := himkosh.RequestParams{
		DeptID:      s.cfg.DeptID,
		DeptRefNo:   app.ApplicationNo,
		TotalAmount: gatewayAmount,
		TenderBy:    app.ApplicantName,
		AppRefNo:    appRefNo,
		Head1:       s.cfg.Head1,
		Amount1:     gatewayAmount,
		Head2:       s.cfg.Head2,
		Amount2:     0,
		Ddo:         ddo,
		PeriodFrom:  periodFrom,
		PeriodTo:    periodTo,
		ServiceCode: s.cfg.ServiceCode,
		ReturnURL:   s.cfg.ReturnURL,
	}

	core, full, err := himkosh.BuildRequest(params)
	if err != nil {
		return nil, err
	}

	checksum := himkosh.GenerateChecksum(core)
	assembled := himkosh.AppendChecksum(full, checksum)

	encdata, err := s.engine.Encrypt(assembled)
	if err != nil {
		return nil, err
	}

	txn := models.HimkoshTransaction{
		AppRefNo:          appRefNo,
		ApplicationID:     app.ID.String(),
		DeptRefNo:         app.ApplicationNo,
		TotalAmount:       gatewayAmount,
		ActualAmount:      actualAmount,
		MerchantCode:      s.cfg.MerchantCode,
		DeptID:            s.cfg.DeptID,
		ServiceCode:       s.cfg.ServiceCode,
		Ddo:               ddo,
		Head1:             s.cfg.Head1,
		Amount1:           gatewayAmount,
		Head2:             s.cfg.Head2,
		Amount2:           0,
		PeriodFrom:        periodFrom,
		PeriodTo:          periodTo,
		RequestString:     assembled,
		Checksum:          checksum,
		EncRequest:        encdata,
		TransactionStatus: models.TransactionStatusInitiated,
	}

	if err := s.db.WithContext(ctx).Create(&txn).Error; err != nil {
		return nil, err
	}

	return &InitiateResult{
		PaymentURL:   s.cfg.PaymentURL,
		MerchantCode: s.cfg.MerchantCode,
		EncData:      encdata,
		AppRefNo:     appRefNo,
		TotalAmount:  gatewayAmount,
		ActualAmount: actualAmount,
		IsTestMode:   s.cfg.TestMode,
		IsConfigured: !s.cfg.Placeholder && s.engine.Configured(),
	}, nil
}

// CallbackResult is the settled outcome of a gateway callback, used by the
// HTTP layer to build the user-facing redirect.
type CallbackResult struct {
	ApplicationID string
	AppRefNo      string
	HimgrnNo      string
	Success       bool
}

// HandleCallback decrypts and validates an asynchronous gateway callback
// and settles the matching transaction. Nothing is mutated unless the
// checksum verifies and the transaction exists.
func (s *PaymentService) HandleCallback(ctx context.Context, encdata string) (*CallbackResult, error) {
	payload, err := s.engine.Decrypt(encdata)
	if err != nil {
		return nil, err
	}

	prefix, presented, ok := himkosh.SplitChecksum(payload)
	if !ok {
		log.Printf("[HimKosh] callback payload carries no checksum segment")
		return nil, himkosh.ErrChecksumMismatch
	}
	if err := himkosh.VerifyChecksum(prefix, presented); err != nil {
		log.Printf("[HimKosh] callback checksum mismatch, possible tampering or protocol drift")
		return nil, err
	}

	resp := himkosh.ParseResponse(payload)
	if resp.AppRefNo == "" {
		return nil, ErrTransactionNotFound
	}

	var txn models.HimkoshTransaction
	if err := s.db.WithContext(ctx).First(&txn, "app_ref_no = ?", resp.AppRefNo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[HimKosh] callback for unknown reference %s", resp.AppRefNo)
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	status := models.TransactionStatusFailed
	if resp.StatusCd == statusCdSuccess {
		status = models.TransactionStatusSuccess
	}

	// Settle in a single guarded update: once a transaction has left
	// initiated, a replayed or racing callback must not change the outcome.
	res := s.db.WithContext(ctx).
		Model(&models.HimkoshTransaction{}).
		Where("app_ref_no = ? AND transaction_status = ?", resp.AppRefNo, models.TransactionStatusInitiated).
		Updates(map[string]any{
			"transaction_status": status,
			"himgrn_no":          resp.EchTxnID,
			"bank_code":          resp.Bank,
			"bank_ref_no":        resp.BankCIN,
			"bank_name":          resp.BankName,
			"payment_date":       resp.PaymentDate,
			"status_text":        resp.Status,
			"status_code":        resp.StatusCd,
			"response_checksum":  resp.Checksum,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	settledNow := res.RowsAffected > 0
	if !settledNow {
		// Already settled earlier; report the recorded outcome.
		if err := s.db.WithContext(ctx).First(&txn, "app_ref_no = ?", resp.AppRefNo).Error; err != nil {
			return nil, err
		}
		return &CallbackResult{
			ApplicationID: txn.ApplicationID,
			AppRefNo:      txn.AppRefNo,
			HimgrnNo:      txn.HimgrnNo,
			Success:       txn.TransactionStatus == models.TransactionStatusSuccess,
		}, nil
	}

	if status == models.TransactionStatusSuccess {
		if err := s.approveApplication(ctx, txn.ApplicationID); err != nil {
			log.Printf("[HimKosh] payment %s succeeded but approval failed: %v", resp.AppRefNo, err)
			return nil, err
		}
	}

	return &CallbackResult{
		ApplicationID: txn.ApplicationID,
		AppRefNo:      resp.AppRefNo,
		HimgrnNo:      resp.EchTxnID,
		Success:       status == models.TransactionStatusSuccess,
	}, nil
}

// VerifyResult reports the outcome of a manual reconciliation call.
type VerifyResult struct {
	Verified bool                    `json:"verified"`
	Data     himkosh.GatewayResponse `json:"data"`
}

// Verify performs the server-to-server double check against the gateway's
// verification endpoint. It annotates the transaction with the raw
// verification payload and never overwrites a settled outcome; callback
// delivery is not guaranteed, so operators use this to reconcile.
func (s *PaymentService) Verify(ctx context.Context, appRefNo string) (*VerifyResult, error) {
	var txn models.HimkoshTransaction
	if err := s.db.WithContext(ctx).First(&txn, "app_ref_no = ?", appRefNo).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	verifyStr, err := himkosh.BuildVerifyRequest(appRefNo, s.cfg.ServiceCode, s.cfg.MerchantCode)
	if err != nil {
		return nil, err
	}
	assembled := himkosh.AppendChecksum(verifyStr, himkosh.GenerateChecksum(verifyStr))

	encdata, err := s.engine.Encrypt(assembled)
	if err != nil {
		return nil, err
	}

	raw, err := s.postVerify(ctx, encdata)
	if err != nil {
		// Network failure is retryable; the transaction stays unverified.
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	payload := raw
	if decrypted, err := s.engine.Decrypt(strings.TrimSpace(raw)); err == nil {
		payload = decrypted
	}
	resp := himkosh.ParseResponse(payload)

	verifiedAt := s.now()
	if err := s.db.WithContext(ctx).
		Model(&models.HimkoshTransaction{}).
		Where("app_ref_no = ?", appRefNo).
		Updates(map[string]any{
			"double_verified": true,
			"verify_payload":  payload,
			"verified_at":     &verifiedAt,
		}).Error; err != nil {
		return nil, err
	}

	return &VerifyResult{Verified: true, Data: resp}, nil
}

func (s *PaymentService) postVerify(ctx context.Context, encdata string) (string, error) {
	form := url.Values{}
	form.Set("encdata", encdata)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("verification endpoint returned %d", res.StatusCode)
	}
	return string(body), nil
}

// approveApplication transitions the application to approved and mints its
// registration certificate in one database transaction.
func (s *PaymentService) approveApplication(ctx context.Context, applicationID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Application{}).
			Where("id = ?", applicationID).
			Update("status", models.ApplicationStatusApproved).Error; err != nil {
			return err
		}

		issued := s.now()
		cert := models.Certificate{
			CertificateNo: s.generateCertificateNo(issued),
			ApplicationID: applicationID,
			IssuedAt:      issued,
			ExpiresAt:     issued.AddDate(certificateValidity, 0, 0),
		}
		return tx.Create(&cert).Error
	})
}

// generateAppRefNo builds a correlation reference from a millisecond
// timestamp and a random suffix, capped to the gateway's field limit. The
// suffix sits inside the cap by construction so truncation never costs
// uniqueness.
func (s *PaymentService) generateAppRefNo() string {
	suffix := strings.ToUpper(uuid.NewString()[:4])
	ref := fmt.Sprintf("HST%d%s", s.now().UnixMilli(), suffix)
	if len(ref) > maxAppRefNoLen {
		ref = ref[:maxAppRefNoLen]
	}
	return ref
}

// generateCertificateNo mints HP-HST-<year>-<5 digits>.
func (s *PaymentService) generateCertificateNo(issued time.Time) string {
	u := uuid.New()
	serial := (uint32(u[0])<<24 | uint32(u[1])<<16 | uint32(u[2])<<8 | uint32(u[3])) % 100000
	return fmt.Sprintf("HP-HST-%d-%05d", issued.Year(), serial)
}

// accountingPeriod attributes the payment to the current calendar month.
func (s *PaymentService) accountingPeriod() (string, string) {
	now := s.now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	last := first.AddDate(0, 1, -1)
	return first.Format(gatewayDateFormat), last.Format(gatewayDateFormat)
}

func (s *PaymentService) resolveDDO(ctx context.Context, district string) string {
	var mapping models.DistrictDDOMapping
	err := s.db.WithContext(ctx).First(&mapping, "district = ?", district).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[HimKosh] ddo lookup failed for district %q: %v", district, err)
		} else {
			log.Printf("[HimKosh] no ddo mapping for district %q, falling back to default %s", district, s.cfg.DefaultDDO)
		}
		return s.cfg.DefaultDDO
	}
	return mapping.DDOCode
}
