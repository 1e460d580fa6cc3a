package himkosh

import (
	"fmt"
	"strconv"
	"strings"
)

// RequestParams carries everything needed to assemble one payment request
// for the Cyber Treasury Portal. All amounts are whole currency units; the
// gateway rejects decimals.
type RequestParams struct {
	DeptID      string
	DeptRefNo   string
	TotalAmount int64
	TenderBy    string
	AppRefNo    string

	Head1    string
	Amount1  int64
	Head2    string
	Amount2  int64
	Head3    string
	Amount3  int64
	Head4    string
	Amount4  int64
	Head10   string
	Amount10 int64

	Ddo        string
	PeriodFrom string
	PeriodTo   string

	ServiceCode string
	ReturnURL   string
}

// field is one entry in the ordered wire-field table. Order in the table is
// the wire order; the gateway treats it as part of the contract.
type field struct {
	name    string
	value   string
	include bool
}

// BuildRequest assembles the pipe-delimited request string and returns both
// the core substring (the exact checksum input, ending at the last
// head/amount/period field) and the full string to encrypt and transmit.
// ServiceCode and ReturnUrl ride only on the full string; they are outside
// the checksum scope. The two must not be collapsed into one value.
func BuildRequest(p RequestParams) (core string, full string, err error) {
	if p.DeptID == "" || p.DeptRefNo == "" || p.AppRefNo == "" {
		return "", "", fmt.Errorf("himkosh: dept id, dept ref no and app ref no are required")
	}
	if p.Head1 == "" {
		return "", "", fmt.Errorf("himkosh: head1 is mandatory")
	}
	if p.Ddo == "" || p.PeriodFrom == "" || p.PeriodTo == "" {
		return "", "", fmt.Errorf("himkosh: ddo and period window are required")
	}

	coreFields := []field{
		{"DeptID", p.DeptID, true},
		{"DeptRefNo", p.DeptRefNo, true},
		{"TotalAmount", formatAmount(p.TotalAmount), true},
		{"TenderBy", p.TenderBy, p.TenderBy != ""},
		{"AppRefNo", p.AppRefNo, true},
		{"Head1", p.Head1, true},
		{"Amount1", formatAmount(p.Amount1), true},
		// Head2/Amount2 always go on the wire, even at zero. The gateway
		// rejects requests that omit the pair.
		{"Head2", p.Head2, true},
		{"Amount2", formatAmount(p.Amount2), true},
		{"Ddo", p.Ddo, true},
		{"PeriodFrom", p.PeriodFrom, true},
		{"PeriodTo", p.PeriodTo, true},
		{"Head3", p.Head3, p.Head3 != "" && p.Amount3 > 0},
		{"Amount3", formatAmount(p.Amount3), p.Head3 != "" && p.Amount3 > 0},
		{"Head4", p.Head4, p.Head4 != "" && p.Amount4 > 0},
		{"Amount4", formatAmount(p.Amount4), p.Head4 != "" && p.Amount4 > 0},
		{"Head10", p.Head10, p.Head10 != "" && p.Amount10 > 0},
		{"Amount10", formatAmount(p.Amount10), p.Head10 != "" && p.Amount10 > 0},
	}

	trailerFields := []field{
		{"ServiceCode", p.ServiceCode, p.ServiceCode != ""},
		{"ReturnUrl", p.ReturnURL, p.ReturnURL != ""},
	}

	if err := validateFieldValues(coreFields); err != nil {
		return "", "", err
	}
	if err := validateFieldValues(trailerFields); err != nil {
		return "", "", err
	}

	core = joinFields(coreFields)
	full = core
	if trailer := joinFields(trailerFields); trailer != "" {
		full = core + "|" + trailer
	}
	return core, full, nil
}

// BuildVerifyRequest assembles the reduced field string for the
// server-to-server verification endpoint. It has its own checksum scope.
func BuildVerifyRequest(appRefNo, serviceCode, merchantCode string) (string, error) {
	fields := []field{
		{"AppRefNo", appRefNo, true},
		{"ServiceCode", serviceCode, true},
		{"MerchantCode", merchantCode, true},
	}
	if appRefNo == "" {
		return "", fmt.Errorf("himkosh: app ref no is required")
	}
	if err := validateFieldValues(fields); err != nil {
		return "", err
	}
	return joinFields(fields), nil
}

// AppendChecksum attaches the checksum as the trailing segment of the
// string that gets encrypted. This is the single place that owns the
// checksum-embedded-in-ciphertext composition; the checksum is never sent
// as a sibling POST field.
func AppendChecksum(full, sum string) string {
	return full + "|checksum=" + sum
}

// SplitChecksum separates a decrypted payload into the checksum-scoped
// prefix and the presented checksum. ok is false when no checksum segment
// is present.
func SplitChecksum(payload string) (prefix, sum string, ok bool) {
	idx := strings.LastIndex(payload, "|checksum=")
	if idx < 0 {
		return payload, "", false
	}
	return payload[:idx], payload[idx+len("|checksum="):], true
}

// GatewayResponse is the parsed form of a decrypted callback or
// verification payload. Absent fields stay empty strings.
type GatewayResponse struct {
	EchTxnID    string
	BankCIN     string
	Bank        string
	BankName    string
	Status      string
	StatusCd    string
	AppRefNo    string
	Amount      string
	PaymentDate string
	DeptRefNo   string
	Checksum    string
}

// ParseResponse decodes a pipe-delimited response string. Parsing is
// deliberately tolerant: segments split on the first '=' only, keyless
// segments are skipped, unknown keys are ignored.
func ParseResponse(s string) GatewayResponse {
	var r GatewayResponse
	for _, segment := range strings.Split(s, "|") {
		parts := strings.SplitN(segment, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]
		switch key {
		case "EchTxnId":
			r.EchTxnID = value
		case "BankCIN":
			r.BankCIN = value
		case "Bank":
			r.Bank = value
		case "BankName":
			r.BankName = value
		case "Status":
			r.Status = value
		case "StatusCd":
			r.StatusCd = value
		case "AppRefNo":
			r.AppRefNo = value
		case "Amount":
			r.Amount = value
		case "Payment_date":
			r.PaymentDate = value
		case "DeptRefNo":
			r.DeptRefNo = value
		case "checksum":
			r.Checksum = value
		}
	}
	return r
}

func joinFields(fields []field) string {
	var b strings.Builder
	for _, f := range fields {
		if !f.include {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('|')
		}
		b.WriteString(f.name)
		b.WriteByte('=')
		b.WriteString(f.value)
	}
	return b.String()
}

func validateFieldValues(fields []field) error {
	for _, f := range fields {
		if !f.include {
			continue
		}
		// Values are not escaped on the wire, so the delimiters are banned
		// outright. Payer names arrive from user input.
		if strings.ContainsAny(f.value, "|=") {
			return fmt.Errorf("himkosh: field %s contains a reserved character", f.name)
		}
	}
	return nil
}

func formatAmount(v int64) string {
	return strconv.FormatInt(v, 10)
}
