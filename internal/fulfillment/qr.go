package fulfillment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// QRRequest asks for a mobile-money QR code that pays Phone.
type QRRequest struct {
	Phone     string `json:"phone"`
	Amount    int    `json:"amount"`
	Reference string `json:"reference"`
}

// QRResult is the generated code.
type QRResult struct {
	ImageURL string `json:"qr_url"`
	USSD     string `json:"ussd_code"`
}

// QRClient talks to the QR rendering service.
type QRClient struct {
	url     string
	token   string
	timeout time.Duration
}

// NewQRClient returns a client; an empty url yields USSD-only results.
func NewQRClient(url, token string, timeout time.Duration) *QRClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &QRClient{url: strings.TrimRight(url, "/"), token: token, timeout: timeout}
}

// Generate renders a QR code. Without a configured service it returns the
// USSD string only together with ErrUnavailable.
func (c *QRClient) Generate(ctx context.Context, req QRRequest) (*QRResult, error) {
	fallback := &QRResult{USSD: USSDPayCode(req.Phone, req.Amount)}
	if c.url == "" {
		return fallback, ErrUnavailable
	}

	timeout, err := timeoutFor(ctx, c.timeout)
	if err != nil {
		return fallback, err
	}

	a := fiber.Post(c.url)
	bearer(a, c.token)
	a.JSON(req).Timeout(timeout)

	var out QRResult
	code, body, errs := a.Struct(&out)
	if err := agentError("qr service", code, body, errs); err != nil {
		return fallback, err
	}
	if out.USSD == "" {
		out.USSD = fallback.USSD
	}
	return &out, nil
}

// LocalPhone converts 2507XXXXXXXX into the 07XXXXXXXX form USSD expects.
func LocalPhone(msisdn string) string {
	msisdn = strings.TrimPrefix(strings.TrimSpace(msisdn), "+")
	if strings.HasPrefix(msisdn, "250") && len(msisdn) == 12 {
		return "0" + msisdn[3:]
	}
	return msisdn
}

// USSDPayCode is the MoMo dial string that pays amount to phone.
func USSDPayCode(phone string, amount int) string {
	return fmt.Sprintf("*182*1*1*%s*%d#", LocalPhone(phone), amount)
}
