package skills

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/ikanisa/easymo-router/internal/fulfillment"
	"github.com/ikanisa/easymo-router/internal/models"
	"github.com/ikanisa/easymo-router/internal/utils"
)

// QRGenerator renders a payment QR code.
type QRGenerator interface {
	Generate(ctx context.Context, req fulfillment.QRRequest) (*fulfillment.QRResult, error)
}

// Payments handles get-paid offers, pay-to-phone and balance questions.
type Payments struct {
	cache *TransactionCache
	qr    QRGenerator
	log   *zap.Logger
}

func NewPayments(cache *TransactionCache, qr QRGenerator, log *zap.Logger) *Payments {
	return &Payments{cache: cache, qr: qr, log: log.Named("payments")}
}

func (p *Payments) Domain() string { return models.DomainPayments }

func (p *Payments) Handle(ctx context.Context, req Request) (models.SkillResponse, error) {
	cls := req.Classification
	switch cls.Intent {
	case "get_paid":
		amount, ok := amountSlot(cls)
		if !ok {
			return amountPrompt(), nil
		}
		return p.offer(ctx, req, amount)
	case "confirm":
		return p.confirm(ctx, req)
	case "cancel":
		tx, _ := cls.Slot(models.SlotTransactionID)
		if _, err := p.cache.Consume(ctx, models.TxPaymentOffer, tx, req.Message.SenderID, req.Message.MessageID); err != nil {
			return models.SkillResponse{}, err
		}
		return models.SkillResponse{Type: models.ResponsePlain, Text: "Okay, the payment request was cancelled.", Stage: "payments.cancelled"}, nil
	case "pay":
		return payInstructions(cls), nil
	case "check_balance":
		return models.SkillResponse{
			Type:  models.ResponsePlain,
			Text:  "Dial *182*6*1# to check your MoMo balance.",
			Stage: "payments.balance",
		}, nil
	default:
		return p.menu(), nil
	}
}

func (p *Payments) menu() models.SkillResponse {
	return models.SkillResponse{
		Type: models.ResponseInteractive,
		Text: "💰 Payments. What would you like to do?",
		Options: []models.Option{
			{Code: models.NewActionCode(models.DomainPayments, "get_paid", ""), Label: "Get paid (QR)"},
			{Code: models.NewActionCode(models.DomainPayments, "pay", ""), Label: "Pay someone"},
			{Code: models.NewActionCode(models.DomainPayments, "check_balance", ""), Label: "Check balance"},
		},
		Stage: "payments.menu",
	}
}

func amountPrompt() models.SkillResponse {
	opts := make([]models.Option, 0, 3)
	for _, amt := range []int{1000, 5000, 10000} {
		opts = append(opts, models.Option{
			Code:  models.NewActionCode(models.DomainPayments, fmt.Sprintf("get_paid_%d", amt), ""),
			Label: formatRWF(amt),
		})
	}
	return models.SkillResponse{
		Type:    models.ResponseInteractive,
		Text:    "How much do you want to receive? Pick an amount or type it, e.g. *get paid 2500*.",
		Options: opts,
		Stage:   "payments.amount",
	}
}

// offer stores a pending QR request and asks the user to confirm it.
func (p *Payments) offer(ctx context.Context, req Request, amount int) (models.SkillResponse, error) {
	txID := utils.TransactionIDFor(req.Message.MessageID)
	payload := map[string]string{
		models.SlotAmount: strconv.Itoa(amount),
		models.SlotPhone:  req.Message.SenderID,
	}
	if _, err := p.cache.Offer(ctx, models.TxPaymentOffer, txID, req.Message.SenderID, payload); err != nil {
		return models.SkillResponse{}, err
	}
	return models.SkillResponse{
		Type: models.ResponseInteractive,
		Text: fmt.Sprintf("Generate a MoMo QR code to receive %s?", formatRWF(amount)),
		Options: []models.Option{
			{Code: models.NewActionCode(models.DomainPayments, "confirm", txID), Label: "Confirm"},
			{Code: models.NewActionCode(models.DomainPayments, "cancel", txID), Label: "Cancel"},
		},
		Stage: "payments.offer",
	}, nil
}

func (p *Payments) confirm(ctx context.Context, req Request) (models.SkillResponse, error) {
	tx, _ := req.Classification.Slot(models.SlotTransactionID)
	entry, err := p.cache.Consume(ctx, models.TxPaymentOffer, tx, req.Message.SenderID, req.Message.MessageID)
	if err != nil {
		return models.SkillResponse{}, err
	}
	amount, err := strconv.Atoi(entry.Payload[models.SlotAmount])
	if err != nil {
		return models.SkillResponse{}, fmt.Errorf("payment offer %s has bad amount: %w", tx, err)
	}
	phone := entry.Payload[models.SlotPhone]

	res, err := p.qr.Generate(ctx, fulfillment.QRRequest{Phone: phone, Amount: amount, Reference: tx})
	if err != nil && !errors.Is(err, fulfillment.ErrUnavailable) {
		p.log.Warn("qr generation failed, sending USSD only", zap.String("transaction_id", tx), zap.Error(err))
	}
	ussd := fulfillment.USSDPayCode(phone, amount)
	if res != nil && res.USSD != "" {
		ussd = res.USSD
	}

	caption := fmt.Sprintf("Scan to pay %s, or dial %s", formatRWF(amount), ussd)
	if res != nil && res.ImageURL != "" {
		return models.SkillResponse{
			Type:     models.ResponseMedia,
			Text:     caption,
			MediaURL: res.ImageURL,
			Stage:    "payments.qr",
		}, nil
	}
	return models.SkillResponse{
		Type:  models.ResponsePlain,
		Text:  fmt.Sprintf("Share this code with the payer to receive %s: %s", formatRWF(amount), ussd),
		Stage: "payments.qr",
	}, nil
}

func payInstructions(cls models.ClassificationResult) models.SkillResponse {
	amount, hasAmount := amountSlot(cls)
	phone, hasPhone := cls.Slot(models.SlotPhone)
	if !hasAmount || !hasPhone {
		return models.SkillResponse{
			Type:  models.ResponsePlain,
			Text:  "To pay someone, send: *pay <amount> to <phone>*, e.g. pay 2000 to 0788123456.",
			Stage: "payments.pay",
		}
	}
	return models.SkillResponse{
		Type:  models.ResponsePlain,
		Text:  fmt.Sprintf("Dial %s to pay %s to %s.", fulfillment.USSDPayCode(phone, amount), formatRWF(amount), fulfillment.LocalPhone(phone)),
		Stage: "payments.pay",
	}
}

func amountSlot(cls models.ClassificationResult) (int, bool) {
	v, ok := cls.Slot(models.SlotAmount)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil && n > 0
}

// formatRWF renders 12500 as "12,500 RWF".
func formatRWF(n int) string {
	s := strconv.Itoa(n)
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out) + " RWF"
}
