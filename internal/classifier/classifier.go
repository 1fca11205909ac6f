// Package classifier turns a normalized message into a domain, intent and
// confidence: action codes first, then an ordered rule table, then an
// external classification service.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ikanisa/easymo-router/internal/metrics"
	"github.com/ikanisa/easymo-router/internal/models"
)

// Service is an external classifier returning JSON text for a prompt.
type Service interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config holds the thresholds the classifier applies.
type Config struct {
	ClarifyThreshold      float64
	MemoryBoostConfidence float64
	Timeout               time.Duration
}

// Fallback is returned whenever classification cannot produce a result.
var Fallback = models.ClassificationResult{
	Domain:     models.DomainSupport,
	Intent:     "help",
	Confidence: 0.1,
	Source:     models.SourceFallback,
}

// Classifier is safe for concurrent use.
type Classifier struct {
	cfg     Config
	rules   []Rule
	service Service
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New builds a Classifier. service may be nil, in which case unmatched
// messages get the Fallback result.
func New(cfg Config, service Service, log *zap.Logger, m *metrics.Metrics) *Classifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 4 * time.Second
	}
	return &Classifier{
		cfg:     cfg,
		rules:   DefaultRules(),
		service: service,
		log:     log.Named("classifier"),
		metrics: m,
	}
}

// WithRules replaces the rule table.
func (c *Classifier) WithRules(rules []Rule) *Classifier {
	c.rules = rules
	return c
}

// Classify never fails; errors degrade to Fallback.
func (c *Classifier) Classify(ctx context.Context, msg models.InboundMessage, mem *models.UserMemory) models.ClassificationResult {
	res := c.classify(ctx, msg)
	res = c.applyMemory(res, mem)
	res.Confidence = models.ClampConfidence(res.Confidence)
	c.metrics.Classified(res.Source, res.Domain)
	return res
}

func (c *Classifier) classify(ctx context.Context, msg models.InboundMessage) models.ClassificationResult {
	if res, ok := fromAction(msg.ActionCode); ok {
		return res
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return Fallback
	}

	if r, ok := matchRules(c.rules, text); ok {
		res := models.ClassificationResult{
			Domain:     r.Domain,
			Intent:     r.Intent,
			Confidence: RuleConfidence,
			Source:     models.SourceRule,
		}
		return withExtractedSlots(res, text)
	}

	res, err := c.ask(ctx, text)
	if err != nil {
		c.log.Warn("classification fell back to default",
			zap.String("message_id", msg.MessageID),
			zap.Error(err))
		return Fallback
	}
	return withExtractedSlots(res, text)
}

// applyMemory substitutes a learned preference for a weak signal.
func (c *Classifier) applyMemory(res models.ClassificationResult, mem *models.UserMemory) models.ClassificationResult {
	if res.Confidence >= c.cfg.ClarifyThreshold || !mem.HasPreference() {
		return res
	}
	if !models.IsKnownDomain(mem.PreferredSkill) {
		return res
	}
	if res.Domain != mem.PreferredSkill {
		res.Domain = mem.PreferredSkill
		res.Intent = models.MenuAction
	}
	res.Confidence = c.cfg.MemoryBoostConfidence
	res.Source = models.SourceMemory
	return res
}

type serviceReply struct {
	Domain     string          `json:"domain"`
	Intent     string          `json:"intent"`
	Confidence float64         `json:"confidence"`
	Slots      json.RawMessage `json:"slots"`
}

func (c *Classifier) ask(ctx context.Context, text string) (models.ClassificationResult, error) {
	if c.service == nil {
		return models.ClassificationResult{}, errors.New("no classification service configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	out, err := c.service.Complete(ctx, BuildPrompt(text))
	c.metrics.ObserveClassifier(time.Since(start))
	if err != nil {
		return models.ClassificationResult{}, fmt.Errorf("classification service: %w", err)
	}
	return parseReply(out)
}

func parseReply(out string) (models.ClassificationResult, error) {
	raw := extractJSON(out)
	if raw == "" {
		return models.ClassificationResult{}, errors.New("no JSON object in classifier reply")
	}

	var reply serviceReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return models.ClassificationResult{}, fmt.Errorf("decode classifier reply: %w", err)
	}

	domain := strings.ToLower(strings.TrimSpace(reply.Domain))
	if !models.IsKnownDomain(domain) {
		return models.ClassificationResult{}, fmt.Errorf("unknown domain %q", reply.Domain)
	}
	intent := strings.ToLower(strings.TrimSpace(reply.Intent))
	if !knownIntent(domain, intent) {
		intent = models.MenuAction
	}

	res := models.ClassificationResult{
		Domain:     domain,
		Intent:     intent,
		Confidence: models.ClampConfidence(reply.Confidence),
		Source:     models.SourceModel,
		Slots:      decodeSlots(reply.Slots),
	}
	return res, nil
}

// decodeSlots accepts an object of scalars; keys are sorted for a stable order.
func decodeSlots(raw json.RawMessage) []models.Slot {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var slots []models.Slot
	for _, k := range keys {
		var v string
		switch t := m[k].(type) {
		case string:
			v = strings.TrimSpace(t)
		case float64:
			v = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			continue
		}
		if v == "" {
			continue
		}
		if k == models.SlotAmount {
			n, err := strconv.Atoi(strings.ReplaceAll(v, ",", ""))
			if err != nil || n < MinAmount || n > MaxAmount {
				continue
			}
			v = strconv.Itoa(n)
		}
		slots = append(slots, models.Slot{Key: k, Value: v})
	}
	return slots
}

func withExtractedSlots(res models.ClassificationResult, text string) models.ClassificationResult {
	if _, ok := res.Slot(models.SlotAmount); !ok {
		if n, ok := ExtractAmount(text); ok {
			res = res.WithSlot(models.SlotAmount, strconv.Itoa(n))
		}
	}
	if _, ok := res.Slot(models.SlotPhone); !ok {
		if p, ok := ExtractPhone(text); ok {
			res = res.WithSlot(models.SlotPhone, p)
		}
	}
	return res
}

func fromAction(code string) (models.ClassificationResult, bool) {
	if code == "" {
		return models.ClassificationResult{}, false
	}
	ac, ok := models.ParseActionCode(code)
	if !ok || !models.IsKnownDomain(ac.Domain) {
		return models.ClassificationResult{}, false
	}
	res := models.ClassificationResult{
		Domain:     ac.Domain,
		Intent:     ac.Action,
		Confidence: 1.0,
		Source:     models.SourceAction,
	}
	if ac.TransactionID != "" {
		res = res.WithSlot(models.SlotTransactionID, ac.TransactionID)
	}
	// amount buttons look like payments.get_paid_5000
	if amt, ok := strings.CutPrefix(ac.Action, "get_paid_"); ok {
		if n, err := strconv.Atoi(amt); err == nil && n >= MinAmount && n <= MaxAmount {
			res.Intent = "get_paid"
			res = res.WithSlot(models.SlotAmount, strconv.Itoa(n))
		}
	}
	return res, true
}
