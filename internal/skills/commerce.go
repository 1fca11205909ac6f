package skills

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/ikanisa/easymo-router/internal/fulfillment"
	"github.com/ikanisa/easymo-router/internal/models"
)

// BusinessFinder searches the business directory.
type BusinessFinder interface {
	Search(ctx context.Context, query string, limit int) ([]fulfillment.Business, error)
}

// Commerce handles business search and ordering questions.
type Commerce struct {
	finder BusinessFinder
	log    *zap.Logger
}

func NewCommerce(finder BusinessFinder, log *zap.Logger) *Commerce {
	return &Commerce{finder: finder, log: log.Named("commerce")}
}

func (c *Commerce) Domain() string { return models.DomainCommerce }

const searchLimit = 5

var searchFiller = regexp.MustCompile(`(?i)\b(i\s+want\s+to|i\s+need|please|can\s+you|find|search(\s+for)?|looking\s+for|a|an|the|near\s+me|nearby)\b`)

func (c *Commerce) Handle(ctx context.Context, req Request) (models.SkillResponse, error) {
	cls := req.Classification
	switch cls.Intent {
	case "search", "browse":
		query, ok := cls.Slot(models.SlotQuery)
		if !ok && !req.Message.IsAction() {
			query = strings.Join(strings.Fields(searchFiller.ReplaceAllString(req.Message.Text, " ")), " ")
		}
		if query == "" {
			return models.SkillResponse{
				Type:  models.ResponsePlain,
				Text:  "What are you looking for? e.g. *pharmacy in Kicukiro* or *hardware store*.",
				Stage: "commerce.query",
			}, nil
		}
		return c.search(ctx, query), nil
	case "order", "view_cart":
		return models.SkillResponse{
			Type:  models.ResponsePlain,
			Text:  "Send the shop name and what you'd like to order, and we'll pass it to the vendor.",
			Stage: "commerce.order",
		}, nil
	case "track_order":
		return models.SkillResponse{
			Type:  models.ResponsePlain,
			Text:  "Send your order reference and we'll check its status.",
			Stage: "commerce.track",
		}, nil
	default:
		return models.SkillResponse{
			Type: models.ResponseInteractive,
			Text: "🛒 Shopping. What do you need?",
			Options: []models.Option{
				{Code: models.NewActionCode(models.DomainCommerce, "search", ""), Label: "Find a business"},
				{Code: models.NewActionCode(models.DomainCommerce, "order", ""), Label: "Place order"},
				{Code: models.NewActionCode(models.DomainCommerce, "track_order", ""), Label: "Track order"},
			},
			Stage: "commerce.menu",
		}, nil
	}
}

func (c *Commerce) search(ctx context.Context, query string) models.SkillResponse {
	results, err := c.finder.Search(ctx, query, searchLimit)
	if err != nil {
		c.log.Warn("business search failed", zap.String("query", query), zap.Error(err))
		return models.SkillResponse{
			Type:  models.ResponsePlain,
			Text:  "Search is not available right now. Please try again in a few minutes.",
			Stage: "commerce.unavailable",
		}
	}
	if len(results) == 0 {
		return models.SkillResponse{
			Type:  models.ResponsePlain,
			Text:  fmt.Sprintf("No businesses found for \"%s\". Try another word.", query),
			Stage: "commerce.results",
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here's what we found for \"%s\":\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "\n%d. *%s*", i+1, r.Name)
		if r.Location != "" {
			b.WriteString(" · " + r.Location)
		}
		if r.Phone != "" {
			b.WriteString(" · " + r.Phone)
		}
	}
	return models.SkillResponse{Type: models.ResponsePlain, Text: b.String(), Stage: "commerce.results"}
}
