package skills

import (
	"context"

	"github.com/ikanisa/easymo-router/internal/models"
)

// Listings answers property and vehicle marketplace requests.
type Listings struct{}

func NewListings() *Listings { return &Listings{} }

func (l *Listings) Domain() string { return models.DomainListings }

func (l *Listings) Handle(_ context.Context, req Request) (models.SkillResponse, error) {
	switch req.Classification.Intent {
	case "property":
		return models.SkillResponse{
			Type:  models.ResponsePlain,
			Text:  "🏠 Tell us the area, budget and whether you want to rent or buy, e.g. *2 bedroom Kacyiru 300k rent*.",
			Stage: "listings.property",
		}, nil
	case "vehicle":
		return models.SkillResponse{
			Type:  models.ResponsePlain,
			Text:  "🚗 Tell us the make, model and budget, e.g. *Toyota RAV4 2015 under 15M*.",
			Stage: "listings.vehicle",
		}, nil
	case "create":
		return models.SkillResponse{
			Type:  models.ResponsePlain,
			Text:  "Send a photo with a caption describing what you're listing and the price.",
			Stage: "listings.create",
		}, nil
	default:
		return models.SkillResponse{
			Type: models.ResponseInteractive,
			Text: "📋 Listings. What are you looking for?",
			Options: []models.Option{
				{Code: models.NewActionCode(models.DomainListings, "property", ""), Label: "Properties"},
				{Code: models.NewActionCode(models.DomainListings, "vehicle", ""), Label: "Vehicles"},
				{Code: models.NewActionCode(models.DomainListings, "create", ""), Label: "List an item"},
			},
			Stage: "listings.menu",
		}, nil
	}
}
