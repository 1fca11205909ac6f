package skills

import (
	"context"
	"strings"

	"github.com/ikanisa/easymo-router/internal/models"
	"github.com/ikanisa/easymo-router/internal/utils"
)

// Transport handles moto ride requests.
type Transport struct {
	cache *TransactionCache
}

func NewTransport(cache *TransactionCache) *Transport {
	return &Transport{cache: cache}
}

func (t *Transport) Domain() string { return models.DomainTransport }

func (t *Transport) Handle(ctx context.Context, req Request) (models.SkillResponse, error) {
	cls := req.Classification
	switch cls.Intent {
	case "request_ride":
		if req.Message.IsAction() {
			return rideDetailsPrompt(), nil
		}
		return t.offerRide(ctx, req)
	case "confirm":
		tx, _ := cls.Slot(models.SlotTransactionID)
		entry, err := t.cache.Consume(ctx, models.TxRideRequest, tx, req.Message.SenderID, req.Message.MessageID)
		if err != nil {
			return models.SkillResponse{}, err
		}
		return models.SkillResponse{
			Type:  models.ResponsePlain,
			Text:  "🛵 Request sent to nearby drivers for: " + entry.Payload["request"] + ". A driver will contact you here shortly.",
			Stage: "transport.requested",
		}, nil
	case "cancel":
		tx, _ := cls.Slot(models.SlotTransactionID)
		if _, err := t.cache.Consume(ctx, models.TxRideRequest, tx, req.Message.SenderID, req.Message.MessageID); err != nil {
			return models.SkillResponse{}, err
		}
		return models.SkillResponse{Type: models.ResponsePlain, Text: "Ride request cancelled.", Stage: "transport.cancelled"}, nil
	case "nearby_drivers":
		return models.SkillResponse{
			Type:  models.ResponsePlain,
			Text:  "Share your location (📎 → Location) and we'll list moto drivers near you.",
			Stage: "transport.nearby",
		}, nil
	case "schedule_trip":
		return models.SkillResponse{
			Type:  models.ResponsePlain,
			Text:  "Tell us when and where, e.g. *trip tomorrow 7am Kimironko to town*.",
			Stage: "transport.schedule",
		}, nil
	default:
		return models.SkillResponse{
			Type: models.ResponseInteractive,
			Text: "🛵 Transport. How can we help?",
			Options: []models.Option{
				{Code: models.NewActionCode(models.DomainTransport, "request_ride", ""), Label: "Book a ride"},
				{Code: models.NewActionCode(models.DomainTransport, "nearby_drivers", ""), Label: "Nearby drivers"},
				{Code: models.NewActionCode(models.DomainTransport, "schedule_trip", ""), Label: "Schedule trip"},
			},
			Stage: "transport.menu",
		}, nil
	}
}

func rideDetailsPrompt() models.SkillResponse {
	return models.SkillResponse{
		Type:  models.ResponsePlain,
		Text:  "Where are you going? Send pickup and destination, e.g. *ride from Remera to Nyamirambo*.",
		Stage: "transport.details",
	}
}

func (t *Transport) offerRide(ctx context.Context, req Request) (models.SkillResponse, error) {
	request := strings.TrimSpace(req.Message.Text)
	txID := utils.TransactionIDFor(req.Message.MessageID)
	if _, err := t.cache.Offer(ctx, models.TxRideRequest, txID, req.Message.SenderID, map[string]string{"request": request}); err != nil {
		return models.SkillResponse{}, err
	}
	return models.SkillResponse{
		Type: models.ResponseInteractive,
		Text: "Send this ride request to nearby drivers?\n\n" + request,
		Options: []models.Option{
			{Code: models.NewActionCode(models.DomainTransport, "confirm", txID), Label: "Send request"},
			{Code: models.NewActionCode(models.DomainTransport, "cancel", txID), Label: "Cancel"},
		},
		Stage: "transport.offer",
	}, nil
}
