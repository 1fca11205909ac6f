package skills

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ikanisa/easymo-router/internal/models"
	"github.com/ikanisa/easymo-router/internal/policy"
	"github.com/ikanisa/easymo-router/internal/storage"
	"github.com/ikanisa/easymo-router/internal/utils"
)

// TicketStore opens support tickets.
type TicketStore interface {
	CreateSupportTicket(ctx context.Context, ticket *models.SupportTicket) (*models.SupportTicket, error)
}

// Support greets users, explains the service and hands off to agents.
type Support struct {
	tickets TicketStore
	log     *zap.Logger
}

func NewSupport(tickets TicketStore, log *zap.Logger) *Support {
	return &Support{tickets: tickets, log: log.Named("support")}
}

func (s *Support) Domain() string { return models.DomainSupport }

func (s *Support) Handle(ctx context.Context, req Request) (models.SkillResponse, error) {
	switch req.Classification.Intent {
	case "agent":
		return s.handoff(ctx, req)
	case "help":
		return models.SkillResponse{
			Type:    models.ResponseInteractive,
			Text:    "easyMO helps you get paid with MoMo QR codes, book moto rides and find businesses, all here on WhatsApp.\n\nPick a service to start:",
			Options: policy.TopLevelOptions(),
			Stage:   "support.help",
		}, nil
	default:
		return s.menu(req.Message.ContactName), nil
	}
}

func (s *Support) menu(name string) models.SkillResponse {
	greeting := "Muraho! 👋 Welcome to easyMO."
	if name != "" {
		greeting = fmt.Sprintf("Muraho %s! 👋 Welcome to easyMO.", name)
	}
	return models.SkillResponse{
		Type:    models.ResponseInteractive,
		Text:    greeting + "\n\nWhat would you like to do?",
		Options: policy.TopLevelOptions(),
		Stage:   "menu",
	}
}

func (s *Support) handoff(ctx context.Context, req Request) (models.SkillResponse, error) {
	ticket, err := s.tickets.CreateSupportTicket(ctx, &models.SupportTicket{
		TicketID:    utils.TicketIDFor(req.Message.MessageID),
		Sender:      req.Message.SenderID,
		ContactName: req.Message.ContactName,
		IssueType:   models.IssueTypeGeneral,
		Description: req.Message.Text,
	})
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		// a retry of the message that opened it
		ticket = &models.SupportTicket{TicketID: utils.TicketIDFor(req.Message.MessageID), Sender: req.Message.SenderID}
	case err != nil:
		return models.SkillResponse{}, fmt.Errorf("open support ticket: %w", err)
	}
	s.log.Info("support ticket opened", zap.String("ticket_id", ticket.TicketID), zap.String("sender", ticket.Sender))
	return models.SkillResponse{
		Type:  models.ResponsePlain,
		Text:  fmt.Sprintf("🙋 An agent will reply here shortly. Your ticket is %s.", ticket.TicketID),
		Stage: "support.agent",
	}, nil
}
