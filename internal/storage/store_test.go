package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikanisa/easymo-router/internal/models"
)

func TestMemoryStoreContract(t *testing.T) {
	runStoreContract(t, func(*testing.T) Store { return NewMemoryStore() })
}

// runStoreContract exercises behaviour every Store implementation must share.
func runStoreContract(t *testing.T, newStore func(*testing.T) Store) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("session not found", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetSession(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("user memory round trip", func(t *testing.T) {
		s := newStore(t)
		mem := &models.UserMemory{
			Sender:         "250788000001",
			PreferredSkill: models.DomainPayments,
			Usage:          map[string]models.SkillUsage{models.DomainPayments: {Count: 3, LastUsedAt: now}},
			LastUpdated:    now,
		}
		require.NoError(t, s.SaveUserMemory(ctx, mem))

		got, err := s.GetUserMemory(ctx, mem.Sender)
		require.NoError(t, err)
		assert.Equal(t, models.DomainPayments, got.PreferredSkill)
		assert.Equal(t, 3, got.Usage[models.DomainPayments].Count)
	})

	t.Run("transaction is consumed by one message", func(t *testing.T) {
		s := newStore(t)
		entry := &models.TransactionCacheEntry{
			Kind:          models.TxPaymentOffer,
			TransactionID: "tx-1",
			Sender:        "250788000001",
			Payload:       map[string]string{"amount": "5000"},
			CreatedAt:     now,
			TTL:           time.Hour,
			ExpiresAt:     now.Add(time.Hour),
		}
		require.NoError(t, s.PutTransaction(ctx, entry))

		_, err := s.ConsumeTransaction(ctx, models.TxPaymentOffer, "tx-1", "250788999999", "wamid.x", now.Add(time.Minute))
		assert.ErrorIs(t, err, ErrNotFound, "foreign sender")

		got, err := s.ConsumeTransaction(ctx, models.TxPaymentOffer, "tx-1", "250788000001", "wamid.2", now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, "5000", got.Payload["amount"])

		again, err := s.ConsumeTransaction(ctx, models.TxPaymentOffer, "tx-1", "250788000001", "wamid.2", now.Add(2*time.Minute))
		require.NoError(t, err, "same message consumes again")
		assert.Equal(t, "wamid.2", again.ConsumedBy)

		_, err = s.ConsumeTransaction(ctx, models.TxPaymentOffer, "tx-1", "250788000001", "wamid.3", now.Add(2*time.Minute))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("expired transaction is not found", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.PutTransaction(ctx, &models.TransactionCacheEntry{
			Kind: models.TxPaymentOffer, TransactionID: "tx-2", CreatedAt: now,
			TTL: time.Hour, ExpiresAt: now.Add(time.Hour),
		}))
		_, err := s.ConsumeTransaction(ctx, models.TxPaymentOffer, "tx-2", "", "wamid.1", now.Add(2*time.Hour))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("janitor removes expired entries", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.PutTransaction(ctx, &models.TransactionCacheEntry{
			Kind: models.TxPaymentOffer, TransactionID: "old", ExpiresAt: now.Add(-time.Minute),
		}))
		require.NoError(t, s.PutTransaction(ctx, &models.TransactionCacheEntry{
			Kind: models.TxPaymentOffer, TransactionID: "fresh", ExpiresAt: now.Add(time.Minute),
		}))
		n, err := s.DeleteExpiredTransactions(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = s.ConsumeTransaction(ctx, models.TxPaymentOffer, "fresh", "", "wamid.1", now)
		assert.NoError(t, err)
	})

	t.Run("inbound log is unique and markable", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateInboundLog(ctx, &models.InboundLog{MessageID: "wamid.1", Sender: "a", ReceivedAt: now}))
		assert.ErrorIs(t, s.CreateInboundLog(ctx, &models.InboundLog{MessageID: "wamid.1", Sender: "a"}), ErrDuplicate)

		got, err := s.GetInboundLog(ctx, "wamid.1")
		require.NoError(t, err)
		assert.False(t, got.Processed)

		require.NoError(t, s.MarkInboundProcessed(ctx, "wamid.1", now))
		got, err = s.GetInboundLog(ctx, "wamid.1")
		require.NoError(t, err)
		assert.True(t, got.Processed)

		assert.ErrorIs(t, s.MarkInboundProcessed(ctx, "wamid.missing", now), ErrNotFound)
	})

	t.Run("inbound claim is exclusive until stale or released", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.CreateInboundLog(ctx, &models.InboundLog{MessageID: "wamid.c", Sender: "a", ReceivedAt: now, ClaimedAt: now}))

		err := s.ClaimInbound(ctx, "wamid.c", now.Add(time.Second), now.Add(-time.Minute))
		assert.ErrorIs(t, err, ErrConflict, "claim is still fresh")

		require.NoError(t, s.ClaimInbound(ctx, "wamid.c", now.Add(2*time.Minute), now.Add(time.Minute)))
		assert.ErrorIs(t, s.ClaimInbound(ctx, "wamid.c", now.Add(2*time.Minute), now.Add(time.Minute)), ErrConflict)

		require.NoError(t, s.ReleaseInbound(ctx, "wamid.c"))
		require.NoError(t, s.ClaimInbound(ctx, "wamid.c", now.Add(3*time.Minute), now.Add(time.Minute)))

		require.NoError(t, s.MarkInboundProcessed(ctx, "wamid.c", now.Add(3*time.Minute)))
		require.NoError(t, s.ReleaseInbound(ctx, "wamid.c"))
		assert.ErrorIs(t, s.ClaimInbound(ctx, "wamid.c", now.Add(4*time.Minute), now.Add(4*time.Minute)), ErrConflict, "processed messages are never reclaimed")
	})

	t.Run("inbound window advances only from the expected seq", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.AdvanceInbound(ctx, "a", 0, now))
		assert.ErrorIs(t, s.AdvanceInbound(ctx, "a", 0, now.Add(time.Minute)), ErrConflict)
		require.NoError(t, s.AdvanceInbound(ctx, "a", 1, now.Add(time.Minute)))

		got, err := s.GetSession(ctx, "a")
		require.NoError(t, err)
		assert.EqualValues(t, 2, got.InboundSeq)
		assert.True(t, got.LastInboundAt.Equal(now.Add(time.Minute)))
		assert.True(t, got.PreviousInboundAt.Equal(now))
	})

	t.Run("recording a reply keeps the inbound window", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.AdvanceInbound(ctx, "a", 0, now))
		require.NoError(t, s.RecordOutbound(ctx, "a", "h1", "menu", now.Add(time.Second)))
		require.NoError(t, s.RecordOutbound(ctx, "a", "h2", "", now.Add(2*time.Second)))

		got, err := s.GetSession(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "h2", got.LastOutboundHash)
		assert.Equal(t, "menu", got.Stage)
		assert.EqualValues(t, 1, got.InboundSeq)
		assert.True(t, got.LastInboundAt.Equal(now))
	})

	t.Run("interactions since", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.RecordInteraction(ctx, &models.Interaction{Sender: "a", Skill: "payments", At: now.Add(-10 * 24 * time.Hour)}))
		require.NoError(t, s.RecordInteraction(ctx, &models.Interaction{Sender: "a", Skill: "transport", At: now.Add(-time.Hour)}))

		got, err := s.ListInteractionsSince(ctx, now.Add(-7*24*time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "transport", got[0].Skill)
	})

	t.Run("support tickets", func(t *testing.T) {
		s := newStore(t)
		ticket, err := s.CreateSupportTicket(ctx, &models.SupportTicket{Sender: "a", Description: "help"})
		require.NoError(t, err)
		assert.NotEmpty(t, ticket.TicketID)
		assert.Equal(t, models.IssueTypeGeneral, ticket.IssueType)

		_, err = s.CreateSupportTicket(ctx, &models.SupportTicket{TicketID: ticket.TicketID, Sender: "a"})
		assert.ErrorIs(t, err, ErrDuplicate)

		got, err := s.GetSupportTicketsBySender(ctx, "a")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}
