package composer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ikanisa/easymo-router/internal/models"
	"github.com/ikanisa/easymo-router/internal/storage"
	"github.com/ikanisa/easymo-router/internal/utils"
)

type recordingGateway struct {
	mu   sync.Mutex
	sent []models.OutboundPayload
	err  error
}

func (g *recordingGateway) Send(_ context.Context, p models.OutboundPayload) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.sent = append(g.sent, p)
	return nil
}

func (g *recordingGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

const recipient = "250788000001"

func newComposer(t *testing.T) (*Composer, *storage.MemoryStore, *recordingGateway) {
	store := storage.NewMemoryStore()
	gw := &recordingGateway{}
	now := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	c := New(store, gw, utils.NewKeyedMutex(), zaptest.NewLogger(t), nil).WithClock(func() time.Time { return now })
	return c, store, gw
}

func menu() models.SkillResponse {
	return models.SkillResponse{
		Type: models.ResponseInteractive,
		Text: "What would you like to do?",
		Options: []models.Option{
			{Code: "menu.payments", Label: "Payments"},
			{Code: "menu.transport", Label: "Transport"},
		},
		Stage: "menu",
	}
}

func TestComposeSendsAndRecordsHash(t *testing.T) {
	c, store, gw := newComposer(t)

	out, err := c.Compose(context.Background(), recipient, menu())
	require.NoError(t, err)
	assert.False(t, out.Suppressed)
	require.Equal(t, 1, gw.count())
	assert.Equal(t, "What would you like to do?\n\n1. Payments\n2. Transport", gw.sent[0].Body)

	session, err := store.GetSession(context.Background(), recipient)
	require.NoError(t, err)
	assert.Equal(t, out.Payload.Hash, session.LastOutboundHash)
	assert.Equal(t, "menu", session.Stage)
}

func TestComposeSuppressesIdenticalReply(t *testing.T) {
	c, _, gw := newComposer(t)
	ctx := context.Background()

	_, err := c.Compose(ctx, recipient, menu())
	require.NoError(t, err)
	out, err := c.Compose(ctx, recipient, menu())
	require.NoError(t, err)

	assert.True(t, out.Suppressed)
	assert.Equal(t, 1, gw.count())
}

func TestComposeSuppressesConcurrentDuplicates(t *testing.T) {
	c, _, gw := newComposer(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Compose(context.Background(), recipient, menu())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, gw.count())
}

func TestComposeDeliveryFailureLeavesSessionUntouched(t *testing.T) {
	c, store, gw := newComposer(t)
	gw.err = errors.New("gateway down")

	_, err := c.Compose(context.Background(), recipient, menu())
	require.ErrorIs(t, err, ErrDeliveryFailed)

	_, err = store.GetSession(context.Background(), recipient)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	gw.err = nil
	out, err := c.Compose(context.Background(), recipient, menu())
	require.NoError(t, err)
	assert.False(t, out.Suppressed, "a failed send must not count as the last reply")
}

func TestHashIgnoresLabelsAndStage(t *testing.T) {
	a := menu()
	b := menu()
	b.Options[0].Label = "Pay"
	b.Stage = "other"
	assert.Equal(t, Hash(a), Hash(b))

	b.Options[0].Code = "menu.commerce"
	assert.NotEqual(t, Hash(a), Hash(b))
}

func TestHashStableForTemplateVariables(t *testing.T) {
	resp := func() models.SkillResponse {
		return models.SkillResponse{
			Type: models.ResponseTemplate,
			Template: &models.TemplateRef{
				Name:      "payment_reengage",
				Variables: map[string]string{"name": "Aline", "amount": "5000"},
			},
		}
	}
	assert.Equal(t, Hash(resp()), Hash(resp()))
	assert.Equal(t, "payment_reengage amount=5000 name=Aline", Render(resp()))
}

func TestRenderMedia(t *testing.T) {
	got := Render(models.SkillResponse{Type: models.ResponseMedia, Text: "Scan to pay", MediaURL: "https://qr.example/a.png"})
	assert.Equal(t, "Scan to pay\nhttps://qr.example/a.png", got)
}
