package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ikanisa/easymo-router/internal/models"
)

type txKey struct {
	kind string
	id   string
}

// MemoryStore holds all data in memory for development and tests
type MemoryStore struct {
	sessions     map[string]models.SessionState
	memories     map[string]models.UserMemory
	transactions map[txKey]models.TransactionCacheEntry
	inbound      map[string]models.InboundLog
	interactions []models.Interaction
	tickets      []models.SupportTicket

	// Mutexes for thread safety
	sessionMu     sync.RWMutex
	memoryMu      sync.RWMutex
	txMu          sync.Mutex
	inboundMu     sync.RWMutex
	interactionMu sync.RWMutex
	ticketMu      sync.RWMutex

	// Counters for ID generation
	inboundCounter     uint
	interactionCounter uint
	ticketCounter      int
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:     make(map[string]models.SessionState),
		memories:     make(map[string]models.UserMemory),
		transactions: make(map[txKey]models.TransactionCacheEntry),
		inbound:      make(map[string]models.InboundLog),
	}
}

// Session operations
func (m *MemoryStore) GetSession(_ context.Context, sender string) (*models.SessionState, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	s, ok := m.sessions[sender]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) SaveSession(_ context.Context, session *models.SessionState) error {
	if session == nil || session.Sender == "" {
		return fmt.Errorf("session sender is required")
	}
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	s := *session
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	m.sessions[s.Sender] = s
	return nil
}

func (m *MemoryStore) AdvanceInbound(_ context.Context, sender string, seq int64, now time.Time) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	s, ok := m.sessions[sender]
	if !ok {
		s = models.SessionState{Sender: sender}
	}
	if s.InboundSeq != seq {
		return ErrConflict
	}
	s.PreviousInboundAt = s.LastInboundAt
	s.LastInboundAt = now
	s.InboundSeq++
	s.UpdatedAt = now
	m.sessions[sender] = s
	return nil
}

func (m *MemoryStore) RecordOutbound(_ context.Context, sender, hash, stage string, at time.Time) error {
	if sender == "" {
		return fmt.Errorf("session sender is required")
	}
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	s, ok := m.sessions[sender]
	if !ok {
		s = models.SessionState{Sender: sender}
	}
	s.LastOutboundHash = hash
	if stage != "" {
		s.Stage = stage
	}
	s.UpdatedAt = at
	m.sessions[sender] = s
	return nil
}

// User memory operations
func (m *MemoryStore) GetUserMemory(_ context.Context, sender string) (*models.UserMemory, error) {
	m.memoryMu.RLock()
	defer m.memoryMu.RUnlock()

	mem, ok := m.memories[sender]
	if !ok {
		return nil, ErrNotFound
	}
	mem.Usage = copyUsage(mem.Usage)
	return &mem, nil
}

func (m *MemoryStore) SaveUserMemory(_ context.Context, memory *models.UserMemory) error {
	if memory == nil || memory.Sender == "" {
		return fmt.Errorf("memory sender is required")
	}
	m.memoryMu.Lock()
	defer m.memoryMu.Unlock()

	mem := *memory
	mem.Usage = copyUsage(mem.Usage)
	m.memories[mem.Sender] = mem
	return nil
}

func copyUsage(in map[string]models.SkillUsage) map[string]models.SkillUsage {
	if in == nil {
		return nil
	}
	out := make(map[string]models.SkillUsage, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Transaction cache operations
func (m *MemoryStore) PutTransaction(_ context.Context, entry *models.TransactionCacheEntry) error {
	if entry == nil || entry.Kind == "" || entry.TransactionID == "" {
		return fmt.Errorf("transaction kind and id are required")
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.transactions[txKey{entry.Kind, entry.TransactionID}] = *entry
	return nil
}

func (m *MemoryStore) ConsumeTransaction(_ context.Context, kind, id, sender, consumer string, now time.Time) (*models.TransactionCacheEntry, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	key := txKey{kind, id}
	entry, ok := m.transactions[key]
	if !ok || entry.Expired(now) || !consumable(&entry, sender, consumer) {
		return nil, ErrNotFound
	}
	entry.ConsumedBy = consumer
	m.transactions[key] = entry
	out := entry
	out.Payload = copyPayload(entry.Payload)
	return &out, nil
}

func consumable(e *models.TransactionCacheEntry, sender, consumer string) bool {
	if e.Sender != "" && e.Sender != sender {
		return false
	}
	return e.ConsumedBy == "" || e.ConsumedBy == consumer
}

func copyPayload(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *MemoryStore) DeleteExpiredTransactions(_ context.Context, now time.Time) (int64, error) {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	var n int64
	for k, e := range m.transactions {
		if e.Expired(now) {
			delete(m.transactions, k)
			n++
		}
	}
	return n, nil
}

// Inbound log operations
func (m *MemoryStore) CreateInboundLog(_ context.Context, entry *models.InboundLog) error {
	m.inboundMu.Lock()
	defer m.inboundMu.Unlock()

	if _, exists := m.inbound[entry.MessageID]; exists {
		return ErrDuplicate
	}
	m.inboundCounter++
	entry.ID = m.inboundCounter
	entry.CreatedAt = time.Now()
	entry.UpdatedAt = entry.CreatedAt
	m.inbound[entry.MessageID] = *entry
	return nil
}

func (m *MemoryStore) GetInboundLog(_ context.Context, messageID string) (*models.InboundLog, error) {
	m.inboundMu.RLock()
	defer m.inboundMu.RUnlock()

	entry, ok := m.inbound[messageID]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (m *MemoryStore) MarkInboundProcessed(_ context.Context, messageID string, at time.Time) error {
	m.inboundMu.Lock()
	defer m.inboundMu.Unlock()

	entry, ok := m.inbound[messageID]
	if !ok {
		return ErrNotFound
	}
	entry.Processed = true
	entry.ProcessedAt = &at
	entry.UpdatedAt = time.Now()
	m.inbound[messageID] = entry
	return nil
}

func (m *MemoryStore) ClaimInbound(_ context.Context, messageID string, now, staleBefore time.Time) error {
	m.inboundMu.Lock()
	defer m.inboundMu.Unlock()

	entry, ok := m.inbound[messageID]
	if !ok || entry.Processed || !entry.ClaimedAt.Before(staleBefore) {
		return ErrConflict
	}
	entry.ClaimedAt = now
	entry.UpdatedAt = time.Now()
	m.inbound[messageID] = entry
	return nil
}

func (m *MemoryStore) ReleaseInbound(_ context.Context, messageID string) error {
	m.inboundMu.Lock()
	defer m.inboundMu.Unlock()

	entry, ok := m.inbound[messageID]
	if !ok {
		return ErrNotFound
	}
	entry.ClaimedAt = time.Time{}
	m.inbound[messageID] = entry
	return nil
}

// Interaction operations
func (m *MemoryStore) RecordInteraction(_ context.Context, interaction *models.Interaction) error {
	m.interactionMu.Lock()
	defer m.interactionMu.Unlock()

	m.interactionCounter++
	interaction.ID = m.interactionCounter
	m.interactions = append(m.interactions, *interaction)
	return nil
}

func (m *MemoryStore) ListInteractionsSince(_ context.Context, since time.Time) ([]*models.Interaction, error) {
	m.interactionMu.RLock()
	defer m.interactionMu.RUnlock()

	var out []*models.Interaction
	for i := range m.interactions {
		if !m.interactions[i].At.Before(since) {
			it := m.interactions[i]
			out = append(out, &it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

// Support operations
func (m *MemoryStore) CreateSupportTicket(_ context.Context, ticket *models.SupportTicket) (*models.SupportTicket, error) {
	m.ticketMu.Lock()
	defer m.ticketMu.Unlock()

	if ticket.TicketID != "" {
		for _, t := range m.tickets {
			if t.TicketID == ticket.TicketID {
				return nil, ErrDuplicate
			}
		}
	}
	m.ticketCounter++
	if ticket.TicketID == "" {
		ticket.TicketID = fmt.Sprintf("TK%05d", m.ticketCounter)
	}
	if ticket.IssueType == "" {
		ticket.IssueType = models.IssueTypeGeneral
	}
	if ticket.Status == "" {
		ticket.Status = models.TicketStatusOpen
	}
	ticket.ID = uint(m.ticketCounter)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	m.tickets = append(m.tickets, *ticket)
	return ticket, nil
}

func (m *MemoryStore) GetSupportTicketsBySender(_ context.Context, sender string) ([]*models.SupportTicket, error) {
	m.ticketMu.RLock()
	defer m.ticketMu.RUnlock()

	var out []*models.SupportTicket
	for i := range m.tickets {
		if m.tickets[i].Sender == sender {
			t := m.tickets[i]
			out = append(out, &t)
		}
	}
	return out, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
