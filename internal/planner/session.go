package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/christopherklint97/travelpal/internal/ai"
	"github.com/christopherklint97/travelpal/internal/trip"
)

var (
	ErrEmptyItinerary      = errors.New("the model returned a plan without any days")
	ErrBusy                = errors.New("a turn is already in progress for this session")
	ErrNoUpdate            = errors.New("the model did not provide an updated plan")
	ErrNothingToRegenerate = errors.New("no rejected events to regenerate")
	ErrNoPlan              = errors.New("no plan to discuss")
	ErrEmptyMessage        = errors.New("message is empty")
)

// Session owns one conversation about one plan. The chat handle is created
// lazily and re-created from the last known plan whenever it was lost.
type Session struct {
	ID string

	provider    ai.Provider
	prompt      string
	maxMessages int
	logger      *slog.Logger

	busy atomic.Bool

	mu         sync.Mutex
	chat       ai.Chat
	transcript []trip.ChatMessage
}

func newSession(provider ai.Provider, prompt string, maxMessages int, logger *slog.Logger) *Session {
	return &Session{
		ID:          uuid.NewString(),
		provider:    provider,
		prompt:      prompt,
		maxMessages: maxMessages,
		logger:      logger,
	}
}

// Ensure returns the live chat, starting a new one seeded with plan when
// there is none.
func (s *Session) Ensure(ctx context.Context, plan *trip.TripPlan) (ai.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(ctx, plan, true)
}

func (s *Session) ensureLocked(ctx context.Context, plan *trip.TripPlan, recovery bool) (ai.Chat, error) {
	if s.chat != nil {
		return s.chat, nil
	}
	if plan.IsEmpty() {
		return nil, ErrNoPlan
	}

	history, err := ai.SeedHistory(s.prompt, plan)
	if err != nil {
		return nil, err
	}
	chat, err := s.provider.StartChat(ctx, ai.ChatConfig{
		System:  ai.ChatSystemInstruction(),
		History: history,
		Tools:   []ai.Tool{ai.UpdateItinerary()},
	})
	if err != nil {
		return nil, fmt.Errorf("starting chat: %w", err)
	}

	if recovery {
		sessionRecoveriesTotal.Inc()
		s.logger.Info("re-created chat session from last known plan",
			"session", s.ID,
			"days", len(plan.Itinerary),
			"events", trip.CountEvents(plan),
		)
	}
	s.chat = chat
	return chat, nil
}

// Prompt is the generation prompt that opens the session's history.
func (s *Session) Prompt() string {
	return s.prompt
}

// Reset drops the chat handle. The next turn starts a fresh chat.
func (s *Session) Reset() {
	s.mu.Lock()
	s.chat = nil
	s.mu.Unlock()
}

// Active reports whether a chat handle is currently held.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat != nil
}

// Messages returns a copy of the visible transcript.
func (s *Session) Messages() []trip.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]trip.ChatMessage(nil), s.transcript...)
}

func (s *Session) record(role trip.ChatRole, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, trip.ChatMessage{Role: role, Text: text})
	if s.maxMessages > 0 && len(s.transcript) > s.maxMessages {
		s.transcript = s.transcript[len(s.transcript)-s.maxMessages:]
	}
}

func (s *Session) acquire() error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (s *Session) release() {
	s.busy.Store(false)
}

// Busy reports whether a turn is in flight.
func (s *Session) Busy() bool {
	return s.busy.Load()
}
