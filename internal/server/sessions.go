package server

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/christopherklint97/travelpal/internal/planner"
	"github.com/christopherklint97/travelpal/internal/store"
	"github.com/christopherklint97/travelpal/internal/trip"
)

// tripSession is the server-side state of one trip: the plan the client
// sees and the chat that refines it.
type tripSession struct {
	id         string
	prefs      trip.UserPreferences
	prompt     string
	reconciler *planner.Reconciler

	mu sync.Mutex
	// inTurn is set while a chat or regenerate request waits on the model.
	// Direct edits are refused meanwhile so the turn's result cannot
	// silently drop them.
	inTurn bool
	plan   *trip.TripPlan
}

func (s *tripSession) snapshot() *trip.TripPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return trip.Clone(s.plan)
}

// beginTurn marks a model turn in flight and returns the plan it starts
// from. Only one turn runs at a time.
func (s *tripSession) beginTurn() (*trip.TripPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inTurn {
		return nil, planner.ErrBusy
	}
	s.inTurn = true
	return trip.Clone(s.plan), nil
}

// endTurn stores the turn's plan, if it produced one, and allows edits
// again.
func (s *tripSession) endTurn(p *trip.TripPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p != nil {
		s.plan = p
	}
	s.inTurn = false
}

// update applies fn to the current plan under the lock and stores the
// result. It fails with planner.ErrBusy while a turn is in flight.
func (s *tripSession) update(fn func(*trip.TripPlan) *trip.TripPlan) (*trip.TripPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inTurn || s.reconciler.Session().Busy() {
		return nil, planner.ErrBusy
	}
	s.plan = fn(s.plan)
	return trip.Clone(s.plan), nil
}

func (s *tripSession) saved() store.SavedTrip {
	return store.SavedTrip{
		ID:          s.id,
		Preferences: s.prefs,
		Prompt:      s.prompt,
		Plan:        s.snapshot(),
	}
}

// sessionStore holds sessions in memory; entries expire after ttl without
// access.
type sessionStore struct {
	cache *cache.Cache
}

func newSessionStore(ttl time.Duration) *sessionStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &sessionStore{cache: cache.New(ttl, ttl/2)}
}

func (st *sessionStore) get(id string) (*tripSession, bool) {
	v, ok := st.cache.Get(id)
	if !ok {
		return nil, false
	}
	s := v.(*tripSession)
	st.cache.Set(id, s, cache.DefaultExpiration)
	return s, true
}

func (st *sessionStore) put(s *tripSession) {
	st.cache.Set(s.id, s, cache.DefaultExpiration)
}

func (st *sessionStore) count() int {
	return st.cache.ItemCount()
}
