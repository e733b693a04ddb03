package mutator

import (
	"context"
	"sync"

	"github.com/roach88/mealplan/internal/plan"
	"github.com/roach88/mealplan/internal/verify"
)

// Session applies one actor's edits strictly in submission order, even
// when they are submitted from several goroutines. Sessions of different
// actors do not wait for each other.
type Session struct {
	m       *Mutator
	actorID string

	mu   sync.Mutex
	tail chan struct{}
}

// Session returns a new session for actorID.
func (m *Mutator) Session(actorID string) *Session {
	return &Session{m: m, actorID: actorID}
}

// ActorID returns the session's actor.
func (s *Session) ActorID() string {
	return s.actorID
}

// turn takes the next ticket and waits until every earlier submission has
// finished. The returned func must be called when this one finishes.
func (s *Session) turn(ctx context.Context) (func(), error) {
	s.mu.Lock()
	prev := s.tail
	done := make(chan struct{})
	s.tail = done
	s.mu.Unlock()

	if prev == nil {
		return func() { close(done) }, nil
	}
	select {
	case <-prev:
		return func() { close(done) }, nil
	case <-ctx.Done():
		// Keep the chain intact for later submissions.
		go func() {
			<-prev
			close(done)
		}()
		return nil, ctx.Err()
	}
}

// SubmitMemberEdit is Mutator.SubmitMemberEdit in session order.
func (s *Session) SubmitMemberEdit(ctx context.Context, planID string, day plan.DayKey, memberID string, edit plan.Edit) (plan.MemberOrderEntry, error) {
	release, err := s.turn(ctx)
	if err != nil {
		return plan.MemberOrderEntry{}, err
	}
	defer release()
	return s.m.SubmitMemberEdit(ctx, s.actorID, planID, day, memberID, edit)
}

// SubmitEdits is Mutator.SubmitEdits in session order.
func (s *Session) SubmitEdits(ctx context.Context, planID string, actions []EditAction) (verify.Expected, error) {
	release, err := s.turn(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.m.SubmitEdits(ctx, s.actorID, planID, actions)
}
