package backend

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/five82/quad/internal/campus"
)

// Profile is the latency and reliability contract of one simulated endpoint.
type Profile struct {
	Latency     time.Duration
	SuccessRate float64 // probability in [0, 1]
}

// DefaultProfiles matches the production service's observed behaviour.
func DefaultProfiles() map[Op]Profile {
	return map[Op]Profile{
		OpUpdateGrade: {Latency: 1500 * time.Millisecond, SuccessRate: 0.9},
		OpCheckout:    {Latency: 1000 * time.Millisecond, SuccessRate: 0.95},
		OpReturn:      {Latency: 800 * time.Millisecond, SuccessRate: 1},
		OpRenew:       {Latency: 800 * time.Millisecond, SuccessRate: 0.95},
	}
}

var failureReasons = map[Op]string{
	OpUpdateGrade: "grade service refused the update",
	OpCheckout:    "RFID verification failed",
	OpReturn:      "return station offline",
	OpRenew:       "renewal blocked by a hold request",
}

// Simulator is an in-process Backend with fixed latency and random failures.
// With a fixed seed its outcomes are deterministic.
type Simulator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	profiles map[Op]Profile
	now      func() time.Time
	scale    float64
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithSeed fixes the random source.
func WithSeed(seed uint64) SimulatorOption {
	return func(s *Simulator) { s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithClock overrides the time used for due dates and LastUpdated.
func WithClock(now func() time.Time) SimulatorOption {
	return func(s *Simulator) { s.now = now }
}

// WithLatencyScale multiplies every endpoint latency; zero removes latency.
func WithLatencyScale(f float64) SimulatorOption {
	return func(s *Simulator) {
		if f >= 0 {
			s.scale = f
		}
	}
}

// WithSuccessRate overrides the success probability of one endpoint.
func WithSuccessRate(op Op, p float64) SimulatorOption {
	return func(s *Simulator) {
		prof := s.profiles[op]
		prof.SuccessRate = min(1, max(0, p))
		s.profiles[op] = prof
	}
}

// NewSimulator builds a simulator using DefaultProfiles.
func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		profiles: DefaultProfiles(),
		now:      time.Now,
		scale:    1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// call waits out the endpoint latency, then decides the outcome.
func (s *Simulator) call(ctx context.Context, op Op) error {
	s.mu.Lock()
	prof := s.profiles[op]
	roll := s.rng.Float64()
	s.mu.Unlock()

	if d := time.Duration(float64(prof.Latency) * s.scale); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if roll >= prof.SuccessRate {
		glog.V(1).Infof("simulator: %s failed (roll %.3f >= %.2f)", op, roll, prof.SuccessRate)
		return fmt.Errorf("%w: %s", ErrRejected, failureReasons[op])
	}
	return nil
}

// UpdateGrade accepts the grade and stamps it with the server time.
func (s *Simulator) UpdateGrade(ctx context.Context, grade campus.Grade) (campus.Grade, error) {
	if err := s.call(ctx, OpUpdateGrade); err != nil {
		return campus.Grade{}, err
	}
	grade.LastUpdated = s.now()
	return grade, nil
}

// CheckoutBook lends the book for LoanPeriod from now.
func (s *Simulator) CheckoutBook(ctx context.Context, book campus.LibraryBook) (campus.LibraryBook, error) {
	if err := s.call(ctx, OpCheckout); err != nil {
		return campus.LibraryBook{}, err
	}
	now := s.now()
	due := now.Add(campus.LoanPeriod)
	book.CheckedOut = true
	book.DueDate = &due
	book.FineAmount = 0
	book.LastUpdated = now
	return book, nil
}

// ReturnBook clears the loan, renewals and any fine.
func (s *Simulator) ReturnBook(ctx context.Context, book campus.LibraryBook) (campus.LibraryBook, error) {
	if err := s.call(ctx, OpReturn); err != nil {
		return campus.LibraryBook{}, err
	}
	book.CheckedOut = false
	book.DueDate = nil
	book.RenewalCount = 0
	book.FineAmount = 0
	book.LastUpdated = s.now()
	return book, nil
}

// RenewBook extends the loan by LoanPeriod from the current due date.
func (s *Simulator) RenewBook(ctx context.Context, book campus.LibraryBook) (campus.LibraryBook, error) {
	if book.RenewalCount >= book.MaxRenewals {
		return campus.LibraryBook{}, fmt.Errorf("%w: renewal limit of %d reached", ErrRejected, book.MaxRenewals)
	}
	if err := s.call(ctx, OpRenew); err != nil {
		return campus.LibraryBook{}, err
	}
	now := s.now()
	base := now
	if book.DueDate != nil {
		base = *book.DueDate
	}
	due := base.Add(campus.LoanPeriod)
	book.CheckedOut = true
	book.DueDate = &due
	book.RenewalCount++
	book.LastUpdated = now
	return book, nil
}
