package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/five82/quad/internal/campus"
	"github.com/five82/quad/internal/optimistic"
	"github.com/five82/quad/internal/push"
	"github.com/five82/quad/internal/views"
)

const defaultMutationEvery = 2 * time.Second

// SimulateOptions configure a headless run.
type SimulateOptions struct {
	Duration time.Duration // zero runs until ctx is cancelled
	Every    time.Duration // mutation cadence; zero uses 2s
	Seed     uint64        // zero seeds from the clock
	Out      io.Writer     // event lines; nil discards them
}

// Summary counts what happened during a headless run.
type Summary struct {
	Started      int
	Refused      int
	Confirmed    int
	RolledBack   int
	Superseded   int
	PushMessages int
}

func (s Summary) String() string {
	return fmt.Sprintf("mutations: %d started, %d refused, %d confirmed (%d superseded), %d rolled back; push messages: %d",
		s.Started, s.Refused, s.Confirmed, s.Superseded, s.RolledBack, s.PushMessages)
}

// Simulate runs the push channel and the heartbeat without a terminal and
// fires random user mutations at the controller. It returns once the
// duration elapses or ctx is cancelled, after in-flight mutations settle.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) (Summary, error) {
	if opts.Every <= 0 {
		opts.Every = defaultMutationEvery
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	var (
		mu  sync.Mutex
		sum Summary
	)
	printf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		_, _ = fmt.Fprintf(opts.Out, format+"\n", args...)
	}

	var unsubs []func()
	for _, t := range []push.MessageType{push.BusUpdate, push.OccupancyUpdate, push.GradeUpdate, push.ThesisUpdate} {
		unsubs = append(unsubs, a.Push.On(t, func(m push.Message) {
			mu.Lock()
			sum.PushMessages++
			mu.Unlock()
			printf("%s push %s", m.Timestamp.Format(time.TimeOnly), m.Type)
		}))
	}
	unsubs = append(unsubs, a.OnSettle(func(res optimistic.Result) {
		mu.Lock()
		if res.Phase == optimistic.PhaseConfirmed {
			sum.Confirmed++
		} else {
			sum.RolledBack++
		}
		if res.Superseded {
			sum.Superseded++
		}
		mu.Unlock()
		if res.Err != nil {
			printf("%s %s %s: %v", res.Phase, res.Op, res.EntityID, res.Err)
			return
		}
		printf("%s %s %s", res.Phase, res.Op, res.EntityID)
	}))
	defer func() {
		for _, u := range unsubs {
			u()
		}
	}()

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	d := &driver{app: a, rng: rand.New(rand.NewPCG(seed, seed>>1|1))}
	err := a.supervise(ctx, func(ctx context.Context) error {
		ticker := time.NewTicker(opts.Every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
			desc, err := d.fire(ctx)
			mu.Lock()
			if err != nil {
				sum.Refused++
			} else {
				sum.Started++
			}
			mu.Unlock()
			if err != nil {
				printf("refused %s: %v", desc, err)
				continue
			}
			printf("applied %s", desc)
		}
	})
	a.Controller.Wait()

	mu.Lock()
	defer mu.Unlock()
	return sum, err
}

// driver picks random user actions against the current snapshot.
type driver struct {
	app *App
	rng *rand.Rand
}

func (d *driver) fire(ctx context.Context) (string, error) {
	snap := d.app.Store.Snapshot()
	ctrl := d.app.Controller

	switch d.rng.IntN(4) {
	case 0:
		if len(snap.Grades) == 0 {
			return "update_grade", errors.New("no grades")
		}
		g := snap.Grades[d.rng.IntN(len(snap.Grades))]
		score := min(campus.MaxScore, max(0, g.Score+float64(d.rng.IntN(11)-5)))
		desc := fmt.Sprintf("update_grade %s %.0f", g.ID, score)
		_, err := ctrl.UpdateGrade(ctx, g.ID, score, views.LetterFor(score))
		return desc, err
	case 1:
		b, ok := d.pickBook(snap.Books, func(b campus.LibraryBook) bool { return !b.CheckedOut })
		if !ok {
			return "checkout_book", errors.New("nothing available")
		}
		_, err := ctrl.CheckoutBook(ctx, b.ID)
		return "checkout_book " + b.ID, err
	case 2:
		b, ok := d.pickBook(snap.Books, func(b campus.LibraryBook) bool { return b.CheckedOut })
		if !ok {
			return "return_book", errors.New("nothing checked out")
		}
		_, err := ctrl.ReturnBook(ctx, b.ID)
		return "return_book " + b.ID, err
	default:
		b, ok := d.pickBook(snap.Books, views.CanRenew)
		if !ok {
			return "renew_book", errors.New("nothing renewable")
		}
		_, err := ctrl.RenewBook(ctx, b.ID)
		return "renew_book " + b.ID, err
	}
}

func (d *driver) pickBook(books []campus.LibraryBook, keep func(campus.LibraryBook) bool) (campus.LibraryBook, bool) {
	var candidates []campus.LibraryBook
	for _, b := range books {
		if keep(b) && !d.app.Controller.Pending(b.ID) {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return campus.LibraryBook{}, false
	}
	b := candidates[d.rng.IntN(len(candidates))]
	glog.V(2).Infof("simulate: picked %s from %d candidates", b.ID, len(candidates))
	return b, true
}
