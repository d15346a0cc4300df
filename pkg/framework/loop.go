package framework

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the iteration interval of a Loop.
const DefaultInterval = 100 * time.Millisecond

// Loop collects posted messages and runs its controllers over them
// every Interval, or right away when triggered.
type Loop struct {
	Interval time.Duration

	controllers []Controller
	runners     []Runnable

	lock     sync.Mutex
	messages []Message
	wakeUpCh chan struct{}
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{
		Interval: DefaultInterval,
		wakeUpCh: make(chan struct{}, 1),
	}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers. Controllers which are also
// Runnable are run along with the loop.
func (l *Loop) AddController(ctls ...Controller) *Loop {
	l.controllers = append(l.controllers, ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds runnables started and stopped with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// PostMessage implements LoopControl.
func (l *Loop) PostMessage(msg Message) {
	l.lock.Lock()
	l.messages = append(l.messages, msg)
	l.lock.Unlock()
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

// Name implements Named.
func (l *Loop) Name() string {
	return "loop"
}

// Run implements Runnable. Messages posted but not yet dispatched
// when ctx is done are processed in a final iteration.
func (l *Loop) Run(ctx context.Context) error {
	runner := NewRunnerWith(ctx).Go(l.runners...)
	defer runner.Wait()

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.runIteration(context.Background())
			return ctx.Err()
		case <-ticker.C:
			l.runIteration(ctx)
		case <-l.wakeUpCh:
			l.runIteration(ctx)
		}
	}
}

type iteration struct {
	*Loop
	ctx      context.Context
	time     time.Time
	messages []Message
}

func (l *Loop) runIteration(ctx context.Context) {
	l.lock.Lock()
	msgs := l.messages
	l.messages = nil
	l.lock.Unlock()
	if len(msgs) == 0 {
		return
	}
	iter := &iteration{Loop: l, ctx: ctx, time: time.Now(), messages: msgs}
	for _, ctl := range l.controllers {
		if err := ctl.Control(iter); err != nil {
			glog.Errorf("controller error: %v", err)
		}
	}
}

func (t *iteration) Context() context.Context { return t.ctx }
func (t *iteration) Time() time.Time          { return t.time }
func (t *iteration) Messages() []Message      { return t.messages }

func (t *iteration) TakeMessages(topic string) []Message {
	var taken []Message
	remains := t.messages[:0]
	for _, msg := range t.messages {
		if msg.Topic() == topic {
			taken = append(taken, msg)
		} else {
			remains = append(remains, msg)
		}
	}
	t.messages = remains
	return taken
}
