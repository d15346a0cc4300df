// Package framework provides the concurrency plumbing of the tools:
// runnables, a runner collecting their errors and a loop dispatching
// messages to controllers.
package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Message is posted to a Loop and consumed by its controllers.
type Message interface {
	// Topic names the kind of the message.
	Topic() string
}

// Controller consumes the messages of a loop iteration.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(cc ControlContext) error {
	return f(cc)
}

// ControlContext provides the context of the current iteration.
type ControlContext interface {
	// Context retrieves context.Context.
	Context() context.Context
	// Time is when the iteration started.
	Time() time.Time
	// Messages returns the messages collected when the iteration
	// started, in posting order.
	Messages() []Message
	// TakeMessages returns the messages matching topic and removes
	// them from the iteration, so later controllers don't see them.
	TakeMessages(topic string) []Message

	LoopControl
}

// LoopControl exposes access to the loop.
type LoopControl interface {
	// PostMessage enqueues the message for the next iteration.
	PostMessage(Message)
	// TriggerNext schedules the next iteration to be executed
	// immediately after the current one.
	TriggerNext()
}
