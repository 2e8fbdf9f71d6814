// Package runtime is a minimal mailbox runtime: each spawned actor owns one
// goroutine that processes its messages strictly in order, so an actor's
// state never needs locking. Handles expose kill-and-await and observation.
package runtime

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const mailboxCapacity = 64

// ErrActorStopped is returned by Mailbox.Send once the actor has stopped.
var ErrActorStopped = errors.New("actor stopped")

// Message is any value an actor can receive.
type Message interface{}

// Actor is a unit of sequential execution. Initialize runs before any message
// is processed; Receive handles one message at a time. A non-nil error from
// either stops the actor.
type Actor interface {
	Name() string
	Initialize(ctx *Context) error
	Receive(ctx *Context, msg Message) error
}

// Observable is implemented by actors that expose a state snapshot through
// Handle.ProcessPendingAndObserve.
type Observable interface {
	ObservableState() interface{}
}

// Mailbox is the ordered inbound queue of one actor.
type Mailbox struct {
	ch   chan Message
	quit chan struct{}
}

// Send enqueues msg, or fails with ErrActorStopped.
func (m *Mailbox) Send(msg Message) error {
	select {
	case <-m.quit:
		return ErrActorStopped
	default:
	}
	select {
	case m.ch <- msg:
		return nil
	case <-m.quit:
		return ErrActorStopped
	}
}

// Handle is the supervisor-side reference to a spawned actor. It is the only
// way to stop one.
type Handle struct {
	name     string
	mailbox  *Mailbox
	quit     chan struct{}
	done     chan struct{}
	killOnce sync.Once
}

func (h *Handle) Name() string {
	return h.name
}

// Kill stops the actor and blocks until it has fully stopped. Messages still
// queued are dropped, not drained.
func (h *Handle) Kill() {
	h.killOnce.Do(func() { close(h.quit) })
	<-h.done
}

// Done is closed once the actor has fully stopped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

type observeRequest struct {
	reply chan interface{}
}

// ProcessPendingAndObserve waits until every message queued before the call
// has been processed, then returns the actor's observable state (nil if the
// actor is not Observable or already stopped).
func (h *Handle) ProcessPendingAndObserve() interface{} {
	req := observeRequest{reply: make(chan interface{}, 1)}
	if err := h.mailbox.Send(req); err != nil {
		return nil
	}
	select {
	case state := <-req.reply:
		return state
	case <-h.done:
		return nil
	}
}

// Context is handed to an actor's Initialize and Receive. It carries the
// actor's own mailbox (for self-scheduling) and the universe (for spawning).
type Context struct {
	universe *Universe
	mailbox  *Mailbox
	name     string
}

// ScheduleSelfMsg arms a one-shot timer that enqueues msg after d. The send
// is dropped if the actor stops first.
func (c *Context) ScheduleSelfMsg(d time.Duration, msg Message) {
	time.AfterFunc(d, func() {
		_ = c.mailbox.Send(msg)
	})
}

// Spawn starts a child actor in the same universe.
func (c *Context) Spawn(a Actor) (*Mailbox, *Handle) {
	return c.universe.Spawn(a)
}

// Universe tracks every actor spawned through it, so a process can stop them
// all at shutdown.
type Universe struct {
	mu      sync.Mutex
	handles []*Handle
}

func NewUniverse() *Universe {
	return &Universe{}
}

// Spawn runs a.Initialize in the caller, then starts the actor's message
// loop. The actor is fully initialized by the time Spawn returns.
func (u *Universe) Spawn(a Actor) (*Mailbox, *Handle) {
	quit := make(chan struct{})
	mailbox := &Mailbox{ch: make(chan Message, mailboxCapacity), quit: quit}
	handle := &Handle{
		name:    a.Name(),
		mailbox: mailbox,
		quit:    quit,
		done:    make(chan struct{}),
	}
	ctx := &Context{universe: u, mailbox: mailbox, name: a.Name()}

	u.mu.Lock()
	u.handles = append(u.handles, handle)
	u.mu.Unlock()

	if err := a.Initialize(ctx); err != nil {
		logrus.WithError(err).Errorf("actor [%s] failed to initialize", a.Name())
		handle.killOnce.Do(func() { close(quit) })
		close(handle.done)
		return mailbox, handle
	}

	go func() {
		defer close(handle.done)
		defer handle.killOnce.Do(func() { close(quit) })
		for {
			select {
			case <-quit:
				return
			case msg := <-mailbox.ch:
				if req, ok := msg.(observeRequest); ok {
					req.reply <- observableState(a)
					continue
				}
				if err := a.Receive(ctx, msg); err != nil {
					logrus.WithError(err).Errorf("actor [%s] failed, exiting", a.Name())
					return
				}
			}
		}
	}()

	return mailbox, handle
}

// Shutdown kills every actor spawned through the universe, most recent first.
func (u *Universe) Shutdown() {
	u.mu.Lock()
	handles := make([]*Handle, len(u.handles))
	copy(handles, u.handles)
	u.mu.Unlock()

	for i := len(handles) - 1; i >= 0; i-- {
		handles[i].Kill()
	}
}

func observableState(a Actor) interface{} {
	if o, ok := a.(Observable); ok {
		return o.ObservableState()
	}
	return nil
}
