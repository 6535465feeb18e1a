package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/datallboy/godepot/internal/domain"
)

var (
	// ErrQueryTimeout is returned when a worker did not answer a Query before the deadline.
	ErrQueryTimeout = errors.New("query timed out")
	// ErrWorkerHalted is returned when the worker side of the channel has exited.
	ErrWorkerHalted = errors.New("worker halted")
)

type MessageKind int

const (
	MsgStop MessageKind = iota + 1
	MsgStart
	MsgDownload
	MsgQuery
)

func (k MessageKind) String() string {
	switch k {
	case MsgStop:
		return "stop"
	case MsgStart:
		return "start"
	case MsgDownload:
		return "download"
	case MsgQuery:
		return "query"
	default:
		return fmt.Sprintf("message(%d)", int(k))
	}
}

// Message is a command from the owner to a worker.
type Message struct {
	Kind   MessageKind
	Target uint32 // Download only
	Seq    uint64 // Query only
}

func (m Message) String() string {
	switch m.Kind {
	case MsgDownload:
		return fmt.Sprintf("download(%d)", m.Target)
	case MsgQuery:
		return fmt.Sprintf("query#%d", m.Seq)
	}
	return m.Kind.String()
}

// Reply answers a Query with the worker's downloading flag.
type Reply struct {
	Seq         uint64
	Downloading bool
}

// NewControlChannel returns the two ends of a duplex command channel.
// Only the owner writes commands and only the worker writes replies.
func NewControlChannel(buffer int) (*OwnerEnd, *WorkerEnd) {
	if buffer < 1 {
		buffer = 1
	}
	cmds := make(chan Message, buffer)
	// One more than the command buffer: every query that can be queued,
	// plus the one the worker may be answering.
	replies := make(chan Reply, buffer+1)
	closed := make(chan struct{})
	halted := make(chan struct{})

	owner := &OwnerEnd{cmds: cmds, replies: replies, closed: closed, halted: halted}
	worker := &WorkerEnd{cmds: cmds, replies: replies, closed: closed, halted: halted}
	return owner, worker
}

// OwnerEnd is held by the process that scheduled the worker.
type OwnerEnd struct {
	cmds    chan<- Message
	replies <-chan Reply
	closed  chan struct{}
	halted  <-chan struct{}

	seq       atomic.Uint64
	queryMu   sync.Mutex
	closeOnce sync.Once
}

// Send queues a command, blocking while the command buffer is full.
func (o *OwnerEnd) Send(ctx context.Context, m Message) error {
	select {
	case <-o.closed:
		return domain.NewTransferError(domain.ChannelClosed, "send "+m.String(), nil)
	case <-o.halted:
		return ErrWorkerHalted
	default:
	}

	select {
	case o.cmds <- m:
		return nil
	case <-o.halted:
		return ErrWorkerHalted
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *OwnerEnd) Stop(ctx context.Context) error {
	return o.Send(ctx, Message{Kind: MsgStop})
}

func (o *OwnerEnd) Start(ctx context.Context) error {
	return o.Send(ctx, Message{Kind: MsgStart})
}

func (o *OwnerEnd) Download(ctx context.Context, target uint32) error {
	return o.Send(ctx, Message{Kind: MsgDownload, Target: target})
}

// Query asks the worker for its downloading flag and waits for the answer.
// Without a deadline on ctx this blocks for as long as the worker takes to
// reach its next pump point.
func (o *OwnerEnd) Query(ctx context.Context) (bool, error) {
	o.queryMu.Lock()
	defer o.queryMu.Unlock()

	o.dropStaleReplies()

	seq := o.seq.Add(1)
	if err := o.Send(ctx, Message{Kind: MsgQuery, Seq: seq}); err != nil {
		return false, err
	}

	for {
		select {
		case r := <-o.replies:
			if r.Seq == seq {
				return r.Downloading, nil
			}
			// answer to an earlier query that timed out
		case <-o.halted:
			select {
			case r := <-o.replies:
				if r.Seq == seq {
					return r.Downloading, nil
				}
			default:
			}
			return false, ErrWorkerHalted
		case <-ctx.Done():
			return false, fmt.Errorf("%w: %v", ErrQueryTimeout, ctx.Err())
		}
	}
}

// dropStaleReplies discards answers to earlier queries that timed out, so
// the worker always has room for the reply to the next one.
func (o *OwnerEnd) dropStaleReplies() {
	for {
		select {
		case <-o.replies:
		default:
			return
		}
	}
}

// Close tells the worker its owner is gone. The worker treats it as Stop
// followed by halt once it has drained the commands already queued.
func (o *OwnerEnd) Close() {
	o.closeOnce.Do(func() { close(o.closed) })
}

// Halted is closed once the worker loop has exited.
func (o *OwnerEnd) Halted() <-chan struct{} {
	return o.halted
}

// WorkerEnd is held by the TransferWorker.
type WorkerEnd struct {
	cmds    <-chan Message
	replies chan<- Reply
	closed  <-chan struct{}
	halted  chan struct{}

	haltOnce sync.Once
}

// Poll returns the next pending command without blocking. ok is false when
// nothing is pending. A ChannelClosed error is returned once the owner has
// closed its end and every queued command has been delivered.
func (w *WorkerEnd) Poll() (m Message, ok bool, err error) {
	select {
	case m = <-w.cmds:
		return m, true, nil
	default:
	}

	select {
	case <-w.closed:
		return Message{}, false, domain.NewTransferError(domain.ChannelClosed, "poll", nil)
	default:
		return Message{}, false, nil
	}
}

// Reply answers a query without blocking. The owner clears stale answers
// before each query, so a reply is only dropped when nobody is asking.
func (w *WorkerEnd) Reply(r Reply) bool {
	select {
	case w.replies <- r:
		return true
	default:
		return false
	}
}

// Halt marks the worker as exited.
func (w *WorkerEnd) Halt() {
	w.haltOnce.Do(func() { close(w.halted) })
}
