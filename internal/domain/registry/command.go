package registry

import (
	"context"
	"net/netip"
)

// CommandKind discriminates the protocol operations the worker serves.
type CommandKind int

const (
	KindIssueCredential CommandKind = iota + 1
	KindReportAddress
	KindQueryAddress
)

func (k CommandKind) String() string {
	switch k {
	case KindIssueCredential:
		return "issue_credential"
	case KindReportAddress:
		return "report_address"
	case KindQueryAddress:
		return "query_address"
	default:
		return "unknown"
	}
}

// Result is the single response delivered for a command.
type Result struct {
	OK   bool
	Text string
}

// Command pairs one protocol operation with a one-shot reply slot. The
// worker writes the slot exactly once; the originator reads it exactly
// once via Wait.
type Command struct {
	Kind       CommandKind
	UserID     int64
	Credential string
	Addr       netip.Addr

	reply chan Result
}

func newCommand(kind CommandKind) Command {
	return Command{
		Kind: kind,
		// Capacity 1 so the worker's reply never blocks, even when the
		// originator has already gone away.
		reply: make(chan Result, 1),
	}
}

func NewIssueCredential(userID int64) Command {
	cmd := newCommand(KindIssueCredential)
	cmd.UserID = userID
	return cmd
}

func NewReportAddress(credential string, addr netip.Addr) Command {
	cmd := newCommand(KindReportAddress)
	cmd.Credential = credential
	cmd.Addr = addr
	return cmd
}

func NewQueryAddress(userID int64) Command {
	cmd := newCommand(KindQueryAddress)
	cmd.UserID = userID
	return cmd
}

// Wait blocks until the worker resolves the command or the context ends.
func (c Command) Wait(ctx context.Context) (Result, error) {
	select {
	case res := <-c.reply:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// resolve publishes the result without blocking. A second resolve of the
// same command is a no-op, which keeps the reply-exactly-once contract.
func (c Command) resolve(res Result) {
	select {
	case c.reply <- res:
	default:
	}
}

// Dispatcher is the single FIFO inbound queue shared by all front-ends.
type Dispatcher struct {
	commands chan Command
}

const defaultQueueSize = 16

func NewDispatcher(size int) *Dispatcher {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Dispatcher{commands: make(chan Command, size)}
}

// Submit enqueues a command. A full queue blocks until the worker drains
// it or the caller's context ends; a dispatch failure is final for that
// request, never retried.
func (d *Dispatcher) Submit(ctx context.Context, cmd Command) error {
	select {
	case d.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Depth reports the number of queued, not yet consumed commands.
func (d *Dispatcher) Depth() int {
	return len(d.commands)
}
