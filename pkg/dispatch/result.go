package dispatch

import (
	"errors"

	"github.com/eigerco/rocker/pkg/rocker"
)

// Tag is the first element of every result.
type Tag string

const (
	TagOK    Tag = "ok"
	TagError Tag = "error"
)

// Reason is a symbolic failure, returned instead of a message.
type Reason string

const (
	ReasonNotFound        Reason = "not_found"
	ReasonUnknownKeyspace Reason = "unknown_keyspace"
	ReasonExhausted       Reason = "exhausted"
	ReasonClosed          Reason = "closed"
	ReasonBadArg          Reason = "badarg"
)

// ErrBadArg marks arguments the dispatcher could not decode, including
// handles that do not name a live resource.
var ErrBadArg = errors.New("dispatch: bad argument")

// Result is a tagged reply. A failure carries either a Reason or a Message,
// never both.
type Result struct {
	Tag     Tag
	Value   any
	Reason  Reason
	Message string
}

// Entry is the value of a successful Next.
type Entry struct {
	Key   []byte
	Value []byte
}

func ok(value any) Result {
	return Result{Tag: TagOK, Value: value}
}

func fail(err error) Result {
	if reason, found := reasonOf(err); found {
		return Result{Tag: TagError, Reason: reason}
	}
	return Result{Tag: TagError, Message: err.Error()}
}

func reply(value any, err error) Result {
	if err != nil {
		return fail(err)
	}
	return ok(value)
}

func reasonOf(err error) (Reason, bool) {
	switch {
	case errors.Is(err, rocker.ErrNotFound):
		return ReasonNotFound, true
	case errors.Is(err, rocker.ErrUnknownKeyspace):
		return ReasonUnknownKeyspace, true
	case errors.Is(err, rocker.ErrExhausted):
		return ReasonExhausted, true
	case errors.Is(err, rocker.ErrClosed):
		return ReasonClosed, true
	case errors.Is(err, ErrBadArg):
		return ReasonBadArg, true
	default:
		return "", false
	}
}

// OK reports whether the result is a success.
func (r Result) OK() bool {
	return r.Tag == TagOK
}
