package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/chatstream/pkg/chat"
	"github.com/papercomputeco/chatstream/pkg/logger"
	"github.com/papercomputeco/chatstream/pkg/sse"
)

var (
	// ErrSendInProgress is wrapped by the precondition error returned when Send
	// is called while another send is still active.
	ErrSendInProgress = errors.New("a message is already being sent")

	// ErrStreamClosed is wrapped by the transport error returned when the
	// stream ends before a done event arrives.
	ErrStreamClosed = errors.New("stream closed before completion")

	// ErrNoBody is wrapped by the transport error returned when the backend
	// answers without a readable body.
	ErrNoBody = errors.New("response has no body")
)

// State is the lifecycle position of a Session.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a send.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Opener opens the event stream for one message. Implementations return a
// *chat.TransportError for non-success responses.
type Opener interface {
	OpenStream(ctx context.Context, projectID, chatID, content string) (io.ReadCloser, error)
}

// Outcome is the terminal result of a Send.
type Outcome struct {
	State       State
	UserMessage chat.Message
	AIMessage   chat.Message

	// Err is the user-visible failure when State is StateFailed.
	Err error
}

// Config configures a Session.
type Config struct {
	Conversation *chat.Conversation
	UserID       string
	Opener       Opener

	// Observer receives live streaming text and status updates. Optional.
	Observer Observer

	// Dump receives every raw byte read from the stream. Optional.
	Dump io.Writer

	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Session owns the request lifecycle of sends into one conversation. Sends are
// serialized: at most one is active at a time.
type Session struct {
	conv     *chat.Conversation
	userID   string
	opener   Opener
	observer Observer
	dump     io.Writer
	parser   *Parser
	logger   *slog.Logger
	now      func() time.Time

	// mu guards the fields below
	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	text   strings.Builder
	status string
}

// NewSession creates an idle Session.
func NewSession(cfg Config) *Session {
	l := logger.OrNop(cfg.Logger)
	if cfg.Conversation != nil {
		l = l.With("chat_id", cfg.Conversation.ChatID(), "project_id", cfg.Conversation.ProjectID())
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	observer := cfg.Observer
	if observer == nil {
		observer = ObserverFuncs{}
	}

	return &Session{
		conv:     cfg.Conversation,
		userID:   cfg.UserID,
		opener:   cfg.Opener,
		observer: observer,
		dump:     cfg.Dump,
		parser:   NewParser(l),
		logger:   l,
		now:      now,
	}
}

// Send posts content to the conversation and blocks until the stream reaches
// a terminal state.
//
// A send that cannot start returns a nil Outcome and a *chat.PreconditionError;
// nothing is added to the conversation and no request is made. A failed send
// returns the Outcome and its Err. A cancelled send returns an Outcome in
// StateCancelled and a nil error. In every case that reaches the network the
// optimistic message is either finalized or rolled back before Send returns.
func (s *Session) Send(ctx context.Context, content string) (outcome *Outcome, err error) {
	if err := s.checkPreconditions(content); err != nil {
		return nil, err
	}

	optimistic := chat.NewOptimisticMessage(s.conv.ChatID(), s.userID, content, s.now())

	s.mu.Lock()
	if s.state == StateSending || s.state == StateStreaming {
		s.mu.Unlock()
		return nil, &chat.PreconditionError{Reason: ErrSendInProgress.Error(), Err: ErrSendInProgress}
	}
	if err := s.conv.AppendOptimistic(optimistic); err != nil {
		s.mu.Unlock()
		return nil, &chat.PreconditionError{Reason: err.Error(), Err: err}
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.state = StateSending
	s.text.Reset()
	s.status = ""
	s.mu.Unlock()

	defer func() { s.release(cancel, outcome) }()

	s.logger.Debug("sending message", "optimistic_id", optimistic.ID)

	body, err := s.opener.OpenStream(ctx, s.conv.ProjectID(), s.conv.ChatID(), content)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, chat.ErrCancelled) {
			return s.cancelled(optimistic.ID), nil
		}
		return s.failed(optimistic.ID, asTransportError(err))
	}
	if body == nil {
		return s.failed(optimistic.ID, &chat.TransportError{Err: ErrNoBody})
	}

	closeBody := sync.OnceFunc(func() { _ = body.Close() })
	defer closeBody()

	// Closing the body makes a blocked Read return immediately.
	stop := context.AfterFunc(ctx, closeBody)
	defer stop()

	s.setState(StateStreaming)

	reader := sse.NewTeeReader(body, s.dump)
	for {
		block, err := reader.Next()
		if ctx.Err() != nil {
			return s.cancelled(optimistic.ID), nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if n := reader.Discarded(); n > 0 {
					s.logger.Debug("discarded partial trailing frame", "bytes", n)
				}
				return s.failed(optimistic.ID, &chat.TransportError{Err: ErrStreamClosed})
			}
			return s.failed(optimistic.ID, &chat.TransportError{Err: err})
		}

		switch ev := s.parser.Parse(block).(type) {
		case nil:
		case *TokenEvent:
			s.appendText(ev.Content)
		case *StatusEvent:
			s.setStatus(ev.Status)
		case *ErrorEvent:
			return s.failed(optimistic.ID, &chat.ProtocolError{Message: ev.Message})
		case *DoneEvent:
			return s.completed(optimistic.ID, ev), nil
		}
	}
}

// Cancel aborts the active send, if any. It is a no-op when idle.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Streaming reports whether a send is in flight.
func (s *Session) Streaming() bool {
	st := s.State()
	return st == StateSending || st == StateStreaming
}

// StreamingText returns the assistant text accumulated so far.
func (s *Session) StreamingText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.String()
}

// Status returns the latest status reported by the server.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Conversation returns the conversation this session sends into.
func (s *Session) Conversation() *chat.Conversation {
	return s.conv
}

func (s *Session) checkPreconditions(content string) error {
	switch {
	case s.conv == nil || s.conv.ChatID() == "":
		return &chat.PreconditionError{Reason: "no active conversation"}
	case s.userID == "":
		return &chat.PreconditionError{Reason: "not signed in"}
	case s.opener == nil:
		return &chat.PreconditionError{Reason: "no backend configured"}
	case strings.TrimSpace(content) == "":
		return &chat.PreconditionError{Reason: "message is empty"}
	}
	return nil
}

func (s *Session) appendText(token string) {
	s.mu.Lock()
	s.text.WriteString(token)
	text := s.text.String()
	s.mu.Unlock()

	s.observer.OnStreamingText(text)
}

func (s *Session) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	s.observer.OnStatus(status)
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.logger.Debug("session state changed", "state", state.String())
}

func (s *Session) completed(optimisticID string, done *DoneEvent) *Outcome {
	if !s.conv.Finalize(optimisticID, done.UserMessage, done.AIMessage) {
		s.logger.Warn("optimistic message already resolved", "optimistic_id", optimisticID)
	}

	return &Outcome{
		State:       StateCompleted,
		UserMessage: done.UserMessage,
		AIMessage:   done.AIMessage,
	}
}

func (s *Session) failed(optimisticID string, err error) (*Outcome, error) {
	s.conv.Rollback(optimisticID)
	s.logger.Debug("send failed", "error", err)

	return &Outcome{State: StateFailed, Err: err}, err
}

func (s *Session) cancelled(optimisticID string) *Outcome {
	s.conv.Rollback(optimisticID)

	return &Outcome{State: StateCancelled}
}

// release runs on every exit from Send, after the body is closed. The terminal
// state is written last: until then Send rejects new sends.
func (s *Session) release(cancel context.CancelFunc, outcome *Outcome) {
	cancel()

	s.mu.Lock()
	s.cancel = nil
	hadText := s.text.Len() > 0
	hadStatus := s.status != ""
	s.text.Reset()
	s.status = ""
	s.mu.Unlock()

	if hadText {
		s.observer.OnStreamingText("")
	}
	if hadStatus {
		s.observer.OnStatus("")
	}

	state := StateFailed
	if outcome != nil {
		state = outcome.State
	}
	s.setState(state)
}

func asTransportError(err error) error {
	var (
		transportErr    *chat.TransportError
		protocolErr     *chat.ProtocolError
		preconditionErr *chat.PreconditionError
	)
	if errors.As(err, &transportErr) || errors.As(err, &protocolErr) || errors.As(err, &preconditionErr) {
		return err
	}
	return &chat.TransportError{Err: err}
}
