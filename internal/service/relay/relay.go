package relay

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/lumen/backend/internal/model/chat"
	"github.com/zhouzirui/lumen/backend/internal/model/profile"
	"github.com/zhouzirui/lumen/backend/internal/service/ai"
)

// Streamer opens one provider completion for a transcript.
type Streamer interface {
	StreamReply(ctx context.Context, p profile.Profile, transcript chat.Transcript) (ai.FragmentStream, error)
}

// Sink receives the output of one relay session. Begin is called at most once, before any
// Fragment; End or Abort terminate the session. A write error means the caller is gone.
type Sink interface {
	Begin(messageID string) error
	Fragment(text string) error
	End() error
	Abort(err *Error)
}

// Relay forwards a transcript to the provider under a fixed behavior profile and re-emits the
// generated fragments as they arrive. It keeps no state between calls to Run.
type Relay struct {
	streamer Streamer
	profile  profile.Profile
	timeout  time.Duration
	logger   logrus.FieldLogger
	newID    func() string
}

// New creates a Relay. timeout bounds each Run from start to stream close.
func New(streamer Streamer, p profile.Profile, timeout time.Duration, logger logrus.FieldLogger) *Relay {
	return &Relay{
		streamer: streamer,
		profile:  p,
		timeout:  timeout,
		logger:   logger.WithField("component", "relay"),
		newID:    uuid.NewString,
	}
}

// Profile returns the behavior profile injected into every session.
func (r *Relay) Profile() profile.Profile {
	return r.profile
}

// Timeout returns the per-session deadline.
func (r *Relay) Timeout() time.Duration {
	return r.timeout
}

type fragment struct {
	text string
	err  error
}

type sessionStats struct {
	fragments int
	bytes     int
	started   time.Time
}

// Run relays one session into sink. Failures before sink.Begin leave the sink untouched and
// are returned for the caller to report; failures after it are signalled through sink.Abort
// (except KindCallerGone) and returned as well.
func (r *Relay) Run(ctx context.Context, transcript chat.Transcript, sink Sink) error {
	if err := transcript.Validate(); err != nil {
		return NewError(KindMalformedRequest, err)
	}

	ctx, cancel := context.WithTimeoutCause(ctx, r.timeout, ErrTimeout)
	defer cancel()

	messageID := r.newID()
	log := r.logger.WithFields(logrus.Fields{
		"messageId": messageID,
		"profile":   r.profile.ID,
		"turns":     len(transcript),
	})
	stats := sessionStats{started: time.Now()}

	stream, err := r.open(ctx, transcript)
	if err != nil {
		relayErr := r.failure(ctx, KindProviderUnavailable, err, false)
		r.logOutcome(log, stats, relayErr)
		return relayErr
	}

	// Close the provider stream once ctx ends, even if a pending Recv ignores ctx.
	stopClose := context.AfterFunc(ctx, stream.Close)
	defer stopClose()

	fragments := pump(ctx, stream)
	begun := false

	for {
		var next fragment
		var ok bool

		select {
		case <-ctx.Done():
			return r.finish(log, stats, sink, r.failure(ctx, "", nil, begun))
		case next, ok = <-fragments:
		}

		// The select may pick a ready fragment after the deadline fired.
		if ctx.Err() != nil {
			return r.finish(log, stats, sink, r.failure(ctx, "", nil, begun))
		}

		if !ok {
			// pump exits without a terminal value only when ctx is done, handled above.
			return r.finish(log, stats, sink, NewError(KindProviderStream, errors.New("stream closed without terminal marker")))
		}

		if next.err != nil && !errors.Is(next.err, io.EOF) {
			kind := KindProviderStream
			if !begun {
				kind = KindProviderUnavailable
			}
			return r.finish(log, stats, sink, r.failure(ctx, kind, next.err, begun))
		}

		if !begun {
			if err := sink.Begin(messageID); err != nil {
				return r.finish(log, stats, sink, r.failure(ctx, KindCallerGone, err, false))
			}
			begun = true
		}

		if errors.Is(next.err, io.EOF) {
			if err := sink.End(); err != nil {
				return r.finish(log, stats, sink, r.failure(ctx, KindCallerGone, err, true))
			}
			r.logOutcome(log, stats, nil)
			return nil
		}

		if err := sink.Fragment(next.text); err != nil {
			return r.finish(log, stats, sink, r.failure(ctx, KindCallerGone, err, true))
		}
		stats.fragments++
		stats.bytes += len(next.text)
	}
}

// failure classifies err. An expired context overrides kind: the deadline cause maps to
// KindTimeout, any other cancellation means the caller went away.
func (r *Relay) failure(ctx context.Context, kind Kind, err error, started bool) *Error {
	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		if errors.Is(cause, ErrTimeout) {
			kind = KindTimeout
			err = errors.Errorf("no completion within %s", r.timeout)
		} else {
			kind = KindCallerGone
			if err == nil {
				err = cause
			}
		}
	}
	return &Error{Kind: kind, Started: started, Err: err}
}

func (r *Relay) finish(log logrus.FieldLogger, stats sessionStats, sink Sink, relayErr *Error) error {
	if relayErr.Started && relayErr.Kind != KindCallerGone {
		sink.Abort(relayErr)
	}
	r.logOutcome(log, stats, relayErr)
	return relayErr
}

func (r *Relay) logOutcome(log logrus.FieldLogger, stats sessionStats, relayErr *Error) {
	entry := log.WithFields(logrus.Fields{
		"fragments": stats.fragments,
		"bytes":     stats.bytes,
		"duration":  time.Since(stats.started).String(),
	})

	if relayErr == nil {
		entry.WithField("outcome", "completed").Info("relay session finished")
		return
	}

	entry = entry.WithFields(logrus.Fields{
		"outcome": string(relayErr.Kind),
		"started": relayErr.Started,
	}).WithError(relayErr.Err)

	switch relayErr.Kind {
	case KindCallerGone:
		entry.Info("relay session abandoned by caller")
	default:
		entry.Warn("relay session failed")
	}
}

type opened struct {
	stream ai.FragmentStream
	err    error
}

// open starts the completion without letting a stalled provider outlive ctx. A stream that
// arrives after ctx ended is closed unread.
func (r *Relay) open(ctx context.Context, transcript chat.Transcript) (ai.FragmentStream, error) {
	result := make(chan opened, 1)
	go func() {
		stream, err := r.streamer.StreamReply(ctx, r.profile, transcript)
		result <- opened{stream: stream, err: err}
	}()

	select {
	case res := <-result:
		return res.stream, res.err
	case <-ctx.Done():
		go func() {
			if res := <-result; res.stream != nil {
				res.stream.Close()
			}
		}()
		return nil, context.Cause(ctx)
	}
}

// pump pulls fragments from the provider one at a time, only as fast as the relay consumes
// them. It owns the stream and closes it on exit.
func pump(ctx context.Context, stream ai.FragmentStream) <-chan fragment {
	out := make(chan fragment)

	go func() {
		defer close(out)
		defer stream.Close()

		for {
			text, err := stream.Recv()
			select {
			case out <- fragment{text: text, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	return out
}
