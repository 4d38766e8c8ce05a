package registration

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"yam/internal/platform/identity"
)

const defaultSessionWait = 2 * time.Second

// Options parameterize the flow for the different invite delivery variants.
type Options struct {
	// SessionWait bounds the checking_session phase. Past it, a flow that
	// still has no definitive session answer fails rather than hang on a
	// notification that may never arrive.
	SessionWait time.Duration

	// RequireIdentity holds validation until a session exists. When false
	// (query-token delivery with a separate sign-up step) validation runs
	// anonymously and the email match is enforced at commit time.
	RequireIdentity bool
}

// Deps are the collaborators a flow orchestrates. Sessions is the explicit
// session-manager instance; Validator and Committer are satisfied by the
// concrete types in this package.
type Deps struct {
	Sessions  identity.SessionManager
	Validator InviteValidator
	Committer ActivationCommitter
}

type InviteValidator interface {
	Validate(token string, ident *identity.Identity, now time.Time) Outcome
}

type ActivationCommitter interface {
	Commit(resolved *ResolvedInvitation, ident *identity.Identity, password string) CommitResult
}

type flowEventKind int

const (
	evSessionSnapshot flowEventKind = iota
	evSignedIn
	evSignedOut
	evUserUpdated
	evSessionTimeout
	evValidationDone
	evSubmit
	evCommitDone
)

// flowEvent is the tagged event the reducer consumes. Completion events carry
// the epoch of the input pair they were computed against; a stale epoch means
// the result is discarded, never merged.
type flowEvent struct {
	kind     flowEventKind
	identity *identity.Identity
	epoch    uint64
	outcome  Outcome
	result   CommitResult
	password string
}

// Flow is one invitation-redemption attempt. All state mutations happen in a
// single reducer goroutine; everything asynchronous funnels through the event
// channel, so no mutation ever races another.
type Flow struct {
	ID string

	opts      Options
	sessions  identity.SessionManager
	validator InviteValidator
	committer ActivationCommitter

	events      chan flowEvent
	done        chan struct{}
	closeOnce   sync.Once
	unsubscribe func()
	waitTimer   *time.Timer

	mu    sync.RWMutex
	state State

	// Reducer-owned; never touched outside the run goroutine.
	token          string
	identity       *identity.Identity
	sessionSettled bool
	epoch          uint64
}

// New builds a flow for the given page URL and starts it. The id doubles as
// the client scope the session manager was created with; when empty a fresh
// one is generated. Token resolution is synchronous: a URL without a token is
// terminal immediately, before any subscription or lookup is made.
func New(id, pageURL string, deps Deps, opts Options) *Flow {
	if opts.SessionWait <= 0 {
		opts.SessionWait = defaultSessionWait
	}
	if id == "" {
		id = "reg_" + uuid.NewString()
	}

	f := &Flow{
		ID:        id,
		opts:      opts,
		sessions:  deps.Sessions,
		validator: deps.Validator,
		committer: deps.Committer,
		events:    make(chan flowEvent, 16),
		done:      make(chan struct{}),
	}

	token, ok := ResolveToken(pageURL)
	if !ok {
		f.state = State{Status: StatusInvalidInvite, Failure: FailureTokenMissing, ErrorMessage: FailureTokenMissing.Message()}
		go f.run()
		return f
	}

	f.token = token
	f.state = State{Status: StatusCheckingSession}
	go f.run()

	f.unsubscribe = f.sessions.Subscribe(func(e identity.SessionEvent) {
		switch e.Kind {
		case identity.EventSignedIn:
			f.post(flowEvent{kind: evSignedIn, identity: e.Identity})
		case identity.EventSignedOut:
			f.post(flowEvent{kind: evSignedOut})
		case identity.EventUserUpdated:
			f.post(flowEvent{kind: evUserUpdated, identity: e.Identity})
		}
	})

	// One-shot pull alongside the push subscription.
	go func() {
		ident, err := f.sessions.CurrentIdentity()
		if err != nil {
			log.Warn().Err(err).Str("flow_id", f.ID).Msg("session pull failed")
			ident = nil
		}
		f.post(flowEvent{kind: evSessionSnapshot, identity: ident})
	}()

	f.waitTimer = time.AfterFunc(opts.SessionWait, func() {
		f.post(flowEvent{kind: evSessionTimeout})
	})

	return f
}

// State returns a snapshot of the current flow state.
func (f *Flow) State() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

// SubmitPassword requests activation. Ignored unless the flow is in
// ready_for_password, which also makes double submission a no-op.
func (f *Flow) SubmitPassword(password string) {
	f.post(flowEvent{kind: evSubmit, password: password})
}

// Close tears the flow down: the session subscription is released
// unconditionally, regardless of which state the flow exits in.
func (f *Flow) Close() {
	f.closeOnce.Do(func() {
		if f.waitTimer != nil {
			f.waitTimer.Stop()
		}
		if f.unsubscribe != nil {
			f.unsubscribe()
		}
		close(f.done)
	})
}

func (f *Flow) post(e flowEvent) {
	select {
	case f.events <- e:
	case <-f.done:
	}
}

func (f *Flow) run() {
	for {
		select {
		case e := <-f.events:
			f.handle(e)
		case <-f.done:
			return
		}
	}
}

func (f *Flow) setState(st State) {
	f.mu.Lock()
	f.state = st
	f.mu.Unlock()
}

func (f *Flow) status() Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state.Status
}

func (f *Flow) fail(code FailureCode) {
	f.mu.Lock()
	f.state.Status = StatusInvalidInvite
	f.state.Failure = code
	f.state.ErrorMessage = code.Message()
	f.state.RedirectPath = ""
	f.mu.Unlock()
}

func (f *Flow) handle(e flowEvent) {
	switch e.kind {
	case evSessionSnapshot:
		f.sessionSettled = true
		if e.identity != nil {
			f.applyIdentity(e.identity)
			return
		}
		// No session yet. With anonymous validation allowed, proceed; the
		// email match is re-checked at commit. Otherwise keep waiting for a
		// sign-in until the bounded wait elapses.
		if f.status() == StatusCheckingSession && !f.opts.RequireIdentity {
			f.startValidation()
		}

	case evSignedIn, evUserUpdated:
		if e.identity == nil {
			return
		}
		f.applyIdentity(e.identity)

	case evSignedOut:
		if f.status() == StatusRedirected {
			return
		}
		f.identity = nil
		f.epoch++
		f.fail(FailureSessionEnded)

	case evSessionTimeout:
		if f.status() == StatusCheckingSession {
			log.Debug().Str("flow_id", f.ID).Msg("session wait elapsed without a sign-in")
			f.fail(FailureMissingSession)
		}

	case evValidationDone:
		if e.epoch != f.epoch {
			// Computed against inputs that no longer match; drop it.
			return
		}
		if f.status() != StatusValidatingInvite {
			return
		}
		if e.outcome.OK {
			f.mu.Lock()
			f.state.Status = StatusReadyForPassword
			f.state.Invitation = e.outcome.Invitation
			f.state.Failure = ""
			f.state.ErrorMessage = ""
			f.mu.Unlock()
		} else {
			f.fail(e.outcome.Failure)
		}

	case evSubmit:
		if f.status() != StatusReadyForPassword {
			return
		}
		f.mu.Lock()
		f.state.Status = StatusSubmitting
		f.state.ErrorMessage = ""
		resolved := f.state.Invitation
		f.mu.Unlock()

		epoch := f.epoch
		ident := f.identity
		password := e.password
		go func() {
			result := f.committer.Commit(resolved, ident, password)
			f.post(flowEvent{kind: evCommitDone, epoch: epoch, result: result})
		}()

	case evCommitDone:
		if e.epoch != f.epoch {
			return
		}
		if f.status() != StatusSubmitting {
			return
		}
		f.finishCommit(e.result)
	}
}

// applyIdentity records a new identity and restarts validation. The status is
// only reset when the flow is not already in a terminal or in-progress state,
// and an unchanged identity is a no-op so revalidation stays idempotent.
func (f *Flow) applyIdentity(ident *identity.Identity) {
	switch f.status() {
	case StatusInvalidInvite, StatusRedirected, StatusSubmitting, StatusError:
		return
	}

	if f.identity != nil && f.identity.UserID == ident.UserID && f.identity.Email == ident.Email {
		return
	}

	f.identity = ident
	f.epoch++
	f.mu.Lock()
	f.state.Identity = ident
	f.mu.Unlock()
	f.startValidation()
}

func (f *Flow) startValidation() {
	if f.token == "" {
		return
	}
	if f.opts.RequireIdentity && f.identity == nil {
		return
	}

	f.mu.Lock()
	f.state.Status = StatusValidatingInvite
	f.mu.Unlock()

	epoch := f.epoch
	token := f.token
	ident := f.identity
	go func() {
		outcome := f.validator.Validate(token, ident, time.Now())
		f.post(flowEvent{kind: evValidationDone, epoch: epoch, outcome: outcome})
	}()
}

func (f *Flow) finishCommit(result CommitResult) {
	if result.OK() {
		f.mu.Lock()
		f.state.Status = StatusRedirected
		f.state.RedirectPath = result.RedirectPath
		f.state.Failure = ""
		f.state.ErrorMessage = ""
		f.mu.Unlock()
		// Redirect is terminal; release the subscription now rather than
		// waiting for the registry sweep.
		f.Close()
		return
	}

	switch result.Failure {
	case FailurePasswordUpdate:
		f.mu.Lock()
		if f.state.Invitation != nil {
			// Recoverable: back to the form with the message.
			f.state.Status = StatusReadyForPassword
		} else {
			f.state.Status = StatusError
		}
		f.state.Failure = result.Failure
		f.state.ErrorMessage = result.Message
		f.mu.Unlock()

	case FailureRedirectData:
		// Data-integrity problem, distinct from a bad invitation.
		f.mu.Lock()
		f.state.Status = StatusError
		f.state.Failure = result.Failure
		f.state.ErrorMessage = result.Message
		f.mu.Unlock()

	case FailureEmailMismatch, FailureMissingSession:
		f.fail(result.Failure)

	default:
		f.mu.Lock()
		f.state.Status = StatusError
		f.state.Failure = result.Failure
		f.state.ErrorMessage = result.Message
		f.mu.Unlock()
	}
}
