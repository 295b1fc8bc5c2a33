package session

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

// Status is the controller's lifecycle state.
type Status string

const (
	StatusInitializing    Status = "initializing"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
)

const (
	msgPolicyDenied    = "Security error: unable to load your user profile. Contact your administrator."
	msgProfileNotFound = "No user profile was found for your account. Contact your administrator."
	msgInitFailed      = "Unable to initialize authentication."
)

const eventBufferSize = 64

// State is the read-only tuple the controller publishes to consumers.
type State struct {
	Session   *SessionObject
	Profile   *Profile
	Loading   bool
	AuthError string
}

// Role returns the published profile's role, or empty when no profile is set.
func (s State) Role() UserRole {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.Role
}

// IsAuthenticated reports whether a session is present.
func (s State) IsAuthenticated() bool {
	return s.Session != nil
}

func (s State) IsAdmin() bool        { return s.Role() == RoleAdmin }
func (s State) IsAuditor() bool      { return s.Role() == RoleAuditor }
func (s State) IsViewer() bool       { return s.Role() == RoleViewer }
func (s State) IsSupervisorIT() bool { return s.Role() == RoleSupervisorIT }

// HasRole checks if the published role matches any of the given roles.
func (s State) HasRole(roles ...UserRole) bool {
	role := s.Role()
	for _, r := range roles {
		if role == r {
			return true
		}
	}
	return false
}

// Controller is the session lifecycle state machine. It owns the published
// State, consumes identity provider events in delivery order, and arms the
// inactivity watchdog while a session exists.
type Controller struct {
	provider     IdentityProvider
	resolver     *Resolver
	cache        *ProfileCache
	watchdog     *Watchdog
	logger       Logger
	logProvider  LoggerProvider
	activitySink ActivitySink
	onChange     func(State)
	now          func() time.Time
	transitions  map[Status]map[Status]struct{}

	mu     sync.Mutex
	status Status
	state  State
	// epoch guards against stale async resolutions: every resolution
	// captures the epoch at launch and re-checks it before publishing.
	epoch uint64

	watchdogOpts []WatchdogOption
	unsubscribe  func()
	done         chan struct{}
	closeOnce    sync.Once
}

// ControllerOption customizes controller construction.
type ControllerOption func(*Controller)

// WithControllerLogger overrides the controller logger.
func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) {
		c.logProvider, c.logger = ResolveLogger("session.controller", c.logProvider, logger)
	}
}

// WithControllerLoggerProvider overrides the logger provider used by the
// controller.
func WithControllerLoggerProvider(provider LoggerProvider) ControllerOption {
	return func(c *Controller) {
		c.logProvider, c.logger = ResolveLogger("session.controller", provider, c.logger)
	}
}

// WithControllerClock injects a custom clock (useful for tests).
func WithControllerClock(clock func() time.Time) ControllerOption {
	return func(c *Controller) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish lifecycle events.
func WithActivitySink(sink ActivitySink) ControllerOption {
	return func(c *Controller) {
		c.activitySink = normalizeActivitySink(sink)
	}
}

// WithOnChange registers a callback invoked with a State snapshot on every
// published change.
func WithOnChange(fn func(State)) ControllerOption {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// WithWatchdogOptions forwards options to the controller's watchdog.
func WithWatchdogOptions(opts ...WatchdogOption) ControllerOption {
	return func(c *Controller) {
		c.watchdogOpts = append(c.watchdogOpts, opts...)
	}
}

// NewController wires the lifecycle controller to its collaborators. Call
// Start to run the startup protocol and begin consuming provider events.
func NewController(provider IdentityProvider, resolver *Resolver, cache *ProfileCache, opts ...ControllerOption) *Controller {
	logProvider, logger := ResolveLogger("session.controller", nil, nil)

	c := &Controller{
		provider:     provider,
		resolver:     resolver,
		cache:        cache,
		logger:       logger,
		logProvider:  logProvider,
		activitySink: noopActivitySink{},
		now:          time.Now,
		status:       StatusInitializing,
		state:        State{Loading: true},
		epoch:        1,
		done:         make(chan struct{}),
		transitions: map[Status]map[Status]struct{}{
			StatusInitializing: {
				StatusAuthenticated:   {},
				StatusUnauthenticated: {},
			},
			StatusAuthenticated: {
				StatusUnauthenticated: {},
			},
			StatusUnauthenticated: {
				StatusAuthenticated: {},
			},
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	wopts := append([]WatchdogOption{WithWatchdogLogger(c.logProvider.GetLogger("session.watchdog"))}, c.watchdogOpts...)
	c.watchdog = NewWatchdog(c.watchdogExpired, wopts...)

	return c
}

// Start subscribes to provider events, runs the startup protocol, and begins
// dispatching events in delivery order. It must be called once.
func (c *Controller) Start(ctx context.Context) error {
	events := make(chan AuthEvent, eventBufferSize)

	unsubscribe, err := c.provider.Subscribe(func(evt AuthEvent) {
		select {
		case events <- evt:
		case <-c.done:
		}
	})
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to subscribe to identity provider events")
	}
	c.unsubscribe = unsubscribe

	c.bootstrap(ctx)

	go c.dispatch(ctx, events)

	return nil
}

// Close tears the controller down. Resolutions still in flight will be
// discarded rather than published.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		c.watchdog.Disarm()
		c.mu.Lock()
		c.epoch++
		c.mu.Unlock()
	})
}

// CurrentState returns a snapshot of the published tuple.
func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns the controller's lifecycle state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// RecordActivity is the generic activity input port. Qualifying signals
// postpone the inactivity deadline; everything else is ignored.
func (c *Controller) RecordActivity(signal ActivitySignal) {
	if !QualifiesAsActivity(signal) {
		c.logger.Trace("ignoring non-qualifying activity signal", "signal", string(signal))
		return
	}
	c.watchdog.Touch()
}

// SignOut ends the session: the watchdog is disarmed, the provider sign-out
// is requested best-effort, and local state plus the profile cache are
// cleared unconditionally. Local logout always succeeds.
func (c *Controller) SignOut(ctx context.Context) {
	c.mu.Lock()
	userID := ""
	if c.state.Session != nil {
		userID = c.state.Session.GetUserID()
	}
	c.mu.Unlock()

	c.signOutLocal(ctx, userID, ActivityEventSignedOut, nil, 0)
}

// bootstrap runs the startup protocol: load any existing session, resolve
// its profile, and exit INITIALIZING exactly once.
func (c *Controller) bootstrap(ctx context.Context) {
	sess, err := c.provider.CurrentSession(ctx)
	if err != nil {
		c.logger.Error("unable to load initial session", "error", err)
		c.mu.Lock()
		c.state.AuthError = msgInitFailed
		c.state.Loading = false
		c.setStatusLocked(StatusUnauthenticated)
		c.mu.Unlock()
		c.notify()
		return
	}

	if sess == nil {
		c.mu.Lock()
		c.state.Loading = false
		c.setStatusLocked(StatusUnauthenticated)
		c.mu.Unlock()
		c.notify()
		return
	}

	c.logger.Info("initial session found, resolving profile", "user_id", sess.GetUserID())

	profile, err := c.resolver.Resolve(ctx, sess.GetUserID())
	if err != nil {
		c.logger.Error("unable to resolve profile during startup, forcing sign out",
			"user_id", sess.GetUserID(), "error", err)
		c.signOutLocal(ctx, sess.GetUserID(), ActivityEventForcedSignOut, err, 0)
		return
	}

	c.mu.Lock()
	c.state.Session = sess
	c.state.Profile = profile
	c.state.AuthError = ""
	c.state.Loading = false
	c.setStatusLocked(StatusAuthenticated)
	c.mu.Unlock()

	c.watchdog.Arm()
	c.notify()
	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignedIn,
		UserID:    sess.GetUserID(),
	})
}

func (c *Controller) dispatch(ctx context.Context, events chan AuthEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case evt := <-events:
			c.handleEvent(ctx, evt)
		}
	}
}

func (c *Controller) handleEvent(ctx context.Context, evt AuthEvent) {
	c.logger.Debug("auth event received", "kind", string(evt.Kind))

	switch evt.Kind {
	case EventSignedIn, EventTokenRefreshed:
		c.handleSignedIn(ctx, evt)
	case EventSignedOut:
		c.handleSignedOut(ctx)
	case EventUserUpdated:
		c.handleUserUpdated(ctx)
	default:
		c.logger.Debug("unhandled auth event", "kind", string(evt.Kind))
	}
}

// handleSignedIn publishes the new session immediately, then resolves its
// profile asynchronously under the staleness guard.
func (c *Controller) handleSignedIn(ctx context.Context, evt AuthEvent) {
	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.state.Session = evt.Session
	c.state.Loading = evt.Session != nil
	c.mu.Unlock()
	c.notify()

	if evt.Session == nil {
		c.logger.Warn("sign-in event carried no session", "kind", string(evt.Kind))
		return
	}

	go c.completeSignIn(ctx, evt.Session.GetUserID(), epoch)
}

func (c *Controller) completeSignIn(ctx context.Context, userID string, epoch uint64) {
	profile, err := c.resolver.Resolve(ctx, userID)

	if err != nil {
		c.logger.Error("profile unavailable after sign in, ending session", "user_id", userID, "error", err)
		c.signOutLocal(ctx, userID, ActivityEventForcedSignOut, err, epoch)
		return
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		c.logger.Debug("discarding stale profile resolution", "user_id", userID)
		return
	}
	c.state.Profile = profile
	c.state.AuthError = ""
	c.state.Loading = false
	c.setStatusLocked(StatusAuthenticated)
	c.mu.Unlock()

	c.watchdog.Arm()
	c.notify()
	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignedIn,
		UserID:    userID,
	})
}

func (c *Controller) handleSignedOut(ctx context.Context) {
	c.watchdog.Disarm()

	c.mu.Lock()
	c.epoch++
	userID := ""
	if c.state.Session != nil {
		userID = c.state.Session.GetUserID()
	}
	// When the session is already gone this event is the provider echoing a
	// local sign-out; a forced sign-out message must survive it.
	retained := ""
	if c.state.Session == nil {
		retained = c.state.AuthError
	}
	c.state = State{AuthError: retained}
	c.setStatusLocked(StatusUnauthenticated)
	c.mu.Unlock()

	c.notify()
	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventSignedOut,
		UserID:    userID,
	})
}

// handleUserUpdated re-resolves the current profile. On failure the
// previously published profile stays: stale-but-valid beats no data.
func (c *Controller) handleUserUpdated(ctx context.Context) {
	c.mu.Lock()
	sess := c.state.Session
	epoch := c.epoch
	c.mu.Unlock()

	if sess == nil {
		c.logger.Debug("user update event with no active session")
		return
	}

	go c.refreshProfile(ctx, sess.GetUserID(), epoch)
}

func (c *Controller) refreshProfile(ctx context.Context, userID string, epoch uint64) {
	profile, err := c.resolver.Resolve(ctx, userID)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		c.logger.Debug("discarding stale profile refresh", "user_id", userID)
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("profile refresh failed, keeping published profile", "user_id", userID, "error", err)
		return
	}
	c.state.Profile = profile
	c.state.AuthError = ""
	c.mu.Unlock()
	c.notify()
}

// signOutLocal is the shared sign-out path. expectEpoch, when non-zero,
// makes the sign-out conditional on the resolution that requested it still
// being current. Local state clearing and cache purge run regardless of the
// provider call outcome.
func (c *Controller) signOutLocal(ctx context.Context, userID string, evtType ActivityEventType, cause error, expectEpoch uint64) {
	c.mu.Lock()
	if expectEpoch != 0 && expectEpoch != c.epoch {
		c.mu.Unlock()
		c.logger.Debug("discarding stale forced sign-out", "user_id", userID)
		return
	}
	c.epoch++
	c.mu.Unlock()

	c.watchdog.Disarm()

	if err := c.provider.SignOut(ctx); err != nil {
		c.logger.Error("provider sign out failed, clearing local state anyway", "error", err)
	}

	message := ""
	if cause != nil {
		message = userMessage(cause)
	}

	c.mu.Lock()
	c.state = State{AuthError: message}
	c.setStatusLocked(StatusUnauthenticated)
	c.mu.Unlock()

	if err := c.cache.PurgeAll(ctx); err != nil {
		c.logger.Error("profile cache purge failed", "error", err)
	}

	c.notify()

	event := ActivityEvent{EventType: evtType, UserID: userID}
	if cause != nil {
		event.Metadata = map[string]any{"reason": cause.Error()}
	}
	c.recordActivity(ctx, event)
}

func (c *Controller) watchdogExpired() {
	ctx := context.Background()

	c.mu.Lock()
	userID := ""
	if c.state.Session != nil {
		userID = c.state.Session.GetUserID()
	}
	c.mu.Unlock()

	c.logger.Info("signing out after inactivity", "user_id", userID)
	c.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventWatchdogExpired,
		UserID:    userID,
	})

	c.signOutLocal(ctx, userID, ActivityEventSignedOut, nil, 0)
}

func (c *Controller) setStatusLocked(target Status) {
	if c.status == target {
		return
	}
	if !c.canTransition(c.status, target) {
		c.logger.Error("invalid session status transition", "from", string(c.status), "to", string(target))
		return
	}
	c.status = target
}

func (c *Controller) canTransition(from, to Status) bool {
	if allowed, ok := c.transitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

func (c *Controller) notify() {
	if c.onChange == nil {
		return
	}
	c.mu.Lock()
	snapshot := c.state
	c.mu.Unlock()
	c.onChange(snapshot)
}

func (c *Controller) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = c.now()
	}

	sink := normalizeActivitySink(c.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		c.logger.Warn("controller activity sink error", "error", err)
	}
}

func userMessage(err error) string {
	switch {
	case IsProfileNotFoundError(err):
		return msgProfileNotFound
	case IsPolicyDenial(err):
		return msgPolicyDenied
	default:
		return msgInitFailed
	}
}
