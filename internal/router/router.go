package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gxvn1/GxvnsChatApp/internal/identity"
	"github.com/gxvn1/GxvnsChatApp/internal/metrics"
	"github.com/gxvn1/GxvnsChatApp/internal/presence"
	"github.com/gxvn1/GxvnsChatApp/internal/protocol"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second

	supersededReason = "signed in from another device"
	shutdownReason   = "server shutting down"
)

// Routing outcomes recorded per inbound frame.
const (
	outcomeOK            = "ok"
	outcomeDropped       = "dropped"
	outcomeAuthFailed    = "auth_failed"
	outcomeGroupNotFound = "group_not_found"
	outcomeGroupExists   = "group_exists"
	outcomeUnrecognized  = "unrecognized"
)

// routerCmd is the command interface for the Router actor.
type routerCmd interface{ isRouterCmd() }

type baseRouterCmd struct{}

func (baseRouterCmd) isRouterCmd() {}

type bindCmd struct {
	baseRouterCmd
	sess     *Session
	username string
	done     chan struct{}
}

type disconnectCmd struct {
	baseRouterCmd
	sess *Session
	// reply carries the username whose registry entry was removed, or ""
	// when the session was unauthenticated or already superseded.
	reply chan string
}

type routeCmd struct {
	baseRouterCmd
	sess *Session
	env  *protocol.Envelope
}

type friendNotifyCmd struct {
	baseRouterCmd
	requester string
	target    string
}

type countCmd struct {
	baseRouterCmd
	reply chan int
}

type stopCmd struct {
	baseRouterCmd
}

// Router owns the session registry and group table and applies the
// per-envelope dispatch rules.
type Router struct {
	cmdCh    chan routerCmd
	clock    clockwork.Clock
	store    identity.Store
	presence presence.Store
	registry *registry
	groups   *groupTable
	done     chan struct{}
}

// NewRouter starts the routing actor.
func NewRouter(store identity.Store, pres presence.Store, clock clockwork.Clock) *Router {
	r := &Router{
		cmdCh:    make(chan routerCmd, 256),
		clock:    clock,
		store:    store,
		presence: pres,
		registry: newRegistry(),
		groups:   newGroupTable(),
		done:     make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Router) run() {
	defer close(r.done)

	depthTicker := r.clock.NewTicker(1 * time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			metrics.CommandChannelDepth.Set(float64(len(r.cmdCh)))

		case cmd := <-r.cmdCh:
			switch c := cmd.(type) {
			case bindCmd:
				r.handleBind(c)
			case disconnectCmd:
				r.handleDisconnect(c)
			case routeCmd:
				r.handleRoute(c)
			case friendNotifyCmd:
				r.handleFriendNotify(c)
			case countCmd:
				c.reply <- r.registry.size()
			case stopCmd:
				r.handleStop()
				return
			default:
				slog.Warn("Router received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

// --- Public API (called from session goroutines) ---

// HandleFrame applies the dispatch rules to one decoded inbound envelope.
// Identity-store lookups run on the caller's goroutine; registry and group
// mutations are forwarded to the actor. Errors are surfaced as envelopes to
// the sender, never returned: no frame is fatal to the session.
func (r *Router) HandleFrame(ctx context.Context, sess *Session, env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeRegister:
		r.handleRegister(ctx, sess, env)
	case protocol.TypeLogin:
		r.handleLogin(ctx, sess, env)
	case protocol.TypeAddFriend:
		r.handleAddFriend(ctx, sess, env)
	case protocol.TypeMessage, protocol.TypeCallRequest, protocol.TypeScreenShare, protocol.TypeCreateGroup:
		r.cmdCh <- routeCmd{sess: sess, env: env}
	default:
		slog.WarnContext(ctx, "Dropping unrecognized envelope type", "type", env.Type)
		metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeUnrecognized).Inc()
	}
}

// Disconnect runs the idempotent per-connection teardown: the session leaves
// the registry (unless already superseded) and a user_offline announcement
// goes out to the remaining sessions.
func (r *Router) Disconnect(ctx context.Context, sess *Session) {
	reply := make(chan string, 1)
	r.cmdCh <- disconnectCmd{sess: sess, reply: reply}

	username := <-reply
	if username == "" {
		return
	}
	if err := r.presence.TouchOffline(ctx, username); err != nil {
		slog.WarnContext(ctx, "Failed to record offline presence", "username", username, "error", err)
	}
}

// SessionCount returns the number of logged-in sessions, or -1 on timeout.
func (r *Router) SessionCount() int {
	reply := make(chan int, 1)
	r.cmdCh <- countCmd{reply: reply}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-reply:
		return n
	case <-timer.Chan():
		slog.Warn("SessionCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop shuts down the actor and closes every registered session.
func (r *Router) Stop() {
	r.cmdCh <- stopCmd{}

	timer := r.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-r.done:
		slog.Info("Router stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Router stop timeout exceeded", "timeout", stopTimeout)
	}
}

// --- Auth handlers (identity-store I/O on the caller's goroutine) ---

func (r *Router) handleRegister(ctx context.Context, sess *Session, env *protocol.Envelope) {
	if env.Username == "" || env.Password == "" {
		r.reply(sess, protocol.NewRegisterResponse(false, "Username and password required"))
		metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeAuthFailed).Inc()
		return
	}

	err := r.store.Create(ctx, env.Username, env.Password)
	switch {
	case errors.Is(err, identity.ErrUsernameTaken):
		r.reply(sess, protocol.NewRegisterResponse(false, "Username already exists"))
		metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeAuthFailed).Inc()
	case err != nil:
		slog.ErrorContext(ctx, "Failed to create user", "username", env.Username, "error", err)
		r.reply(sess, protocol.NewRegisterResponse(false, "Registration failed"))
		metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeAuthFailed).Inc()
	default:
		slog.InfoContext(ctx, "User registered", "username", env.Username)
		r.reply(sess, protocol.NewRegisterResponse(true, ""))
		metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeOK).Inc()
	}
}

func (r *Router) handleLogin(ctx context.Context, sess *Session, env *protocol.Envelope) {
	ok, err := r.store.Verify(ctx, env.Username, env.Password)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to verify credentials", "error", err)
		ok = false
	}
	if !ok {
		// Same response for wrong password and unknown user.
		r.reply(sess, protocol.NewLoginResponse(false, "", nil, "Invalid username or password"))
		metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeAuthFailed).Inc()
		return
	}

	friends, err := r.store.FriendsOf(ctx, env.Username)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load friends", "username", env.Username, "error", err)
		friends = nil
	}

	// Bind before replying so a lookup for this user already sees the new
	// session once the client observes its login_response.
	done := make(chan struct{})
	r.cmdCh <- bindCmd{sess: sess, username: env.Username, done: done}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.Chan():
		slog.ErrorContext(ctx, "Login bind timed out", "username", env.Username)
		r.reply(sess, protocol.NewLoginResponse(false, "", nil, "Login failed"))
		return
	}

	r.reply(sess, protocol.NewLoginResponse(true, env.Username, friends, ""))
	metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeOK).Inc()

	if err := r.presence.TouchOnline(ctx, env.Username); err != nil {
		slog.WarnContext(ctx, "Failed to record online presence", "username", env.Username, "error", err)
	}
}

func (r *Router) handleAddFriend(ctx context.Context, sess *Session, env *protocol.Envelope) {
	requester := sess.Username()
	if requester == "" || env.Friend == "" || env.Friend == requester {
		metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeDropped).Inc()
		return
	}

	err := r.store.AddFriendPair(ctx, requester, env.Friend)
	if errors.Is(err, identity.ErrUnknownUser) {
		// Unknown target fails silently: no error envelope.
		metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeDropped).Inc()
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "Failed to add friend pair", "requester", requester, "friend", env.Friend, "error", err)
		metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeDropped).Inc()
		return
	}

	metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeOK).Inc()
	r.cmdCh <- friendNotifyCmd{requester: requester, target: env.Friend}
}

func (r *Router) reply(sess *Session, env *protocol.Envelope) {
	data, err := protocol.Encode(env)
	if err != nil {
		slog.Error("Failed to encode reply", "type", env.Type, "error", err)
		return
	}
	if err := sess.Send(data); err != nil {
		metrics.DeliveryFailuresTotal.Inc()
	}
}

// --- Actor handlers (single goroutine, own registry and groups) ---

func (r *Router) handleBind(c bindCmd) {
	defer close(c.done)

	// A session re-authenticating under a different name gives up its old slot.
	if prev := c.sess.Username(); prev != "" && prev != c.username {
		r.registry.remove(prev, c.sess)
	}

	old := r.registry.bind(c.username, c.sess)
	c.sess.setUsername(c.username)

	if old != nil {
		metrics.SupersessionsTotal.Inc()
		slog.Info("Session superseded", "username", c.username, "old_conn", old.ID().String(), "new_conn", c.sess.ID().String())
		old.writer.stopGraceful(supersededReason)
	}

	metrics.ActiveSessions.Set(float64(r.registry.size()))
	slog.Info("User online", "username", c.username, "sessions", r.registry.size())

	if data, err := protocol.Encode(protocol.NewPresence(protocol.TypeUserOnline, c.username)); err == nil {
		r.fanOut(data, c.sess)
	}
}

func (r *Router) handleDisconnect(c disconnectCmd) {
	username := c.sess.Username()
	removed := username != "" && r.registry.remove(username, c.sess)
	c.sess.Close()

	if !removed {
		c.reply <- ""
		return
	}

	metrics.ActiveSessions.Set(float64(r.registry.size()))
	slog.Info("User offline", "username", username, "sessions", r.registry.size())

	if data, err := protocol.Encode(protocol.NewPresence(protocol.TypeUserOffline, username)); err == nil {
		r.fanOut(data, nil)
	}
	c.reply <- username
}

func (r *Router) handleRoute(c routeCmd) {
	switch c.env.Type {
	case protocol.TypeMessage:
		r.routeMessage(c.sess, c.env)
	case protocol.TypeCallRequest, protocol.TypeScreenShare:
		r.routeSignaling(c.sess, c.env)
	case protocol.TypeCreateGroup:
		r.routeCreateGroup(c.sess, c.env)
	}
}

func (r *Router) routeMessage(sender *Session, env *protocol.Envelope) {
	// Sender identity and timestamp come from the server, not the frame.
	out := *env
	out.Raw = nil
	out.Username = sender.Username()
	out.Timestamp = protocol.Stamp(r.clock.Now())

	data, err := protocol.Encode(&out)
	if err != nil {
		slog.Error("Failed to encode message", "error", err)
		return
	}

	switch {
	case env.Group != "":
		members, err := r.groups.membersOf(env.Group)
		if errors.Is(err, ErrGroupNotFound) {
			r.reply(sender, protocol.NewSystemNotice(fmt.Sprintf("Group %q not found", env.Group)))
			metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeGroupNotFound).Inc()
			return
		}
		for _, member := range members {
			if member == sender.Username() {
				continue
			}
			if target := r.registry.lookup(member); target != nil {
				r.deliver(target, data)
			}
		}
		metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeOK).Inc()

	case env.To != "":
		target := r.registry.lookup(env.To)
		if target == nil {
			// No session for the recipient: silently dropped, no notice.
			metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeDropped).Inc()
			return
		}
		r.deliver(target, data)
		metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeOK).Inc()

	default:
		for _, target := range r.registry.snapshot() {
			if target == sender {
				continue
			}
			r.deliver(target, data)
		}
		metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeOK).Inc()
	}
}

// routeSignaling forwards call_request and screen_share frames byte-identical
// to the named recipient so opaque payload fields survive untouched.
func (r *Router) routeSignaling(sender *Session, env *protocol.Envelope) {
	if env.To == "" {
		slog.Warn("Dropping signaling envelope without recipient", "type", env.Type, "from", sender.Username())
		metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeDropped).Inc()
		return
	}

	target := r.registry.lookup(env.To)
	if target == nil {
		metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeDropped).Inc()
		return
	}

	r.deliver(target, env.Raw)
	metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeOK).Inc()
}

func (r *Router) routeCreateGroup(sender *Session, env *protocol.Envelope) {
	if env.GroupName == "" || len(env.Members) == 0 {
		r.reply(sender, protocol.NewSystemNotice("Group name and members required"))
		metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeDropped).Inc()
		return
	}

	if err := r.groups.create(env.GroupName, env.Members); err != nil {
		r.reply(sender, protocol.NewSystemNotice(fmt.Sprintf("Group %q already exists", env.GroupName)))
		metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeGroupExists).Inc()
		return
	}

	slog.Info("Group created", "group", env.GroupName, "members", len(env.Members), "creator", sender.Username())
	metrics.FramesRoutedTotal.WithLabelValues(env.Type, outcomeOK).Inc()

	announcement := protocol.NewGroupCreated(env.GroupName, env.Members, sender.Username())
	data, err := protocol.Encode(announcement)
	if err != nil {
		slog.Error("Failed to encode group announcement", "error", err)
		return
	}
	// All initial members get the announcement, the creator included when
	// they are a member.
	for _, member := range env.Members {
		if target := r.registry.lookup(member); target != nil {
			r.deliver(target, data)
		}
	}
}

func (r *Router) handleFriendNotify(c friendNotifyCmd) {
	if target := r.registry.lookup(c.requester); target != nil {
		r.reply(target, &protocol.Envelope{Type: protocol.TypeFriendAdded, Friend: c.target})
	}
	if target := r.registry.lookup(c.target); target != nil {
		r.reply(target, &protocol.Envelope{Type: protocol.TypeFriendRequest, From: c.requester})
	}
}

// deliver writes one frame to one session. A dead or saturated channel is a
// delivery failure: the entry leaves the registry immediately so dead
// channels never accumulate, and remaining targets are unaffected.
func (r *Router) deliver(target *Session, data []byte) {
	if err := target.Send(data); err != nil {
		metrics.DeliveryFailuresTotal.Inc()
		username := target.Username()
		slog.Warn("Delivery failed, removing session", "username", username, "error", err)
		if username != "" {
			r.registry.remove(username, target)
			metrics.ActiveSessions.Set(float64(r.registry.size()))
		}
		target.writer.stop()
		return
	}
	metrics.EnvelopesDeliveredTotal.Inc()
}

func (r *Router) fanOut(data []byte, exclude *Session) {
	for _, target := range r.registry.snapshot() {
		if target == exclude {
			continue
		}
		r.deliver(target, data)
	}
}

func (r *Router) handleStop() {
	for _, sess := range r.registry.snapshot() {
		r.registry.remove(sess.Username(), sess)
		sess.writer.stopGraceful(shutdownReason)
	}
	metrics.ActiveSessions.Set(0)
	slog.Info("Router shutdown complete")
}
