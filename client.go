// Package discordrpc is a client for the Discord RPC protocol spoken by the
// local Discord application. It multiplexes concurrent requests and event
// subscriptions over a single connection: the framed IPC socket, or the
// local WebSocket server as a fallback.
package discordrpc

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// User is a Discord user as reported by READY and AUTHENTICATE.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator,omitempty"`
	GlobalName    string `json:"global_name,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
	Flags         int    `json:"flags,omitempty"`
	PremiumType   int    `json:"premium_type,omitempty"`
}

// Application is the OAuth2 application the client authenticated as.
type Application struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Icon        string   `json:"icon,omitempty"`
	Description string   `json:"description,omitempty"`
	RPCOrigins  []string `json:"rpc_origins,omitempty"`
}

type result struct {
	data json.RawMessage
	err  error
}

// connectAttempt tracks one Connect until READY arrives or the transport closes.
type connectAttempt struct {
	ready     chan struct{}
	closed    chan struct{}
	readyOnce sync.Once
	closeOnce sync.Once
	err       *CloseError
}

func newConnectAttempt() *connectAttempt {
	return &connectAttempt{ready: make(chan struct{}), closed: make(chan struct{})}
}

func (a *connectAttempt) markReady() {
	a.readyOnce.Do(func() { close(a.ready) })
}

func (a *connectAttempt) fail(err *CloseError) {
	a.closeOnce.Do(func() {
		a.err = err
		close(a.closed)
	})
}

// Client correlates requests with their responses over a Transport and
// routes event dispatches to subscriptions.
type Client struct {
	opts      options
	logger    Logger
	transport Transport
	metrics   *Metrics

	connectGroup singleflight.Group

	mu            sync.Mutex
	pending       map[string]chan result
	subscriptions map[string]*Subscription
	attempt       *connectAttempt
	connected     bool
	destroyed     bool
	clientID      string
	accessToken   string
	user          *User
	application   *Application
	endpoint      string
}

// New creates a client. TransportOption is required; an unknown or missing
// transport name fails with ErrInvalidTransport.
func New(opt ...Option) (*Client, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	if err := checkOptions(&opts); err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(opts.registerer)
	if err != nil {
		return nil, errors.Wrap(err, "register metrics")
	}

	c := &Client{
		opts:          opts,
		logger:        opts.logger,
		metrics:       metrics,
		pending:       make(map[string]chan result),
		subscriptions: make(map[string]*Subscription),
		endpoint:      opts.apiEndpoint,
	}
	if c.opts.registrar == nil {
		c.opts.registrar = c.noopRegistrar
	}

	factory, _ := lookupTransport(opts.transport)
	c.transport = factory(TransportConfig{
		Handler:      clientHandler{c},
		Logger:       opts.logger,
		Codec:        opts.codec,
		Metrics:      metrics,
		Origin:       opts.origin,
		MaxPayload:   opts.maxPayload,
		BufferSize:   opts.bufferSize,
		ConnectTries: opts.connectTries,
		IPCPath:      opts.ipcPath,
		WebSocketURL: opts.webSocketURL,
		HTTPClient:   opts.httpClient,
		EndpointURL:  opts.endpointURL,
		OnEndpoint:   c.setEndpoint,
	})

	return c, nil
}

// Connect opens the transport and waits for the READY dispatch. Concurrent
// calls share a single attempt; once connected it returns immediately. The
// attempt fails with ErrConnectionTimeout if READY does not arrive within
// the connect timeout. ctx only bounds how long this caller waits.
func (c *Client) Connect(ctx context.Context, clientID string) error {
	c.mu.Lock()
	destroyed, connected := c.destroyed, c.connected
	c.mu.Unlock()

	if destroyed {
		return errors.Wrap(ErrConnectionClosed, "client destroyed")
	}
	if connected {
		return nil
	}

	ch := c.connectGroup.DoChan("connect", func() (any, error) {
		return nil, c.connect(clientID)
	})

	select {
	case r := <-ch:
		return r.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) connect(clientID string) error {
	attempt := newConnectAttempt()

	c.mu.Lock()
	c.clientID = clientID
	c.attempt = attempt
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.connectTimeout)
	defer cancel()

	if err := c.transport.Connect(ctx, clientID); err != nil {
		c.abandon(attempt)
		return err
	}

	select {
	case <-attempt.ready:
		c.logger.Info("connected", "client_id", clientID)
		return nil
	case <-attempt.closed:
		return attempt.err
	case <-ctx.Done():
		c.abandon(attempt)
		c.logger.Warn("connect timed out", "client_id", clientID, "timeout", c.opts.connectTimeout)

		closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second)
		defer closeCancel()
		_ = c.transport.Close(closeCtx)

		return errors.Wrapf(ErrConnectionTimeout, "no READY within %s", c.opts.connectTimeout)
	}
}

// abandon detaches attempt so a late READY cannot complete it.
func (c *Client) abandon(attempt *connectAttempt) {
	c.mu.Lock()
	if c.attempt == attempt {
		c.attempt = nil
	}
	c.mu.Unlock()
}

// Request sends cmd with args and an optional event name, and waits for the
// response carrying the same nonce. Error responses are returned as
// *RPCError. Cancelling ctx abandons the call; without a deadline the call
// waits until the response arrives or the transport closes.
func (c *Client) Request(ctx context.Context, cmd string, args any, evt string) (json.RawMessage, error) {
	nonce := uuid.NewString()
	ch := make(chan result, 1)

	c.mu.Lock()
	c.pending[nonce] = ch
	c.mu.Unlock()
	c.metrics.requestStarted()

	if err := c.transport.Send(&Message{Cmd: cmd, Args: args, Evt: evt, Nonce: nonce}); err != nil {
		c.forget(nonce)
		c.metrics.requestDone(cmd, resultError)
		return nil, err
	}

	select {
	case r := <-ch:
		c.metrics.requestDone(cmd, resultOf(r.err))
		return r.data, r.err
	case <-ctx.Done():
		c.forget(nonce)
		c.metrics.requestDone(cmd, resultCanceled)
		return nil, ctx.Err()
	}
}

func (c *Client) forget(nonce string) {
	c.mu.Lock()
	delete(c.pending, nonce)
	c.mu.Unlock()
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, ErrConnectionClosed):
		return resultClosed
	default:
		return resultError
	}
}

// request sends a command and decodes the response data into out.
func (c *Client) request(ctx context.Context, cmd string, args any, out any) error {
	data, err := c.Request(ctx, cmd, args, "")
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(data, out), "decode %s response", cmd)
}

// handleMessage routes a decoded message: READY completes the connect
// attempt, a known nonce settles its pending call, anything else is an
// event dispatch.
func (c *Client) handleMessage(m *Message) {
	if m.Cmd == CmdDispatch && m.Evt == EventReady {
		c.handleReady(m)
		return
	}

	if m.Nonce != "" {
		c.mu.Lock()
		ch, ok := c.pending[m.Nonce]
		delete(c.pending, m.Nonce)
		c.mu.Unlock()

		if ok {
			if m.IsError() {
				ch <- result{err: newRPCError(m.Data)}
			} else {
				ch <- result{data: m.Data}
			}
			return
		}
		if m.Cmd != CmdDispatch {
			c.logger.Debug("dropping response without pending request", "cmd", m.Cmd, "nonce", m.Nonce)
			return
		}
	}

	c.dispatch(m)
}

func (c *Client) handleReady(m *Message) {
	var ready struct {
		User *User `json:"user"`
	}
	if len(m.Data) > 0 {
		if err := json.Unmarshal(m.Data, &ready); err != nil {
			c.logger.Warn("malformed READY payload", "error", err)
		}
	}

	c.mu.Lock()
	attempt := c.attempt
	if attempt == nil {
		c.mu.Unlock()
		c.logger.Debug("ignoring READY without a connect attempt")
		return
	}
	if ready.User != nil {
		c.user = ready.User
	}
	c.connected = true
	c.mu.Unlock()

	attempt.markReady()
}

// dispatch delivers an event to the subscriptions whose filter matches it.
func (c *Client) dispatch(m *Message) {
	c.mu.Lock()
	var matched []*Subscription
	for _, s := range c.subscriptions {
		if s.event == m.Evt && s.matches(m.Data) {
			matched = append(matched, s)
		}
	}
	onEvent := c.opts.onEvent
	c.mu.Unlock()

	for _, s := range matched {
		s.handler(m.Data)
	}
	if onEvent != nil {
		onEvent(m.Evt, m.Data)
	}
	if len(matched) == 0 && onEvent == nil {
		c.logger.Debug("unhandled event", "evt", m.Evt)
	}
}

// handleClose rejects every pending call and a connect attempt in progress.
func (c *Client) handleClose(ce *CloseError) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan result)
	attempt := c.attempt
	c.attempt = nil
	c.connected = false
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- result{err: ce}
	}
	if attempt != nil {
		attempt.fail(ce)
	}

	c.logger.Info("disconnected", "code", ce.Code, "reason", ce.Reason, "rejected", len(pending))
}

// Subscribe registers handler for evt dispatches matching args and sends
// SUBSCRIBE. A dispatch matches unless the event data carries a field of
// args with a different value. Subscribing twice with the same event
// and args addresses the same subscription; the later handler wins.
//
// Handlers run on the transport's read goroutine, in arrival order. They
// must not wait on a Request themselves.
func (c *Client) Subscribe(ctx context.Context, evt string, args any, handler func(data json.RawMessage)) (*Subscription, error) {
	s, err := c.addSubscription(evt, args, handler)
	if err != nil {
		return nil, err
	}

	if _, err := c.Request(ctx, CmdSubscribe, args, evt); err != nil {
		c.removeSubscription(s)
		return nil, err
	}
	return s, nil
}

func (c *Client) addSubscription(evt string, args any, handler func(json.RawMessage)) (*Subscription, error) {
	key, err := subKey(evt, args)
	if err != nil {
		return nil, err
	}
	filter, err := toFilter(args)
	if err != nil {
		return nil, err
	}

	s := &Subscription{
		client:  c,
		key:     key,
		event:   evt,
		args:    args,
		filter:  filter,
		handler: handler,
	}

	c.mu.Lock()
	c.subscriptions[key] = s
	c.mu.Unlock()
	return s, nil
}

func (c *Client) removeSubscription(s *Subscription) {
	c.mu.Lock()
	if c.subscriptions[s.key] == s {
		delete(c.subscriptions, s.key)
	}
	c.mu.Unlock()
}

// Subscription is a registered event handler.
type Subscription struct {
	client  *Client
	key     string
	event   string
	args    any
	filter  map[string]any
	handler func(json.RawMessage)
}

// Key returns the identity of the subscription: the event name followed by
// its JSON-encoded args.
func (s *Subscription) Key() string {
	return s.key
}

// Unsubscribe removes the handler and sends UNSUBSCRIBE with the same event and args.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	s.client.removeSubscription(s)
	_, err := s.client.Request(ctx, CmdUnsubscribe, s.args, s.event)
	return err
}

func (s *Subscription) matches(data json.RawMessage) bool {
	if len(s.filter) == 0 {
		return true
	}

	// Many events do not echo their subscribe args (GUILD_STATUS carries
	// guild.id, VOICE_STATE_* carry no channel_id), so only a field present
	// with a different value rules a subscription out.
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return true
	}
	for k, want := range s.filter {
		if got, ok := fields[k]; ok && !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// subKey derives the subscription identity from the event and its args.
func subKey(evt string, args any) (string, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return "", errors.Wrap(err, "encode subscription args")
	}
	return evt + string(b), nil
}

// toFilter normalizes args to a generic JSON object.
func toFilter(args any) (map[string]any, error) {
	if args == nil {
		return nil, nil
	}
	b, err := json.Marshal(args)
	if err != nil {
		return nil, errors.Wrap(err, "encode subscription args")
	}
	var filter map[string]any
	if err := json.Unmarshal(b, &filter); err != nil {
		return nil, errors.Wrap(err, "subscription args must be a json object")
	}
	return filter, nil
}

// Ping sends a liveness probe over the transport.
func (c *Client) Ping() error {
	return c.transport.Ping()
}

// Destroy closes the transport. Pending calls fail with ErrConnectionClosed
// and the client cannot connect again.
func (c *Client) Destroy(ctx context.Context) error {
	c.mu.Lock()
	c.destroyed = true
	c.mu.Unlock()

	return c.transport.Close(ctx)
}

// State returns the transport's connection state.
func (c *Client) State() State {
	return c.transport.State()
}

// ClientID returns the client id given to Connect.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// User returns the user from READY or AUTHENTICATE, or nil.
func (c *Client) User() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// Application returns the application from AUTHENTICATE, or nil.
func (c *Client) Application() *Application {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.application
}

// AccessToken returns the OAuth2 token the client authenticated with.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// Endpoint returns the base URL used for REST calls.
func (c *Client) Endpoint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

func (c *Client) setEndpoint(endpoint string) {
	c.mu.Lock()
	c.endpoint = endpoint
	c.mu.Unlock()
}

// clientHandler adapts Client to the transport Handler interface.
type clientHandler struct {
	c *Client
}

func (h clientHandler) OnOpen() {
	h.c.logger.Debug("transport open")
}

func (h clientHandler) OnMessage(m *Message) {
	h.c.handleMessage(m)
}

func (h clientHandler) OnClose(err *CloseError) {
	h.c.handleClose(err)
}

func (h clientHandler) OnError(err error) {
	h.c.logger.Warn("transport error", "error", err)
	if h.c.opts.onError != nil {
		h.c.opts.onError(err)
	}
}
