// Package forward submits payments to the Streamlabs donation API and owns
// the OAuth session used to do so.
package forward

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/oauth2"

	"github.com/fundsync-dev/fundsync/internal/id"
	"github.com/fundsync-dev/fundsync/internal/model"
)

const (
	// DefaultBaseURL is the Streamlabs API root. Token, authorize and donation
	// endpoints hang off it.
	DefaultBaseURL = "https://streamlabs.com/api/v2.0"
	// DefaultCurrency is sent with every donation.
	DefaultCurrency = "INR"
	// DefaultMessage accompanies forwarded payments.
	DefaultMessage = "UPI Payment received"

	// DefaultConnectTimeout bounds dialing and the TLS handshake.
	DefaultConnectTimeout = 15 * time.Second
	// DefaultReadTimeout bounds the wait for response headers.
	DefaultReadTimeout = 20 * time.Second
	// DefaultWriteTimeout widens the overall request deadline.
	DefaultWriteTimeout = 15 * time.Second
)

const (
	testDonor   = "Test User"
	testMessage = "Test donation from FundSync"
)

// DefaultScopes are requested when authorizing.
var DefaultScopes = []string{"donations.read", "donations.create"}

// CredentialStore persists the token pair. The forwarder is its only writer.
type CredentialStore interface {
	Load() (model.Credentials, error)
	Save(model.Credentials) error
	// ClearIf removes the pair only if its access token is still access.
	ClearIf(access string) (bool, error)
}

// Callback receives the outcome of every submission. It runs on the
// forwarder's goroutine; callers that need another context re-dispatch.
type Callback func(model.Outcome)

// Config describes the Streamlabs application and HTTP limits.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	Currency     string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if len(c.Scopes) == 0 {
		c.Scopes = DefaultScopes
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

// Forwarder runs token exchanges and donation submissions in the background.
// Outcomes of submissions reach the registered Callback; exchanges are
// observed by polling IsAuthenticated.
type Forwarder struct {
	cfg    Config
	oauth  *oauth2.Config
	client *http.Client
	creds  CredentialStore
	states StateStore
	logger *slog.Logger
	newID  func() string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	callback Callback
	closed   bool
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithHTTPClient replaces the client built from the configured timeouts.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Forwarder) {
		f.client = c
	}
}

// WithLogger sets the logger. A nil logger means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Forwarder) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithIdentifier replaces the donation identifier generator.
func WithIdentifier(fn func() string) Option {
	return func(f *Forwarder) {
		f.newID = fn
	}
}

// New creates a Forwarder. Call Close to cancel its background work.
func New(cfg Config, creds CredentialStore, opts ...Option) *Forwarder {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	f := &Forwarder{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.BaseURL + "/authorize",
				TokenURL:  cfg.BaseURL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		client: newHTTPClient(cfg),
		creds:  creds,
		states: &memoryStates{},
		logger: slog.Default(),
		newID:  id.NewIdentifier,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// newHTTPClient maps the three timeouts onto net/http. There is no per-write
// deadline on a client, so the write budget only widens the overall limit.
func newHTTPClient(cfg Config) *http.Client {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	return &http.Client{
		Timeout: cfg.ConnectTimeout + cfg.ReadTimeout + cfg.WriteTimeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   cfg.ConnectTimeout,
			ResponseHeaderTimeout: cfg.ReadTimeout,
		},
	}
}

// SetCallback registers the outcome sink, replacing any previous one. A nil
// callback drops outcomes.
func (f *Forwarder) SetCallback(cb Callback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.callback = cb
}

// IsAuthenticated reports whether an access token is stored. It makes no
// network call.
func (f *Forwarder) IsAuthenticated() bool {
	return f.credentials().Authenticated()
}

// AuthURL returns the page where the user grants access with the given
// state. BeginAuth issues and remembers the state; use this directly only
// when verifying it yourself.
func (f *Forwarder) AuthURL(state string) string {
	return f.oauth.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for tokens in the background.
// Failures are logged and leave the stored credentials untouched.
func (f *Forwarder) ExchangeCode(code string) {
	code = strings.TrimSpace(code)
	if code == "" {
		f.logger.Warn("ignoring empty authorization code")
		return
	}
	f.launch(func(ctx context.Context) {
		f.exchange(ctx, code)
	})
}

// Submit forwards a payment in the background and reports whether a request
// was started. Without credentials nothing is sent, nothing is queued and the
// callback is not invoked.
func (f *Forwarder) Submit(name string, amount decimal.Decimal, message string) bool {
	creds := f.credentials()
	if !creds.Authenticated() {
		f.logger.Warn("cannot send donation: not authenticated", "name", name)
		return false
	}
	p := model.Payment{Amount: amount, Sender: name}
	return f.launch(func(ctx context.Context) {
		f.deliver(f.send(ctx, creds.AccessToken, p, message))
	})
}

// SubmitPayment forwards an extracted payment with the given message.
func (f *Forwarder) SubmitPayment(p model.Payment, message string) bool {
	return f.Submit(p.Sender, p.Amount, message)
}

// SendTest submits a one-rupee donation from a placeholder donor.
func (f *Forwarder) SendTest() bool {
	f.logger.Info("sending test donation")
	return f.Submit(testDonor, decimal.NewFromInt(1), testMessage)
}

// Wait blocks until all background work started so far has finished.
func (f *Forwarder) Wait() {
	f.wg.Wait()
}

// Close cancels in-flight requests, drops the callback and waits for the
// background goroutines to exit. Later calls to Submit and ExchangeCode do
// nothing. Tokens saved before Close stay saved.
func (f *Forwarder) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.callback = nil
	f.mu.Unlock()

	f.cancel()
	f.wg.Wait()
}

func (f *Forwarder) launch(fn func(ctx context.Context)) bool {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		f.logger.Debug("forwarder closed, dropping work")
		return false
	}
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		fn(f.ctx)
	}()
	return true
}

func (f *Forwarder) deliver(o model.Outcome) {
	f.mu.RLock()
	cb := f.callback
	f.mu.RUnlock()
	if cb == nil {
		return
	}
	cb(o)
}

func (f *Forwarder) credentials() model.Credentials {
	c, err := f.creds.Load()
	if err != nil {
		f.logger.Error("failed to load credentials", "error", err)
		return model.Credentials{}
	}
	return c
}
