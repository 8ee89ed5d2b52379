package arcade

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	glog "github.com/goliatone/go-logger/glog"

	arcadecommand "github.com/goliatone/go-arcade/command"
	"github.com/goliatone/go-arcade/continues"
	"github.com/goliatone/go-arcade/core"
	"github.com/goliatone/go-arcade/httpapi"
	"github.com/goliatone/go-arcade/ledger"
	"github.com/goliatone/go-arcade/payments"
	"github.com/goliatone/go-arcade/query"
	"github.com/goliatone/go-arcade/ratelimit"
	"github.com/goliatone/go-arcade/session"
)

// Commands bundles the dispatchable command wrappers around the credit and
// maintenance surfaces, ready for registration on a go-command registry.
type Commands struct {
	RequestContinue *arcadecommand.RequestContinueCommand
	RedeemContinue  *arcadecommand.RedeemContinueCommand
	GrantCredits    *arcadecommand.GrantCreditsCommand
	PurgeExpired    *arcadecommand.PurgeExpiredCommand
}

// Queries bundles the read-side wrappers. ListTransactions is only set when
// the credit store can page the transaction log.
type Queries struct {
	GetCredits       *query.GetCreditsQuery
	ListTransactions *query.ListTransactionsQuery
	LoadSave         *query.LoadSaveQuery
}

// App wires the credit ledger, token authorities, payment surfaces, and the
// HTTP layer from a single resolved configuration.
type App struct {
	cfg    Config
	logger glog.Logger

	stores StoreProvider
	saves  SaveStore

	credits      *ledger.Ledger
	sessions     *session.Authority
	tokens       *continues.Authority
	orchestrator *continues.Orchestrator
	checkout     *payments.CheckoutService
	reconciler   *payments.Reconciler
	limiter      *ratelimit.FixedWindowPolicy
	server       *httpapi.Server

	commands Commands
	queries  Queries
	hooks    *ExtensionHooks
}

type Option func(*appOptions)

type appOptions struct {
	logger         glog.Logger
	loggerProvider glog.LoggerProvider
	stores         StoreProvider
	saves          SaveStore
	rateStore      ratelimit.StateStore
	paymentsDoer   payments.HTTPDoer
	now            core.NowFunc
	hooks          *ExtensionHooks
}

func WithLogger(logger glog.Logger) Option {
	return func(o *appOptions) {
		o.logger = logger
	}
}

func WithLoggerProvider(provider glog.LoggerProvider) Option {
	return func(o *appOptions) {
		o.loggerProvider = provider
	}
}

func WithStoreProvider(stores StoreProvider) Option {
	return func(o *appOptions) {
		o.stores = stores
	}
}

func WithSaveStore(saves SaveStore) Option {
	return func(o *appOptions) {
		o.saves = saves
	}
}

func WithRateLimitStore(store ratelimit.StateStore) Option {
	return func(o *appOptions) {
		o.rateStore = store
	}
}

// WithPaymentsHTTPClient overrides the HTTP client used against the payment
// provider. Tests inject scripted doers through this.
func WithPaymentsHTTPClient(doer payments.HTTPDoer) Option {
	return func(o *appOptions) {
		o.paymentsDoer = doer
	}
}

func WithNow(now core.NowFunc) Option {
	return func(o *appOptions) {
		o.now = now
	}
}

func WithExtensionHooks(hooks *ExtensionHooks) Option {
	return func(o *appOptions) {
		o.hooks = hooks
	}
}

// New builds the full application graph. Stores default to in-memory
// implementations so the app is usable without a database; production
// deployments inject a persistence-backed StoreProvider.
func New(cfg Config, options ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Token.Secret) == "" {
		return nil, fmt.Errorf("arcade: token secret is required")
	}

	settings := appOptions{}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&settings)
	}

	_, logger := glog.Resolve(cfg.ServiceName, settings.loggerProvider, settings.logger)

	stores := settings.stores
	if stores == nil {
		stores = newMemoryStoreProvider()
	}
	saves := settings.saves
	if saves == nil {
		saves = core.NewMemorySaveStore()
	}

	credits, err := ledger.New(stores.CreditStore(),
		ledger.WithLogger(logger),
		ledger.WithNow(settings.now),
	)
	if err != nil {
		return nil, err
	}

	sessions, err := session.New(stores.SessionStore(), cfg.Token.Secret,
		session.WithTTL(cfg.Token.SaveSessionTTL),
		session.WithLogger(logger),
		session.WithNow(settings.now),
	)
	if err != nil {
		return nil, err
	}

	tokens, err := continues.NewAuthority(stores.ContinueTokenStore(), cfg.Token.Secret,
		continues.WithAuthorityTTL(cfg.Token.ContinueTTL),
		continues.WithAuthorityLogger(logger),
		continues.WithAuthorityNow(settings.now),
	)
	if err != nil {
		return nil, err
	}

	orchestrator, err := continues.NewOrchestrator(credits, tokens, saves,
		continues.WithOrchestratorLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	payments.Configure(cfg.Payments)
	checkoutOptions := []payments.CheckoutOption{payments.WithCheckoutLogger(logger)}
	if strings.TrimSpace(cfg.Payments.BaseURL) != "" {
		clientOptions := []payments.ClientOption{}
		if settings.paymentsDoer != nil {
			clientOptions = append(clientOptions, payments.WithHTTPClient(settings.paymentsDoer))
		}
		client, err := payments.NewClient(cfg.Payments.BaseURL, cfg.Payments.APIKey, clientOptions...)
		if err != nil {
			return nil, err
		}
		checkoutOptions = append(checkoutOptions, payments.WithCheckoutClient(client))
	}
	checkout, err := payments.NewCheckoutService(cfg.Payments.AllowedRedirectHosts, checkoutOptions...)
	if err != nil {
		return nil, err
	}

	reconciler, err := payments.NewReconciler(cfg.Payments.WebhookSecret, credits,
		payments.WithReconcilerLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	rateStore := settings.rateStore
	if rateStore == nil {
		rateStore = ratelimit.NewMemoryStateStore()
	}
	limiter := ratelimit.NewFixedWindowPolicy(rateStore, cfg.RateLimit)
	if settings.now != nil {
		limiter.Now = settings.now
	}

	server, err := httpapi.NewServer(credits, orchestrator, sessions, checkout, reconciler,
		httpapi.WithRateLimiter(limiter),
		httpapi.WithServerLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	hooks := settings.hooks
	if hooks == nil {
		hooks = NewExtensionHooks()
	}

	app := &App{
		cfg:          cfg,
		logger:       logger,
		stores:       stores,
		saves:        saves,
		credits:      credits,
		sessions:     sessions,
		tokens:       tokens,
		orchestrator: orchestrator,
		checkout:     checkout,
		reconciler:   reconciler,
		limiter:      limiter,
		server:       server,
		hooks:        hooks,
	}
	app.commands = Commands{
		RequestContinue: arcadecommand.NewRequestContinueCommand(orchestrator),
		RedeemContinue:  arcadecommand.NewRedeemContinueCommand(orchestrator),
		GrantCredits:    arcadecommand.NewGrantCreditsCommand(credits),
		PurgeExpired:    arcadecommand.NewPurgeExpiredCommand(tokens, stores.SessionStore()),
	}
	app.queries = Queries{
		GetCredits: query.NewGetCreditsQuery(credits),
		LoadSave:   query.NewLoadSaveQuery(saves),
	}
	if reader, ok := stores.CreditStore().(query.TransactionReader); ok {
		app.queries.ListTransactions = query.NewListTransactionsQuery(reader)
	}
	return app, nil
}

func (a *App) Config() Config {
	if a == nil {
		return Config{}
	}
	return a.cfg
}

func (a *App) Stores() StoreProvider {
	if a == nil {
		return nil
	}
	return a.stores
}

func (a *App) Credits() *ledger.Ledger {
	if a == nil {
		return nil
	}
	return a.credits
}

func (a *App) Sessions() *session.Authority {
	if a == nil {
		return nil
	}
	return a.sessions
}

func (a *App) ContinueTokens() *continues.Authority {
	if a == nil {
		return nil
	}
	return a.tokens
}

func (a *App) Orchestrator() *continues.Orchestrator {
	if a == nil {
		return nil
	}
	return a.orchestrator
}

func (a *App) Checkout() *payments.CheckoutService {
	if a == nil {
		return nil
	}
	return a.checkout
}

func (a *App) Reconciler() *payments.Reconciler {
	if a == nil {
		return nil
	}
	return a.reconciler
}

func (a *App) RateLimiter() *ratelimit.FixedWindowPolicy {
	if a == nil {
		return nil
	}
	return a.limiter
}

func (a *App) Commands() Commands {
	if a == nil {
		return Commands{}
	}
	return a.commands
}

func (a *App) Queries() Queries {
	if a == nil {
		return Queries{}
	}
	return a.queries
}

func (a *App) Hooks() *ExtensionHooks {
	if a == nil {
		return nil
	}
	return a.hooks
}

// Router returns the gin engine with every HTTP route mounted.
func (a *App) Router() *gin.Engine {
	if a == nil || a.server == nil {
		return nil
	}
	return a.server.Router()
}

type memoryStoreProvider struct {
	credits  *core.MemoryCreditStore
	tokens   *core.MemoryContinueTokenStore
	sessions *core.MemorySessionStore
}

func newMemoryStoreProvider() *memoryStoreProvider {
	return &memoryStoreProvider{
		credits:  core.NewMemoryCreditStore(),
		tokens:   core.NewMemoryContinueTokenStore(),
		sessions: core.NewMemorySessionStore(),
	}
}

func (p *memoryStoreProvider) CreditStore() core.CreditStore {
	return p.credits
}

func (p *memoryStoreProvider) ContinueTokenStore() core.ContinueTokenStore {
	return p.tokens
}

func (p *memoryStoreProvider) SessionStore() core.SessionStore {
	return p.sessions
}

var _ core.StoreProvider = (*memoryStoreProvider)(nil)
