package httpapi

import (
	"fmt"

	"github.com/gin-gonic/gin"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-arcade/continues"
	"github.com/goliatone/go-arcade/core"
	"github.com/goliatone/go-arcade/ledger"
	"github.com/goliatone/go-arcade/payments"
	"github.com/goliatone/go-arcade/ratelimit"
	"github.com/goliatone/go-arcade/session"
)

// Server exposes the arcade operations over HTTP. All state lives in the
// injected collaborators; the server itself only binds, authorizes, and
// renders.
type Server struct {
	credits      *ledger.Ledger
	orchestrator *continues.Orchestrator
	sessions     *session.Authority
	checkout     *payments.CheckoutService
	reconciler   *payments.Reconciler
	limiter      *ratelimit.FixedWindowPolicy
	logger       core.Logger
}

type ServerOption func(*Server)

func WithRateLimiter(limiter *ratelimit.FixedWindowPolicy) ServerOption {
	return func(s *Server) {
		s.limiter = limiter
	}
}

func WithServerLogger(logger core.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewServer(
	credits *ledger.Ledger,
	orchestrator *continues.Orchestrator,
	sessions *session.Authority,
	checkout *payments.CheckoutService,
	reconciler *payments.Reconciler,
	options ...ServerOption,
) (*Server, error) {
	if credits == nil {
		return nil, fmt.Errorf("httpapi: credit ledger is required")
	}
	if orchestrator == nil {
		return nil, fmt.Errorf("httpapi: continue orchestrator is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("httpapi: session authority is required")
	}
	if checkout == nil {
		return nil, fmt.Errorf("httpapi: checkout service is required")
	}
	if reconciler == nil {
		return nil, fmt.Errorf("httpapi: payment reconciler is required")
	}
	server := &Server{
		credits:      credits,
		orchestrator: orchestrator,
		sessions:     sessions,
		checkout:     checkout,
		reconciler:   reconciler,
		logger:       glog.Nop(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	return server, nil
}

// Router builds the gin engine with all routes mounted. The webhook route
// is deliberately outside the authenticated group; the provider signs the
// body instead of carrying a session.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/sessions", s.startSession)
	router.POST("/credits/webhook", s.handleWebhook)

	authed := router.Group("/")
	authed.Use(s.sessionAuth())
	{
		authed.GET("/credits", s.getCredits)
		authed.POST("/credits/continue", s.rateLimit(ratelimit.OperationContinue), s.requestContinue)
		authed.POST("/credits/redeem", s.redeemContinue)
		authed.POST("/credits/checkout", s.rateLimit(ratelimit.OperationCheckout), s.beginCheckout)
		authed.DELETE("/sessions", s.endSession)
	}

	return router
}
