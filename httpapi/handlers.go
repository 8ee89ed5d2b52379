package httpapi

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/goliatone/go-arcade/core"
)

const maxWebhookBody = 1 << 20

type redeemRequest struct {
	ContinueToken string `json:"continueToken"`
}

type checkoutRequest struct {
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type startSessionRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) getCredits(c *gin.Context) {
	userID := c.GetString(contextUserKey)
	credits, err := s.credits.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"freeRemaining": credits.FreeRemaining,
		"purchased":     credits.Purchased,
		"total":         credits.Total(),
	})
}

func (s *Server) requestContinue(c *gin.Context) {
	userID := c.GetString(contextUserKey)
	grant, err := s.orchestrator.RequestContinue(c.Request.Context(), userID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"continueToken": grant.Token,
		"expiresAt":     grant.ExpiresAt.UTC().Format(time.RFC3339),
		"save": gin.H{
			"payload":       grant.Save.Payload,
			"version":       grant.Save.Version,
			"wave":          grant.Save.Wave,
			"schemaVersion": grant.Save.SchemaVersion,
			"savedAt":       grant.Save.SavedAt.UTC().Format(time.RFC3339),
		},
		"credits": gin.H{
			"freeRemaining": grant.FreeRemaining,
			"purchased":     grant.Purchased,
		},
	})
}

func (s *Server) redeemContinue(c *gin.Context) {
	userID := c.GetString(contextUserKey)
	var request redeemRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		renderError(c, core.NewBadInputError("httpapi: invalid redeem payload"))
		return
	}
	saveVersion, err := s.orchestrator.RedeemContinue(c.Request.Context(), userID, request.ContinueToken)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"saveVersion": saveVersion,
	})
}

func (s *Server) beginCheckout(c *gin.Context) {
	userID := c.GetString(contextUserKey)
	var request checkoutRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		renderError(c, core.NewBadInputError("httpapi: invalid checkout payload"))
		return
	}
	checkoutSession, err := s.checkout.BeginCheckout(c.Request.Context(), userID, request.SuccessURL, request.CancelURL)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":       checkoutSession.URL,
		"sessionId": checkoutSession.SessionID,
	})
}

// handleWebhook hands the raw body to the reconciler untouched; signature
// verification happens before any parsing.
func (s *Server) handleWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		renderError(c, core.NewBadInputError("httpapi: unreadable webhook body"))
		return
	}
	ack, err := s.reconciler.HandleNotification(c.Request.Context(), rawBody, c.GetHeader("signature"))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": ack.Received})
}

// startSession trusts the upstream game backend for identity; this route
// sits behind infrastructure auth, not player auth.
func (s *Server) startSession(c *gin.Context) {
	var request startSessionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		renderError(c, core.NewBadInputError("httpapi: invalid session payload"))
		return
	}
	saveSession, err := s.sessions.StartSession(c.Request.Context(), request.UserID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionToken": saveSession.Token,
		"expiresAt":    saveSession.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) endSession(c *gin.Context) {
	userID := c.GetString(contextUserKey)
	token := bearerToken(c.GetHeader("Authorization"))
	if err := s.sessions.EndSession(c.Request.Context(), userID, token); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
