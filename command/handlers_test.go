package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-arcade/core"
)

type stubContinueService struct {
	grant      core.ContinueGrant
	version    uint
	requestErr error
	redeemErr  error

	requestedUser string
	redeemedToken string
}

func (s *stubContinueService) RequestContinue(_ context.Context, userID string) (core.ContinueGrant, error) {
	s.requestedUser = userID
	if s.requestErr != nil {
		return core.ContinueGrant{}, s.requestErr
	}
	return s.grant, nil
}

func (s *stubContinueService) RedeemContinue(_ context.Context, _ string, token string) (uint, error) {
	s.redeemedToken = token
	if s.redeemErr != nil {
		return 0, s.redeemErr
	}
	return s.version, nil
}

type stubGrantService struct {
	result  core.GrantResult
	err     error
	lastRef string
}

func (s *stubGrantService) Grant(_ context.Context, _ string, _ uint, externalRef string, _ map[string]any) (core.GrantResult, error) {
	s.lastRef = externalRef
	if s.err != nil {
		return core.GrantResult{}, s.err
	}
	return s.result, nil
}

type stubTokenPurger struct {
	purged int
	err    error
}

func (s *stubTokenPurger) PurgeExpired(context.Context) (int, error) {
	return s.purged, s.err
}

type stubSessionPurger struct {
	purged int
	cutoff time.Time
}

func (s *stubSessionPurger) DeleteExpiredSessions(_ context.Context, cutoff time.Time) (int, error) {
	s.cutoff = cutoff
	return s.purged, nil
}

func TestMessages_Validate(t *testing.T) {
	cases := []struct {
		name    string
		message interface{ Validate() error }
		wantErr bool
	}{
		{"request continue ok", RequestContinueMessage{UserID: "usr_1"}, false},
		{"request continue missing user", RequestContinueMessage{}, true},
		{"redeem ok", RedeemContinueMessage{UserID: "usr_1", ContinueToken: "tok"}, false},
		{"redeem missing token", RedeemContinueMessage{UserID: "usr_1"}, true},
		{"grant ok", GrantCreditsMessage{UserID: "usr_1", Amount: 10, ExternalRef: "evt_1"}, false},
		{"grant zero amount", GrantCreditsMessage{UserID: "usr_1", ExternalRef: "evt_1"}, true},
		{"grant missing ref", GrantCreditsMessage{UserID: "usr_1", Amount: 10}, true},
		{"purge always valid", PurgeExpiredMessage{}, false},
	}
	for _, tc := range cases {
		err := tc.message.Validate()
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestRequestContinueCommand_ExecutesService(t *testing.T) {
	service := &stubContinueService{grant: core.ContinueGrant{Token: "tok"}}
	cmd := NewRequestContinueCommand(service)

	if err := cmd.Execute(context.Background(), RequestContinueMessage{UserID: "usr_1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if service.requestedUser != "usr_1" {
		t.Fatalf("expected service call for usr_1, got %q", service.requestedUser)
	}

	service.requestErr = errors.New("boom")
	if err := cmd.Execute(context.Background(), RequestContinueMessage{UserID: "usr_1"}); err == nil {
		t.Fatalf("expected service error to surface")
	}
}

func TestRedeemContinueCommand_ExecutesService(t *testing.T) {
	service := &stubContinueService{version: 9}
	cmd := NewRedeemContinueCommand(service)

	if err := cmd.Execute(context.Background(), RedeemContinueMessage{UserID: "usr_1", ContinueToken: "tok"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if service.redeemedToken != "tok" {
		t.Fatalf("expected redeem for tok, got %q", service.redeemedToken)
	}
}

func TestGrantCreditsCommand_ExecutesService(t *testing.T) {
	service := &stubGrantService{result: core.GrantResult{Applied: true}}
	cmd := NewGrantCreditsCommand(service)

	msg := GrantCreditsMessage{UserID: "usr_1", Amount: 10, ExternalRef: "evt_1"}
	if err := cmd.Execute(context.Background(), msg); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if service.lastRef != "evt_1" {
		t.Fatalf("expected grant for evt_1, got %q", service.lastRef)
	}
}

func TestPurgeExpiredCommand_RunsBothHalves(t *testing.T) {
	tokens := &stubTokenPurger{purged: 3}
	sessions := &stubSessionPurger{purged: 2}
	cmd := NewPurgeExpiredCommand(tokens, sessions)

	if err := cmd.Execute(context.Background(), PurgeExpiredMessage{}); err != nil {
		t.Fatalf("execute: %v", err)
	}

	tokens.err = errors.New("db down")
	if err := cmd.Execute(context.Background(), PurgeExpiredMessage{}); err == nil {
		t.Fatalf("expected purge error to surface")
	}
}

func TestPurgeExpiredCommand_SessionCutoffIsWallClock(t *testing.T) {
	sessions := &stubSessionPurger{purged: 1}
	cmd := NewPurgeExpiredCommand(nil, sessions)

	before := time.Now().UTC()
	if err := cmd.Execute(context.Background(), PurgeExpiredMessage{}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	after := time.Now().UTC()

	if sessions.cutoff.Before(before) || sessions.cutoff.After(after) {
		t.Fatalf("expected cutoff between %v and %v, got %v", before, after, sessions.cutoff)
	}
}

func TestCommands_RequireDependencies(t *testing.T) {
	if err := (&RequestContinueCommand{}).Execute(context.Background(), RequestContinueMessage{UserID: "u"}); err == nil {
		t.Fatalf("expected dependency error")
	}
	if err := (&GrantCreditsCommand{}).Execute(context.Background(), GrantCreditsMessage{UserID: "u", Amount: 1, ExternalRef: "r"}); err == nil {
		t.Fatalf("expected dependency error")
	}
	if err := (&PurgeExpiredCommand{}).Execute(context.Background(), PurgeExpiredMessage{}); err == nil {
		t.Fatalf("expected dependency error")
	}
}
