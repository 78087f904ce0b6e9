package googletasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/golang-jwt/jwt/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"supatodo/internal/service"
	"supatodo/internal/session"
)

// Token exchange timeout
const tokenExchangeTimeout = 30 * time.Second

// storedToken is the on-disk token.json.
type storedToken struct {
	Token  *oauth2.Token `json:"token"`
	UserID string        `json:"user_id"`
	Email  string        `json:"email"`
}

func (s *storedToken) session() session.Authenticated {
	return session.Authenticated{UserID: s.UserID, Email: s.Email}
}

// CurrentSession implements session.Provider.
func (c *Client) CurrentSession(ctx context.Context) (session.Session, error) {
	if err := c.ensureLoaded(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stored == nil {
		return session.Absent{}, nil
	}
	return c.stored.session(), nil
}

// SignIn implements service.Auth with the browser authorization-code flow.
// Only creds.Provider "google" (or empty) is accepted.
func (c *Client) SignIn(ctx context.Context, creds service.Credentials, prompt io.Writer) error {
	if creds.Email != "" {
		return errors.New("password sign-in is not available for googletasks (run: supatodo login --provider google)")
	}
	if creds.Provider != "" && creds.Provider != "google" {
		return fmt.Errorf("unsupported provider: %s", creds.Provider)
	}
	if c.oauth == nil {
		return ErrNoOAuthClient
	}

	// Generate PKCE verifier
	verifier := oauth2.GenerateVerifier()

	oauthConfig := *c.oauth
	flow := c.Flow
	if prompt != nil {
		flow.Prompt = prompt
	}
	res, err := flow.Run(ctx, func(redirectURL, state string) string {
		oauthConfig.RedirectURL = redirectURL
		return oauthConfig.AuthCodeURL(state,
			oauth2.AccessTypeOffline,
			oauth2.S256ChallengeOption(verifier),
		)
	})
	if err != nil {
		return err
	}
	oauthConfig.RedirectURL = res.RedirectURL

	exchangeCtx, cancel := context.WithTimeout(context.WithValue(ctx, oauth2.HTTPClient, c.http), tokenExchangeTimeout)
	defer cancel()
	token, err := oauthConfig.Exchange(exchangeCtx, res.Code, oauth2.VerifierOption(verifier))
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return errors.New("token response has no id_token")
	}
	sub, email, err := claimsOf(idToken)
	if err != nil {
		return err
	}

	s := &storedToken{Token: token, UserID: sub, Email: email}
	if err := saveToken(c.tokenPath, s); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	c.mu.Lock()
	c.loaded = true
	c.stored = s
	c.svc = nil
	c.mu.Unlock()

	log.WithField("user", sub).Debug("signed in")
	c.Publish(session.Event{Kind: session.SignedIn, Session: s.session()})
	return nil
}

// SignOut implements service.Auth. It removes token.json.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.ensureLoaded(); err != nil {
		return err
	}
	c.mu.Lock()
	signedIn := c.stored != nil
	c.mu.Unlock()
	if !signedIn {
		return nil
	}
	if err := c.clear(); err != nil {
		return fmt.Errorf("failed to remove token: %w", err)
	}
	c.Publish(session.Event{Kind: session.SignedOut, Session: session.Absent{}})
	return nil
}

func (c *Client) ensureLoaded() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	s, err := loadToken(c.tokenPath)
	if err != nil {
		return err
	}
	c.loaded = true
	c.stored = s
	return nil
}

func (c *Client) clear() error {
	c.mu.Lock()
	c.loaded = true
	c.stored = nil
	c.svc = nil
	c.mu.Unlock()
	if err := os.Remove(c.tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// claimsOf reads sub and email from an id token without verifying it; the
// token came straight from Google's token endpoint over TLS.
func claimsOf(idToken string) (sub, email string, err error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return "", "", fmt.Errorf("parse id token: %w", err)
	}
	sub, _ = claims["sub"].(string)
	email, _ = claims["email"].(string)
	if sub == "" {
		return "", "", errors.New("id token has no sub claim")
	}
	return sub, email, nil
}

func loadToken(path string) (*storedToken, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token.json: %w", err)
	}
	var s storedToken
	if err := sonic.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid token.json: %w", err)
	}
	if s.Token == nil || s.Token.RefreshToken == "" || s.UserID == "" {
		return nil, nil
	}
	return &s, nil
}

// saveToken saves the token with mode 0600.
func saveToken(path string, s *storedToken) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := sonic.ConfigStd.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// persistingSource saves refreshed tokens and announces them. A rejected
// refresh token ends the session.
type persistingSource struct {
	c   *Client
	src oauth2.TokenSource
}

func (p persistingSource) Token() (*oauth2.Token, error) {
	token, err := p.src.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.ErrorCode == "invalid_grant" {
			log.WithError(err).Warn("refresh token rejected, signing out")
			if cerr := p.c.clear(); cerr != nil {
				log.WithError(cerr).Warn("failed to remove token")
			}
			p.c.Publish(session.Event{Kind: session.SignedOut, Session: session.Absent{}})
		}
		return nil, err
	}

	p.c.mu.Lock()
	s := p.c.stored
	if s == nil || s.Token.AccessToken == token.AccessToken {
		p.c.mu.Unlock()
		return token, nil
	}
	next := &storedToken{Token: token, UserID: s.UserID, Email: s.Email}
	p.c.stored = next
	p.c.mu.Unlock()

	if err := saveToken(p.c.tokenPath, next); err != nil {
		log.WithError(err).Warn("failed to save refreshed token")
	}
	p.c.Publish(session.Event{Kind: session.TokenRefreshed, Session: next.session()})
	return token, nil
}
