package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"supatodo/internal/service"
	"supatodo/internal/session"
)

// CurrentSession implements session.Provider. The stored session is read
// once; later changes come from sign-in, sign-out and refresh.
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

// SignIn implements service.Auth.
func (c *Client) SignIn(ctx context.Context, creds service.Credentials, prompt io.Writer) error {
	var (
		resp tokenResponse
		err  error
	)
	switch {
	case creds.Email != "":
		ctx, cancel := context.WithTimeout(ctx, APITimeout)
		defer cancel()
		resp, err = c.grant(ctx, "password", map[string]string{
			"email":    creds.Email,
			"password": creds.Password,
		})
	case creds.Provider != "":
		resp, err = c.signInWithOAuth(ctx, creds.Provider, prompt)
	default:
		return errors.New("email or provider required")
	}
	if err != nil {
		return err
	}

	s, err := newStoredSession(resp, time.Now())
	if err != nil {
		return err
	}
	if err := c.persist(s, true); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	log.WithField("user", s.UserID).Debug("signed in")
	c.Publish(session.Event{Kind: session.SignedIn, Session: s.session()})
	return nil
}

// signInWithOAuth runs the PKCE flow: the browser signs in at the provider,
// GoTrue redirects to the local callback with an auth code, and the code is
// exchanged together with the verifier.
func (c *Client) signInWithOAuth(ctx context.Context, provider string, prompt io.Writer) (tokenResponse, error) {
	verifier := oauth2.GenerateVerifier()

	flow := c.Flow
	if prompt != nil {
		flow.Prompt = prompt
	}
	res, err := flow.Run(ctx, func(redirectURL, state string) string {
		q := url.Values{}
		q.Set("provider", provider)
		q.Set("redirect_to", redirectURL)
		q.Set("code_challenge", oauth2.S256ChallengeFromVerifier(verifier))
		q.Set("code_challenge_method", "s256")
		return c.baseURL + authPath + "/authorize?" + q.Encode()
	})
	if err != nil {
		return tokenResponse{}, err
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()
	return c.grant(exchangeCtx, "pkce", map[string]string{
		"auth_code":     res.Code,
		"code_verifier": verifier,
	})
}

// SignOut implements service.Auth. The local session is removed even when
// the remote logout fails.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.ensureLoaded(); err != nil {
		return err
	}
	c.mu.Lock()
	s := c.stored
	c.mu.Unlock()
	if s == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()
	err := c.do(ctx, c.http, request{
		op:     "sign out",
		method: http.MethodPost,
		path:   authPath + "/logout",
		bearer: s.AccessToken,
	}, nil)
	if err != nil {
		log.WithError(err).Warn("remote sign out failed")
	}

	c.clear()
	c.Publish(session.Event{Kind: session.SignedOut, Session: session.Absent{}})
	return nil
}

// grant posts to /token with the given grant type.
func (c *Client) grant(ctx context.Context, grantType string, body map[string]string) (tokenResponse, error) {
	var resp tokenResponse
	err := c.do(ctx, c.http, request{
		op:     grantType + " grant",
		method: http.MethodPost,
		path:   authPath + "/token",
		query:  url.Values{"grant_type": {grantType}},
		body:   body,
	}, &resp)
	return resp, err
}

func (c *Client) ensureLoaded() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return nil
	}
	s, err := loadSession(c.sessionPath)
	if err != nil {
		return err
	}
	c.loaded = true
	c.setLocked(s)
	return nil
}

// persist saves s and makes it current. resetSource starts a new refresh
// chain; a refresh in progress keeps its own.
func (c *Client) persist(s *storedSession, resetSource bool) error {
	if err := saveSession(c.sessionPath, s); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loaded = true
	if resetSource || c.source == nil {
		c.setLocked(s)
	} else {
		c.stored = s
	}
	return nil
}

func (c *Client) setLocked(s *storedSession) {
	c.stored = s
	if s == nil {
		c.source = nil
		return
	}
	c.source = oauth2.ReuseTokenSource(s.token(), refresher{c: c})
}

func (c *Client) clear() {
	c.mu.Lock()
	c.loaded = true
	c.setLocked(nil)
	c.mu.Unlock()
	if err := os.Remove(c.sessionPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to remove stored session")
	}
}

// authorized returns an HTTP client that attaches the session's bearer token,
// refreshing it when expired.
func (c *Client) authorized() (*http.Client, error) {
	if err := c.ensureLoaded(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	src := c.source
	c.mu.Unlock()
	if src == nil {
		return nil, service.ErrNotSignedIn
	}
	hc := *c.http
	hc.Transport = &oauth2.Transport{Source: src, Base: c.http.Transport}
	return &hc, nil
}
