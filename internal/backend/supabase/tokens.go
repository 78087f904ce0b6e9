package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
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

// tokenResponse is GoTrue's reply to every /token grant.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// storedSession is the on-disk session.json.
type storedSession struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
}

func (s *storedSession) token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		RefreshToken: s.RefreshToken,
		Expiry:       s.Expiry,
	}
}

func (s *storedSession) session() session.Authenticated {
	return session.Authenticated{UserID: s.UserID, Email: s.Email}
}

// newStoredSession converts a token response. The user id is the access
// token's sub claim; the response's user object is the fallback.
func newStoredSession(resp tokenResponse, now time.Time) (*storedSession, error) {
	if resp.AccessToken == "" {
		return nil, errors.New("token response has no access token")
	}
	s := &storedSession{
		AccessToken:  resp.AccessToken,
		TokenType:    resp.TokenType,
		RefreshToken: resp.RefreshToken,
		UserID:       resp.User.ID,
		Email:        resp.User.Email,
	}
	if s.TokenType == "" {
		s.TokenType = "bearer"
	}
	switch {
	case resp.ExpiresAt > 0:
		s.Expiry = time.Unix(resp.ExpiresAt, 0)
	case resp.ExpiresIn > 0:
		s.Expiry = now.Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	sub, email, err := claimsOf(resp.AccessToken)
	if err != nil && s.UserID == "" {
		return nil, err
	}
	if sub != "" {
		s.UserID = sub
	}
	if s.Email == "" {
		s.Email = email
	}
	return s, nil
}

// claimsOf reads sub and email from an access token without verifying it.
// Verification is the platform's job; the client only needs the identity.
func claimsOf(accessToken string) (sub, email string, err error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return "", "", fmt.Errorf("parse access token: %w", err)
	}
	sub, _ = claims["sub"].(string)
	email, _ = claims["email"].(string)
	if sub == "" {
		return "", "", errors.New("access token has no sub claim")
	}
	return sub, email, nil
}

func loadSession(path string) (*storedSession, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	var s storedSession
	if err := sonic.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", filepath.Base(path), err)
	}
	if s.AccessToken == "" || s.UserID == "" {
		return nil, nil
	}
	return &s, nil
}

// saveSession writes the session with mode 0600 in a 0700 directory.
func saveSession(path string, s *storedSession) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := sonic.ConfigStd.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// refresher is the oauth2.TokenSource that exchanges the stored refresh token.
type refresher struct {
	c *Client
}

func (r refresher) Token() (*oauth2.Token, error) {
	r.c.mu.Lock()
	s := r.c.stored
	r.c.mu.Unlock()
	if s == nil || s.RefreshToken == "" {
		return nil, service.ErrNotSignedIn
	}

	ctx, cancel := context.WithTimeout(context.Background(), APITimeout)
	defer cancel()

	resp, err := r.c.grant(ctx, "refresh_token", map[string]string{"refresh_token": s.RefreshToken})
	if err != nil {
		var re *service.RemoteError
		if errors.As(err, &re) && (re.Status == http.StatusBadRequest || re.Status == http.StatusUnauthorized) {
			log.WithError(err).Warn("refresh token rejected, signing out")
			r.c.clear()
			r.c.Publish(session.Event{Kind: session.SignedOut, Session: session.Absent{}})
		}
		return nil, err
	}

	next, err := newStoredSession(resp, time.Now())
	if err != nil {
		return nil, err
	}
	if err := r.c.persist(next, false); err != nil {
		return nil, err
	}
	r.c.Publish(session.Event{Kind: session.TokenRefreshed, Session: next.session()})
	return next.token(), nil
}
