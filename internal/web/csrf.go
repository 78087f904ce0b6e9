package web

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

const (
	// csrfField names both the hidden form field and the cookie.
	csrfField      = "_csrf"
	csrfContextKey = "csrf"
)

var errCrossSite = echo.NewHTTPError(http.StatusForbidden, "cross-site request refused")

// csrf checks the form token of every state-changing request against the
// cookie set when the page was rendered.
func csrf() echo.MiddlewareFunc {
	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:" + csrfField,
		ContextKey:     csrfContextKey,
		CookieName:     csrfField,
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteStrictMode,
		ErrorHandler: func(err error, c echo.Context) error {
			log.WithError(err).WithField("uri", c.Request().RequestURI).Warn("csrf check failed")
			return errCrossSite
		},
	})
}

// sameOrigin refuses unsafe requests that the browser marks as coming from
// another site, or whose Origin is not this server. Another port on the
// loopback address counts as another site.
func sameOrigin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		r := c.Request()
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return next(c)
		}

		switch r.Header.Get("Sec-Fetch-Site") {
		case "", "same-origin", "none":
		default:
			return errCrossSite
		}
		if origin := r.Header.Get(echo.HeaderOrigin); origin != "" {
			u, err := url.Parse(origin)
			if err != nil || u.Host != r.Host {
				return errCrossSite
			}
		}
		return next(c)
	}
}

func csrfToken(c echo.Context) string {
	token, _ := c.Get(csrfContextKey).(string)
	return token
}
