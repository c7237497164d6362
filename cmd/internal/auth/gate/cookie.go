package gate

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

func (g *Gate) sessionFromCookie(r *http.Request) (string, bool) {
	if r == nil {
		return "", false
	}
	c, err := r.Cookie(g.cfg.Cookie.Name)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	if v == "" {
		return "", false
	}
	return v, true
}

func (g *Gate) setSessionCookie(w http.ResponseWriter, value string, exp time.Time) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     g.cfg.Cookie.Name,
		Value:    value,
		Path:     g.cfg.Cookie.Path,
		Domain:   g.cfg.Cookie.Domain,
		Expires:  exp,
		HttpOnly: true,
		Secure:   g.cfg.Cookie.Secure,
		SameSite: g.cfg.Cookie.SameSite,
	})
}

func (g *Gate) expireSessionCookie(w http.ResponseWriter) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     g.cfg.Cookie.Name,
		Value:    "",
		Path:     g.cfg.Cookie.Path,
		Domain:   g.cfg.Cookie.Domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   g.cfg.Cookie.Secure,
		SameSite: g.cfg.Cookie.SameSite,
	})
}

func (g *Gate) setCSRFCookie(w http.ResponseWriter, value string, exp time.Time) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     g.cfg.Cookie.CSRFName,
		Value:    value,
		Path:     g.cfg.Cookie.Path,
		Domain:   g.cfg.Cookie.Domain,
		Expires:  exp,
		HttpOnly: false,
		Secure:   g.cfg.Cookie.Secure,
		SameSite: g.cfg.Cookie.SameSite,
	})
}

func (g *Gate) expireCSRFCookie(w http.ResponseWriter) {
	if w == nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     g.cfg.Cookie.CSRFName,
		Value:    "",
		Path:     g.cfg.Cookie.Path,
		Domain:   g.cfg.Cookie.Domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		Secure:   g.cfg.Cookie.Secure,
		SameSite: g.cfg.Cookie.SameSite,
	})
}

func secureStringEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
