package cookie

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Errors.
var (
	ErrNotFound  = errors.New("cookie: not found")
	ErrBadSecret = errors.New("cookie: secret must be 32+ bytes")
	ErrBadSig    = errors.New("cookie: invalid signature")
)

// Config describes one named cookie.
type Config struct {
	Name     string
	Domain   string
	Path     string        // default "/"
	Secret   string        // enables HMAC signing when set
	MaxAge   time.Duration // zero = browser session
	SameSite http.SameSite // default Lax
	Secure   bool
	HTTPOnly bool
}

// Jar reads and writes a single named cookie, optionally HMAC-signed.
type Jar struct {
	cfg    Config
	secret []byte
}

// New validates cfg and returns a Jar.
func New(cfg Config) (*Jar, error) {
	if cfg.Secret != "" && len(cfg.Secret) < 32 {
		return nil, ErrBadSecret
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}

	j := &Jar{cfg: cfg}
	if cfg.Secret != "" {
		j.secret = []byte(cfg.Secret)
	}
	return j, nil
}

// Name returns the cookie name.
func (j *Jar) Name() string { return j.cfg.Name }

// Read returns the cookie value, verifying the signature when signing is on.
func (j *Jar) Read(r *http.Request) (string, error) {
	c, err := r.Cookie(j.cfg.Name)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && c.Value == "") {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if j.secret == nil {
		return c.Value, nil
	}

	// value.base64(hmac)
	value, sig, ok := strings.Cut(c.Value, ".")
	if !ok {
		return "", ErrBadSig
	}
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(got, j.sign(value)) {
		return "", ErrBadSig
	}
	return value, nil
}

// Write sets the cookie.
func (j *Jar) Write(w http.ResponseWriter, value string) {
	if j.secret != nil {
		value += "." + base64.RawURLEncoding.EncodeToString(j.sign(value))
	}
	http.SetCookie(w, j.cookie(value, int(j.cfg.MaxAge/time.Second)))
}

// Expire instructs the client to drop the cookie.
func (j *Jar) Expire(w http.ResponseWriter) {
	http.SetCookie(w, j.cookie("", -1))
}

func (j *Jar) sign(value string) []byte {
	mac := hmac.New(sha256.New, j.secret)
	mac.Write([]byte(value))
	return mac.Sum(nil)
}

func (j *Jar) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     j.cfg.Name,
		Value:    value,
		Path:     j.cfg.Path,
		Domain:   j.cfg.Domain,
		MaxAge:   maxAge,
		Secure:   j.cfg.Secure,
		HttpOnly: j.cfg.HTTPOnly,
		SameSite: j.cfg.SameSite,
	}
}
