// Package cookie reads and writes a single named cookie with optional HMAC
// signing. The session layer uses it for the session token cookie.
//
//	jar, err := cookie.New(cookie.Config{
//		Name:     "__sid",
//		MaxAge:   30 * 24 * time.Hour,
//		HTTPOnly: true,
//		Secret:   os.Getenv("SESSION_SECRET"),
//	})
//
//	jar.Write(w, token)
//	token, err := jar.Read(r) // ErrNotFound, ErrBadSig
package cookie
