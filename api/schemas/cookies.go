// File: api/schemas/cookies.go
package schemas

// CookieRecord is the unit of cookie persistence: one browser cookie with
// the fields needed to restore it into a fresh session. The on-disk jar is
// an ordered JSON array of these records.
type CookieRecord struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"` // Unix seconds; <= 0 means session cookie.
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}
