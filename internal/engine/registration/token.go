package registration

import (
	"net/url"
	"strings"
)

// Route segments that email clients and the SPA router occasionally glue onto
// the end of the token value.
var tokenSuffixes = []string{"/register", "/signup", "/activate"}

// ResolveToken extracts the invitation token from a page URL. Candidates in
// priority order: the token query parameter, a hash-fragment access_token
// accompanied by type=invite, a bare hash-fragment access_token, then the
// alternate fragment keys token and invite_token. Pure and synchronous; no
// session or network dependency.
func ResolveToken(pageURL string) (string, bool) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}

	if tok := u.Query().Get("token"); tok != "" {
		return normalizeToken(tok), true
	}

	frag, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return "", false
	}

	if tok := frag.Get("access_token"); tok != "" && frag.Get("type") == "invite" {
		return normalizeToken(tok), true
	}
	if tok := frag.Get("access_token"); tok != "" {
		return normalizeToken(tok), true
	}
	for _, key := range []string{"token", "invite_token"} {
		if tok := frag.Get(key); tok != "" {
			return normalizeToken(tok), true
		}
	}

	return "", false
}

func normalizeToken(tok string) string {
	tok = strings.TrimSpace(tok)
	for _, suffix := range tokenSuffixes {
		tok = strings.TrimSuffix(tok, suffix)
	}
	return tok
}
