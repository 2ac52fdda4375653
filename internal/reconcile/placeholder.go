package reconcile

import "strings"

// PlaceholderRules detect synthetic imported emails (vendor-generated
// addresses that should never be remembered against a member). Patterns
// come from configuration, not code.
type PlaceholderRules struct {
	Domains  []string
	Prefixes []string
}

// IsPlaceholder reports whether the email looks vendor-synthesized. Empty
// emails count as placeholders: there is nothing worth remembering.
func (r PlaceholderRules) IsPlaceholder(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return true
	}

	at := strings.LastIndex(email, "@")
	if at < 0 {
		return true
	}
	local, domain := email[:at], email[at+1:]

	for _, d := range r.Domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" && (domain == d || strings.HasSuffix(domain, "."+d)) {
			return true
		}
	}
	for _, p := range r.Prefixes {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.HasPrefix(local, p) {
			return true
		}
	}
	return false
}
