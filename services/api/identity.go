package api

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

// fallbackDisplayName labels a respondent when nothing better is known.
const fallbackDisplayName = "Family Member"

// displayNameFor resolves a respondent's display name through the fallback
// chain: per-send alias, the identity's own name once the profile is
// completed, a readable form of the email, then a generic label. Every call
// site that renders a respondent name goes through this function; it never
// returns an empty string and never leaks a token or internal id.
func displayNameFor(alias string, identity *Identity, email string) string {
	if alias = strings.TrimSpace(alias); alias != "" {
		return alias
	}
	if identity != nil && identity.ProfileCompleted {
		if name := strings.TrimSpace(identity.Name); name != "" {
			return name
		}
	}
	if formatted := formatEmailName(email); formatted != "" {
		return formatted
	}
	return fallbackDisplayName
}

// formatEmailName turns "mary.sue_smith@example.com" into "Mary Sue Smith".
// Returns "" when the email has no usable local part.
func formatEmailName(email string) string {
	email = strings.TrimSpace(email)
	at := strings.Index(email, "@")
	if at <= 0 {
		return ""
	}

	local := email[:at]
	local = strings.Map(func(r rune) rune {
		if r == '.' || r == '_' || r == '-' || r == '+' {
			return ' '
		}
		return r
	}, local)

	words := strings.Fields(local)
	if len(words) == 0 {
		return ""
	}
	for i, word := range words {
		// Decode the leading rune; byte slicing would split multi-byte
		// characters.
		r, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(word[size:])
	}
	return strings.Join(words, " ")
}

// normalizeEmail canonicalizes an address for comparison and dedup. The
// original casing is preserved separately for display and delivery.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validEmail reports whether the address is syntactically deliverable.
func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// Reject "Name <a@b>" forms: recipient entries carry a bare address.
	return addr.Address == email
}
