package domain

import (
	"net/url"
	"sort"
	"strings"
)

// CanonicalURL is the comparison form of a watched URL: lower-case scheme
// and host, no fragment, no tracking parameters, sorted query values.
// Unparseable input is returned trimmed.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") ||
			lk == "gclid" || lk == "fbclid" || lk == "msclkid" ||
			lk == "mc_cid" || lk == "mc_eid" {
			q.Del(k)
		}
	}
	for k := range q {
		sort.Strings(q[k])
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// SameTarget reports whether two job definitions watch the same page under
// the same name.
func SameTarget(aName, aURL, bName, bURL string) bool {
	return strings.TrimSpace(aName) == strings.TrimSpace(bName) && CanonicalURL(aURL) == CanonicalURL(bURL)
}
