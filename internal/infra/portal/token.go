package portal

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var sesskeyPattern = regexp.MustCompile(`"sesskey"\s*:\s*"([^"]+)"`)

// ExtractToken returns the value of the form field named field, typically a
// hidden anti-forgery input. A missing or empty field means the page is not
// the one we expected.
func ExtractToken(body []byte, field string) (string, error) {
	doc, err := parseHTML(body)
	if err != nil {
		return "", err
	}
	return tokenFrom(doc, field)
}

func tokenFrom(doc *html.Node, field string) (string, error) {
	n := findFirst(doc, inputNamed(field))
	if n == nil {
		return "", unexpectedf("token field %q not found", field)
	}
	value := strings.TrimSpace(attrValue(n, "value"))
	if value == "" {
		return "", unexpectedf("token field %q is empty", field)
	}
	return value, nil
}

// hasInput reports whether the page carries a form field named field.
func hasInput(body []byte, field string) bool {
	doc, err := parseHTML(body)
	if err != nil {
		return false
	}
	return findFirst(doc, inputNamed(field)) != nil
}

// extractSessKey finds Moodle's per-session key, first in the page's JS
// config, then in the logout link, then in any sesskey field.
func extractSessKey(body []byte, logoutMarker string) string {
	if m := sesskeyPattern.FindSubmatch(body); m != nil {
		return string(m[1])
	}
	doc, err := parseHTML(body)
	if err != nil {
		return ""
	}
	if logoutMarker != "" {
		link := findFirst(doc, func(n *html.Node) bool {
			return isElement(n, atom.A) && strings.Contains(attrValue(n, "href"), logoutMarker)
		})
		if link != nil {
			if u, err := url.Parse(attrValue(link, "href")); err == nil {
				if key := u.Query().Get("sesskey"); key != "" {
					return key
				}
			}
		}
	}
	if n := findFirst(doc, inputNamed("sesskey")); n != nil {
		return strings.TrimSpace(attrValue(n, "value"))
	}
	return ""
}
