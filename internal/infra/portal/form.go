package portal

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// attendanceForm is the self-marking form ready to be posted.
type attendanceForm struct {
	action string
	values url.Values
	status string // label of the chosen presence option, for logging
}

// parseAttendanceForm finds the self-marking form on page and fills in the
// presence option. token fills an empty sesskey field.
func (c *Contract) parseAttendanceForm(page *Response, token string) (*attendanceForm, error) {
	doc, err := parseHTML(page.Body)
	if err != nil {
		return nil, err
	}
	form := c.findAttendanceForm(doc)
	if form == nil {
		return nil, unexpectedf("no attendance form on %s", page.URL.Path)
	}

	values := url.Values{}
	var radios []*html.Node
	submitted := false
	for _, in := range findAll(form, func(n *html.Node) bool { return isElement(n, atom.Input) }) {
		name := attrValue(in, "name")
		if name == "" {
			continue
		}
		switch strings.ToLower(attrValue(in, "type")) {
		case "radio":
			radios = append(radios, in)
		case "checkbox":
			if _, checked := attr(in, "checked"); checked {
				values.Add(name, checkboxValue(in))
			}
		case "submit":
			if !submitted {
				values.Set(name, attrValue(in, "value"))
				submitted = true
			}
		case "button", "image", "reset", "file":
		default:
			values.Set(name, attrValue(in, "value"))
		}
	}

	out := &attendanceForm{values: values}
	if len(radios) > 0 {
		choice, label := c.pickPresence(doc, radios)
		if choice == nil {
			return nil, unexpectedf("no presence option matches %q", c.PresenceLabel.String())
		}
		values.Set(attrValue(choice, "name"), attrValue(choice, "value"))
		out.status = label
	}
	if values.Get("sesskey") == "" && token != "" {
		values.Set("sesskey", token)
	}

	action := page.URL
	if raw := attrValue(form, "action"); raw != "" {
		u, err := page.Resolve(raw)
		if err != nil {
			return nil, unexpectedf("attendance form action %q: %v", raw, err)
		}
		action = u
	}
	out.action = action.String()
	return out, nil
}

func (c *Contract) findAttendanceForm(doc *html.Node) *html.Node {
	forms := findAll(doc, func(n *html.Node) bool { return isElement(n, atom.Form) })
	for _, f := range forms {
		if findFirst(f, inputNamed("sessid")) != nil || findFirst(f, inputNamed("status")) != nil {
			return f
		}
	}
	for _, f := range forms {
		if c.SubmitPath != "" && strings.Contains(attrValue(f, "action"), c.SubmitPath) {
			return f
		}
	}
	return nil
}

// pickPresence chooses the radio whose label matches the presence pattern.
// A lone radio is taken whatever its label says.
func (c *Contract) pickPresence(doc *html.Node, radios []*html.Node) (*html.Node, string) {
	for _, r := range radios {
		label := radioLabel(doc, r)
		if c.PresenceLabel.MatchString(label) {
			return r, label
		}
	}
	if len(radios) == 1 {
		return radios[0], radioLabel(doc, radios[0])
	}
	return nil, ""
}

func radioLabel(doc, radio *html.Node) string {
	if id := attrValue(radio, "id"); id != "" {
		label := findFirst(doc, func(n *html.Node) bool {
			return isElement(n, atom.Label) && attrValue(n, "for") == id
		})
		if label != nil {
			return textContent(label)
		}
	}
	if label := closest(radio, atom.Label); label != nil {
		return textContent(label)
	}
	for s := radio.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode && s.DataAtom == atom.Input {
			break
		}
		if t := textContent(s); t != "" {
			return t
		}
	}
	return ""
}

func checkboxValue(n *html.Node) string {
	if v, ok := attr(n, "value"); ok {
		return v
	}
	return "on"
}
