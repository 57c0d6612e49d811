package testsupport

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

const (
	sessionCookie = "MoodleSession"
	presentStatus = "101"
	absentStatus  = "102"
)

// Row is one session line on the fake attendance listing.
type Row struct {
	SessID      string
	Description string
	Window      string // e.g. "10:00 - 12:00"; empty renders no time
	Link        bool   // render the self-marking link
}

// PortalStats counts the requests the fake portal served.
type PortalStats struct {
	LoginPosts  int
	ListingGets int
	FormGets    int
	SubmitPosts int
	SAMLPosts   int
}

// Portal is an in-memory Moodle look-alike covering login, the attendance
// listing and the self-marking form.
type Portal struct {
	Server *httptest.Server

	mu            sync.Mutex
	username      string
	password      string
	sessions      map[string]string // cookie value -> sesskey
	seq           int
	rows          []Row
	marked        map[string]bool
	expireOnForm  int
	expireOnPost  int
	recordOnVisit bool
	noSesskey     bool
	listingStatus int
	stats         PortalStats
	submitted     []string // status values posted
}

// NewPortal starts a fake portal accepting username/password.
func NewPortal(t testing.TB, username, password string) *Portal {
	t.Helper()
	p := &Portal{
		username: username,
		password: password,
		sessions: map[string]string{},
		marked:   map[string]bool{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/login/index.php", p.handleLogin)
	mux.HandleFunc("/my/", p.handleDashboard)
	mux.HandleFunc("/mod/attendance/view.php", p.handleListing)
	mux.HandleFunc("/mod/attendance/attendance.php", p.handleAttendance)
	mux.HandleFunc("/auth/shibboleth/login.php", p.handleShibbolethStart)
	mux.HandleFunc("/idp/profile/SAML2/Redirect/SSO", p.handleIdP)
	mux.HandleFunc("/Shibboleth.sso/SAML2/POST", p.handleACS)
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

// URL is the portal base URL.
func (p *Portal) URL() string {
	return p.Server.URL
}

// ListingPath is the listing page configured for the bot.
func (p *Portal) ListingPath() string {
	return "/mod/attendance/view.php?id=433340"
}

// SetRows replaces the listing rows.
func (p *Portal) SetRows(rows ...Row) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = rows
}

// MarkPresent pretends the user already recorded presence for sessID.
func (p *Portal) MarkPresent(sessID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marked[sessID] = true
}

// ExpireSessionsOnForm makes the next n form loads find every session gone.
func (p *Portal) ExpireSessionsOnForm(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expireOnForm = n
}

// ExpireSessionsOnSubmit makes the next n form posts find every session gone.
func (p *Portal) ExpireSessionsOnSubmit(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expireOnPost = n
}

// RecordOnVisit makes the self-marking link record presence directly.
func (p *Portal) RecordOnVisit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recordOnVisit = true
}

// OmitSesskey drops the sesskey from the dashboard markup.
func (p *Portal) OmitSesskey() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.noSesskey = true
}

// FailListing makes the listing answer with status.
func (p *Portal) FailListing(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listingStatus = status
}

func (p *Portal) Stats() PortalStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Submitted returns the status values posted so far.
func (p *Portal) Submitted() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.submitted...)
}

// Marked reports whether presence is recorded for sessID.
func (p *Portal) Marked(sessID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.marked[sessID]
}

func (p *Portal) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		p.renderLogin(w, "")
		return
	}
	_ = r.ParseForm()

	p.mu.Lock()
	p.stats.LoginPosts++
	ok := r.PostForm.Get("logintoken") == "login-token-1" &&
		r.PostForm.Get("username") == p.username &&
		r.PostForm.Get("password") == p.password
	p.mu.Unlock()

	if !ok {
		p.renderLogin(w, `<div class="loginerrors"><a id="loginerrormessage" href="#">Invalid login, please try again</a></div>`)
		return
	}
	p.startSession(w)
	http.Redirect(w, r, "/my/", http.StatusSeeOther)
}

func (p *Portal) renderLogin(w http.ResponseWriter, banner string) {
	fmt.Fprintf(w, `<html><body>%s
<form action="/login/index.php" method="post" id="login">
<input type="hidden" name="logintoken" value="login-token-1">
<input type="text" name="username"><input type="password" name="password">
<button type="submit" id="loginbtn">Log in</button>
</form></body></html>`, banner)
}

func (p *Portal) startSession(w http.ResponseWriter) {
	p.mu.Lock()
	p.seq++
	id := fmt.Sprintf("cookie-%d", p.seq)
	p.sessions[id] = fmt.Sprintf("sess-key-%d", p.seq)
	p.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: id, Path: "/", HttpOnly: true})
}

// session returns the sesskey for the request's cookie.
func (p *Portal) session(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key, ok := p.sessions[c.Value]
	return key, ok
}

func (p *Portal) handleDashboard(w http.ResponseWriter, r *http.Request) {
	key, ok := p.session(r)
	if !ok {
		http.Redirect(w, r, "/login/index.php", http.StatusSeeOther)
		return
	}
	p.mu.Lock()
	hide := p.noSesskey
	p.mu.Unlock()
	if hide {
		fmt.Fprint(w, `<html><body><h1>Dashboard</h1></body></html>`)
		return
	}
	fmt.Fprintf(w, `<html><head><script>M.cfg = {"wwwroot":"%s","sesskey":"%s"};</script></head>
<body><h1>Dashboard</h1><a href="%s/login/logout.php?sesskey=%s">Log out</a></body></html>`, p.URL(), key, p.URL(), key)
}

func (p *Portal) handleListing(w http.ResponseWriter, r *http.Request) {
	key, ok := p.session(r)
	if !ok {
		http.Redirect(w, r, "/login/index.php", http.StatusSeeOther)
		return
	}
	p.mu.Lock()
	p.stats.ListingGets++
	status := p.listingStatus
	rows := append([]Row(nil), p.rows...)
	p.mu.Unlock()

	if status != 0 {
		http.Error(w, "listing unavailable", status)
		return
	}

	var b strings.Builder
	b.WriteString(`<html><body><div role="main"><h2>Attendance</h2><table class="generaltable">`)
	b.WriteString(`<tr><th>Description</th><th>Date</th><th>Status</th></tr>`)
	for _, row := range rows {
		fmt.Fprintf(&b, `<tr><td class="desccol">%s</td><td class="datecol">Mon 13 Oct 2025 %s</td><td>`,
			html.EscapeString(row.Description), html.EscapeString(row.Window))
		if row.Link {
			fmt.Fprintf(&b, `<a href="%s/mod/attendance/attendance.php?sessid=%s&amp;sesskey=%s">Envoyer le statut de présence</a>`,
				p.URL(), row.SessID, key)
		} else {
			b.WriteString("?")
		}
		b.WriteString(`</td></tr>`)
	}
	b.WriteString(`</table></div></body></html>`)
	fmt.Fprint(w, b.String())
}

func (p *Portal) handleAttendance(w http.ResponseWriter, r *http.Request) {
	key, ok := p.session(r)
	if ok {
		p.mu.Lock()
		switch {
		case r.Method == http.MethodGet && p.expireOnForm > 0:
			p.expireOnForm--
			p.sessions = map[string]string{}
			ok = false
		case r.Method == http.MethodPost && p.expireOnPost > 0:
			p.expireOnPost--
			p.stats.SubmitPosts++
			p.sessions = map[string]string{}
			ok = false
		}
		p.mu.Unlock()
	}
	if !ok {
		http.Redirect(w, r, "/login/index.php", http.StatusSeeOther)
		return
	}
	_ = r.ParseForm()
	sessID := r.Form.Get("sessid")

	if r.Method == http.MethodGet {
		p.mu.Lock()
		p.stats.FormGets++
		marked := p.marked[sessID]
		direct := p.recordOnVisit
		if direct {
			p.marked[sessID] = true
		}
		p.mu.Unlock()

		switch {
		case marked:
			fmt.Fprint(w, `<html><body><div class="alert">Votre présence a déjà été enregistrée</div></body></html>`)
		case direct:
			fmt.Fprint(w, `<html><body><div class="alert-success">Votre présence à cette session a été enregistrée.</div></body></html>`)
		default:
			fmt.Fprintf(w, `<html><body><form action="attendance.php" method="post" class="mform">
<input type="hidden" name="sessid" value="%s">
<input type="hidden" name="sesskey" value="%s">
<input type="hidden" name="_qf__mod_attendance_form_studentattendance" value="1">
<label><input type="radio" name="status" value="%s" id="id_status_%s"> Présent</label>
<input type="radio" name="status" value="%s" id="id_status_%s"><label for="id_status_%s">Absent</label>
<input type="submit" name="submitbutton" value="Enregistrer">
<input type="submit" name="cancel" value="Annuler">
</form></body></html>`, html.EscapeString(sessID), key, presentStatus, presentStatus, absentStatus, absentStatus, absentStatus)
		}
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.SubmitPosts++
	p.submitted = append(p.submitted, r.PostForm.Get("status"))
	if r.PostForm.Get("sesskey") != key {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `<html><body>Invalid sesskey</body></html>`)
		return
	}
	if p.marked[sessID] {
		fmt.Fprint(w, `<html><body>Votre présence a déjà été enregistrée</body></html>`)
		return
	}
	if r.PostForm.Get("status") != presentStatus {
		fmt.Fprint(w, `<html><body>Statut enregistré: absent</body></html>`)
		return
	}
	p.marked[sessID] = true
	fmt.Fprint(w, `<html><body><div class="alert-success">Votre pr&eacute;sence &agrave; cette session a &eacute;t&eacute; enregistr&eacute;e.</div></body></html>`)
}

func (p *Portal) handleShibbolethStart(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		fmt.Fprint(w, `<html><body><form method="post"><select name="idp"><option value="urn:test:idp">Test IdP</option></select></form></body></html>`)
		return
	}
	_ = r.ParseForm()
	if r.PostForm.Get("idp") == "" {
		http.Error(w, "missing idp", http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, "/idp/profile/SAML2/Redirect/SSO?execution=e1s1", http.StatusSeeOther)
}

func (p *Portal) handleIdP(w http.ResponseWriter, r *http.Request) {
	renderForm := func(banner string) {
		fmt.Fprintf(w, `<html><body>%s<form method="post" action="/idp/profile/SAML2/Redirect/SSO?execution=e1s1">
<input type="text" name="username"><input type="password" name="password">
<input type="hidden" name="execution" value="e1s1">
<input type="hidden" name="_eventId" value="submit"></form></body></html>`, banner)
	}
	if r.Method == http.MethodGet {
		renderForm("")
		return
	}
	_ = r.ParseForm()
	p.mu.Lock()
	p.stats.LoginPosts++
	ok := r.PostForm.Get("execution") == "e1s1" && r.PostForm.Get("_eventId") == "submit" &&
		r.PostForm.Get("username") == p.username && r.PostForm.Get("password") == p.password
	p.mu.Unlock()
	if !ok {
		renderForm(`<p class="output-message o-error">Identifiant ou mot de passe incorrect</p>`)
		return
	}
	fmt.Fprint(w, `<html><body onload="document.forms[0].submit()">
<form method="post" action="/Shibboleth.sso/SAML2/POST">
<input type="hidden" name="RelayState" value="ss:mem:relay">
<input type="hidden" name="SAMLResponse" value="PHNhbWxwOlJlc3BvbnNlPg==">
</form></body></html>`)
}

func (p *Portal) handleACS(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	p.mu.Lock()
	p.stats.SAMLPosts++
	p.mu.Unlock()
	if r.PostForm.Get("SAMLResponse") == "" || r.PostForm.Get("RelayState") == "" {
		http.Error(w, "bad assertion", http.StatusBadRequest)
		return
	}
	p.startSession(w)
	http.Redirect(w, r, "/my/", http.StatusSeeOther)
}
