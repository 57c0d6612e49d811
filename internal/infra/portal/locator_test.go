package portal

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance_bot/internal/domain/attendance"
	"attendance_bot/internal/testsupport"
)

func loggedIn(t *testing.T, portal *testsupport.Portal, opts ...testsupport.ConfigOption) (parts, *attendance.Session) {
	t.Helper()
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithPortal(portal)}, opts...)...)
	p := newParts(t, cfg)
	session, err := p.auth.Login(context.Background(), credentials(cfg))
	require.NoError(t, err)
	return p, session
}

func TestFindActiveInstrumentPicksMostRecentlyOpened(t *testing.T) {
	portal := testsupport.NewPortal(t, "student", "hunter2")
	portal.SetRows(
		testsupport.Row{SessID: "100", Description: "Algorithms lecture", Window: "08:00 - 12:00", Link: true},
		testsupport.Row{SessID: "200", Description: "Networks lab", Window: "10:30 - 12:30", Link: true},
		testsupport.Row{SessID: "300", Description: "Databases lab", Window: "14:00 - 16:00", Link: true},
		testsupport.Row{SessID: "400", Description: "Seminar", Window: "10:45 - 12:00"},
	)
	p, session := loggedIn(t, portal)
	p.locator.now = func() time.Time { return todayAt(11, 0) }

	inst, err := p.locator.FindActiveInstrument(context.Background(), session)
	require.NoError(t, err)
	require.NotNil(t, inst)

	assert.Equal(t, "200", inst.ID)
	assert.Equal(t, "Networks lab", inst.DisplayName)
	assert.Equal(t, session.SessKey, inst.SubmissionToken)
	assert.True(t, todayAt(10, 30).Equal(inst.OpenedAt), "opened at %s", inst.OpenedAt)
	assert.True(t, todayAt(12, 30).Equal(inst.ClosesAt), "closes at %s", inst.ClosesAt)

	endpoint, err := url.Parse(inst.SubmissionEndpoint)
	require.NoError(t, err)
	assert.Equal(t, "/mod/attendance/attendance.php", endpoint.Path)
	assert.Equal(t, "200", endpoint.Query().Get("sessid"))
	assert.Empty(t, endpoint.Query().Get("sesskey"), "token travels separately")
}

func TestFindActiveInstrumentNoneOpen(t *testing.T) {
	portal := testsupport.NewPortal(t, "student", "hunter2")
	portal.SetRows(
		testsupport.Row{SessID: "300", Description: "Databases lab", Window: "14:00 - 16:00", Link: true},
		testsupport.Row{SessID: "400", Description: "Seminar", Window: "10:00 - 12:00"},
	)
	p, session := loggedIn(t, portal)
	p.locator.now = func() time.Time { return todayAt(11, 0) }

	inst, err := p.locator.FindActiveInstrument(context.Background(), session)
	require.NoError(t, err)
	assert.Nil(t, inst)
	assert.Zero(t, portal.Stats().FormGets)
}

func TestFindActiveInstrumentWithoutWindow(t *testing.T) {
	portal := testsupport.NewPortal(t, "student", "hunter2")
	portal.SetRows(testsupport.Row{SessID: "500", Description: "Drop-in", Link: true})
	p, session := loggedIn(t, portal)

	inst, err := p.locator.FindActiveInstrument(context.Background(), session)
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, "500", inst.ID)
	assert.False(t, inst.HasWindow())
}

func TestFindActiveInstrumentTieKeepsDocumentOrder(t *testing.T) {
	portal := testsupport.NewPortal(t, "student", "hunter2")
	portal.SetRows(
		testsupport.Row{SessID: "1", Description: "First", Window: "10:00 - 12:00", Link: true},
		testsupport.Row{SessID: "2", Description: "Second", Window: "10:00 - 11:30", Link: true},
	)
	p, session := loggedIn(t, portal)
	p.locator.now = func() time.Time { return todayAt(11, 0) }

	inst, err := p.locator.FindActiveInstrument(context.Background(), session)
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, "1", inst.ID)
}

func TestFindActiveInstrumentReadsWindowsInPortalTimezone(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	portal := testsupport.NewPortal(t, "student", "hunter2")
	portal.SetRows(testsupport.Row{SessID: "42", Description: "Networks lab", Window: "10:00 - 12:00", Link: true})
	p, session := loggedIn(t, portal, testsupport.WithTimezone("Europe/Paris"))
	// 09:30 UTC is 11:30 in Paris.
	p.locator.now = func() time.Time { return time.Date(2025, time.October, 13, 9, 30, 0, 0, time.UTC) }

	inst, err := p.locator.FindActiveInstrument(context.Background(), session)
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, "42", inst.ID)
	want := time.Date(2025, time.October, 13, 10, 0, 0, 0, paris)
	assert.True(t, want.Equal(inst.OpenedAt), "opened at %s, want %s", inst.OpenedAt, want)
}

func TestFindActiveInstrumentWindowAcrossMidnight(t *testing.T) {
	portal := testsupport.NewPortal(t, "student", "hunter2")
	portal.SetRows(testsupport.Row{SessID: "77", Description: "Night shift", Window: "23:00 - 01:00", Link: true})
	p, session := loggedIn(t, portal)
	p.locator.now = func() time.Time { return todayAt(0, 30) }

	inst, err := p.locator.FindActiveInstrument(context.Background(), session)
	require.NoError(t, err)
	require.NotNil(t, inst)
	assert.Equal(t, "77", inst.ID)
	assert.True(t, todayAt(23, 0).AddDate(0, 0, -1).Equal(inst.OpenedAt), "opened at %s", inst.OpenedAt)
	assert.True(t, todayAt(1, 0).Equal(inst.ClosesAt), "closes at %s", inst.ClosesAt)
}

func TestParseWindowAfterMidnight(t *testing.T) {
	opens, closes, ok := parseWindow("23:00 - 01:00", todayAt(0, 30))
	require.True(t, ok)
	assert.True(t, todayAt(23, 0).AddDate(0, 0, -1).Equal(opens), "opens %s", opens)
	assert.True(t, todayAt(1, 0).Equal(closes), "closes %s", closes)

	_, closes, ok = parseWindow("23:00 - 01:00", todayAt(1, 0))
	require.True(t, ok)
	assert.True(t, todayAt(1, 0).AddDate(0, 0, 1).Equal(closes), "window that just ended rolls to tonight")
}

func TestFindActiveInstrumentListingFailure(t *testing.T) {
	portal := testsupport.NewPortal(t, "student", "hunter2")
	portal.FailListing(http.StatusInternalServerError)
	p, session := loggedIn(t, portal)

	_, err := p.locator.FindActiveInstrument(context.Background(), session)
	assert.ErrorIs(t, err, attendance.ErrUnexpectedResponse)
}

func TestFindActiveInstrumentRequiresSession(t *testing.T) {
	portal := testsupport.NewPortal(t, "student", "hunter2")
	cfg := testsupport.NewConfig(t, testsupport.WithPortal(portal))
	p := newParts(t, cfg)

	_, err := p.locator.FindActiveInstrument(context.Background(), &attendance.Session{})
	assert.ErrorIs(t, err, attendance.ErrAuthenticationFailed)
	assert.Zero(t, portal.Stats().ListingGets)
}

func TestParseWindow(t *testing.T) {
	now := todayAt(9, 0)
	tests := []struct {
		text   string
		ok     bool
		opens  time.Time
		closes time.Time
	}{
		{text: "Mon 13 Oct 2025 10:00 - 12:00", ok: true, opens: todayAt(10, 0), closes: todayAt(12, 0)},
		{text: "lun. 13 oct. 2025 8h30 – 10h00", ok: true, opens: todayAt(8, 30), closes: todayAt(10, 0)},
		{text: "10AM - 12:30PM", ok: true, opens: todayAt(10, 0), closes: todayAt(12, 30)},
		{text: "10 - 11:30am", ok: true, opens: todayAt(10, 0), closes: todayAt(11, 30)},
		{text: "23:00 - 01:00", ok: true, opens: todayAt(23, 0), closes: todayAt(1, 0).AddDate(0, 0, 1)},
		{text: "2025-10-13"},
		{text: "Room 12 - building 4"},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			opens, closes, ok := parseWindow(tc.text, now)
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.True(t, tc.opens.Equal(opens), "opens %s, want %s", opens, tc.opens)
				assert.True(t, tc.closes.Equal(closes), "closes %s, want %s", closes, tc.closes)
			}
		})
	}
}
