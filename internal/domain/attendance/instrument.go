package attendance

import "time"

// Instrument is one open opportunity to record presence.
type Instrument struct {
	ID                 string
	DisplayName        string
	SubmissionEndpoint string
	SubmissionToken    string
	OpenedAt           time.Time // zero when the portal shows no time range
	ClosesAt           time.Time
	Source             string // listing page the instrument was found on
}

// HasWindow reports whether the opening window is known.
func (i Instrument) HasWindow() bool {
	return !i.OpenedAt.IsZero() && !i.ClosesAt.IsZero()
}

// OpenAt reports whether t falls inside the window. Instruments without a
// known window are considered open.
func (i Instrument) OpenAt(t time.Time) bool {
	if !i.HasWindow() {
		return true
	}
	return !t.Before(i.OpenedAt) && t.Before(i.ClosesAt)
}

func (i Instrument) String() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.ID
}
