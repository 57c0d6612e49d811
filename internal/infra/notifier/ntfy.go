package notifier

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"attendance_bot/internal/domain/attendance"
	"attendance_bot/internal/domain/notification"
)

// Ntfy publishes the event to an ntfy topic URL.
type Ntfy struct {
	endpoint string
	client   *http.Client
}

func NewNtfy(endpoint string, timeout time.Duration) *Ntfy {
	return &Ntfy{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (n *Ntfy) Kind() notification.Kind {
	return notification.KindNtfy
}

func (n *Ntfy) Send(ctx context.Context, ev attendance.Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(ev.Message))
	if err != nil {
		return errors.Wrap(err, "build ntfy request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", ev.Title())
	req.Header.Set("Tags", strings.Join(ntfyTags(ev.Outcome()), ","))
	if ev.Outcome().Failed() {
		req.Header.Set("Priority", "high")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send ntfy notification")
	}
	defer resp.Body.Close()
	return checkStatus("ntfy", resp)
}

func ntfyTags(o attendance.Outcome) []string {
	switch o {
	case attendance.OutcomeSuccess:
		return []string{"attendance", "white_check_mark"}
	case attendance.OutcomeAlreadyMarked, attendance.OutcomeNoActiveInstrument:
		return []string{"attendance", "information_source"}
	default:
		return []string{"attendance", "warning"}
	}
}
