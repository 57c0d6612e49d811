package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"attendance_bot/internal/domain/attendance"
	"attendance_bot/internal/domain/notification"
)

const userAgent = "attendance_bot/1.0"

type webhookPayload struct {
	Outcome    attendance.Outcome `json:"outcome"`
	Message    string             `json:"message"`
	Timestamp  time.Time          `json:"timestamp"`
	Stage      attendance.Stage   `json:"stage"`
	RunID      string             `json:"run_id,omitempty"`
	Instrument string             `json:"instrument,omitempty"`
	// Content repeats Message; Discord webhooks read only this field.
	Content string `json:"content"`
}

// Webhook posts the event as JSON to a single URL.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *Webhook) Kind() notification.Kind {
	return notification.KindWebhook
}

func (w *Webhook) Send(ctx context.Context, ev attendance.Event) error {
	data := webhookPayload{
		Outcome:   ev.Outcome(),
		Message:   ev.Message,
		Timestamp: ev.Timestamp,
		Stage:     ev.Result.Stage,
		RunID:     ev.Result.RunID,
		Content:   ev.Message,
	}
	if ev.Result.Instrument != nil {
		data.Instrument = ev.Result.Instrument.String()
	}
	body, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encode webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build webhook request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "send webhook")
	}
	defer resp.Body.Close()
	return checkStatus("webhook", resp)
}

// checkStatus turns a non-2xx answer into an error carrying the start of the body.
func checkStatus(name string, resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return errors.Errorf("%s returned %d: %s", name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
