// internal/domain/notification/shared_types.go
package notification

import (
	"strings"
	"time"
)

// Kind identifies a delivery mechanism. The set is closed.
type Kind string

const (
	KindWebhook  Kind = "webhook"
	KindNtfy     Kind = "ntfy"
	KindDesktop  Kind = "desktop"
	KindTelegram Kind = "telegram"
)

// Kinds lists every supported backend in dispatch order.
func Kinds() []Kind {
	return []Kind{KindWebhook, KindNtfy, KindDesktop, KindTelegram}
}

// ParseKind accepts a backend name case-insensitively.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// Delivery is the per-backend result of one dispatch.
type Delivery struct {
	Backend  Kind
	Err      error
	Duration time.Duration
}

func (d Delivery) OK() bool {
	return d.Err == nil
}
