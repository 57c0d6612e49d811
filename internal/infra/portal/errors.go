package portal

import (
	"fmt"

	"github.com/pkg/errors"

	"attendance_bot/internal/domain/attendance"
)

func transportError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", attendance.ErrTransport, op, err)
}

func unexpectedf(format string, args ...any) error {
	return errors.Wrapf(attendance.ErrUnexpectedResponse, format, args...)
}

func authFailedf(format string, args ...any) error {
	return errors.Wrapf(attendance.ErrAuthenticationFailed, format, args...)
}

func expiredf(format string, args ...any) error {
	return errors.Wrapf(attendance.ErrSessionExpired, format, args...)
}
