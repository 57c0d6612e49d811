// internal/domain/attendance/credentials.go
package attendance

import "fmt"

// Credentials identify the portal user for a single run.
// They are held in memory only and never written anywhere.
type Credentials struct {
	Username string
	Password string
}

// Valid reports whether both secrets are present.
func (c Credentials) Valid() bool {
	return c.Username != "" && c.Password != ""
}

// String hides the password so credentials can't leak through %v.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username: %q, Password: [REDACTED]}", c.Username)
}

func (c Credentials) GoString() string {
	return c.String()
}
