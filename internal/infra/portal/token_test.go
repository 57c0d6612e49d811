package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance_bot/internal/domain/attendance"
)

func TestExtractToken(t *testing.T) {
	token, err := ExtractToken([]byte(`<form><input type="hidden" name="logintoken" value=" abc123 "></form>`), "logintoken")
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	_, err = ExtractToken([]byte(`<form><input type="hidden" name="other" value="x"></form>`), "logintoken")
	assert.ErrorIs(t, err, attendance.ErrUnexpectedResponse)

	_, err = ExtractToken([]byte(`<form><input type="hidden" name="logintoken" value=""></form>`), "logintoken")
	assert.ErrorIs(t, err, attendance.ErrUnexpectedResponse)
}

func TestExtractSessKey(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "javascript config",
			body: `<script>M.cfg = {"wwwroot":"https://m.example","sesskey":"k1"};</script>`,
			want: "k1",
		},
		{
			name: "logout link",
			body: `<a href="https://m.example/login/logout.php?sesskey=k2">Log out</a>`,
			want: "k2",
		},
		{
			name: "form field",
			body: `<form><input type="hidden" name="sesskey" value="k3"></form>`,
			want: "k3",
		},
		{
			name: "absent",
			body: `<p>nothing here</p>`,
			want: "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, extractSessKey([]byte(tc.body), "login/logout.php"))
		})
	}
}

func TestContainsAnyMatchesEntities(t *testing.T) {
	body := []byte(`<div>Votre pr&eacute;sence &agrave; cette session a &eacute;t&eacute; enregistr&eacute;e.</div>`)
	assert.True(t, containsAny(body, []string{"Votre présence à cette session a été enregistrée."}))
	assert.False(t, containsAny(body, []string{"", "absent"}))
}
