package config

import (
	"os"
	"path/filepath"
)

const (
	AuthModeNative     = "native"
	AuthModeShibboleth = "shibboleth"
)

// Default returns the configuration used before any file or environment
// values are applied.
func Default() *AppConfig {
	return &AppConfig{
		LogLevel:              "info",
		Environment:           "development",
		RequestTimeoutSeconds: 30,
		LockFile:              filepath.Join(os.TempDir(), "attendance_bot.lock"),
		Portal: PortalConfig{
			AuthMode:        AuthModeNative,
			LoginPath:       "/login/index.php",
			LoginTokenField: "logintoken",
			LogoutMarker:    "login/logout.php",
			LoginErrorMarkers: []string{
				"loginerrormessage",
				"loginerrors",
				"Invalid login, please try again",
				"Nom d'utilisateur ou mot de passe erroné",
				"Identifiant ou mot de passe incorrect",
			},
			SubmitPath:     "/mod/attendance/attendance.php",
			SubmitLinkText: "Envoyer le statut de présence",
			PresenceLabel:  `(?i)^\s*pr[ée]sent`,
			SuccessMarkers: []string{
				"Votre présence à cette session a été enregistrée.",
				"Your attendance in this session has been recorded.",
			},
			AlreadyMarkers: []string{
				"Votre présence a déjà été enregistrée",
				"Your attendance has already been recorded",
			},
			ExpiredMarkers: []string{
				"sessionerroruser",
				"Your session has timed out",
				"Votre session a expiré",
			},
			UserAgent: "attendance_bot/1.0",
			Timezone:  "Local",
			Shibboleth: ShibbolethConfig{
				LoginPath:   "/auth/shibboleth/login.php",
				IdPEntityID: "urn:mace:cru.fr:federation:univ-ubs.fr",
				TokenField:  "execution",
				ACSPath:     "/Shibboleth.sso/SAML2/POST",
			},
		},
		Notifications: NotificationsConfig{
			DesktopTitle:   "Attendance",
			TimeoutSeconds: 10,
		},
	}
}
