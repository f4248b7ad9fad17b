package types

import "encoding/json"

// NotificationPreferencesVersion is the current settings schema version
const NotificationPreferencesVersion = 1

// NotificationPreferences is the versioned notification settings document.
// The stored form is a single JSON blob; parsing is strict parse-or-default,
// never format sniffing across legacy shapes.
type NotificationPreferences struct {
	Version        int  `json:"version"`
	EmailOnRequest bool `json:"email_on_request"`
	EmailOnDecide  bool `json:"email_on_decide"`
	EmailOnAccess  bool `json:"email_on_access"`
}

// DefaultNotificationPreferences returns the defaults applied to new users
// and to blobs that fail to parse
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		Version:        NotificationPreferencesVersion,
		EmailOnRequest: true,
		EmailOnDecide:  true,
		EmailOnAccess:  false,
	}
}

// ParseNotificationPreferences parses a stored settings blob. An empty blob,
// a malformed blob, or an unknown version all yield the defaults.
func ParseNotificationPreferences(raw []byte) NotificationPreferences {
	if len(raw) == 0 {
		return DefaultNotificationPreferences()
	}

	var prefs NotificationPreferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return DefaultNotificationPreferences()
	}

	if prefs.Version != NotificationPreferencesVersion {
		return DefaultNotificationPreferences()
	}

	return prefs
}
