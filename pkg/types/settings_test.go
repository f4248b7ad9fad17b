package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNotificationPreferencesDefaults(t *testing.T) {
	defaults := DefaultNotificationPreferences()

	tests := []struct {
		name string
		raw  []byte
	}{
		{"nil blob", nil},
		{"empty blob", []byte{}},
		{"malformed json", []byte("{oops")},
		{"wrong type", []byte(`"a string"`)},
		{"unknown version", []byte(`{"version":99,"email_on_request":false}`)},
		{"missing version", []byte(`{"email_on_request":false}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, defaults, ParseNotificationPreferences(tt.raw))
		})
	}
}

func TestParseNotificationPreferencesRoundTrip(t *testing.T) {
	prefs := NotificationPreferences{
		Version:        NotificationPreferencesVersion,
		EmailOnRequest: false,
		EmailOnDecide:  true,
		EmailOnAccess:  true,
	}

	raw, err := json.Marshal(prefs)
	require.NoError(t, err)

	assert.Equal(t, prefs, ParseNotificationPreferences(raw))
}
