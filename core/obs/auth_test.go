package obs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthToken(t *testing.T) {
	// Reference vector from the obs-websocket v5 auth scheme:
	// base64(sha256(base64(sha256(password+salt)) + challenge)).
	got := authToken("supersecret", "PZVbYpvAnZut2SS6JNJytDm9", "ztTBnnuqrqaKDzRM3xcVdbYm")
	assert.Equal(t, "8feeOF01ujNBiQFBqMMiEb6/yB/tJDZyX2sosCp5zLU=", got)
}

func TestAuthTokenEmptyPassword(t *testing.T) {
	got := authToken("", "abc", "def")
	assert.Equal(t, "Bgd1skVrUD3eg/l0wQM6+i829tg60hPywyKoDpgGQ4Y=", got)
}
