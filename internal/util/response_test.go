package util

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", ErrRatingOutOfRange, http.StatusBadRequest, "rating must be between 1 and 5"},
		{"unauthenticated", ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{"not found", ErrCertificateNotFound, http.StatusNotFound, "certificate not found"},
		{"conflict", ErrEmailRegistered, http.StatusConflict, "该邮箱已被注册"},
		{"notification", fmt.Errorf("%w: smtp: timeout", ErrNotification), http.StatusBadGateway, "failed to send email"},
		{"persistence", Persistence("insert certificate", errors.New("deadlock")), http.StatusInternalServerError, "Internal server error"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			RespondError(c, tc.err)

			assert.Equal(t, tc.status, w.Code)
			var body Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.status, body.Code)
			assert.Equal(t, tc.message, body.Message)
		})
	}
}

func TestValidationfWrapsKind(t *testing.T) {
	err := Validationf("moduleId must be at most %d characters", 64)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "moduleId must be at most 64 characters", publicMessage(err))

	assert.NoError(t, Persistence("noop", nil))
}
