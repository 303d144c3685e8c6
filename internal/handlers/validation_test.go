package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/lockguard/internal/models"
	pkghttp "github.com/BradenHooton/lockguard/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequest_ReportsJSONFieldNames(t *testing.T) {
	tests := []struct {
		name    string
		req     interface{}
		wantErr string
	}{
		{"valid login", LoginRequest{Email: "user@example.com", Password: "x"}, ""},
		{"missing email", LoginRequest{Password: "x"}, "validation failed: email: this field is required"},
		{"bad email", LoginRequest{Email: "nope", Password: "x"}, "validation failed: email: must be a valid email address"},
		{"zero duration", models.DurationSetting{Value: 0, Unit: models.UnitHour}, "validation failed: value: must be greater than or equal to 1"},
		{"bad unit", models.DurationSetting{Value: 1, Unit: "week"}, "validation failed: unit: must be one of: minute hour day"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestWriteValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	writeValidationError(w, ValidateRequest(LoginRequest{Email: "user@example.com"}))

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 400, w.Code)
	assert.Equal(t, "bad_request", resp.Error)
	assert.Equal(t, "password: this field is required", resp.Details)
}
