package repositories

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityStateRepository_Decode(t *testing.T) {
	repo := &SecurityStateRepository{logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}

	tests := []struct {
		name         string
		raw          string
		wantErr      bool
		wantLocked   bool
		wantAttempts int
	}{
		{"empty blob", "", false, false, 0},
		{"missing keys", `{}`, false, false, 0},
		{"locked with attempts", `{"locked":true,"failed_attempts":[{"time":"2024-03-01T12:00:00Z","source_address":"10.0.0.1"}]}`, false, true, 1},
		{"attempt log of wrong type", `{"locked":true,"failed_attempts":{"bad":1}}`, true, false, 0},
		{"locked flag of wrong type", `{"locked":"yes","failed_attempts":[]}`, true, false, 0},
		{"not json", `locked`, true, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := repo.decode("acct-1", []byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, state)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLocked, state.Locked)
			assert.Len(t, state.FailedAttempts, tt.wantAttempts)
			assert.NotNil(t, state.FailedAttempts)
		})
	}
}
