package session_test

import (
	"testing"

	"codeberg.org/mutker/rahoverlay/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const weekend = `
SessionInfo:
  Sessions:
    - SessionNum: 0
      SessionType: Practice
      SessionName: PRACTICE
    - SessionNum: 1
      SessionType: Lone Qualify
    - SessionNum: 2
      SessionType: Race
`

func TestClassifyYAML(t *testing.T) {
	assert.Equal(t, "practice", session.Classify(0, weekend))
	assert.Equal(t, "lone qualify", session.Classify(1, weekend))
	assert.Equal(t, "race", session.Classify(2, []byte(weekend)))
}

func TestClassifyStructured(t *testing.T) {
	meta := map[string]any{
		"SessionInfo": map[string]any{
			"Sessions": []any{
				map[string]any{"SessionNum": 0, "SessionType": "Practice"},
				map[string]any{"SessionNum": 1, "SessionType": "Race"},
			},
		},
	}

	assert.Equal(t, "practice", session.Classify(0, meta))
	assert.Equal(t, "race", session.Classify(1, meta))
}

func TestClassifyBareSessions(t *testing.T) {
	meta := `
Sessions:
  - SessionNum: 4
    SessionType: Open Qualify
`
	assert.Equal(t, "open qualify", session.Classify(4, meta))
}

func TestClassifyDefaultsToRace(t *testing.T) {
	tests := []struct {
		name string
		meta any
	}{
		{"nil", nil},
		{"empty string", ""},
		{"whitespace", "   \n"},
		{"malformed yaml", "SessionInfo: [unclosed"},
		{"no sessions", "WeekendInfo:\n  TrackName: spa\n"},
		{"unsupported type", 42},
		{"empty type", "Sessions:\n  - SessionNum: 0\n    SessionType: ''\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, session.DefaultType, session.Classify(0, tt.meta))
		})
	}

	assert.Equal(t, session.DefaultType, session.Classify(9, weekend), "unmatched session number")
}

func TestNormalize(t *testing.T) {
	info, err := session.Normalize(weekend)
	require.NoError(t, err)
	require.Len(t, info.Sessions, 3)

	e, ok := info.Lookup(0)
	require.True(t, ok)
	assert.Equal(t, "PRACTICE", e.Name)

	_, ok = info.Lookup(7)
	assert.False(t, ok)

	_, err = session.Normalize(nil)
	assert.Error(t, err)
}

func TestIsRace(t *testing.T) {
	assert.True(t, session.IsRace("race"))
	assert.True(t, session.IsRace("Heat Race"))
	assert.False(t, session.IsRace("practice"))
	assert.False(t, session.IsRace("lone qualify"))
	assert.False(t, session.IsRace(""))
}

func TestClassifierCachesAndRefreshes(t *testing.T) {
	c := session.NewClassifier()

	assert.Equal(t, "practice", c.Classify(0, weekend))
	assert.Equal(t, "race", c.Classify(2, weekend))

	changed := "Sessions:\n  - SessionNum: 0\n    SessionType: Warmup\n"
	assert.Equal(t, "warmup", c.Classify(0, changed))
	assert.Equal(t, session.DefaultType, c.Classify(0, "::bad"))
	assert.Equal(t, "practice", c.Classify(0, map[string]any{
		"Sessions": []any{map[string]any{"SessionNum": 0, "SessionType": "Practice"}},
	}))
}
