package deadline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "taskforce-bot.com/taskforce-bot/internal/errors"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestParse_FixedLayouts(t *testing.T) {
	p := NewParser()

	got, err := p.Parse("15.06.2025 18:30", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 6, 15, 18, 30, 0, 0, time.UTC), got)

	got, err = p.Parse("2025-07-01 09:00", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC), got)

	got, err = p.Parse("2025-06-02T10:00:00Z", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC), got)
}

func TestParse_NaturalLanguage(t *testing.T) {
	p := NewParser()

	got, err := p.Parse("tomorrow at 5pm", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC), got)
}

func TestParse_Rejections(t *testing.T) {
	p := NewParser()

	_, err := p.Parse("", now)
	require.ErrorIs(t, err, apperrors.ErrDeadlineRequired)

	_, err = p.Parse("   ", now)
	require.ErrorIs(t, err, apperrors.ErrDeadlineRequired)

	_, err = p.Parse("qwertyuiop", now)
	require.ErrorIs(t, err, apperrors.ErrInvalidDeadline)

	// Parseable but already past.
	_, err = p.Parse("01.01.2020 10:00", now)
	require.ErrorIs(t, err, apperrors.ErrInvalidDeadline)
}
