package duration

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"90s", 90 * time.Second},
		{"1h30m", 90 * time.Minute},
		{"30d", 30 * Day},
		{"2w", 14 * Day},
		{"1M", 30 * Day},
		{"1y", 365 * Day},
		{"1.5d", 36 * time.Hour},
		{"45", 45 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDuration_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "xd"} {
		_, err := ParseDuration(in)
		assert.Error(t, err, in)
	}
}

func TestDurationString(t *testing.T) {
	d := Duration(30 * Day)
	assert.Equal(t, "30d", d.String())
	d = Duration(2 * Week)
	assert.Equal(t, "2w", d.String())
	d = Duration(90 * time.Minute)
	assert.Equal(t, "1h30m0s", d.String())
}

func TestDurationVar(t *testing.T) {
	var retention time.Duration
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	DurationVar(fs, &retention, "retention", 30*Day, "")
	assert.Equal(t, 30*Day, retention)
	assert.Equal(t, "30d", fs.Lookup("retention").DefValue)

	require.NoError(t, fs.Parse([]string{"--retention", "7d"}))
	assert.Equal(t, 7*Day, retention)
}
