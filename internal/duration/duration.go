package duration

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/pflag"
)

// Duration is a time.Duration that also accepts day, week, month and year
// suffixes (30d, 2w, 1M, 1y) so retention windows read naturally in config.
type Duration time.Duration

const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
	Year  = 365 * Day
)

var suffixes = []struct {
	suffix string
	unit   time.Duration
}{
	{"y", Year},
	{"M", Month},
	{"w", Week},
	{"d", Day},
}

func (d *Duration) String() string {
	v := time.Duration(*d)
	for _, s := range suffixes[2:] {
		if v != 0 && v%s.unit == 0 && math.Abs(float64(v)) >= float64(s.unit) {
			return strconv.FormatInt(int64(v/s.unit), 10) + s.suffix
		}
	}
	return v.String()
}

func (d *Duration) Set(s string) error {
	v, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) Type() string {
	return "duration"
}

func (d *Duration) UnmarshalText(text []byte) error {
	return d.Set(string(text))
}

// ParseDuration parses Go durations and the extended suffixes. A bare number
// is read as seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	for _, suf := range suffixes {
		if !strings.HasSuffix(s, suf.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(s, suf.suffix), 64)
		if err != nil {
			return 0, errors.Wrapf(err, "parse duration %q", s)
		}
		return time.Duration(n * float64(suf.unit)), nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Errorf("invalid duration %q", s)
	}
	return time.Duration(n * float64(time.Second)), nil
}

func DurationVar(f *pflag.FlagSet, p *time.Duration, name string, value time.Duration, usage string) {
	*p = value
	f.Var((*Duration)(p), name, usage)
}
