package clock

import (
	"testing"
	"time"
)

func TestElapse(t *testing.T) {
	cases := []struct {
		name      string
		remaining time.Duration
		used      time.Duration
		increment time.Duration
		want      time.Duration
	}{
		{
			name:      "charges used time",
			remaining: 3 * time.Minute,
			used:      10 * time.Second,
			want:      170 * time.Second,
		},
		{
			name:      "credits increment after charging",
			remaining: 30 * time.Second,
			used:      5 * time.Second,
			increment: 2 * time.Second,
			want:      27 * time.Second,
		},
		{
			name:      "clamps at zero",
			remaining: 2 * time.Second,
			used:      5 * time.Second,
			want:      0,
		},
		{
			name:      "increment can rescue an overdrawn clock",
			remaining: time.Second,
			used:      2 * time.Second,
			increment: 3 * time.Second,
			want:      2 * time.Second,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Elapse(tc.remaining, tc.used, tc.increment)
			if got != tc.want {
				t.Fatalf("Elapse: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExpired(t *testing.T) {
	if Expired(time.Millisecond) {
		t.Fatal("1ms should not be expired")
	}
	if !Expired(0) {
		t.Fatal("zero should be expired")
	}
	if !Expired(-time.Second) {
		t.Fatal("negative should be expired")
	}
}

func TestSecondsRoundsUp(t *testing.T) {
	cases := []struct {
		remaining time.Duration
		want      int
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Millisecond, 1},
		{999 * time.Millisecond, 1},
		{time.Second, 1},
		{9*time.Second + time.Millisecond, 10},
		{180 * time.Second, 180},
	}

	for _, tc := range cases {
		if got := Seconds(tc.remaining); got != tc.want {
			t.Fatalf("Seconds(%v): got %d, want %d", tc.remaining, got, tc.want)
		}
	}
}
