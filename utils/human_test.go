package utils

import (
	"testing"
	"time"
)

func TestHumanTime(t *testing.T) {
	for _, c := range []struct {
		d        time.Duration
		expected string
	}{
		{0, "0 seconds"},
		{time.Second, "1 second"},
		{time.Second * 2, "2 seconds"},
		{time.Minute + time.Second, "1 minute, 1 second"},
		{time.Hour*2 + time.Minute*3, "2 hours, 3 minutes"},
		{time.Hour * 24, "1 day"},
		{time.Second * secondsPerMonth, "1 month"},
		{time.Second * (secondsPerYear*2 + secondsPerMonth + 5), "2 years, 1 month, 5 seconds"},
		{-time.Second, Unknown},
	} {
		if s := NewHumanTime(c.d).String(); s != c.expected {
			t.Fatalf("%s: expected %q, got %q", c.d, c.expected, s)
		}
	}
}

func TestHumanNumber(t *testing.T) {
	if s := HumanNumberFromUint(1234567); s != "1,234,567" {
		t.Fatalf("expected 1,234,567, got %s", s)
	}
	if s := HumanNumberFromUint(999); s != "999" {
		t.Fatalf("expected 999, got %s", s)
	}
	if s := HumanNumberFromFloat(1234.5, 2); s != "1,234.50" {
		t.Fatalf("expected 1,234.50, got %s", s)
	}

	a, b := 123.0, 11111.0
	if s := HumanNumberFromHashrate([3]*float64{&a, &b, nil}); s != "[123 H/s, 11,111 H/s, ??? H/s]" {
		t.Fatalf("unexpected hashrate %s", s)
	}

	l1, l2 := 123.1234, 321.321
	if s := HumanNumberFromLoad([3]*float64{&l1, &l2, nil}); s != "[123.12, 321.32, ???]" {
		t.Fatalf("unexpected load %s", s)
	}

	if s := HumanNumberPercent(0.001); s != "0%" {
		t.Fatalf("expected 0%%, got %s", s)
	}
	if s := HumanNumberPercent(12.3456); s != "12.35%" {
		t.Fatalf("expected 12.35%%, got %s", s)
	}
}

func TestRandomAlphanumeric(t *testing.T) {
	s := RandomAlphanumeric(10)
	if len(s) != 10 {
		t.Fatalf("expected 10 characters, got %d", len(s))
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			t.Fatalf("unexpected character %q in %s", c, s)
		}
	}
}

func TestThousands(t *testing.T) {
	for _, n := range []uint64{0, 1, 999, 1000, 2642816, 18446744073709551615} {
		s := FormatThousands(n)
		if r, err := ParseThousands(s); err != nil {
			t.Fatal(err)
		} else if r != n {
			t.Fatalf("expected %d, got %d from %s", n, r, s)
		}
	}
	if s := FormatThousands(2642816); s != "2,642,816" {
		t.Fatalf("expected 2,642,816, got %s", s)
	}
}

func TestLogSafe(t *testing.T) {
	long := ""
	for i := 0; i < 20; i++ {
		long += "0123456789"
	}
	if s := LogSafe(long); len(s) != 83 {
		t.Fatalf("expected shortened output, got %d bytes", len(s))
	}
	if s := LogSafe("a\nb"); s != "a\\nb" {
		t.Fatalf("unexpected %q", s)
	}
}
