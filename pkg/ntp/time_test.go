package ntp

import (
	"testing"
	"time"
)

func TestEra(t *testing.T) {
	for _, test := range []struct {
		Time time.Time
		Want int32
	}{
		{
			Time: time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
			Want: 0,
		},
		{
			Time: time.Date(1850, 1, 1, 0, 0, 0, 0, time.UTC),
			Want: -1,
		},
		{
			Time: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
			Want: 0,
		},
		{
			Time: time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC),
			Want: 1,
		},
	} {
		if got, want := era(test.Time), test.Want; got != want {
			t.Fatalf("era(%v) = %v, want %v", test.Time, got, want)
		}
	}
}

func TestTime64(t *testing.T) {
	for _, test := range []struct {
		Time64 Time64
		Want   time.Time
	}{
		{
			Time64: Time64(0xDA8BD1fCDDDDA05A),
			Want:   time.Date(2016, 3, 10, 10, 59, 8, 866663000, time.UTC),
		},
	} {
		if got, want := test.Time64.Time(), test.Want; got != want {
			t.Fatalf("Time() = %v, want %v", got, want)
		}
	}
}

func TestNewTime64RoundTrip(t *testing.T) {
	want := time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC)
	got := NewTime64(want).Time()

	if !got.Equal(want) {
		t.Fatalf("NewTime64(%v).Time() = %v, want %v", want, got, want)
	}
}

func TestNewTime32(t *testing.T) {
	got, err := NewTime32(5 * time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sec := uint32(got) >> 16; sec != 5 {
		t.Fatalf("expected integer seconds field 5, got %d", sec)
	}

	if _, err := NewTime32(-time.Second); err == nil {
		t.Fatal("expected an error for a negative duration")
	}
	if _, err := NewTime32(2 * (1 << 16) * time.Second); err == nil {
		t.Fatal("expected an error for a duration exceeding the Q16.16 range")
	}
}
