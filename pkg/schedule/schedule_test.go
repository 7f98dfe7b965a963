package schedule

import (
	"testing"
	"time"
)

func TestEvery(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := Every(90 * time.Second)
	if got := s.Next(base); !got.Equal(base.Add(90 * time.Second)) {
		t.Errorf("Next = %v", got)
	}
	if got := Every(0).Next(base); !got.Equal(base.Add(time.Minute)) {
		t.Errorf("zero interval Next = %v, want one minute default", got)
	}
}

func TestCron(t *testing.T) {
	s, err := Cron("*/5 * * * *")
	if err != nil {
		t.Fatalf("Cron: %v", err)
	}
	base := time.Date(2024, 5, 1, 12, 2, 30, 0, time.UTC)
	want := time.Date(2024, 5, 1, 12, 5, 0, 0, time.UTC)
	if got := s.Next(base); !got.Equal(want) {
		t.Errorf("Next(%v) = %v, want %v", base, got, want)
	}
}

func TestCronRejectsGarbage(t *testing.T) {
	if _, err := Cron("every now and then"); err == nil {
		t.Error("expected error")
	}
}

func TestFromConfig(t *testing.T) {
	s, err := FromConfig("", 2*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if s.String() != "every 2m0s" {
		t.Errorf("String = %q", s.String())
	}

	s, err = FromConfig("0 * * * *", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if s.String() != "cron 0 * * * *" {
		t.Errorf("String = %q", s.String())
	}
}

func TestDelay(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if d := Delay(Every(time.Minute), now); d != time.Minute {
		t.Errorf("Delay = %v", d)
	}
}
