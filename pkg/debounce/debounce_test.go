package debounce

import (
	"testing"
	"time"
)

// scriptedLine replays a fixed sequence of samples.
type scriptedLine struct {
	samples []bool
	pos     int
}

func (s *scriptedLine) read() bool {
	if s.pos >= len(s.samples) {
		return s.samples[len(s.samples)-1]
	}
	v := s.samples[s.pos]
	s.pos++
	return v
}

func TestReadSteadyStateDoesNotSleep(t *testing.T) {
	d := New(10 * time.Millisecond)
	slept := 0
	d.sleep = func(time.Duration) { slept++ }

	line := &scriptedLine{samples: []bool{false, false, false}}
	for i := 0; i < 3; i++ {
		if got := d.Read(line.read, false); got {
			t.Fatalf("read %d: steady low read as high", i)
		}
	}
	if slept != 0 {
		t.Errorf("steady state slept %d times", slept)
	}
}

func TestReadTransitionSettlesAndResamples(t *testing.T) {
	tests := []struct {
		name    string
		last    bool
		samples []bool
		want    bool
	}{
		{
			name:    "clean press",
			last:    false,
			samples: []bool{true, true},
			want:    true,
		},
		{
			name:    "bounce rejected",
			last:    false,
			samples: []bool{true, false},
			want:    false,
		},
		{
			name:    "clean release",
			last:    true,
			samples: []bool{false, false},
			want:    false,
		},
		{
			name:    "release bounce rejected",
			last:    true,
			samples: []bool{false, true},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(10 * time.Millisecond)
			var slept []time.Duration
			d.sleep = func(dur time.Duration) { slept = append(slept, dur) }

			line := &scriptedLine{samples: tt.samples}
			if got := d.Read(line.read, tt.last); got != tt.want {
				t.Errorf("Read = %v, want %v", got, tt.want)
			}
			if len(slept) != 1 {
				t.Fatalf("slept %d times, want 1", len(slept))
			}
			if slept[0] != 10*time.Millisecond {
				t.Errorf("settle = %v, want 10ms", slept[0])
			}
		})
	}
}

func TestNewDefaultsSettle(t *testing.T) {
	d := New(0)
	if d.settle != DefaultSettle {
		t.Errorf("settle = %v, want %v", d.settle, DefaultSettle)
	}
}

func TestInputTracksLevel(t *testing.T) {
	d := New(DefaultSettle)
	d.sleep = func(time.Duration) {}

	level := false
	in := NewInput(d, func() bool { return level })

	if in.Read() {
		t.Fatal("initial read high")
	}
	level = true
	if !in.Read() {
		t.Fatal("press not observed")
	}
	// Second read is steady state now.
	slept := 0
	d.sleep = func(time.Duration) { slept++ }
	if !in.Read() {
		t.Fatal("held press lost")
	}
	if slept != 0 {
		t.Error("steady held press slept")
	}
}
