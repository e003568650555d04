package desk

import (
	"testing"
	"time"
)

func TestCalibrationSaveViolation(t *testing.T) {
	tests := []struct {
		name     string
		cal      Calibration
		slot     Slot
		height   Height
		wantCode ErrCode
		wantBad  bool
	}{
		{
			name:   "sit below stand is fine",
			cal:    Calibration{SitHeight: 0, StandHeight: 100},
			slot:   SlotSit,
			height: 65,
		},
		{
			name:     "sit equal to stand rejected",
			cal:      Calibration{SitHeight: 0, StandHeight: 100},
			slot:     SlotSit,
			height:   100,
			wantCode: ErrCodeSitOrder,
			wantBad:  true,
		},
		{
			name:     "sit above stand rejected",
			cal:      Calibration{SitHeight: 60, StandHeight: 100},
			slot:     SlotSit,
			height:   110,
			wantCode: ErrCodeSitOrder,
			wantBad:  true,
		},
		{
			name:   "sit anywhere when stand unset",
			cal:    Calibration{},
			slot:   SlotSit,
			height: 120,
		},
		{
			name:   "stand above sit is fine",
			cal:    Calibration{SitHeight: 65, StandHeight: 0},
			slot:   SlotStand,
			height: 110,
		},
		{
			name:     "stand below sit rejected",
			cal:      Calibration{SitHeight: 65, StandHeight: 110},
			slot:     SlotStand,
			height:   60,
			wantCode: ErrCodeStandOrder,
			wantBad:  true,
		},
		{
			name:     "stand equal to sit rejected",
			cal:      Calibration{SitHeight: 65, StandHeight: 110},
			slot:     SlotStand,
			height:   65,
			wantCode: ErrCodeStandOrder,
			wantBad:  true,
		},
		{
			name:   "stand anywhere when sit unset",
			cal:    Calibration{},
			slot:   SlotStand,
			height: 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, bad := tt.cal.SaveViolation(tt.slot, tt.height)
			if bad != tt.wantBad {
				t.Fatalf("SaveViolation(%v, %v) violation = %v, want %v", tt.slot, tt.height, bad, tt.wantBad)
			}
			if bad && code != tt.wantCode {
				t.Errorf("SaveViolation(%v, %v) code = %v, want %v", tt.slot, tt.height, code, tt.wantCode)
			}
		})
	}
}

func TestCalibrationWithSlot(t *testing.T) {
	cal := Calibration{SitHeight: 65, StandHeight: 110}

	got := cal.WithSlot(SlotSit, 70)
	if got.SitHeight != 70 || got.StandHeight != 110 {
		t.Errorf("WithSlot(sit, 70) = %+v", got)
	}
	// original untouched
	if cal.SitHeight != 65 {
		t.Errorf("receiver mutated: %+v", cal)
	}

	got = cal.WithSlot(SlotStand, 120)
	if got.SitHeight != 65 || got.StandHeight != 120 {
		t.Errorf("WithSlot(stand, 120) = %+v", got)
	}
}

func TestProgramDuration(t *testing.T) {
	p := Program{}
	if _, ok := p.Duration(Raise); ok {
		t.Error("empty program reports raise as recorded")
	}
	if _, ok := p.Duration(Lower); ok {
		t.Error("empty program reports lower as recorded")
	}

	p = p.WithRecording(Raise, 10*time.Second)
	d, ok := p.Duration(Raise)
	if !ok || d != 10*time.Second {
		t.Errorf("after recording raise: d=%v ok=%v", d, ok)
	}
	if _, ok := p.Duration(Lower); ok {
		t.Error("recording raise also set lower")
	}
}

func TestButtonsGetSetOr(t *testing.T) {
	var b Buttons
	if b.Any() {
		t.Error("zero Buttons reports Any")
	}
	b = b.Set(ButtonUp, true)
	if !b.Up || !b.Get(ButtonUp) || !b.Any() {
		t.Errorf("Set(up) = %+v", b)
	}
	merged := Buttons{Down: true}.Or(b)
	if !merged.Up || !merged.Down || merged.Sit || merged.Stand {
		t.Errorf("Or = %+v", merged)
	}
}

func TestHeightSentinel(t *testing.T) {
	if !HeightFault.Fault() {
		t.Error("HeightFault not recognized as fault")
	}
	if Height(74).Fault() {
		t.Error("74cm flagged as fault")
	}
	if HeightFault.Set() {
		t.Error("fault sentinel counts as a saved setpoint")
	}
}
