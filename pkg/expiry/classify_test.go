package expiry

import "testing"

func TestClassifyPartition(t *testing.T) {
	th := DefaultThresholds()
	for d := -60; d <= 90; d++ {
		sev, ok := Classify(d, th)
		switch {
		case d <= 0:
			if ok {
				t.Fatalf("d=%d: expired items must not alert, got %q", d, sev)
			}
		case d <= 7:
			if !ok || sev != SeverityCritical {
				t.Fatalf("d=%d: want critical, got %q ok=%v", d, sev, ok)
			}
		case d <= 30:
			if !ok || sev != SeverityWarning {
				t.Fatalf("d=%d: want warning, got %q ok=%v", d, sev, ok)
			}
		default:
			if ok {
				t.Fatalf("d=%d: outside window must not alert, got %q", d, sev)
			}
		}
	}
}

func TestClassifyCustomThresholds(t *testing.T) {
	th := Thresholds{AlertDays: 10, CriticalDays: 2}
	tests := []struct {
		days   int
		want   Severity
		wantOK bool
	}{
		{2, SeverityCritical, true},
		{3, SeverityWarning, true},
		{10, SeverityWarning, true},
		{11, "", false},
	}
	for _, tt := range tests {
		got, ok := Classify(tt.days, th)
		if got != tt.want || ok != tt.wantOK {
			t.Fatalf("Classify(%d): want %q/%v, got %q/%v", tt.days, tt.want, tt.wantOK, got, ok)
		}
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Fatalf("default thresholds rejected: %v", err)
	}
	for _, th := range []Thresholds{{0, 0}, {30, 0}, {-1, 7}, {7, 30}} {
		if err := th.Validate(); err == nil {
			t.Fatalf("expected %+v to be rejected", th)
		}
	}
}
