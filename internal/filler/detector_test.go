package filler

import (
	"testing"
)

func TestDetector_SingleWordFiller(t *testing.T) {
	t.Parallel()

	d := NewDetector(nil, Settings{})
	d.StartSession(0)

	if det := d.ProcessSTTWord("um", 0.9, 1000, 4); det == nil {
		t.Fatal("ProcessSTTWord(um) = nil, want detection")
	} else {
		if det.Word != "um" {
			t.Errorf("Word = %q, want %q", det.Word, "um")
		}
		if det.TimestampMs != 1000 {
			t.Errorf("TimestampMs = %d, want 1000", det.TimestampMs)
		}
		if det.WordIndexHint != 4 {
			t.Errorf("WordIndexHint = %d, want 4", det.WordIndexHint)
		}
	}

	if det := d.ProcessSTTWord("teleprompter", 0.9, 1500, 5); det != nil {
		t.Errorf("ProcessSTTWord(teleprompter) = %+v, want nil", det)
	}
}

func TestDetector_MultiWordFiller(t *testing.T) {
	t.Parallel()

	d := NewDetector(nil, Settings{Sensitivity: SensitivityMedium})
	d.StartSession(0)

	if det := d.ProcessSTTWord("you", 0.9, 100, -1); det != nil {
		t.Fatalf("ProcessSTTWord(you) = %+v, want nil (phrase incomplete)", det)
	}
	det := d.ProcessSTTWord("know", 0.9, 200, -1)
	if det == nil {
		t.Fatal("ProcessSTTWord(know) = nil, want multi-word detection")
	}
	if det.Word != "you know" {
		t.Errorf("Word = %q, want %q", det.Word, "you know")
	}
}

func TestDetector_WindowConsumedAfterMatch(t *testing.T) {
	t.Parallel()

	d := NewDetector(nil, Settings{Sensitivity: SensitivityMedium})
	d.StartSession(0)

	// "you know" then "know" again: the second "know" alone is not a filler
	// and the consumed window must not resurrect the phrase.
	d.ProcessSTTWord("you", 0.9, 100, -1)
	d.ProcessSTTWord("know", 0.9, 200, -1)
	if det := d.ProcessSTTWord("know", 0.9, 300, -1); det != nil {
		t.Errorf("trailing know = %+v, want nil", det)
	}

	if got := d.Snapshot().TotalCount; got != 1 {
		t.Errorf("TotalCount = %d, want 1", got)
	}
}

func TestDetector_SensitivityTokenSets(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		sensitivity Sensitivity
		word        string
		confidence  float64
		want        bool
	}{
		{"core filler at low", SensitivityLow, "um", 0.9, true},
		{"hedge word inactive at low", SensitivityLow, "like", 0.9, false},
		{"hedge word active at medium", SensitivityMedium, "like", 0.9, true},
		{"low confidence rejected at low", SensitivityLow, "um", 0.5, false},
		{"low confidence accepted at high", SensitivityHigh, "um", 0.2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := NewDetector(nil, Settings{Sensitivity: tt.sensitivity})
			d.StartSession(0)

			det := d.ProcessSTTWord(tt.word, tt.confidence, 100, -1)
			if got := det != nil; got != tt.want {
				t.Errorf("detected = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetector_CustomWordList(t *testing.T) {
	t.Parallel()

	d := NewDetector(nil, Settings{Words: []string{"okay", "right"}})
	d.StartSession(0)

	if det := d.ProcessSTTWord("okay", 0.9, 100, -1); det == nil {
		t.Error("custom filler okay not detected")
	}
	// Built-in list is replaced, not extended.
	if det := d.ProcessSTTWord("um", 0.9, 200, -1); det != nil {
		t.Errorf("um detected with custom list = %+v, want nil", det)
	}
}

func TestDetector_RateAndCounts(t *testing.T) {
	t.Parallel()

	d := NewDetector(nil, Settings{})
	d.StartSession(0)

	d.ProcessSTTWord("um", 0.9, 10_000, -1)
	d.ProcessSTTWord("uh", 0.9, 20_000, -1)
	d.ProcessSTTWord("um", 0.9, 30_000, -1)

	s := d.Snapshot()
	if s.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", s.TotalCount)
	}
	if s.CommonFillers["um"] != 2 || s.CommonFillers["uh"] != 1 {
		t.Errorf("CommonFillers = %v, want um:2 uh:1", s.CommonFillers)
	}
	// 3 fillers in 30 s of speech = 6 per minute.
	if s.RatePerMinute != 6 {
		t.Errorf("RatePerMinute = %v, want 6", s.RatePerMinute)
	}
}

func TestDetector_LifecycleNoops(t *testing.T) {
	t.Parallel()

	d := NewDetector(nil, Settings{})

	// All session-scoped calls tolerate a missing session.
	if det := d.ProcessSTTWord("um", 0.9, 100, -1); det != nil {
		t.Errorf("detection with no session = %+v, want nil", det)
	}
	d.EndSession()
	d.Reset()
	d.Reset()

	if d.Active() {
		t.Error("Active = true, want false")
	}
}

func TestDetector_CaseInsensitive(t *testing.T) {
	t.Parallel()

	d := NewDetector(nil, Settings{})
	d.StartSession(0)

	if det := d.ProcessSTTWord("Um,", 0.9, 100, -1); det == nil {
		t.Error(`ProcessSTTWord("Um,") = nil, want detection (case and punctuation folded)`)
	}
}
