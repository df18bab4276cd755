package logging

import "testing"

func TestNew(t *testing.T) {
	for _, tc := range []struct {
		level string
		dev   bool
		ok    bool
	}{
		{"info", false, true},
		{"debug", true, true},
		{"loud", false, false},
	} {
		log, err := New(tc.level, tc.dev)
		if (err == nil) != tc.ok {
			t.Fatalf("New(%q, %v) err = %v, want ok=%v", tc.level, tc.dev, err, tc.ok)
		}
		if log != nil {
			_ = log.Sync()
		}
	}
}
