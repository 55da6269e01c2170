package logger

import "testing"

func TestForEnvironment(t *testing.T) {
	for _, dev := range []bool{true, false} {
		l, err := ForEnvironment(dev)
		if err != nil {
			t.Fatalf("development=%v: %v", dev, err)
		}
		if got := l.Core().Enabled(-1); got != dev {
			t.Fatalf("development=%v: debug enabled=%v", dev, got)
		}
	}
}

func TestNamedNil(t *testing.T) {
	if Named(nil, "svc") == nil {
		t.Fatalf("Named must never return nil")
	}
}
