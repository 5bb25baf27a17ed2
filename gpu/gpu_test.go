//go:build !nogpu

package gpu

import "testing"

func TestPatternPixels(t *testing.T) {
	for _, pattern := range []TestPattern{PatternCheckerboard, PatternXOR, PatternRGB} {
		pixels, err := patternPixels(pattern, 64)
		if err != nil {
			t.Fatalf("patternPixels(%d): %v", pattern, err)
		}
		if len(pixels) != 64*64*4 {
			t.Errorf("pattern %d: len = %d, want %d", pattern, len(pixels), 64*64*4)
		}
	}
}

func TestPatternPixelsUnknown(t *testing.T) {
	if _, err := patternPixels(TestPattern(99), 16); err == nil {
		t.Error("unknown pattern should fail")
	}
}
