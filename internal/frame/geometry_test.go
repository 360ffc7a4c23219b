package frame

import (
	"errors"
	"image"
	"testing"
)

func TestDeriveReferenceFrame(t *testing.T) {
	got := Derive(1559, 2078)
	// 1559*0.935 = 1457.665, 2078*0.935 = 1942.93
	want := BBox{Left: 67, Top: 70, Right: 67 + 1458, Bottom: 70 + 1943}
	if got != want {
		t.Errorf("Derive(1559, 2078) = %s, want %s", got, want)
	}
	if err := got.Validate(image.Pt(1559, 2078)); err != nil {
		t.Errorf("reference bbox invalid: %v", err)
	}
}

func TestDeriveBoundsProperty(t *testing.T) {
	for w := 100; w <= 2600; w += 37 {
		for h := 100; h <= 2600; h += 53 {
			b := Derive(w, h)
			if !(0 <= b.Left && b.Left < b.Right && b.Right <= w) {
				t.Fatalf("Derive(%d, %d) horizontal bounds broken: %s", w, h, b)
			}
			if !(0 <= b.Top && b.Top < b.Bottom && b.Bottom <= h) {
				t.Fatalf("Derive(%d, %d) vertical bounds broken: %s", w, h, b)
			}
		}
	}
}

func TestDeriveTinyFrame(t *testing.T) {
	b := Derive(1, 1)
	if err := b.Validate(image.Pt(1, 1)); err != nil {
		t.Errorf("1x1 frame should still have a 1px interior: %v (%s)", err, b)
	}
}

func TestDeriveClampsToFrame(t *testing.T) {
	c := Calibration{InnerWidth: 1.2, InnerHeight: 1.2, InnerLeft: 0.1, InnerTop: 0.1}
	b := c.Derive(100, 200)
	if b.Right != 100 || b.Bottom != 200 {
		t.Errorf("expected clamp to frame bounds, got %s", b)
	}
}

func TestRoundHalfToEven(t *testing.T) {
	c := Calibration{InnerWidth: 0.5, InnerHeight: 0.5, InnerLeft: 0, InnerTop: 0}
	// 5*0.5 = 2.5 -> 2, 7*0.5 = 3.5 -> 4
	b := c.Derive(5, 7)
	if b.Dx() != 2 || b.Dy() != 4 {
		t.Errorf("expected half-to-even rounding to give 2x4, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestValidate(t *testing.T) {
	size := image.Pt(10, 10)
	tests := []struct {
		name    string
		box     BBox
		wantErr bool
	}{
		{"ok", BBox{1, 1, 9, 9}, false},
		{"full", BBox{0, 0, 10, 10}, false},
		{"zero width", BBox{5, 1, 5, 9}, true},
		{"zero height", BBox{1, 4, 9, 4}, true},
		{"inverted", BBox{6, 1, 2, 9}, true},
		{"negative", BBox{-1, 0, 5, 5}, true},
		{"overflow", BBox{0, 0, 11, 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.box.Validate(size)
			if tt.wantErr {
				if !errors.Is(err, ErrDegenerateBBox) {
					t.Errorf("expected ErrDegenerateBBox, got %v", err)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
