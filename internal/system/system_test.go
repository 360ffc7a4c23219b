package system

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	names := []string{"b.PNG", "a.jpg", "c.jpeg", "notes.txt", "d.gif"}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.png"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := ListImages(dir, InputExtensions)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}

	want := []string{"a.jpg", "b.PNG", "c.jpeg"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i, w := range want {
		if filepath.Base(got[i]) != w {
			t.Errorf("position %d: expected %s, got %s", i, w, filepath.Base(got[i]))
		}
	}
}

func TestListImagesMissingDir(t *testing.T) {
	if _, err := ListImages(filepath.Join(t.TempDir(), "absent"), InputExtensions); !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestStem(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/in/c_sample.png", "c_sample"},
		{"Gacha-01.JPEG", "Gacha-01"},
		{"noext", "noext"},
		{"a.b.png", "a.b"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := Stem(tt.path); got != tt.want {
				t.Errorf("Stem(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestDefaultWorkersPositive(t *testing.T) {
	if n := DefaultWorkers(); n < 1 {
		t.Errorf("expected at least one worker, got %d", n)
	}
}

func TestCanvasPoolReturnsClearedCanvas(t *testing.T) {
	p := NewCanvasPool()
	rect := image.Rect(0, 0, 4, 3)

	c := p.Get(rect)
	if c.Bounds() != rect {
		t.Fatalf("unexpected bounds %v", c.Bounds())
	}
	c.Set(1, 1, color.RGBA{R: 255, A: 255})
	p.Put(c)

	again := p.Get(rect)
	for i, v := range again.Pix {
		if v != 0 {
			t.Fatalf("pixel byte %d not cleared: %d", i, v)
		}
	}
}
