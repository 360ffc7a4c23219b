package cmd

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	runreport "github.com/ivlev/framecomp/internal/report"
)

func runAppSplit(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	app := App("test")
	var out, errOut bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}
	err = app.Run(append([]string{"framecomp"}, args...))
	return out.String(), errOut.String(), err
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := App("test")
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"framecomp"}, args...))
	return out.String(), err
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}

func savePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func filled(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

type tree struct {
	root, frames, input, output string
}

func newTree(t *testing.T) tree {
	root := t.TempDir()
	tr := tree{
		root:   root,
		frames: filepath.Join(root, "frames"),
		input:  filepath.Join(root, "input"),
		output: filepath.Join(root, "output"),
	}
	savePNG(t, filepath.Join(tr.frames, "c.png"), filled(150, 200, color.NRGBA{A: 0}))
	if err := os.MkdirAll(tr.input, 0755); err != nil {
		t.Fatal(err)
	}
	return tr
}

func (tr tree) args(cmd string, extra ...string) []string {
	args := []string{cmd,
		"--env-file", filepath.Join(tr.root, "absent.env"),
		"--log-format", "json",
		"--frames", tr.frames,
		"--input", tr.input,
		"--output", tr.output,
	}
	return append(args, extra...)
}

func TestVersion(t *testing.T) {
	out, err := runApp(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, Version) || !strings.Contains(out, "test") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestComposeSuccess(t *testing.T) {
	tr := newTree(t)
	savePNG(t, filepath.Join(tr.input, "c_one.png"), filled(30, 40, color.NRGBA{R: 255, A: 255}))

	reportPath := filepath.Join(tr.root, "run.yaml")
	out, err := runApp(t, tr.args("compose", "--width", "75", "--workers", "2", "--report", reportPath)...)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if !strings.Contains(out, "composed 1 image(s)") {
		t.Errorf("unexpected output %q", out)
	}
	if _, err := os.Stat(filepath.Join(tr.output, "c_one.webp")); err != nil {
		t.Errorf("missing output: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tr.output, "_framed_png")); !os.IsNotExist(err) {
		t.Errorf("temp dir should be removed, stat err = %v", err)
	}

	doc, err := runreport.Read(reportPath)
	if err != nil {
		t.Fatalf("report not readable: %v", err)
	}
	if doc.Summary.Encoded != 1 || len(doc.Files) != 1 || doc.Files[0].Output != "c_one.webp" {
		t.Errorf("unexpected report %+v", doc)
	}
}

func TestComposeExitCodes(t *testing.T) {
	t.Run("nothing composed", func(t *testing.T) {
		tr := newTree(t)
		savePNG(t, filepath.Join(tr.input, "unknown_1.png"), filled(30, 40, color.NRGBA{A: 255}))
		_, err := runApp(t, tr.args("compose")...)
		if code := exitCode(err); code != exitNothingComposed {
			t.Errorf("expected exit %d, got %d (%v)", exitNothingComposed, code, err)
		}
	})

	t.Run("input dir missing", func(t *testing.T) {
		tr := newTree(t)
		_, err := runApp(t, tr.args("compose", "--input", filepath.Join(tr.root, "nope"))...)
		if code := exitCode(err); code != exitSetup {
			t.Errorf("expected exit %d, got %d (%v)", exitSetup, code, err)
		}
	})

	t.Run("catalog empty", func(t *testing.T) {
		tr := newTree(t)
		empty := filepath.Join(tr.root, "empty")
		if err := os.MkdirAll(empty, 0755); err != nil {
			t.Fatal(err)
		}
		_, err := runApp(t, tr.args("compose", "--frames", empty)...)
		if code := exitCode(err); code != exitSetup {
			t.Errorf("expected exit %d, got %d (%v)", exitSetup, code, err)
		}
	})

	t.Run("invalid quality", func(t *testing.T) {
		tr := newTree(t)
		_, err := runApp(t, tr.args("compose", "--quality", "101")...)
		if code := exitCode(err); code != exitSetup {
			t.Errorf("expected exit %d, got %d (%v)", exitSetup, code, err)
		}
	})

	t.Run("temp dir is output dir", func(t *testing.T) {
		tr := newTree(t)
		savePNG(t, filepath.Join(tr.input, "c_one.png"), filled(30, 40, color.NRGBA{R: 255, A: 255}))
		keep := filepath.Join(tr.output, "published.webp")
		if err := os.MkdirAll(tr.output, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(keep, []byte("RIFF"), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := runApp(t, tr.args("compose", "--temp-dir", tr.output)...)
		if code := exitCode(err); code != exitSetup {
			t.Errorf("expected exit %d, got %d (%v)", exitSetup, code, err)
		}
		if _, err := os.Stat(keep); err != nil {
			t.Errorf("existing output must survive: %v", err)
		}
	})

	t.Run("invalid log format", func(t *testing.T) {
		tr := newTree(t)
		_, err := runApp(t, tr.args("compose", "--log-format", "xml")...)
		if code := exitCode(err); code != exitSetup {
			t.Errorf("expected exit %d, got %d (%v)", exitSetup, code, err)
		}
	})
}

func TestComposeLogsToErrWriter(t *testing.T) {
	tr := newTree(t)
	savePNG(t, filepath.Join(tr.input, "unknown_1.png"), filled(30, 40, color.NRGBA{A: 255}))

	stdout, stderr, err := runAppSplit(t, tr.args("compose")...)
	if code := exitCode(err); code != exitNothingComposed {
		t.Fatalf("expected exit %d, got %d (%v)", exitNothingComposed, code, err)
	}
	if !strings.Contains(stderr, `"message":"no matching frame, skipped"`) || !strings.Contains(stderr, `"run_id"`) {
		t.Errorf("structured log missing from error writer: %q", stderr)
	}
	if strings.Contains(stdout, "no matching frame") {
		t.Errorf("log leaked to stdout: %q", stdout)
	}
}

func TestComposeConfigFileWithFlagOverride(t *testing.T) {
	tr := newTree(t)
	savePNG(t, filepath.Join(tr.input, "c-two.png"), filled(30, 40, color.NRGBA{G: 255, A: 255}))

	cfgPath := filepath.Join(tr.root, "framecomp.yaml")
	content := "frame_dir: " + tr.frames + "\n" +
		"input_dir: " + filepath.Join(tr.root, "elsewhere") + "\n" +
		"output_dir: " + tr.output + "\n" +
		"target_width: 60\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := runApp(t, "compose",
		"--env-file", filepath.Join(tr.root, "absent.env"),
		"--config", cfgPath,
		"--input", tr.input,
	)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tr.output, "c-two.webp")); err != nil {
		t.Errorf("flag should override input_dir from config: %v", err)
	}
}

func TestTrimCommand(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	img := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	img.SetNRGBA(5, 5, color.NRGBA{A: 255})
	savePNG(t, filepath.Join(src, "f.png"), img)

	out, err := runApp(t, "trim", "--env-file", filepath.Join(root, "absent.env"), "--src", src, "--dst", dst)
	if err != nil {
		t.Fatalf("trim failed: %v", err)
	}
	if !strings.Contains(out, "trimmed 1 image(s)") {
		t.Errorf("unexpected output %q", out)
	}

	_, err = runApp(t, "trim", "--src", src)
	if code := exitCode(err); code != exitSetup {
		t.Errorf("missing --dst should exit %d, got %d", exitSetup, code)
	}
}

func TestOptimizeCommand(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	savePNG(t, filepath.Join(src, "nested", "a.png"), filled(40, 40, color.NRGBA{B: 255, A: 255}))

	out, err := runApp(t, "optimize", "--env-file", filepath.Join(root, "absent.env"), "--src", src, "--dst", dst, "--width", "20")
	if err != nil {
		t.Fatalf("optimize failed: %v", err)
	}
	if !strings.Contains(out, "converted 1 image(s)") {
		t.Errorf("unexpected output %q", out)
	}
	if _, err := os.Stat(filepath.Join(dst, "nested", "a.webp")); err != nil {
		t.Errorf("missing converted file: %v", err)
	}
}

func TestCalibrateCommand(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "c.png")
	img := filled(150, 200, color.NRGBA{R: 90, A: 255})
	for y := 10; y < 190; y++ {
		for x := 10; x < 140; x++ {
			img.SetNRGBA(x, y, color.NRGBA{})
		}
	}
	savePNG(t, path, img)

	out, err := runApp(t, "calibrate", "--env-file", filepath.Join(root, "absent.env"), "--frame", path)
	if err != nil {
		t.Fatalf("calibrate failed: %v", err)
	}
	for _, want := range []string{"size:     150x200", "measured: (10, 10, 140, 190)", "calibration:", "inner_width:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
