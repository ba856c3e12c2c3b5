package display

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pscolor "gitlab.com/tinyland/lab/pulse-screen/display/color"
	"gitlab.com/tinyland/lab/pulse-screen/sample"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0B"},
		{512, "512.0B"},
		{1023, "1023.0B"},
		{1024, "1.0KiB"},
		{10000, "9.8KiB"},
		{100001221, "95.4MiB"},
		{1 << 40, "1.0TiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00:00"},
		{1500 * time.Millisecond, "0:00:01"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
		{25 * time.Hour, "1 day, 1:00:00"},
		{50 * time.Hour, "2 days, 2:00:00"},
		{-time.Second, "0:00:00"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
		ok   bool
	}{
		{"#375e1f", color.NRGBA{R: 0x37, G: 0x5e, B: 0x1f, A: 0xff}, true},
		{"4A2A7A", color.NRGBA{R: 0x4a, G: 0x2a, B: 0x7a, A: 0xff}, true},
		{"#fff", color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, true},
		{"#12345", color.NRGBA{}, false},
		{"#zzzzzz", color.NRGBA{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseHex(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseHex(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func testSnapshot(n int) sample.Snapshot {
	var snap sample.Snapshot
	for i := 1; i <= n; i++ {
		s := sample.New(uint64(i), time.Unix(int64(i), 0), map[string]sample.Value{
			sample.KeyCPUPercent: sample.Num(float64(i * 10 % 100)),
			sample.KeyCPUFreqGHz: sample.Num(3.4),
			sample.KeyCPUTemp:    sample.Num(50),
			sample.CoreKey(0):    sample.Num(20),
			sample.CoreKey(1):    sample.Num(95),
			sample.KeyDiskRead:   sample.Num(1 << 20),
			sample.KeyDiskWrite:  sample.Num(2048),
			sample.KeyNetRecv:    sample.Num(4096),
			sample.KeyNetSent:    sample.Num(512),
			sample.KeyNetUp:      sample.Bool(true),
		})
		snap.History = append(snap.History, s)
		snap.Latest = s
	}
	return snap
}

func TestGenerateDimensionsAndRotation(t *testing.T) {
	tests := []struct {
		rotation int
		w, h     int
	}{
		{0, 320, 240},
		{90, 240, 320},
		{180, 320, 240},
		{270, 240, 320},
	}
	for _, tt := range tests {
		g := NewGenerator(Options{Width: 320, Height: 240, Rotation: tt.rotation, HistSize: 10})
		f, err := g.Generate(testSnapshot(5), Overlay{})
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		b := f.Image.Bounds()
		if b.Dx() != tt.w || b.Dy() != tt.h {
			t.Errorf("rotation %d: size = %dx%d, want %dx%d", tt.rotation, b.Dx(), b.Dy(), tt.w, tt.h)
		}
	}
}

func TestGenerateCarriesSequence(t *testing.T) {
	g := NewGenerator(Options{Width: 320, Height: 240, HistSize: 10})
	f, err := g.Generate(testSnapshot(3), Overlay{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if f.Seq != 3 {
		t.Errorf("Seq = %d, want 3", f.Seq)
	}
	if f.GenDuration <= 0 {
		t.Errorf("GenDuration = %v, want > 0", f.GenDuration)
	}
}

func TestGenerateEmptySnapshot(t *testing.T) {
	pscolor.ForceDisable()
	g := NewGenerator(Options{Width: 320, Height: 240, HistSize: 10})
	f, err := g.Generate(sample.Snapshot{}, Overlay{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if f.Seq != 0 {
		t.Errorf("Seq = %d, want 0", f.Seq)
	}
	if !strings.Contains(f.Text, "waiting for data") {
		t.Errorf("empty frame text should say it is waiting:\n%s", f.Text)
	}
}

func TestGenerateDrawsCharts(t *testing.T) {
	g := NewGenerator(Options{Width: 320, Height: 240, HistSize: 10})
	f, err := g.Generate(testSnapshot(10), Overlay{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	bg := colBackground
	painted := 0
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			if f.Image.NRGBAAt(x, y) != bg {
				painted++
			}
		}
	}
	if painted < 1000 {
		t.Errorf("only %d pixels differ from the background", painted)
	}
}

func TestPanelText(t *testing.T) {
	pscolor.ForceDisable()

	snap := testSnapshot(4)
	ov := Overlay{
		Hostname:     "tower",
		IP:           "10.0.0.2",
		Uptime:       26 * time.Hour,
		Memory:       Usage{Used: 1 << 30, Total: 4 << 30, Percent: 25},
		Array:        Usage{Used: 1 << 40, Total: 4 << 40, Percent: 25},
		Samples:      12,
		Drops:        1,
		Elapsed:      time.Minute,
		LastGenerate: 20 * time.Millisecond,
		LastPresent:  5 * time.Millisecond,
	}

	tests := []struct {
		name  string
		opts  Options
		wants []string
	}{
		{"basic", Options{HistSize: 10}, []string{"tower 10.0.0.2", "Uptime: 1 day, 2:00:00", "40.0% 3.40 GHz | 50.0°C", "R:1.0MiB/s | W:2.0KiB/s", "RX 4.0KiB/s | TX 512.0B/s", "1.0GiB / 4.0GiB"}},
		{"debug both", Options{HistSize: 10, Debug: true, ProfileStage: "both"}, []string{"Last render: 25.0ms", "12,1 | 0:01:00"}},
		{"debug generate", Options{HistSize: 10, Debug: true, ProfileStage: "generate"}, []string{"Last plot gen: 20.0ms"}},
		{"debug present", Options{HistSize: 10, Debug: true, ProfileStage: "present"}, []string{"Last render: 5.0ms"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewGenerator(tt.opts).Generate(snap, ov)
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			for _, want := range tt.wants {
				if !strings.Contains(f.Text, want) {
					t.Errorf("panel missing %q:\n%s", want, f.Text)
				}
			}
		})
	}
}

func TestNetworkDownPanel(t *testing.T) {
	pscolor.ForceDisable()

	s := sample.New(1, time.Now(), map[string]sample.Value{sample.KeyNetUp: sample.Bool(false)})
	snap := sample.Snapshot{Latest: s, History: []sample.Sample{s}}
	f, err := NewGenerator(Options{HistSize: 5}).Generate(snap, Overlay{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.Contains(f.Text, "NETWORK DOWN") {
		t.Errorf("panel should flag the link:\n%s", f.Text)
	}
}

func TestPlaceholder(t *testing.T) {
	t.Run("blank", func(t *testing.T) {
		img, err := Placeholder("", 320, 240, 90)
		if err != nil {
			t.Fatalf("Placeholder: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 240 || b.Dy() != 320 {
			t.Errorf("size = %v, want 240x320", b)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		img, err := Placeholder(filepath.Join(t.TempDir(), "nope.png"), 320, 240, 0)
		if err == nil {
			t.Error("expected an error for a missing splash")
		}
		if img == nil || img.Bounds().Dx() != 320 {
			t.Error("missing splash should still return a blank panel")
		}
	})

	t.Run("fitted", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "splash.png")
		src := image.NewNRGBA(image.Rect(0, 0, 64, 64))
		fh, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(fh, src); err != nil {
			t.Fatal(err)
		}
		fh.Close()

		img, err := Placeholder(path, 320, 240, 0)
		if err != nil {
			t.Fatalf("Placeholder: %v", err)
		}
		if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 240 {
			t.Errorf("size = %v, want 320x240", b)
		}
	})
}
