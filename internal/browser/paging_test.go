package browser

import "testing"

func TestComputePaging(t *testing.T) {
	tests := []struct {
		name                 string
		start, size, total   int
		wantStart, wantEnd   int
		wantShow             bool
		wantPrevDis, wantNxt bool
	}{
		{"first page of many", 0, 30, 42, 1, 30, true, true, false},
		{"last partial page", 30, 30, 42, 31, 42, true, false, true},
		{"single page", 0, 30, 5, 1, 5, false, true, true},
		{"exact fit", 0, 30, 30, 1, 30, false, true, true},
		{"empty", 0, 30, 0, 0, 0, false, true, true},
		{"middle page", 6, 6, 20, 7, 12, true, false, false},
		{"boundary", 12, 6, 18, 13, 18, true, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ComputePaging(tt.start, tt.size, tt.total)
			if p.StartDisplay != tt.wantStart {
				t.Errorf("StartDisplay = %d, want %d", p.StartDisplay, tt.wantStart)
			}
			if p.RecordsEnd != tt.wantEnd {
				t.Errorf("RecordsEnd = %d, want %d", p.RecordsEnd, tt.wantEnd)
			}
			if p.ShowControls != tt.wantShow {
				t.Errorf("ShowControls = %v, want %v", p.ShowControls, tt.wantShow)
			}
			if p.PreviousDisabled != tt.wantPrevDis {
				t.Errorf("PreviousDisabled = %v, want %v", p.PreviousDisabled, tt.wantPrevDis)
			}
			if p.NextDisabled != tt.wantNxt {
				t.Errorf("NextDisabled = %v, want %v", p.NextDisabled, tt.wantNxt)
			}
		})
	}
}

// Exhaustive check over a small grid.
func TestComputePaging_Properties(t *testing.T) {
	for size := 1; size <= 7; size++ {
		for total := 0; total <= 25; total++ {
			for start := 0; start < max(total, 1); start += size {
				p := ComputePaging(start, size, total)
				if want := min(start+size, total); p.RecordsEnd != want {
					t.Fatalf("(%d,%d,%d) RecordsEnd = %d, want %d", start, size, total, p.RecordsEnd, want)
				}
				if p.NextDisabled != (start+size >= total) {
					t.Fatalf("(%d,%d,%d) NextDisabled = %v", start, size, total, p.NextDisabled)
				}
				if p.PreviousDisabled != (start == 0) {
					t.Fatalf("(%d,%d,%d) PreviousDisabled = %v", start, size, total, p.PreviousDisabled)
				}
			}
		}
	}
}

func TestParseLayout(t *testing.T) {
	tests := []struct {
		in   string
		want Layout
	}{
		{"", Layout{ExternalLinks: true}},
		{"desktop", Layout{ExternalLinks: true}},
		{"tv", Layout{TV: true}},
		{"TV, slow", Layout{TV: true, Slow: true}},
		{"slow", Layout{Slow: true, ExternalLinks: true}},
		{"nolinks", Layout{}},
	}
	for _, tt := range tests {
		if got := ParseLayout(tt.in); got != tt.want {
			t.Errorf("ParseLayout(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
	if ParseLayout("tv").DialogSize() != DialogFullscreen {
		t.Error("tv layout should be fullscreen")
	}
	if ParseLayout("").DialogSize() != DialogSmall {
		t.Error("default layout should be small")
	}
}
