package browser

import (
	"testing"

	"github.com/sydlexius/artbrowser/internal/remoteimage"
)

func TestFilterChanges_ResetPaging(t *testing.T) {
	base := State{
		ImageType:  remoteimage.TypeBackdrop,
		Provider:   "TheMovieDb",
		StartIndex: 60,
		PageSize:   30,
		Total:      100,
	}

	t.Run("image type clears provider", func(t *testing.T) {
		st := base
		if !SetImageType(remoteimage.TypeLogo)(&st) {
			t.Fatal("expected refetch")
		}
		if st.StartIndex != 0 || st.Total != 0 || st.Provider != "" || st.ImageType != remoteimage.TypeLogo {
			t.Errorf("state = %+v", st)
		}
	})

	t.Run("provider keeps type", func(t *testing.T) {
		st := base
		if !SetProvider("Fanart")(&st) {
			t.Fatal("expected refetch")
		}
		if st.StartIndex != 0 || st.Total != 0 || st.Provider != "Fanart" || st.ImageType != remoteimage.TypeBackdrop {
			t.Errorf("state = %+v", st)
		}
	})

	t.Run("language keeps type and provider", func(t *testing.T) {
		st := base
		if !SetIncludeAllLanguages(true)(&st) {
			t.Fatal("expected refetch")
		}
		if st.StartIndex != 0 || st.Total != 0 || !st.IncludeAllLanguages || st.Provider != "TheMovieDb" || st.ImageType != remoteimage.TypeBackdrop {
			t.Errorf("state = %+v", st)
		}
	})
}

func TestFilterChange_NextWaitsForNewTotal(t *testing.T) {
	st := State{PageSize: 30, Total: 100, StartIndex: 30}
	SetProvider("Fanart")(&st)
	if NextPage()(&st) {
		t.Errorf("NextPage advanced on stale total: %+v", st)
	}
	if st.StartIndex != 0 {
		t.Errorf("start = %d", st.StartIndex)
	}
}

func TestApplyTotal(t *testing.T) {
	tests := []struct {
		name        string
		start, size int
		total       int
		wantStart   int
		wantRefetch bool
	}{
		{name: "in range", start: 30, size: 30, total: 100, wantStart: 30},
		{name: "first page empty", start: 0, size: 30, total: 0, wantStart: 0},
		{name: "shrank to one page", start: 30, size: 30, total: 5, wantStart: 0, wantRefetch: true},
		{name: "shrank onto partial page", start: 60, size: 30, total: 35, wantStart: 30, wantRefetch: true},
		{name: "exact boundary", start: 60, size: 30, total: 60, wantStart: 30, wantRefetch: true},
		{name: "emptied", start: 60, size: 30, total: 0, wantStart: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := State{StartIndex: tt.start, PageSize: tt.size}
			refetch := st.applyTotal(tt.total)
			if refetch != tt.wantRefetch || st.StartIndex != tt.wantStart || st.Total != tt.total {
				t.Errorf("applyTotal(%d) = %v, state %+v; want refetch %v start %d",
					tt.total, refetch, st, tt.wantRefetch, tt.wantStart)
			}
		})
	}
}

func TestPageChanges(t *testing.T) {
	st := State{PageSize: 30, Total: 42}

	if PreviousPage()(&st) {
		t.Error("PreviousPage on first page should be a no-op")
	}
	if !NextPage()(&st) || st.StartIndex != 30 {
		t.Fatalf("NextPage: start = %d", st.StartIndex)
	}
	if NextPage()(&st) {
		t.Error("NextPage on last page should be a no-op")
	}
	if st.StartIndex != 30 {
		t.Errorf("start moved to %d", st.StartIndex)
	}
	if !PreviousPage()(&st) || st.StartIndex != 0 {
		t.Errorf("PreviousPage: start = %d", st.StartIndex)
	}
}

func TestStateQuery(t *testing.T) {
	st := State{
		ImageType:           remoteimage.TypeBanner,
		Provider:            "TheTVDB",
		IncludeAllLanguages: true,
		StartIndex:          6,
		PageSize:            6,
	}
	q := st.query("item-1")
	want := remoteimage.Query{
		ItemID:              "item-1",
		Type:                remoteimage.TypeBanner,
		ProviderName:        "TheTVDB",
		IncludeAllLanguages: true,
		StartIndex:          6,
		Limit:               6,
	}
	if q != want {
		t.Errorf("query = %+v, want %+v", q, want)
	}
}
