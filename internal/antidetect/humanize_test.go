// internal/antidetect/humanize_test.go
package antidetect

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/valpere/CatalogHarvest/internal/config"
)

func TestGenerateMousePath(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for _, steps := range []int{5, 12, 25} {
		path := GenerateMousePath(rng, 10, 20, 610, 420, steps)
		if len(path) != steps {
			t.Fatalf("expected %d events, got %d", steps, len(path))
		}
		last := path[len(path)-1]
		if last.X != 610 || last.Y != 420 {
			t.Errorf("path must end on target, got (%v,%v)", last.X, last.Y)
		}
		for _, ev := range path {
			if ev.Delay < 10e6 || ev.Delay >= 30e6 {
				t.Errorf("step delay out of range: %v", ev.Delay)
			}
		}
	}

	if got := GenerateMousePath(rng, 0, 0, 0, 0, 0); len(got) != 1 {
		t.Errorf("degenerate path should have one event, got %d", len(got))
	}
}

func TestSimulateBrowsing(t *testing.T) {
	page := &fakePage{width: 1280, height: 800, scrollLimit: 6}
	sleeper := &recordingSleeper{}
	cfg := config.HumanizeConfig{Enabled: true, MinMoves: 3, MaxMoves: 3}

	h := NewHumanizer(cfg, rand.New(rand.NewSource(1)), sleeper.Sleep, nil)
	h.SimulateBrowsing(context.Background(), page)

	if page.moves < 3*minPathSteps || page.moves > 3*maxPathSteps {
		t.Errorf("unexpected move count %d", page.moves)
	}
	if page.scrolls != 6 {
		t.Errorf("expected scrolling to stop at bottom after 6 steps, got %d", page.scrolls)
	}
	if len(sleeper.waits) == 0 {
		t.Error("expected delays between actions")
	}
}

func TestSimulateBrowsing_ClicksAvoidControls(t *testing.T) {
	cfg := config.HumanizeConfig{Enabled: true, MinMoves: 40, MaxMoves: 40}

	tests := []struct {
		name        string
		interactive bool
	}{
		{"empty space is clicked", false},
		{"links are left alone", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := &fakePage{width: 1280, height: 800, scrollLimit: 1, interactive: tt.interactive}
			h := NewHumanizer(cfg, rand.New(rand.NewSource(7)), (&recordingSleeper{}).Sleep, nil)
			h.SimulateBrowsing(context.Background(), page)

			if page.evaluations == 0 {
				t.Fatal("expected the click target to be checked")
			}
			want := page.evaluations
			if tt.interactive {
				want = 0
			}
			if page.clicks != want {
				t.Errorf("clicks = %d, want %d", page.clicks, want)
			}
		})
	}
}

func TestSimulateBrowsing_Disabled(t *testing.T) {
	page := &fakePage{width: 1280, height: 800}
	h := NewHumanizer(config.HumanizeConfig{Enabled: false}, nil, (&recordingSleeper{}).Sleep, nil)
	h.SimulateBrowsing(context.Background(), page)

	if page.moves != 0 || page.scrolls != 0 {
		t.Error("disabled humanizer must not touch the page")
	}
}

func TestSimulateBrowsing_PageErrors(t *testing.T) {
	page := &fakePage{width: 1280, height: 800, scrollErr: errors.New("target closed")}
	h := NewHumanizer(config.HumanizeConfig{Enabled: true}, rand.New(rand.NewSource(3)), (&recordingSleeper{}).Sleep, nil)

	// must return without panicking
	h.SimulateBrowsing(context.Background(), page)
	if page.scrolls != 0 {
		t.Errorf("expected no successful scrolls, got %d", page.scrolls)
	}
}
