// internal/antidetect/humanize.go
package antidetect

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/CatalogHarvest/internal/browser"
	"github.com/valpere/CatalogHarvest/internal/config"
	"github.com/valpere/CatalogHarvest/internal/utils"
)

// MouseEvent represents a mouse movement/click event
type MouseEvent struct {
	X         float64
	Y         float64
	Delay     time.Duration // pause before this event
	EventType string        // move, click
}

const (
	minPathSteps     = 5
	maxPathSteps     = 25
	clickChance      = 0.2
	readingChance    = 0.1
	minScrollStep    = 100
	maxScrollStep    = 400
	maxScrollActions = 120
)

// interactiveAtScript reports whether the element under a point would react
// to a click.
const interactiveAtScript = `(function(x, y) {
	var el = document.elementFromPoint(x, y);
	return !!(el && el.closest('a, button, input, select, textarea, label, [onclick], [role=button], [role=link]'));
})(%f, %f)`

// Humanizer simulates a person skimming a listing page.
type Humanizer struct {
	cfg    config.HumanizeConfig
	sleep  utils.Sleeper
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewHumanizer creates a humanizer. Nil rng and sleep get real defaults.
func NewHumanizer(cfg config.HumanizeConfig, rng *rand.Rand, sleep utils.Sleeper, logger *zap.Logger) *Humanizer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if sleep == nil {
		sleep = utils.Sleep
	}
	if cfg.MinMoves <= 0 {
		cfg.MinMoves = 3
	}
	if cfg.MaxMoves < cfg.MinMoves {
		cfg.MaxMoves = cfg.MinMoves
	}
	return &Humanizer{
		cfg:    cfg,
		sleep:  sleep,
		logger: utils.OrNop(logger).Named("humanize"),
		rng:    rng,
	}
}

// SimulateBrowsing moves the pointer around, sometimes clicks on empty
// space, then scrolls to the bottom at a varying pace. Page errors are
// logged at debug level and end the simulation early.
func (h *Humanizer) SimulateBrowsing(ctx context.Context, page browser.Page) {
	if !h.cfg.Enabled {
		return
	}
	if err := h.movePointer(ctx, page); err != nil {
		h.logger.Debug("pointer simulation stopped", zap.Error(err))
	}
	if err := h.scrollToBottom(ctx, page); err != nil {
		h.logger.Debug("scroll simulation stopped", zap.Error(err))
	}
}

func (h *Humanizer) movePointer(ctx context.Context, page browser.Page) error {
	width, height := page.Viewport()
	if width <= 0 || height <= 0 {
		width, height = 1280, 720
	}

	h.mu.Lock()
	moves := h.cfg.MinMoves + h.rng.Intn(h.cfg.MaxMoves-h.cfg.MinMoves+1)
	x, y := h.rng.Float64()*float64(width), h.rng.Float64()*float64(height)
	h.mu.Unlock()

	for i := 0; i < moves; i++ {
		h.mu.Lock()
		tx, ty := h.rng.Float64()*float64(width), h.rng.Float64()*float64(height)
		steps := minPathSteps + h.rng.Intn(maxPathSteps-minPathSteps+1)
		path := GenerateMousePath(h.rng, x, y, tx, ty, steps)
		click := h.rng.Float64() < clickChance
		// aim at the left gutter; safeToClick still checks what is there
		cx, cy := h.rng.Float64()*float64(width)*0.04+2, h.rng.Float64()*float64(height)
		h.mu.Unlock()

		for _, ev := range path {
			if err := h.sleep(ctx, ev.Delay); err != nil {
				return err
			}
			if err := page.MouseMove(ctx, ev.X, ev.Y); err != nil {
				return err
			}
		}
		x, y = tx, ty

		if click && h.safeToClick(ctx, page, cx, cy) {
			if err := page.MouseClick(ctx, cx, cy); err != nil {
				return err
			}
			x, y = cx, cy
		}
	}
	return nil
}

// safeToClick is false when the point is over a link or control, or when
// the page cannot tell.
func (h *Humanizer) safeToClick(ctx context.Context, page browser.Page, x, y float64) bool {
	var interactive bool
	if err := page.Evaluate(ctx, fmt.Sprintf(interactiveAtScript, x, y), &interactive); err != nil {
		h.logger.Debug("click target check failed", zap.Error(err))
		return false
	}
	return !interactive
}

func (h *Humanizer) scrollToBottom(ctx context.Context, page browser.Page) error {
	for i := 0; i < maxScrollActions; i++ {
		h.mu.Lock()
		dy := minScrollStep + h.rng.Intn(maxScrollStep-minScrollStep+1)
		pause := utils.Jitter(h.rng, 80*time.Millisecond, 400*time.Millisecond)
		reading := h.rng.Float64() < readingChance
		readFor := utils.Jitter(h.rng, time.Second, 3*time.Second)
		h.mu.Unlock()

		atBottom, err := page.Scroll(ctx, dy)
		if err != nil {
			return err
		}
		if atBottom {
			return nil
		}
		if reading {
			pause = readFor
		}
		if err := h.sleep(ctx, pause); err != nil {
			return err
		}
	}
	return nil
}

// GenerateMousePath generates a human-looking pointer path from start to
// end: eased progress with perpendicular wobble and per-step timing noise.
// The last event lands exactly on the target.
func GenerateMousePath(rng *rand.Rand, startX, startY, endX, endY float64, steps int) []MouseEvent {
	if steps < 1 {
		steps = 1
	}
	events := make([]MouseEvent, 0, steps)

	dx, dy := endX-startX, endY-startY
	distance := math.Hypot(dx, dy)
	// unit normal for the wobble
	nx, ny := 0.0, 0.0
	if distance > 0 {
		nx, ny = -dy/distance, dx/distance
	}
	amplitude := math.Min(distance*0.08, 40) * (rng.Float64()*2 - 1)

	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		eased := t * t * (3 - 2*t)
		wobble := amplitude * math.Sin(math.Pi*t)
		noise := rng.Float64()*4 - 2

		x := startX + dx*eased + nx*(wobble+noise)
		y := startY + dy*eased + ny*(wobble+noise)
		if i == steps {
			x, y = endX, endY
		}

		// Human-like timing with micro-pauses
		delay := time.Duration(rng.Intn(20)+10) * time.Millisecond

		events = append(events, MouseEvent{
			X:         x,
			Y:         y,
			Delay:     delay,
			EventType: "move",
		})
	}
	return events
}
