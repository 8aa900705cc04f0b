package action

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrUnknownClip     = errors.New("action: unknown clip")
	ErrFrameOutOfRange = errors.New("action: frame out of range")
)

// Clip is one frame-indexed animation.
type Clip struct {
	Name   string  `yaml:"name"`
	Frames int     `yaml:"frames"`
	FPS    float64 `yaml:"fps"`
	Loop   bool    `yaml:"loop"`
}

// ClipSpec describes the 8 directional variants of one animation, named Prefix+"0" .. Prefix+"7".
type ClipSpec struct {
	Prefix string  `yaml:"prefix"`
	Frames int     `yaml:"frames"`
	FPS    float64 `yaml:"fps"`
	Loop   bool    `yaml:"loop"`
}

// Name returns the clip name for facing dir.
func (c ClipSpec) Name(dir int) string {
	return c.Prefix + strconv.Itoa(dir)
}

// AnimSet is the animation table of an actor kind. Empty prefixes mean the kind has no such animation.
type AnimSet struct {
	Idle   ClipSpec `yaml:"idle"`
	Walk   ClipSpec `yaml:"walk"`
	Attack ClipSpec `yaml:"attack"`
	Hit    ClipSpec `yaml:"hit"`
	Death  ClipSpec `yaml:"death"`
}

// Clips expands every declared animation into its 8 directional clips.
func (s AnimSet) Clips() []Clip {
	var out []Clip
	for _, spec := range []ClipSpec{s.Idle, s.Walk, s.Attack, s.Hit, s.Death} {
		if spec.Prefix == "" {
			continue
		}
		for d := 0; d < 8; d++ {
			out = append(out, Clip{Name: spec.Name(d), Frames: spec.Frames, FPS: spec.FPS, Loop: spec.Loop})
		}
	}
	return out
}

var (
	PlayerAnims = AnimSet{
		Idle:   ClipSpec{Prefix: "wlsas_", Frames: 10, FPS: 10, Loop: true},
		Walk:   ClipSpec{Prefix: "wlsaw_", Frames: 8, FPS: 16, Loop: true},
		Attack: ClipSpec{Prefix: "wlsat_", Frames: 16, FPS: 20},
	}
	FallenAnims = AnimSet{
		Idle:   ClipSpec{Prefix: "phalln_", Frames: 10, FPS: 10, Loop: true},
		Walk:   ClipSpec{Prefix: "phallw_", Frames: 8, FPS: 12, Loop: true},
		Attack: ClipSpec{Prefix: "phalla_", Frames: 16, FPS: 20},
		Hit:    ClipSpec{Prefix: "phallh_", Frames: 8, FPS: 20},
		Death:  ClipSpec{Prefix: "phalld_", Frames: 16, FPS: 16},
	}
)

// Timeline plays one clip at a time and fires callbacks as frames are entered.
type Timeline struct {
	clips   map[string]Clip
	onFrame map[string]map[int][]func()
	onEnd   map[string][]func()
	current string
	frame   int
	elapsed float64
	playing bool
}

// NewTimeline creates a timeline over clips. Later clips replace earlier ones of the same name.
func NewTimeline(clips []Clip) *Timeline {
	t := &Timeline{
		clips:   make(map[string]Clip, len(clips)),
		onFrame: make(map[string]map[int][]func()),
		onEnd:   make(map[string][]func()),
	}
	for _, c := range clips {
		t.clips[c.Name] = c
	}
	return t
}

// Has reports whether name is a known clip.
func (t *Timeline) Has(name string) bool {
	_, ok := t.clips[name]
	return ok
}

// RegisterFrameCallback calls fn each time frame of clip name is entered.
func (t *Timeline) RegisterFrameCallback(name string, frame int, fn func()) error {
	c, ok := t.clips[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClip, name)
	}
	if frame <= 0 || frame >= c.Frames {
		return fmt.Errorf("%w: %s has %d frames, got %d", ErrFrameOutOfRange, name, c.Frames, frame)
	}
	if t.onFrame[name] == nil {
		t.onFrame[name] = make(map[int][]func())
	}
	t.onFrame[name][frame] = append(t.onFrame[name][frame], fn)
	return nil
}

// RegisterEndCallback calls fn when clip name finishes (or wraps, for looping clips).
func (t *Timeline) RegisterEndCallback(name string, fn func()) error {
	if !t.Has(name) {
		return fmt.Errorf("%w: %s", ErrUnknownClip, name)
	}
	t.onEnd[name] = append(t.onEnd[name], fn)
	return nil
}

// Play starts clip name from its first frame. Playing the clip that is already running is a no-op.
func (t *Timeline) Play(name string) error {
	if !t.Has(name) {
		return fmt.Errorf("%w: %s", ErrUnknownClip, name)
	}
	if t.playing && t.current == name {
		return nil
	}
	t.current = name
	t.frame = 0
	t.elapsed = 0
	t.playing = true
	return nil
}

// Stop freezes the timeline on its current frame.
func (t *Timeline) Stop() {
	t.playing = false
}

func (t *Timeline) Current() string { return t.current }
func (t *Timeline) Frame() int { return t.frame }
func (t *Timeline) Playing() bool { return t.playing }

// Update advances the running clip by dt seconds. Callbacks run synchronously and
// may start another clip, which ends this update.
func (t *Timeline) Update(dt float64) {
	if !t.playing {
		return
	}
	name := t.current
	c := t.clips[name]
	if c.FPS <= 0 || c.Frames <= 0 {
		return
	}
	step := 1 / c.FPS
	t.elapsed += dt
	for t.playing && t.current == name && t.elapsed >= step {
		t.elapsed -= step
		next := t.frame + 1
		if next >= c.Frames {
			if !c.Loop {
				t.playing = false
				t.fire(t.onEnd[name])
				return
			}
			t.frame = 0
			t.fire(t.onEnd[name])
			continue
		}
		t.frame = next
		t.fire(t.onFrame[name][next])
	}
}

func (t *Timeline) fire(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
