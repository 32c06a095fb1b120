package playback

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/slopedit/internal/timeline"
)

var (
	// ErrSurface means the output surface could not be allocated; the
	// engine has to be recreated
	ErrSurface = errors.New("cannot allocate output surface")
	ErrNoVideo = errors.New("no video source")
)

const maxSurfaceSide = 16384

// State is the transport state
type State string

const (
	StateReady   State = "ready"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

// Config holds surface and sync settings
type Config struct {
	Width         int
	Height        int
	SeekTolerance float64
}

// DefaultConfig returns a 1080p surface with a 0.1s seek tolerance
func DefaultConfig() Config {
	return Config{Width: 1920, Height: 1080, SeekTolerance: 0.1}
}

// Collaborators bundles the components the engine drives. Nil audio and
// text collaborators are replaced with no-ops; a nil video source leaves the
// engine showing the import placeholder.
type Collaborators struct {
	Video     VideoSource
	Audio     AudioMixer
	Text      TextRasterizer
	Scheduler Scheduler
}

// Observer receives engine notifications synchronously
type Observer interface {
	TimeChanged(t float64)
	StateChanged(s State)
	FrameRendered()
}

// ObserverFuncs adapts optional functions to Observer
type ObserverFuncs struct {
	OnTime  func(t float64)
	OnState func(s State)
	OnFrame func()
}

func (f ObserverFuncs) TimeChanged(t float64) {
	if f.OnTime != nil {
		f.OnTime(t)
	}
}

func (f ObserverFuncs) StateChanged(s State) {
	if f.OnState != nil {
		f.OnState(s)
	}
}

func (f ObserverFuncs) FrameRendered() {
	if f.OnFrame != nil {
		f.OnFrame()
	}
}

// ProjectState is a summary of what the engine is holding
type ProjectState struct {
	HasVideo    bool
	AudioTracks int
	TextTracks  int
	Duration    float64
	CurrentTime float64
	Playing     bool
}

// Engine owns the transport state, the authoritative current time and the
// output surface. Like the timeline it is single-threaded: every method and
// every scheduled tick must run on the same goroutine.
type Engine struct {
	logger   zerolog.Logger
	cfg      Config
	timeline *timeline.Timeline

	video     VideoSource
	audio     AudioMixer
	text      TextRasterizer
	scheduler Scheduler

	surface *image.RGBA
	state   State
	current float64

	cancelTick func()
	running    bool
	closed     bool

	observers   []subscriber
	nextSub     int
	unsubscribe func()
}

type subscriber struct {
	id int
	Observer
}

// New creates an engine over tl. The render loop does not run until Start.
func New(logger zerolog.Logger, tl *timeline.Timeline, cfg Config, c Collaborators) (*Engine, error) {
	if tl == nil {
		return nil, fmt.Errorf("timeline cannot be nil")
	}
	def := DefaultConfig()
	if cfg.Width == 0 && cfg.Height == 0 {
		cfg.Width, cfg.Height = def.Width, def.Height
	}
	if cfg.SeekTolerance <= 0 {
		cfg.SeekTolerance = def.SeekTolerance
	}
	surface, err := newSurface(cfg.Width, cfg.Height)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		logger:    logger.With().Str("component", "playback").Logger(),
		cfg:       cfg,
		timeline:  tl,
		video:     c.Video,
		audio:     c.Audio,
		text:      c.Text,
		scheduler: c.Scheduler,
		surface:   surface,
		state:     StateReady,
	}
	if e.audio == nil {
		e.audio = nopMixer{}
	}
	if e.text == nil {
		e.text = nopText{}
	}
	e.unsubscribe = tl.Subscribe(timeline.ObserverFuncs{
		OnItemDeleted: e.itemDeleted,
		OnItemMoved:   func(id timeline.ID, _ float64) { e.itemRetimed(id) },
		OnItemRetimed: func(id timeline.ID, _, _ float64) { e.itemRetimed(id) },
	})
	return e, nil
}

func newSurface(w, h int) (*image.RGBA, error) {
	if w <= 0 || h <= 0 || w > maxSurfaceSide || h > maxSurfaceSide {
		return nil, fmt.Errorf("%w: %dx%d", ErrSurface, w, h)
	}
	return image.NewRGBA(image.Rect(0, 0, w, h)), nil
}

// Subscribe registers o and returns a function that removes it
func (e *Engine) Subscribe(o Observer) func() {
	e.nextSub++
	id := e.nextSub
	e.observers = append(e.observers, subscriber{id: id, Observer: o})
	return func() {
		for i, x := range e.observers {
			if x.id == id {
				e.observers = append(e.observers[:i:i], e.observers[i+1:]...)
				return
			}
		}
	}
}

func (e *Engine) Timeline() *timeline.Timeline {
	return e.timeline
}

func (e *Engine) State() State {
	return e.state
}

func (e *Engine) CurrentTime() float64 {
	return e.current
}

func (e *Engine) Duration() float64 {
	return e.timeline.Duration()
}

// Surface is the composited frame buffer. Only the engine draws to it.
func (e *Engine) Surface() *image.RGBA {
	return e.surface
}

// Video returns the video source used for live preview
func (e *Engine) Video() VideoSource {
	return e.video
}

func (e *Engine) ProjectState() ProjectState {
	return ProjectState{
		HasVideo:    e.timeline.Video() != nil,
		AudioTracks: len(e.timeline.Items(timeline.KindAudio)),
		TextTracks:  len(e.timeline.Items(timeline.KindText)),
		Duration:    e.timeline.Duration(),
		CurrentTime: e.current,
		Playing:     e.state == StatePlaying,
	}
}

// Start begins the render loop. Calling it twice has no effect.
func (e *Engine) Start() error {
	if e.closed {
		return fmt.Errorf("engine closed")
	}
	if e.running {
		return nil
	}
	if e.scheduler == nil {
		return fmt.Errorf("no scheduler configured")
	}
	e.running = true
	e.logger.Debug().Msg("render loop started")
	e.tick()
	return nil
}

// Suspend pauses playback and halts the render loop so another goroutine
// can composite through the engine, as export does. The returned func
// restarts the loop if it was running; it is safe to call more than once.
// Call both from the goroutine that owns the engine.
func (e *Engine) Suspend() (resume func()) {
	e.Pause()
	wasRunning := e.running
	e.running = false
	if e.cancelTick != nil {
		e.cancelTick()
		e.cancelTick = nil
	}
	if wasRunning {
		e.logger.Debug().Msg("render loop suspended")
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if !wasRunning || e.closed || e.running {
				return
			}
			e.running = true
			e.logger.Debug().Msg("render loop resumed")
			e.cancelTick = e.scheduler.Request(e.tick)
		})
	}
}

// Close cancels the render loop, stops transport and clears every track
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.running = false
	if e.cancelTick != nil {
		e.cancelTick()
		e.cancelTick = nil
	}
	e.haltSources()
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.timeline.Clear()
	e.state = StateReady
	e.current = 0
	e.logger.Debug().Msg("engine closed")
}

func (e *Engine) tick() {
	if !e.running {
		return
	}
	e.Step()
	e.cancelTick = e.scheduler.Request(e.tick)
}

// Step runs one iteration of the render loop: follow the video clock while
// playing, stop at the end, then composite the frame.
func (e *Engine) Step() {
	if e.state == StatePlaying && e.video != nil {
		native := e.video.CurrentTime()
		if e.video.Paused() && native < e.timeline.Duration() {
			e.logger.Debug().Float64("time", native).Msg("video stopped advancing, pausing")
			e.audio.Pause()
			e.setTime(native)
			e.setState(StatePaused)
		} else {
			e.setTime(native)
		}
		if e.state == StatePlaying && e.current >= e.timeline.Duration() {
			e.Stop()
			return
		}
	}
	e.render()
}

func (e *Engine) render() {
	e.Composite(e.surface, e.current, e.video)
	for _, o := range e.observers {
		o.FrameRendered()
	}
}

// Play starts or resumes playback from the current time. It does nothing
// without a video item or when already playing.
func (e *Engine) Play() {
	if e.state == StatePlaying {
		return
	}
	if e.video == nil || e.timeline.Video() == nil {
		e.logger.Debug().Msg("play ignored, no video loaded")
		return
	}
	if e.current >= e.timeline.Duration() {
		e.setTime(0)
	}
	if math.Abs(e.video.CurrentTime()-e.current) > e.cfg.SeekTolerance {
		e.video.Seek(e.current)
	}
	if err := e.video.Play(); err != nil {
		e.logger.Warn().Err(err).Msg("video source refused to play")
		return
	}
	e.audio.Play(e.current)
	e.setState(StatePlaying)
	e.logger.Info().Float64("from", e.current).Msg("playback started")
}

// Pause freezes playback at the video's current position
func (e *Engine) Pause() {
	if e.state != StatePlaying {
		return
	}
	e.video.Pause()
	e.audio.Pause()
	e.setTime(e.video.CurrentTime())
	e.setState(StatePaused)
	e.logger.Info().Float64("at", e.current).Msg("playback paused")
}

// TogglePlay pauses while playing and plays otherwise
func (e *Engine) TogglePlay() {
	if e.state == StatePlaying {
		e.Pause()
		return
	}
	e.Play()
}

// Stop rewinds to 0, halts the sources and renders the first frame
func (e *Engine) Stop() {
	e.haltSources()
	e.setTime(0)
	e.setState(StateReady)
	e.render()
}

func (e *Engine) haltSources() {
	if e.video != nil {
		e.video.Pause()
		e.video.Seek(0)
	}
	e.audio.Stop()
}

// Seek moves the current time to t, clamped to [0, Duration]. The video is
// only re-seeked when it is more than SeekTolerance away from t.
func (e *Engine) Seek(t float64) {
	if math.IsNaN(t) {
		return
	}
	t = e.clamp(t)
	e.setTime(t)
	if e.video != nil && math.Abs(e.video.CurrentTime()-t) > e.cfg.SeekTolerance {
		e.video.Seek(t)
	}
	e.audio.Seek(t)
	if e.state != StatePlaying {
		e.render()
	}
}

// LoadVideo loads ref into the video source and makes it the composition's
// single video item. Playback in progress is abandoned and the surface is
// resized to the video's dimensions.
func (e *Engine) LoadVideo(ctx context.Context, ref string) (*timeline.Item, error) {
	if e.video == nil {
		return nil, ErrNoVideo
	}
	e.Stop()

	info, err := e.video.Load(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to load video: %w", err)
	}

	if info.Width > 0 && info.Height > 0 && (info.Width != e.surface.Bounds().Dx() || info.Height != e.surface.Bounds().Dy()) {
		surface, err := newSurface(info.Width, info.Height)
		if err != nil {
			return nil, err
		}
		e.surface = surface
	}

	item, err := e.timeline.AddItem(timeline.KindVideo, timeline.VideoPayload{
		Ref:      ref,
		Duration: info.Duration,
		Width:    info.Width,
		Height:   info.Height,
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to place video: %w", err)
	}

	e.logger.Info().
		Str("ref", ref).
		Float64("duration", info.Duration).
		Int("width", info.Width).
		Int("height", info.Height).
		Msg("video loaded")

	e.setTime(0)
	e.render()
	return item, nil
}

// AddAudio places an audio item and registers it with the mixer
func (e *Engine) AddAudio(payload timeline.AudioPayload, start float64) (*timeline.Item, error) {
	item, err := e.timeline.AddItem(timeline.KindAudio, payload, start)
	if err != nil {
		return nil, err
	}
	if err := e.audio.AddTrack(item); err != nil {
		e.timeline.Delete(item.ID)
		return nil, fmt.Errorf("failed to add audio track: %w", err)
	}
	if e.state == StatePlaying {
		e.audio.Play(e.current)
	}
	return item, nil
}

// AddText places a text item shown for duration seconds from start
func (e *Engine) AddText(payload timeline.TextPayload, start, duration float64) (*timeline.Item, error) {
	payload.Duration = duration
	item, err := e.timeline.AddItem(timeline.KindText, payload, start)
	if err != nil {
		return nil, err
	}
	if e.state != StatePlaying {
		e.render()
	}
	return item, nil
}

// DeleteSelected removes the selected item; see timeline.DeleteSelected
func (e *Engine) DeleteSelected() *timeline.Item {
	item := e.timeline.DeleteSelected()
	if item != nil && e.state != StatePlaying {
		e.render()
	}
	return item
}

func (e *Engine) itemDeleted(item *timeline.Item) {
	switch item.Kind {
	case timeline.KindAudio:
		if r, ok := e.audio.(TrackRemover); ok {
			r.RemoveTrack(item.ID)
		}
	case timeline.KindVideo:
		if e.closed || e.timeline.Video() != nil {
			return
		}
		// the video item is gone, not replaced
		if e.state != StateReady {
			e.haltSources()
			e.setState(StateReady)
		}
		e.setTime(0)
	}
}

func (e *Engine) itemRetimed(id timeline.ID) {
	item, ok := e.timeline.Item(id)
	if !ok || item.Kind != timeline.KindAudio {
		return
	}
	if e.state == StatePlaying {
		e.audio.Seek(e.current)
	}
}

func (e *Engine) clamp(t float64) float64 {
	return math.Max(0, math.Min(t, e.timeline.Duration()))
}

func (e *Engine) setTime(t float64) {
	t = e.clamp(t)
	e.timeline.SetPlayhead(t)
	if t == e.current {
		return
	}
	e.current = t
	for _, o := range e.observers {
		o.TimeChanged(t)
	}
}

func (e *Engine) setState(s State) {
	if s == e.state {
		return
	}
	e.state = s
	e.logger.Debug().Str("state", string(s)).Msg("transport state changed")
	for _, o := range e.observers {
		o.StateChanged(s)
	}
}
