package gui

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/slopedit/internal/editor"
	"github.com/kikiluvv/slopedit/internal/pipeline"
	"github.com/kikiluvv/slopedit/internal/playback"
	"github.com/kikiluvv/slopedit/internal/timeline"
	"github.com/kikiluvv/slopedit/pkg/util"
)

var (
	videoExts = []string{".mp4", ".mov", ".mkv", ".webm", ".avi"}
	audioExts = []string{".mp3", ".wav"}
)

// zoom factor applied per zoom button press
const zoomStep = 1.25

// NewScheduler returns a render-loop scheduler whose ticks run on the fyne
// main goroutine
func NewScheduler(fps float64) *playback.TickerScheduler {
	return playback.NewTickerScheduler(fps, fyne.Do)
}

// Editor is the editing window around a session
type Editor struct {
	logger  zerolog.Logger
	session *editor.Session
	eng     *playback.Engine
	tl      *timeline.Timeline

	app    fyne.App
	window fyne.Window

	preview   *canvas.Image
	strip     *strip
	scroll    *container.Scroll
	slider    *widget.Slider
	timeLabel *widget.Label
	zoomLabel *widget.Label
	playBtn   *widget.Button
	list      *widget.List
	rows      []*timeline.Item

	// syncing suppresses the slider's seek while the engine moves it
	syncing   bool
	exporting atomic.Bool
}

// New creates the editor window. The session's engine must have been
// opened with NewScheduler.
func New(logger zerolog.Logger, s *editor.Session) *Editor {
	e := &Editor{
		logger:  logger.With().Str("component", "gui").Logger(),
		session: s,
		eng:     s.Engine,
		tl:      s.Timeline,
		app:     app.NewWithID("slopedit"),
	}
	e.window = e.app.NewWindow("slopedit")
	e.window.Resize(fyne.NewSize(1280, 800))
	e.build()
	e.subscribe()
	return e
}

// Run shows the window and blocks until it is closed
func (e *Editor) Run() {
	e.app.Lifecycle().SetOnStarted(func() {
		if err := e.eng.Start(); err != nil {
			e.logger.Error().Err(err).Msg("render loop failed to start")
		}
	})
	e.window.SetOnClosed(func() {
		e.session.Close()
	})
	e.window.ShowAndRun()
}

func (e *Editor) build() {
	e.preview = canvas.NewImageFromImage(e.eng.Surface())
	e.preview.FillMode = canvas.ImageFillContain
	e.preview.ScaleMode = canvas.ImageScaleFastest
	e.preview.SetMinSize(fyne.NewSize(640, 360))

	e.playBtn = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), e.unlocked(e.eng.TogglePlay))
	stopBtn := widget.NewButtonWithIcon("", theme.MediaStopIcon(), e.unlocked(e.eng.Stop))

	e.slider = widget.NewSlider(0, 1)
	e.slider.Step = 0.01
	e.slider.OnChanged = func(v float64) {
		if !e.syncing && !e.exporting.Load() {
			e.eng.Seek(v)
		}
	}
	e.timeLabel = widget.NewLabel(clockLabel(0, 0))

	e.zoomLabel = widget.NewLabel(zoomText(e.tl.Zoom()))
	zoomIn := widget.NewButtonWithIcon("", theme.ZoomInIcon(), func() { e.tl.ZoomBy(zoomStep) })
	zoomOut := widget.NewButtonWithIcon("", theme.ZoomOutIcon(), func() { e.tl.ZoomBy(1 / zoomStep) })

	e.strip = newStrip(e.logger, e.eng, e.exporting.Load)
	e.scroll = container.NewHScroll(e.strip)
	e.scroll.SetMinSize(fyne.NewSize(minStripLen, e.strip.contentSize().Height+12))

	e.list = widget.NewList(
		func() int { return len(e.rows) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i < len(e.rows) {
				o.(*widget.Label).SetText(rowText(e.rows[i]))
			}
		},
	)
	e.list.OnSelected = func(i widget.ListItemID) {
		if i < len(e.rows) {
			e.tl.Select(e.rows[i].ID)
		}
	}

	toolbar := container.NewHBox(
		widget.NewButtonWithIcon("Import Video", theme.FolderOpenIcon(), e.unlocked(e.importVideo)),
		widget.NewButtonWithIcon("Add Music", theme.MediaMusicIcon(), e.unlocked(e.addMusic)),
		widget.NewButtonWithIcon("Add Text", theme.ContentAddIcon(), e.unlocked(e.addText)),
		widget.NewButtonWithIcon("Delete", theme.DeleteIcon(), e.unlocked(func() { e.eng.DeleteSelected() })),
		widget.NewButtonWithIcon("Export", theme.DocumentSaveIcon(), e.export),
	)
	transport := container.NewBorder(nil, nil,
		container.NewHBox(e.playBtn, stopBtn),
		container.NewHBox(e.timeLabel, zoomOut, e.zoomLabel, zoomIn),
		e.slider,
	)

	side := container.NewBorder(widget.NewLabel("Items"), nil, nil, nil, e.list)
	main := container.NewHSplit(e.preview, side)
	main.SetOffset(0.78)

	e.window.SetContent(container.NewBorder(
		toolbar,
		container.NewVBox(transport, e.scroll),
		nil, nil,
		main,
	))
	e.window.Canvas().SetOnTypedKey(e.typedKey)
}

func (e *Editor) subscribe() {
	e.eng.Subscribe(playback.ObserverFuncs{
		OnTime: e.timeChanged,
		OnState: func(s playback.State) {
			if s == playback.StatePlaying {
				e.playBtn.SetIcon(theme.MediaPauseIcon())
			} else {
				e.playBtn.SetIcon(theme.MediaPlayIcon())
			}
		},
		OnFrame: func() {
			e.preview.Image = e.eng.Surface()
			e.preview.Refresh()
		},
	})

	changed := func() { e.itemsChanged() }
	e.tl.Subscribe(timeline.ObserverFuncs{
		OnItemAdded:    func(*timeline.Item) { changed() },
		OnItemDeleted:  func(*timeline.Item) { changed() },
		OnItemSelected: func(timeline.ID, timeline.Kind) { e.strip.Refresh() },
		OnItemMoved:    func(timeline.ID, float64) { changed() },
		OnItemRetimed:  func(timeline.ID, float64, float64) { changed() },
		OnLayout: func() {
			e.zoomLabel.SetText(zoomText(e.tl.Zoom()))
			e.slider.Max = max(e.tl.Duration(), 1)
			e.slider.Refresh()
			e.strip.Refresh()
			e.scroll.Refresh()
		},
	})
}

func (e *Editor) timeChanged(t float64) {
	e.syncing = true
	e.slider.SetValue(t)
	e.syncing = false
	e.timeLabel.SetText(clockLabel(t, e.eng.Duration()))
	e.strip.movePlayhead()
}

func (e *Editor) itemsChanged() {
	e.rows = e.rows[:0]
	for _, kind := range timeline.Kinds {
		e.rows = append(e.rows, e.tl.Items(kind)...)
	}
	e.list.Refresh()
	e.strip.Refresh()
}

func (e *Editor) typedKey(ev *fyne.KeyEvent) {
	if e.exporting.Load() {
		return
	}
	switch ev.Name {
	case fyne.KeySpace:
		e.eng.TogglePlay()
	case fyne.KeyDelete:
		e.tl.HandleKey(timeline.KeyDelete)
	case fyne.KeyBackSpace:
		e.tl.HandleKey(timeline.KeyBackspace)
	case fyne.KeyLeft:
		e.tl.HandleKey(timeline.KeyArrowLeft)
	case fyne.KeyRight:
		e.tl.HandleKey(timeline.KeyArrowRight)
	}
}

func (e *Editor) importVideo() {
	fd := dialog.NewFileOpen(func(ur fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, e.window)
			return
		}
		if ur == nil {
			return
		}
		ur.Close()
		if e.exporting.Load() {
			return
		}
		if _, err := e.session.LoadVideo(context.Background(), ur.URI().Path()); err != nil {
			dialog.ShowError(err, e.window)
		}
	}, e.window)
	fd.SetFilter(storage.NewExtensionFileFilter(videoExts))
	fd.Show()
}

func (e *Editor) addMusic() {
	fd := dialog.NewFileOpen(func(ur fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, e.window)
			return
		}
		if ur == nil {
			return
		}
		ur.Close()
		if e.exporting.Load() {
			return
		}
		if _, err := e.session.AddMusic(ur.URI().Path(), e.eng.CurrentTime()); err != nil {
			dialog.ShowError(err, e.window)
		}
	}, e.window)
	fd.SetFilter(storage.NewExtensionFileFilter(audioExts))
	fd.Show()
}

func (e *Editor) addText() {
	text := widget.NewMultiLineEntry()
	text.SetPlaceHolder("Text")
	start := widget.NewEntry()
	start.SetText(strconv.FormatFloat(e.eng.CurrentTime(), 'f', 2, 64))
	duration := widget.NewEntry()
	duration.SetText("3")
	style := widget.NewSelect(append([]string{"default"}, e.session.Styles.List()...), nil)
	style.SetSelected("default")

	items := []*widget.FormItem{
		widget.NewFormItem("Text", text),
		widget.NewFormItem("Start", start),
		widget.NewFormItem("Duration", duration),
		widget.NewFormItem("Style", style),
	}
	dialog.ShowForm("Add Text", "Add", "Cancel", items, func(ok bool) {
		if !ok || e.exporting.Load() {
			return
		}
		spec, err := editor.ParseTextSpec(start.Text + "," + duration.Text + "," + text.Text)
		if err != nil {
			dialog.ShowError(err, e.window)
			return
		}
		preset := style.Selected
		if preset == "default" {
			preset = ""
		}
		if _, err := e.session.AddText(spec.Text, spec.Start, spec.Duration, preset); err != nil {
			dialog.ShowError(err, e.window)
		}
	}, e.window)
}

// unlocked wraps an action that touches the engine so it is ignored while
// an export owns the compositor
func (e *Editor) unlocked(fn func()) func() {
	return func() {
		if !e.exporting.Load() {
			fn()
		}
	}
}

func (e *Editor) export() {
	if e.tl.Video() == nil {
		dialog.ShowInformation("Export", "Please import a video first", e.window)
		return
	}
	if !e.exporting.CompareAndSwap(false, true) {
		return
	}

	ps := e.eng.ProjectState()
	eta := pipeline.EstimateDuration(ps.Duration, e.session.Config.Export.FPS, e.session.Config.Export.Quality, ps.TextTracks, ps.AudioTracks)

	bar := widget.NewProgressBar()
	status := widget.NewLabel(fmt.Sprintf("Estimated time: %s", eta))
	ctx, cancel := context.WithCancel(context.Background())
	progress := dialog.NewCustomWithoutButtons("Exporting", container.NewVBox(bar, status,
		widget.NewButton("Cancel", cancel)), e.window)
	progress.Show()

	e.session.StartExport(ctx, pipeline.ExportOptions{
		OnProgress: func(percent float64, frame, total int) {
			fyne.Do(func() {
				bar.SetValue(percent / 100)
				status.SetText(fmt.Sprintf("Frame %d / %d", frame, total))
			})
		},
	}, fyne.Do, func(res *pipeline.Result, err error) {
		cancel()
		e.exporting.Store(false)
		progress.Hide()
		if err != nil {
			dialog.ShowError(err, e.window)
			return
		}
		dialog.ShowInformation("Export", "Saved "+filepath.Base(res.Path), e.window)
	})
}

func clockLabel(t, d float64) string {
	return util.FormatClock(t) + " / " + util.FormatClock(d)
}

func zoomText(z float64) string {
	return strconv.FormatFloat(z*100, 'f', 0, 64) + "%"
}

func rowText(it *timeline.Item) string {
	return fmt.Sprintf("%s  %s  %s-%s",
		strings.ToUpper(string(it.Kind[:1])),
		it.Name,
		util.FormatClock(it.Start),
		util.FormatClock(it.End()))
}
