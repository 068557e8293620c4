package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"rakugaki/internal/export"
	"rakugaki/internal/serializer"
	"rakugaki/internal/settings"
	"rakugaki/internal/store"
)

// Options configure RunApp.
type Options struct {
	Title      string
	FrameRate  int
	Store      *store.Store
	Serializer *serializer.Serializer
	// BridgeURL is shown in the status bar when remote input is enabled.
	BridgeURL string
	// AutosaveInterval is how often the working project is kept in the
	// store for the next session. 0 disables autosave.
	AutosaveInterval time.Duration
	Log              *slog.Logger
}

// RunApp opens the main window and blocks until it closes.
func RunApp(ctx context.Context, s *Studio, opts Options) {
	if opts.Log == nil {
		opts.Log = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a := app.NewWithID("io.rakugaki")
	w := a.NewWindow(opts.Title)
	w.Resize(fyne.NewSize(1280, 860))

	status := widget.NewLabel("Ready")
	if opts.BridgeURL != "" {
		status.SetText("Remote input: " + opts.BridgeURL)
	}
	s.OnStatus = status.SetText

	p := &persistence{studio: s, opts: opts, win: w, ctx: ctx}
	if opts.Store != nil && opts.AutosaveInterval > 0 {
		p.autosave = NewAutosave(opts.Store, opts.Serializer, opts.Log)
	}
	p.loadSettings()
	p.restoreWorkingState()

	w.SetMainMenu(fyne.NewMainMenu(fyne.NewMenu("File",
		fyne.NewMenuItem("New", p.newProject),
		fyne.NewMenuItem("Save…", p.save),
		fyne.NewMenuItem("Open…", p.open),
		fyne.NewMenuItem("Export…", p.export),
	)))

	board := container.NewScroll(container.NewCenter(s.Board()))
	w.SetContent(container.NewBorder(NewToolbar(s), status, nil, nil, board))
	w.SetOnClosed(func() {
		p.saveSettings()
		p.persistWorkingState()
		cancel()
	})

	go s.Run(ctx, opts.FrameRate)
	if p.autosave != nil {
		go p.autosaveLoop(opts.AutosaveInterval)
	}
	w.ShowAndRun()
}

// persistence runs save, open and export against the store. Its methods
// run on the UI goroutine; sealing, decoding and store access run on worker
// goroutines and report back through fyne.Do.
type persistence struct {
	studio   *Studio
	opts     Options
	win      fyne.Window
	ctx      context.Context
	autosave *Autosave
	// busy is set while a worker seals or decodes the project.
	busy atomic.Bool
}

func (p *persistence) loadSettings() {
	if p.opts.Store == nil {
		return
	}
	if err := p.restoreSettings(); err != nil {
		p.opts.Log.Warn("settings not restored", "err", err)
	}
}

func (p *persistence) restoreSettings() error {
	blob, err := p.opts.Store.Load(p.ctx, settings.Key)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	st, err := settings.Parse(blob)
	if err != nil {
		return err
	}
	current, err := st.Apply(p.studio.brushes)
	if current != nil {
		p.studio.eng.SetBrush(current)
	}
	return err
}

func (p *persistence) saveSettings() {
	if p.opts.Store == nil {
		return
	}
	blob, err := settings.Capture(p.studio.brushes, p.studio.eng.Brush()).Marshal()
	if err == nil {
		err = p.opts.Store.Save(p.ctx, settings.Key, blob)
	}
	if err != nil {
		p.opts.Log.Warn("settings not saved", "err", err)
	}
}

func (p *persistence) fail(err error) {
	p.opts.Log.Error("operation failed", "err", err)
	dialog.ShowError(err, p.win)
}

func (p *persistence) save() {
	if p.opts.Store == nil {
		p.fail(errors.New("no project store configured"))
		return
	}
	title := widget.NewEntry()
	title.SetText(p.studio.eng.Title())
	password := widget.NewPasswordEntry()
	items := []*widget.FormItem{
		widget.NewFormItem("Title", title),
		widget.NewFormItem("Password", password),
	}
	dialog.ShowForm("Save project", "Save", "Cancel", items, func(ok bool) {
		if !ok {
			return
		}
		eng := p.studio.eng
		eng.SetTitle(title.Text)
		draft := serializer.NewDraft(eng)
		key := store.ProjectKey(eng.ProjectID())
		p.studio.setStatus("Saving…")
		go func() {
			blob, err := p.opts.Serializer.Seal(p.ctx, draft, password.Text)
			if err == nil {
				err = p.opts.Store.Save(p.ctx, key, blob)
			}
			fyne.Do(func() {
				if err != nil {
					p.fail(err)
					return
				}
				p.saveSettings()
				p.studio.setStatus(fmt.Sprintf("Saved %q (%d KiB)", title.Text, len(blob)/1024))
			})
		}()
	}, p.win)
}

func (p *persistence) open() {
	if p.opts.Store == nil {
		p.fail(errors.New("no project store configured"))
		return
	}
	keys, err := p.opts.Store.Keys(p.ctx, store.ProjectPrefix)
	if err != nil {
		p.fail(err)
		return
	}
	if len(keys) == 0 {
		dialog.ShowInformation("Open project", "No saved projects.", p.win)
		return
	}
	labels := make([]string, len(keys))
	byLabel := make(map[string]string, len(keys))
	for i, k := range keys {
		labels[i] = p.describe(k)
		byLabel[labels[i]] = k
	}
	pick := widget.NewSelect(labels, nil)
	pick.SetSelectedIndex(0)
	password := widget.NewPasswordEntry()
	items := []*widget.FormItem{
		widget.NewFormItem("Project", pick),
		widget.NewFormItem("Password", password),
	}
	dialog.ShowForm("Open project", "Open", "Cancel", items, func(ok bool) {
		if ok {
			p.load(byLabel[pick.Selected], password.Text)
		}
	}, p.win)
}

// describe labels a stored project with the title from its public header.
func (p *persistence) describe(key string) string {
	id := strings.TrimPrefix(key, store.ProjectPrefix)
	blob, err := p.opts.Store.Load(p.ctx, key)
	if err != nil {
		return id
	}
	hdr, _, err := serializer.ReadHeader(blob)
	if err != nil || hdr.Title == "" {
		return id
	}
	return fmt.Sprintf("%s (%s)", hdr.Title, id[:min(8, len(id))])
}

func (p *persistence) load(key, password string) {
	if !p.busy.CompareAndSwap(false, true) {
		p.studio.setStatus("Still saving or opening, try again shortly")
		return
	}
	eng := p.studio.eng
	p.studio.setStatus("Opening…")
	go func() {
		blob, err := p.opts.Store.Load(p.ctx, key)
		var d *serializer.Decoded
		if err == nil {
			d, err = p.opts.Serializer.Decode(p.ctx, eng, blob, password)
		}
		fyne.Do(func() {
			defer p.busy.Store(false)
			if err == nil {
				err = p.opts.Serializer.Apply(eng, d)
			}
			if err != nil {
				p.fail(err)
				return
			}
			p.opened(d.Report)
		})
	}()
}

// opened resyncs the UI after a project replaced the engine's and lists any
// problems the load reported.
func (p *persistence) opened(rep *serializer.Report) {
	p.studio.Reloaded()
	if rep.OK() {
		p.studio.setStatus(fmt.Sprintf("Opened %q, %d layers", p.studio.eng.Title(), rep.Loaded))
		return
	}
	var b strings.Builder
	for _, w := range rep.Warnings {
		fmt.Fprintf(&b, "• %s\n", w)
	}
	for _, e := range rep.Errors {
		fmt.Fprintf(&b, "• %v\n", e)
	}
	dialog.ShowInformation("Project opened with problems", b.String(), p.win)
}

func (p *persistence) export() {
	dialog.ShowFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil {
			p.fail(err)
			return
		}
		if wc == nil {
			return
		}
		defer wc.Close()
		eng := p.studio.eng
		if err := export.Write(wc, wc.URI().Extension(), eng.Flatten(), eng.Title()); err != nil {
			p.fail(err)
			return
		}
		p.studio.setStatus("Exported " + wc.URI().Name())
	}, p.win)
}

func (p *persistence) newProject() {
	dialog.ShowConfirm("New project", "Discard the current drawing?", func(ok bool) {
		if !ok {
			return
		}
		if err := p.studio.NewProject("Untitled"); err != nil {
			p.fail(err)
			return
		}
		if p.autosave != nil {
			go func() {
				if err := p.autosave.Clear(p.ctx); err != nil {
					p.opts.Log.Warn("working state not cleared", "err", err)
				}
			}()
		}
		p.studio.setStatus("New project")
	}, p.win)
}

// restoreWorkingState reopens the project the last session left behind.
func (p *persistence) restoreWorkingState() {
	if p.autosave == nil {
		return
	}
	p.busy.Store(true)
	eng := p.studio.eng
	go func() {
		d, err := p.autosave.Decode(p.ctx, eng)
		if err != nil || d == nil {
			if err != nil {
				p.opts.Log.Warn("working state not restored", "err", err)
			}
			p.busy.Store(false)
			return
		}
		fyne.Do(func() {
			defer p.busy.Store(false)
			if err := p.opts.Serializer.Apply(eng, d); err != nil {
				p.opts.Log.Warn("working state not restored", "err", err)
				return
			}
			p.opened(d.Report)
		})
	}()
}

// autosaveLoop keeps the working state every interval until the window
// closes. Ticks are skipped mid-stroke and while a load is in flight.
func (p *persistence) autosaveLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-t.C:
			fyne.Do(func() {
				if p.studio.eng.Drawing() || !p.busy.CompareAndSwap(false, true) {
					return
				}
				draft := serializer.NewDraft(p.studio.eng)
				go func() {
					defer p.busy.Store(false)
					if err := p.autosave.Save(p.ctx, draft); err != nil && p.ctx.Err() == nil {
						p.opts.Log.Warn("working state not saved", "err", err)
					}
				}()
			})
		}
	}
}

// persistWorkingState keeps the working state synchronously as the window
// closes.
func (p *persistence) persistWorkingState() {
	if p.autosave == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.autosave.Save(ctx, serializer.NewDraft(p.studio.eng)); err != nil {
		p.opts.Log.Warn("working state not saved", "err", err)
	}
}
