package ui

import (
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"rakugaki/internal/ids"
)

// Palette is the swatch row offered in the toolbar.
var Palette = []color.Color{
	color.Black,
	color.NRGBA{R: 255, A: 255},
	color.NRGBA{G: 160, A: 255},
	color.NRGBA{B: 255, A: 255},
	color.NRGBA{R: 255, G: 200, A: 255},
	color.White,
}

type colorSwatch struct {
	widget.BaseWidget
	Color    color.Color
	OnTapped func(color.Color)
}

func newColorSwatch(c color.Color, tapped func(color.Color)) *colorSwatch {
	s := &colorSwatch{Color: c, OnTapped: tapped}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(s.Color)
	rect.SetMinSize(fyne.NewSize(28, 28))

	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Gray{Y: 150}
	border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, border))
}

func (s *colorSwatch) Tapped(_ *fyne.PointEvent) {
	if s.OnTapped != nil {
		s.OnTapped(s.Color)
	}
}

// layerLabel names a layer in the layer picker.
func layerLabel(id ids.ID, name string) string {
	return fmt.Sprintf("%v · %s", id, name)
}

// NewToolbar builds the brush, colour, layer and history controls.
func NewToolbar(s *Studio) fyne.CanvasObject {
	report := func(err error) {
		if err != nil {
			s.setStatus(err.Error())
		}
	}

	brushSelect := widget.NewSelect(s.brushes.Names(), nil)
	size := widget.NewSlider(1, 96)
	hardness := widget.NewSlider(0, 1)
	hardness.Step = 0.05
	syncBrush := func() {
		if b := s.eng.Brush(); b != nil {
			brushSelect.SetSelected(b.Name)
			size.SetValue(b.BaseSize)
			hardness.SetValue(b.Hardness())
		}
	}
	syncBrush()
	brushSelect.OnChanged = func(name string) {
		report(s.SelectBrush(name))
		syncBrush()
	}
	size.OnChanged = func(v float64) { report(s.SetSize(v)) }
	hardness.OnChanged = func(v float64) { report(s.SetHardness(v)) }

	swatches := container.NewHBox()
	for _, c := range Palette {
		swatches.Add(newColorSwatch(c, func(c color.Color) { report(s.SetColor(c)) }))
	}

	layerIDs := map[string]ids.ID{}
	layerSelect := widget.NewSelect(nil, func(label string) {
		if id, ok := layerIDs[label]; ok && id != s.eng.CurrentLayerID() {
			report(s.SelectLayer(id))
		}
	})
	paperSelect := widget.NewSelect(s.PaperNames(), nil)
	strength := widget.NewSlider(0, 1)
	strength.Step = 0.05
	strength.SetValue(0.5)
	applyPaper := func() {
		if paperSelect.Selected != "" {
			report(s.SetPaper(paperSelect.Selected, strength.Value))
		}
	}
	paperSelect.OnChanged = func(string) { applyPaper() }
	strength.OnChanged = func(float64) { applyPaper() }

	syncLayers := func() {
		clear(layerIDs)
		var labels []string
		for _, l := range s.eng.Layers() {
			label := layerLabel(l.ID, l.Name)
			layerIDs[label] = l.ID
			labels = append(labels, label)
		}
		layerSelect.SetOptions(labels)
		if l := s.eng.CurrentLayer(); l != nil {
			layerSelect.SetSelected(layerLabel(l.ID, l.Name))
			name := NoPaper
			if p := l.Paper(); p != nil {
				name = p.Paper().Name
				strength.Value = p.Strength()
				strength.Refresh()
			}
			paperSelect.Selected = name
			paperSelect.Refresh()
		} else {
			layerSelect.ClearSelected()
		}
	}
	s.OnLayers = syncLayers
	syncLayers()

	actions := widget.NewToolbar(
		widget.NewToolbarAction(theme.ContentAddIcon(), func() { s.AddLayer() }),
		widget.NewToolbarAction(theme.ContentRemoveIcon(), func() { report(s.RemoveCurrentLayer()) }),
		widget.NewToolbarAction(theme.VisibilityIcon(), func() { report(s.ToggleVisible()) }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentUndoIcon(), func() { s.Undo() }),
		widget.NewToolbarAction(theme.ContentRedoIcon(), func() { s.Redo() }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ZoomInIcon(), func() { report(s.SetViewScale(s.eng.ViewScale() * 1.25)) }),
		widget.NewToolbarAction(theme.ZoomOutIcon(), func() { report(s.SetViewScale(s.eng.ViewScale() / 1.25)) }),
	)

	slider := func(sl *widget.Slider) fyne.CanvasObject {
		return container.New(layout.NewGridWrapLayout(fyne.NewSize(110, 35)), sl)
	}
	return container.NewVBox(
		container.NewHBox(
			widget.NewLabel("Brush:"), brushSelect,
			widget.NewLabel("Size:"), slider(size),
			widget.NewLabel("Hardness:"), slider(hardness),
			widget.NewSeparator(),
			swatches,
			layout.NewSpacer(),
		),
		container.NewHBox(
			widget.NewLabel("Layer:"), layerSelect,
			actions,
			widget.NewSeparator(),
			widget.NewLabel("Paper:"), paperSelect, slider(strength),
			layout.NewSpacer(),
		),
	)
}
