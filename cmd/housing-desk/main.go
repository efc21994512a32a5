package main

import (
	"context"
	"errors"
	"flag"
	"image"
	"log"

	fyne "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"calhousing/charts"
	"calhousing/config"
	"calhousing/db"
	"calhousing/form"
	"calhousing/housing"
	"calhousing/logging"
	"calhousing/ml"
)

// window implements form.Presenter on top of fyne widgets.
type window struct {
	win     fyne.Window
	bar     *canvas.Image
	scatter *canvas.Image
	hist    *canvas.Image
	table   *widget.Table
	header  []string
	rows    [][]string
}

func (w *window) ShowInfo(title, message string) {
	dialog.ShowInformation(title, message, w.win)
}

func (w *window) ShowError(_, message string) {
	d := dialog.NewError(errors.New(message), w.win)
	d.Show()
}

func (w *window) SetCharts(bar, scatter, hist image.Image) {
	for _, pair := range []struct {
		c   *canvas.Image
		img image.Image
	}{{w.bar, bar}, {w.scatter, scatter}, {w.hist, hist}} {
		pair.c.Image = pair.img
		pair.c.Refresh()
	}
}

func (w *window) SetTable(header []string, rows [][]string) {
	w.header = header
	w.rows = rows
	w.table.Refresh()
}

func newChartCanvas(size charts.Size) *canvas.Image {
	img := canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 100, 60)))
	img.FillMode = canvas.ImageFillContain
	img.SetMinSize(fyne.NewSize(float32(size.Width), float32(size.Height)))
	return img
}

func main() {
	configPath := flag.String("config", "", "path to config.yaml (default: ./config.yaml or ../config.yaml)")
	flag.Parse()

	path := *configPath
	if path == "" {
		path = config.FindFile(config.DefaultFile)
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	holder := ml.NewHolder(cfg.Model.Type, cfg.Model.Path, logger.Named("model"))
	if err := holder.Reload(); err != nil {
		logger.Error("Model unavailable", zap.Error(err))
	}

	store, err := db.Open(cfg.Predictions.Backend, cfg.Predictions.Path)
	if err != nil {
		logger.Fatal("Failed to open prediction log", zap.Error(err))
	}
	defer store.Close()

	a := app.NewWithID("org.calhousing.desk")
	w := a.NewWindow("California Housing Price Prediction")
	w.Resize(fyne.NewSize(1400, 900))

	size := charts.Size{Width: charts.DefaultWidth * 2 / 3, Height: charts.DefaultHeight}
	ui := &window{
		win:     w,
		bar:     newChartCanvas(size),
		scatter: newChartCanvas(size),
		hist:    newChartCanvas(size),
		header:  housing.Header(),
	}
	ui.table = widget.NewTable(
		func() (int, int) { return len(ui.rows) + 1, len(ui.header) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.TableCellID, o fyne.CanvasObject) {
			lbl := o.(*widget.Label)
			if id.Row == 0 {
				lbl.SetText(ui.header[id.Col])
				lbl.TextStyle = fyne.TextStyle{Bold: true}
				return
			}
			lbl.TextStyle = fyne.TextStyle{}
			lbl.SetText(ui.rows[id.Row-1][id.Col])
		},
	)
	for col := range ui.header {
		ui.table.SetColumnWidth(col, 110)
	}

	controller := form.NewController(holder, store, ui, logger.Named("form"))
	controller.SetChartSize(size)

	entries := make([]*widget.Entry, housing.NumFeatures)
	items := make([]*widget.FormItem, housing.NumFeatures)
	for i, name := range housing.FeatureNames {
		entries[i] = widget.NewEntry()
		items[i] = widget.NewFormItem(name, entries[i])
	}
	fields := widget.NewForm(items...)

	predict := widget.NewButton("Predict", func() {
		values := make([]string, len(entries))
		for i, e := range entries {
			values[i] = e.Text
		}
		// outcome is reported through dialogs
		_, _ = controller.Submit(context.Background(), values)
	})
	predict.Importance = widget.HighImportance

	loadPrevious := widget.NewButton("Load Previous Predictions", func() {
		_ = controller.LoadPrevious(context.Background())
	})

	chartsRow := container.NewGridWithColumns(3, ui.bar, ui.scatter, ui.hist)
	tableScroll := container.NewScroll(ui.table)
	tableScroll.SetMinSize(fyne.NewSize(900, 220))

	left := container.NewVBox(
		widget.NewLabelWithStyle("Enter house features", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		fields,
		predict,
		widget.NewSeparator(),
		loadPrevious,
	)
	right := container.NewBorder(chartsRow, nil, nil, nil, tableScroll)

	w.SetContent(container.NewBorder(nil, nil, left, nil, right))
	w.ShowAndRun()
}
