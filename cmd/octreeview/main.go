// Command octreeview loads a scene layout, keeps its octree up to date as
// objects move and culls it once per frame for every view. It draws the
// octants and object bounds of the selected view in a window, or runs
// headless and reports through logs and metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/encoding/json"

	"render-octree/internal/viewer"
)

var (
	// The octreeview version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "octreeview_info",
		Help:        "Octree viewer information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

var _ = reflect.TypeOf(config{})

type config struct {
	Layout             string        `cli:""        env:"OCTREEVIEW_LAYOUT"               help:"The YAML scene layout to load."`
	AdminAddr          string        `cli:""        env:"OCTREEVIEW_ADMIN_ADDR"           help:"Admin listening address. Empty disables it."`
	LogLevel           string        `cli:""        env:"OCTREEVIEW_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool          `cli:""        env:"OCTREEVIEW_LOG_INDENT"           help:"Indent logs."`
	Headless           bool          `cli:""        env:"OCTREEVIEW_HEADLESS"             help:"Cull without opening a window."`
	Frames             int           `cli:""        env:"OCTREEVIEW_FRAMES"               help:"Number of headless frames to run. 0 runs until interrupted."`
	Watch              bool          `cli:""        env:"OCTREEVIEW_WATCH"                help:"Reload the layout when its file changes."`
	FrameDuration      time.Duration `cli:",hidden" env:"OCTREEVIEW_FRAME_DURATION"       help:"The duration of a headless frame."`
	LogSummaryInterval time.Duration `cli:",hidden" env:"OCTREEVIEW_LOG_SUMMARY_INTERVAL" help:"The duration between each culling summary."`
	Width              int           `cli:",hidden" env:"OCTREEVIEW_WIDTH"                help:"Window width."`
	Height             int           `cli:",hidden" env:"OCTREEVIEW_HEIGHT"               help:"Window height."`
	Version            bool          `cli:""        env:"-"                               help:"Show version."`
	Help               bool          `cli:""        env:"-"                               help:"Show help."`
}

func main() {
	conf := config{
		AdminAddr:          ":18290",
		LogLevel:           logs.InfoLevel.String(),
		Watch:              true,
		FrameDuration:      time.Second / 60,
		LogSummaryInterval: time.Second * 10,
		Width:              1280,
		Height:             720,
	}

	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Views and culls an octree scene layout.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	runID := uuid.NewString()
	v, err := viewer.New(runID, conf.Layout)
	if err != nil {
		logs.Fatal(errors.New("loading layout failed").
			WithTag("layout", conf.Layout).
			Wrap(err))
	}

	logs.WithTag("version", version).
		WithTag("run_id", runID).
		WithTag("log_level", conf.LogLevel).
		WithTag("layout", conf.Layout).
		WithTag("headless", conf.Headless).
		Info("starting octree viewer")

	var wg sync.WaitGroup

	if conf.Watch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := v.Watch(ctx); err != nil {
				logs.Warn(errors.New("layout watcher stopped").Wrap(err))
			}
		}()
	}

	if conf.AdminAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			viewer.ListenAndServe(ctx, &http.Server{
				Addr:    conf.AdminAddr,
				Handler: viewer.NewAdminHandler(v, version),
			})
		}()
	}

	if conf.Headless {
		v.RunHeadless(ctx, conf.FrameDuration, conf.Frames, conf.LogSummaryInterval)
	} else if err := runWindow(ctx, v, conf); err != nil {
		logs.Fatal(err)
	}

	cancel()
	wg.Wait()
}

func validateConfig(conf config) error {
	if conf.Layout == "" {
		return errors.New("a layout file is required")
	}

	if _, err := os.Stat(conf.Layout); err != nil {
		return errors.New("invalid layout file").
			WithTag("layout", conf.Layout).
			Wrap(err)
	}

	if conf.FrameDuration <= 0 {
		return errors.New("frame duration must be positive").
			WithTag("frame_duration", conf.FrameDuration)
	}

	if conf.Frames < 0 {
		return errors.New("negative frame count").
			WithTag("frames", conf.Frames)
	}

	if !conf.Headless && (conf.Width <= 0 || conf.Height <= 0) {
		return errors.New("invalid window size").
			WithTag("width", conf.Width).
			WithTag("height", conf.Height)
	}

	return nil
}
