package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/mindatnh/scopego/internal/config"
	"github.com/mindatnh/scopego/internal/debug"
	"github.com/mindatnh/scopego/internal/display"
	"github.com/mindatnh/scopego/internal/hw/gpio"
	"github.com/mindatnh/scopego/internal/logic/autonomy"
	"github.com/mindatnh/scopego/internal/logic/homing"
	"github.com/mindatnh/scopego/internal/logic/manual"
	"github.com/mindatnh/scopego/internal/logic/motion"
	"github.com/mindatnh/scopego/internal/logic/sensors"
	"github.com/mindatnh/scopego/internal/logic/specimen"
	"github.com/mindatnh/scopego/internal/logic/state"
	"github.com/mindatnh/scopego/internal/web"
)

// defaultSpecimen is shown until the first calibration settles position.
const defaultSpecimen = 6

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web status server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	debugReadout := flag.Bool("d", false, "verbose debug readout (raises debug level to verbose)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Initialize debug system
	level := cfg.Defaults.DebugLevel
	if *debugReadout && level < debug.LevelVerbose {
		level = debug.LevelVerbose
	}
	debug.Init(level)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", level)

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	// Shared state and motion controller
	debug.Step(2, "Initializing motion control")
	st := state.New(cfg.Motion.TrayBaseline, defaultSpecimen)
	store := specimen.NewStore(cfg.Specimens.Dir)
	ctrl, err := motion.New(gpioDriver, cfg, st)
	if err != nil {
		log.Fatalf("init motion failed: %v", err)
	}

	// Display/alert collaborators: nop unless the web status page runs.
	var notify display.Notifier = display.Nop{}
	var alert display.Alerter = display.Nop{}
	var broadcaster *web.Broadcaster
	if webPort.port() > 0 {
		broadcaster = web.NewBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.LogWriter(broadcaster)))
		n := web.NewNotifier(broadcaster, store)
		notify = n
		alert = n
	}

	debug.Step(3, "Creating control tasks")
	monitor := sensors.New(gpioDriver, cfg, st, notify, alert)
	arbiter := manual.New(gpioDriver, cfg, st, ctrl)
	scheduler := autonomy.New(cfg, st, ctrl, store, notify)
	sequencer := homing.New(gpioDriver, cfg, st, ctrl, store, notify)

	var wg sync.WaitGroup
	spawn := func(name string, f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
			debug.Verbose("task %s exited", name)
		}()
	}

	if broadcaster != nil {
		snapshot := func() web.Snapshot {
			idx := st.CurrentSpecimen()
			return web.Snapshot{
				Specimen:       idx,
				SpecimenName:   store.Load(idx).Name,
				Tab:            st.CurrentTab(),
				TraySteps:      st.Steps(state.Tray),
				RotationOffset: st.RotationOffset(),
				ZoomSteps:      st.Steps(state.Zoom),
				FocusSteps:     st.Steps(state.Focus),
				Phase:          scheduler.Phase().String(),
				Initializing:   st.Initializing.Load(),
				Initialized:    st.Initialized.Load(),
				Autonomous:     st.Autonomous.Load(),
				ErrorState:     st.ErrorState.Load(),
				PanelOpen:      st.Opt2Blocked.Load(),
			}
		}
		srv := web.NewServer(fmt.Sprintf(":%d", webPort.port()), broadcaster, snapshot)
		spawn("web", func() {
			if err := srv.Run(ctx); err != nil {
				debug.Error(err)
			}
		})
	}

	// The sensor monitor starts first so homing sees live sensor state.
	spawn("sensors", func() { monitor.Run(ctx) })
	spawn("buttons", func() { arbiter.Run(ctx) })
	spawn("scheduler", func() { scheduler.Run(ctx) })
	spawn("init", sequencer.Run)

	debug.Summary("Scope exhibit controller running")
	<-ctx.Done()

	// Shutdown: stop pulse loops, give tasks a moment, join, release GPIO.
	debug.Info("shutting down...")
	st.Running.Store(false)
	time.Sleep(50 * time.Millisecond)
	wg.Wait()
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or
// -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
