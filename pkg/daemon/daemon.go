package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/DerRheingold/deskd/pkg/config"
	"github.com/DerRheingold/deskd/pkg/desk"
	"github.com/DerRheingold/deskd/pkg/events"
	"github.com/DerRheingold/deskd/pkg/rig"
	"github.com/DerRheingold/deskd/pkg/store"
)

var (
	conf       config.Config
	activeDesk Desk
	deskSynth  *Synth
	hub        *events.EventHub
	sched      *Scheduler
	// simRig is non-nil only on the sim backend; the fault and height
	// injection routes need it.
	simRig *rig.Sim
)

func setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/status", getStatus)
	router.GET("/settings", getSettings)
	router.GET("/config", getConfig)
	router.GET("/version", getVersion)
	router.GET("/events", streamEvents)
	router.PUT("/preset/:slot", seekPreset)
	router.POST("/preset/:slot/save", savePreset)
	router.POST("/jog", jog)
	router.POST("/stop", stopMotion)
	router.POST("/play", play)
	router.POST("/record", record)
	router.POST("/button", pressButton)
	router.DELETE("/storage", wipeStorage)
	router.GET("/schedules", getSchedules)
	router.PUT("/schedules", setSchedules)
	router.POST("/schedules/:name/skip", skipSchedule)
	router.POST("/sim/fault", setSimFault)
	router.POST("/sim/height", setSimHeight)

	return router
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	router := setupRoutes()

	var err error
	conf, err = config.NewFile(configPath)
	if err != nil {
		logrus.Fatalf("failed to parse config during startup: %v", err)
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	hub = events.NewEventHub()

	switch conf.Backend() {
	case config.BackendSerial:
		board, err := NewBoard(BoardParams{
			Serial: rig.SerialParams{
				Device:   conf.SerialDevice(),
				BaudRate: conf.SerialBaudRate(),
			},
			Hub: hub,
		})
		if err != nil {
			logrus.Fatalf("failed to open serial board: %v", err)
		}
		board.Start()
		activeDesk = board
		logrus.Infof("driving controller board on %s", conf.SerialDevice())
	default:
		local := NewLocal(LocalParams{
			Store: store.NewFile(conf.SettingsPath()),
			Hub:   hub,
		})
		local.Start()
		activeDesk = local
		simRig = local.Sim()
		logrus.Info("driving simulated desk")
	}

	deskSynth = NewSynth(activeDesk)

	sched = NewScheduler(scheduleTask, schedulePreCheck, scheduleResult)
	if err := sched.SetEntries(conf.Schedules()); err != nil {
		logrus.Fatalf("failed to apply schedules from config: %v", err)
	}

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			if err := sched.SetEntries(conf.Schedules()); err != nil {
				logrus.Errorf("failed to apply reloaded schedules: %v", err)
				continue
			}
			logrus.Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler: router,
	}

	// A leftover socket from an unclean shutdown would fail the listen.
	if err := os.Remove(unixSocketPath); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("failed to remove stale socket %s: %v", unixSocketPath, err)
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		logrus.Fatal(err)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			logrus.Fatal(err)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	sched.Start()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping scheduler")
	sched.Stop()

	logrus.Info("stopping desk backend")
	if err := activeDesk.Close(); err != nil {
		logrus.Errorf("failed to close desk backend: %v", err)
	}

	hub.Close()

	logrus.Info("exiting")
	return nil
}

// scheduleTask fires one scheduled preset move through the synthesizer.
func scheduleTask(name string, slot desk.Slot) error {
	st := activeDesk.Status()
	if !presetSet(st.Presets, slot) {
		return errors.New("preset " + slot.String() + " is not saved")
	}
	return deskSynth.Seek(slot)
}

// schedulePreCheck keeps a scheduled move from interrupting whatever
// the desk is doing. The scheduler retries for a while, then skips.
func schedulePreCheck(name string, slot desk.Slot) error {
	st := activeDesk.Status()
	if !st.Linked {
		return errors.New("board link is down")
	}
	if st.Mode != desk.ModeIdle {
		return errors.New("desk is busy (" + st.Mode.String() + ")")
	}
	if st.Height.Fault() {
		return errors.New("height sensor fault")
	}
	return nil
}

func scheduleResult(name, action, result string, err error) {
	hub.Publish(events.ScheduleFired, events.ScheduleFiredEvent{
		Name:   name,
		Action: action,
		Result: result,
		Ts:     time.Now().Unix(),
	})
}

func presetSet(p desk.PresetStatus, slot desk.Slot) bool {
	if slot == desk.SlotSit {
		return p.SitHeightCm > 0
	}
	return p.StandHeightCm > 0
}
