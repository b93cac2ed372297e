package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/handtree/internal/app"
	"github.com/ayusman/handtree/internal/capture"
	"github.com/ayusman/handtree/internal/config"
	"github.com/ayusman/handtree/internal/detector"
	"github.com/ayusman/handtree/internal/gesture"
	"github.com/ayusman/handtree/internal/publish"
	"github.com/ayusman/handtree/internal/server"
	"github.com/ayusman/handtree/internal/store"
	"github.com/ayusman/handtree/internal/tray"
)

var (
	addr       = flag.String("addr", ":8080", "HTTP listen address")
	configPath = flag.String("config", "", "Tuning config JSON (default: "+config.DefaultConfigPath+" if present)")
	cameraID   = flag.Int("camera", 0, "Camera device index")
	dataDir    = flag.String("data", "", "Data directory (default: ~/.handtree)")
	mqttBroker = flag.String("mqtt", "", "MQTT broker URL for event publishing, e.g. tcp://localhost:1883")
	mqttTopic  = flag.String("mqtt-topic", publish.DefaultTopicPrefix, "MQTT topic prefix")
	withTray   = flag.Bool("tray", false, "Show a system tray icon")
	replayPath = flag.String("replay", "", "Play a landmark recording in a loop instead of using the camera")
)

func main() {
	flag.Parse()
	fmt.Println("handtree - hand gesture control")

	base, err := loadTuning()
	if err != nil {
		log.Fatalf("Failed to load tuning config: %v", err)
	}

	dir, err := resolveDataDir()
	if err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(filepath.Join(dir, "handtree.db"))
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	// Stored overrides from the settings API apply on top of the file.
	tuning := base.Clone()
	if overrides, err := st.Settings().All(); err != nil {
		log.Printf("Failed to read stored settings: %v", err)
	} else if err := tuning.ApplySettings(overrides); err != nil {
		log.Printf("Ignoring stored settings: %v", err)
		tuning = base.Clone()
	}

	preview := capture.NewPreview()
	emitter := gesture.NewEmitter()

	var tr *tray.Tray
	if *withTray {
		tr = tray.New()
		emitter.Add(tr.Callbacks())
	}

	source, err := newSource(tuning, preview)
	if err != nil {
		log.Fatalf("Failed to load recording: %v", err)
	}

	session := app.NewSession(app.Config{
		Gesture: tuning.GestureConfig(),
		Timing:  tuning.SessionTiming(),
		Source:  source,
		Emitter: emitter,
		OnStatus: func(s app.Status) {
			if tr != nil {
				tr.SetStatus(s)
			}
		},
	})

	hub := server.NewEventHub(session.ID())
	emitter.Add(hub.Callbacks())

	if *mqttBroker != "" {
		pub, err := publish.Connect(publish.Config{
			Broker:      *mqttBroker,
			TopicPrefix: *mqttTopic,
			Session:     session.ID(),
		})
		if err != nil {
			log.Printf("MQTT publishing disabled: %v", err)
		} else {
			emitter.Add(pub.Callbacks())
			defer pub.Close()
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := session.Start(ctx); err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}
	defer session.Stop()

	webDir := findWebDir(dir)
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := &http.Server{
		Addr: *addr,
		Handler: server.New(server.Config{
			StaticDir: webDir,
			Store:     st,
			Tuning:    base,
			Session:   session,
			Preview:   preview,
			Hub:       hub,
		}),
	}

	go func() {
		fmt.Printf("Starting server on %s (session %s)\n", *addr, session.ID())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Server failed: %v", err)
			cancel()
		}
	}()

	if tr != nil {
		tr.OnToggle(session.SetEnabled)
		tr.OnSettings(func() { openBrowser(settingsURL(*addr)) })
		tr.OnQuit(cancel)
		tr.SetStatus(session.Status())
		go func() {
			<-ctx.Done()
			tr.Quit()
		}()
		// The tray owns the main thread until it quits.
		tr.Run()
	} else {
		<-ctx.Done()
	}

	log.Printf("Shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}

// newSource returns the replay source when -replay is set, otherwise the
// camera with the MediaPipe detector. A detector that cannot start leaves
// the camera running for the preview.
func newSource(tuning *config.TuningConfig, preview *capture.Preview) (app.LandmarkSource, error) {
	if *replayPath != "" {
		log.Printf("Replaying %s", *replayPath)
		return app.NewReplaySourceFromFile(*replayPath, true)
	}

	var det detector.Detector
	mp, err := detector.NewMediaPipeDetector(detector.Config{
		MaxHands:        tuning.GetMaxHands(),
		MinConfidence:   tuning.GetMinConfidence(),
		MinTrackingConf: tuning.GetMinConfidence(),
	})
	if err != nil {
		log.Printf("Hand detector unavailable: %v", err)
	} else {
		det = mp
	}

	return app.NewCameraSource(app.CameraSourceConfig{
		Camera:          capture.NewCamera(*cameraID),
		Detector:        det,
		MotionThreshold: tuning.GetMotionThreshold(),
		Preview:         preview,
	}), nil
}

// loadTuning reads -config, or the default config file when it exists,
// or falls back to built-in defaults.
func loadTuning() (*config.TuningConfig, error) {
	path := *configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err != nil {
			return config.DefaultTuningConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	log.Printf("Loading tuning config from %s", path)
	return config.LoadTuningConfig(path)
}

func resolveDataDir() (string, error) {
	dir := *dataDir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(homeDir, ".handtree")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <data>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}
	return ""
}

func settingsURL(addr string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "http://" + host + "/api/settings"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("Failed to open %s: %v", url, err)
	}
}
