package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"breathe/internal/config"
	"breathe/internal/core/breathing"
	"breathe/internal/core/calibration"
	"breathe/internal/core/model"
	"breathe/internal/core/patterns"
	"breathe/internal/platform"
	"breathe/internal/storage"
	"breathe/internal/ui/overlay"
	"breathe/internal/ui/recording"
	"breathe/internal/ui/tray"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const appName = "Breathe"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		logPath    string
	)
	v := viper.New()

	cmd := &cobra.Command{
		Use:          "breathe",
		Short:        "Menu bar breathing guide",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logFile, err := setupLogging(logPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error setting up file logging: %v, logging to stderr instead\n", err)
			}
			if logFile != nil {
				defer logFile.Close()
			}
			return run(v, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (defaults to ./config.yaml or the user config dir)")
	cmd.Flags().StringVar(&logPath, "log", "", "path to log file (defaults to stderr)")
	cmd.Flags().String("store", "", "key-value backend: yaml or sqlite")
	_ = v.BindPFlag("store.backend", cmd.Flags().Lookup("store"))
	return cmd
}

// setupLogging configures the log output destination.
func setupLogging(logFilePath string) (*os.File, error) {
	if logFilePath == "" {
		log.SetOutput(os.Stderr)
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(logFilePath), 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(file)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	return file, nil
}

func run(v *viper.Viper, configPath string) error {
	guard, err := platform.AcquireSingleInstance(appName)
	if err != nil {
		log.Printf("single instance: %v", err)
		if notifyErr := platform.NotifyRunning(appName); notifyErr != nil {
			log.Printf("activate running instance: %v", notifyErr)
		}
		return nil
	}
	defer func() {
		_ = guard.Release()
	}()

	configDir, err := platform.ConfigDir(appName)
	if err != nil {
		return err
	}
	cfg, err := config.Load(v, configPath, ".", configDir)
	if err != nil {
		return err
	}

	kv, err := storage.Open(cfg.Store.Backend, cfg.Store.Path, configDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := kv.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()
	log.Printf("using %s store", cfg.Store.Backend)

	store := patterns.New(kv, cfg.PatternOptions())
	if err := store.Load(); err != nil {
		log.Printf("load persisted pattern: %v", err)
	}
	defer store.Close()

	engine := breathing.New(store, cfg.EngineOptions())
	unfollow := engine.Follow(store)
	defer unfollow()
	defer engine.Close()

	recorder := calibration.New(store, cfg.RecorderOptions())
	recorder.OnComplete(func(state calibration.State) {
		log.Printf("calibration %s complete: inhale %v exhale %v", state.SessionID, state.FinalInhale, state.FinalExhale)
		if err := recorder.LastError(); err != nil {
			log.Printf("save recorded pattern: %v", err)
		}
	})

	fyneApp := app.NewWithID("com.breathe.app")
	fyneApp.SetIcon(theme.MediaRecordIcon())
	desktopApp, ok := fyneApp.(desktop.App)
	if !ok {
		log.Printf("system tray unsupported on this platform")
		return nil
	}

	trayWindow := fyneApp.NewWindow(appName)
	trayWindow.SetContent(widget.NewLabel("Breathe is running in the menu bar."))
	trayWindow.SetCloseIntercept(func() {
		trayWindow.Hide()
	})
	trayWindow.Hide()
	desktopApp.SetSystemTrayWindow(trayWindow)

	overlayWindow := overlay.New(fyneApp, overlay.DefaultConfig())
	overlayWindow.SetOnClose(engine.Stop)
	recordingWindow := recording.New(fyneApp, recorder)

	showOverlay := func() {
		overlayWindow.Show()
		engine.Start(context.Background())
	}

	var trayManager *tray.Manager
	trayManager = tray.New(desktopApp, tray.Callbacks{
		OnSelectMode: func(mode model.BreathingMode) {
			if err := store.SwitchMode(mode); err != nil {
				log.Printf("switch mode: %v", err)
			}
		},
		OnRecord: func() {
			recordingWindow.Show()
		},
		OnResetPreset: func() {
			if err := store.ClearCustomPattern(); err != nil {
				log.Printf("clear recorded pattern: %v", err)
			}
		},
		OnToggleOverlay: func() {
			if overlayWindow.Visible() {
				overlayWindow.Hide()
				return
			}
			showOverlay()
			trayManager.SetPaused(false)
		},
		OnTogglePause: func() {
			paused := engine.Snapshot().Paused
			if paused {
				engine.Resume()
			} else {
				engine.Pause()
			}
			trayManager.SetPaused(!paused)
		},
		OnQuit: func() {
			recordingWindow.Hide()
			engine.Stop()
			fyneApp.Quit()
		},
	})
	desktopApp.SetSystemTrayIcon(theme.MediaRecordIcon())

	guard.Serve(func() {
		fyne.Do(func() {
			if !overlayWindow.Visible() {
				showOverlay()
				trayManager.SetPaused(false)
			}
		})
	})

	applyPattern := func(mode model.BreathingMode) {
		_, custom := store.CustomPattern()
		trayManager.SetMode(mode, custom)
		overlayWindow.SetPattern(mode, store.CurrentPattern(), custom)
	}
	applyPattern(store.CurrentMode())

	changes := store.Subscribe(4)
	go func() {
		for change := range changes {
			fyne.Do(func() {
				trayManager.SetMode(change.Mode, change.Custom)
			})
			overlayWindow.SetPattern(change.Mode, change.Pattern, change.Custom)
		}
	}()

	events := engine.Subscribe(16)
	go func() {
		for event := range events {
			overlayWindow.Apply(event)
			if event.Type != breathing.EventProgress {
				phase := event.Phase
				fyne.Do(func() {
					trayManager.SetPhase(phase)
				})
			}
		}
	}()

	showOverlay()
	fyneApp.Run()
	return nil
}
