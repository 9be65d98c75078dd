package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/guiyumin/vresolve/internal/core/app"
	"github.com/guiyumin/vresolve/internal/core/config"
	"github.com/guiyumin/vresolve/internal/core/logging"
	"github.com/guiyumin/vresolve/internal/server"
	"github.com/spf13/cobra"
)

const defaultPort = 8000

var (
	servePort   int
	serveDaemon bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [stop|status]",
	Short: "Start the resolution API server",
	Long: `Start an HTTP server exposing the resolver.

Examples:
  vresolve serve              # Start server on port 8000
  vresolve serve -p 9000      # Start server on port 9000
  vresolve serve -d           # Start server as background daemon
  vresolve serve stop         # Stop the daemon

API Endpoints:
  GET  /api/health
  GET  /api/stats
  GET  /api/extract?url=...
  POST /api/extract            {"url": "..."}
  GET  /api/tiktok?url=...
  GET  /api/instagram-profile?username=...
  GET  /api/facebook-profile?url=...
  GET  /api/download?url=...&filename=...`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			switch args[0] {
			case "stop":
				return stopDaemon()
			case "status":
				return daemonStatus()
			default:
				return fmt.Errorf("unknown serve action %q", args[0])
			}
		}
		return runServe()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP listen port (default: 8000)")
	serveCmd.Flags().BoolVarP(&serveDaemon, "daemon", "d", false, "run as background daemon")

	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	// flag > config > default
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = defaultPort
	}

	if serveDaemon {
		return startDaemon(cfg.Server.Port)
	}
	return runServer(cfg)
}

func runServer(cfg *config.Config) error {
	gin.SetMode(gin.ReleaseMode)

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.NewServer(cfg.Server, a.Engine, a.Proxy)
	log := logging.For("serve")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		<-sigChan
		log.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			log.WithError(err).Warn("shutdown")
		}
	}()

	return srv.Start()
}

func startDaemon(port int) error {
	if pid := getDaemonPID(); pid > 0 {
		if processExists(pid) {
			return fmt.Errorf("daemon already running (PID %d)", pid)
		}
		// stale
		os.Remove(getPIDFilePath())
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"serve", "-p", strconv.Itoa(port)}
	if configFile != "" {
		args = append(args, "--config", configFile)
	}
	if logLevel != "" {
		args = append(args, "--log-level", logLevel)
	}

	logFile, err := os.OpenFile(getLogFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	cmd := exec.Command(executable, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	if err := savePID(cmd.Process.Pid); err != nil {
		cmd.Process.Kill()
		logFile.Close()
		return fmt.Errorf("failed to save PID: %w", err)
	}

	fmt.Printf("%s started as daemon (PID %d)\n", color.GreenString("vresolve server"), cmd.Process.Pid)
	fmt.Printf("  Port: %d\n", port)
	fmt.Printf("  Log:  %s\n", getLogFilePath())
	fmt.Printf("\nUse 'vresolve serve stop' to stop the daemon\n")
	return nil
}

func stopDaemon() error {
	pid := getDaemonPID()
	if pid <= 0 {
		return fmt.Errorf("daemon is not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		os.Remove(getPIDFilePath())
		return fmt.Errorf("daemon process not found")
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		os.Remove(getPIDFilePath())
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	for range 30 {
		if !processExists(pid) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	os.Remove(getPIDFilePath())
	fmt.Println("Daemon stopped")
	return nil
}

func daemonStatus() error {
	pid := getDaemonPID()
	if pid <= 0 {
		fmt.Println("Daemon is not running")
		return nil
	}
	if !processExists(pid) {
		os.Remove(getPIDFilePath())
		fmt.Println("Daemon is not running (stale PID file removed)")
		return nil
	}

	fmt.Printf("Daemon is running (PID %d)\n", pid)
	fmt.Printf("Log file: %s\n", getLogFilePath())
	return nil
}

func getPIDFilePath() string {
	return daemonFile("serve.pid")
}

func getLogFilePath() string {
	return daemonFile("serve.log")
}

func daemonFile(name string) string {
	dir, err := config.ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "vresolve-"+name)
	}
	return filepath.Join(dir, name)
}

func savePID(pid int) error {
	pidFile := getPIDFilePath()
	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFile, []byte(strconv.Itoa(pid)), 0644)
}

func getDaemonPID() int {
	data, err := os.ReadFile(getPIDFilePath())
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Unix; signal 0 checks liveness
	return process.Signal(syscall.Signal(0)) == nil
}
