package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"cardioscope/db"
	qhttp "cardioscope/http"
	"cardioscope/logging"
	"cardioscope/ml"
	"cardioscope/monitoring"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Http struct {
		Port           int      `yaml:"port"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"http"`
	Log   logging.Config `yaml:"log"`
	Model struct {
		Path  string `yaml:"path"`
		Watch bool   `yaml:"watch"`
	} `yaml:"model"`
}

func main() {
	// Look for config in root even if run from cmd/
	configPath := "config.yaml"
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		configPath = filepath.Join("..", "config.yaml")
	}

	// 1. Load config, then let .env and environment variables override it
	_ = godotenv.Load()
	config, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyEnvOverrides(config)

	// 2. Set up structured logging
	logger, err := logging.New(config.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// 3. Initialize database
	// Adjust DB path if needed
	if !filepath.IsAbs(config.Database.Path) && configPath == filepath.Join("..", "config.yaml") {
		config.Database.Path = filepath.Join("..", config.Database.Path)
	}

	if err := db.InitDB(config.Database.Path); err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.CloseDB()
	logger.Info("database initialized", zap.String("path", config.Database.Path))

	// 4. Provision the model and start the realtime monitor
	qhttp.SetModelPath(config.Model.Path)
	model := ml.Provision(config.Model.Path)
	logger.Info("model ready",
		zap.String("source", model.Source()),
		zap.Float64("accuracy", model.Metrics().Accuracy),
		zap.Int("rows", model.Rows()))

	monitor := monitoring.NewDashboardMonitor()
	if err := monitor.Start(); err != nil {
		logger.Fatal("failed to start dashboard monitor", zap.Error(err))
	}
	qhttp.SetDashboardMonitor(monitor)
	qhttp.SetMetricsCollector(monitoring.NewMetricsCollector())
	broadcastModelStatus(monitor, model, "model provisioned")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. Heartbeat keeps dashboard clients aware the service is alive
	go heartbeatLoop(ctx, monitor)

	// 6. Reload the model when the artifact file is replaced on disk
	if config.Model.Watch {
		modelPath := config.Model.Path
		go func() {
			err := ml.WatchArtifact(ctx, modelPath, func() {
				refreshed := ml.Provision(modelPath)
				broadcastModelStatus(monitor, refreshed, "model reloaded")
			})
			if err != nil {
				logger.Warn("artifact watcher stopped", zap.Error(err))
			}
		}()
	}

	// 7. Start HTTP server
	serverConfig := qhttp.DefaultServerConfig()
	if config.Http.Port > 0 {
		serverConfig.Port = config.Http.Port
	}
	if config.Http.TimeoutSeconds > 0 {
		serverConfig.Timeout = time.Duration(config.Http.TimeoutSeconds) * time.Second
	}
	if len(config.Http.AllowedOrigins) > 0 {
		serverConfig.AllowedOrigins = config.Http.AllowedOrigins
	}

	server := qhttp.NewServer(serverConfig)
	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 8. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	cancel()
	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	if err := monitor.Stop(); err != nil {
		logger.Warn("monitor stop failed", zap.Error(err))
	}

	logger.Info("exiting")
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("CARDIOSCOPE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Http.Port = port
		}
	}
	if v := os.Getenv("CARDIOSCOPE_DB"); v != "" {
		config.Database.Path = v
	}
	if v := os.Getenv("CARDIOSCOPE_MODEL"); v != "" {
		config.Model.Path = v
	}
	if v := os.Getenv("CARDIOSCOPE_LOG_LEVEL"); v != "" {
		config.Log.Level = v
	}
}

func broadcastModelStatus(monitor *monitoring.DashboardMonitor, model *ml.ProvisionedModel, note string) {
	metrics := model.Metrics()
	err := monitor.SendModelStatus(monitoring.ModelStatusMessage{
		Source:    model.Source(),
		Accuracy:  metrics.Accuracy,
		Precision: metrics.Precision,
		Recall:    metrics.Recall,
		Rows:      model.Rows(),
		TrainedAt: model.TrainedAt(),
		Message:   note,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		zap.L().Debug("model status broadcast skipped", zap.Error(err))
	}
}

func heartbeatLoop(ctx context.Context, monitor *monitoring.DashboardMonitor) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := monitor.SendHeartbeat(); err != nil {
				return
			}
		}
	}
}
