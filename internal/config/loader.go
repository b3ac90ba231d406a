package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/docverify/internal/engine"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "docverify"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "DOCVERIFY"
)

// Loader handles loading configuration from files, the environment and flags.
type Loader struct {
	v *viper.Viper
}

// NewLoader uses the global viper instance so cobra flag bindings apply.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper uses v instead of the global instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped. With no arguments it reads ./.env.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the first docverify config file found on the search path, then
// applies environment overrides and validates the result. A missing
// config file is not an error.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithFile loads configuration from configFile, or from the search
// path when configFile is empty.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.read(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithoutValidation is Load without the final Validate step.
func (l *Loader) LoadWithoutValidation(configFile string) (*Config, error) {
	return l.read(configFile)
}

func (l *Loader) read(configFile string) (*Config, error) {
	l.setupEnvironmentVariables()
	l.setDefaults()

	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.addConfigPaths()
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) addConfigPaths() {
	for _, p := range GetConfigSearchPaths() {
		l.v.AddConfigPath(p)
	}
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so that environment overrides resolve
// during Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("models_dir", d.ModelsDir)
	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("preprocess.resize_factor", d.Preprocess.ResizeFactor)
	l.v.SetDefault("preprocess.denoise.enabled", d.Preprocess.Denoise.Enabled)
	l.v.SetDefault("preprocess.denoise.h", d.Preprocess.Denoise.H)
	l.v.SetDefault("preprocess.denoise.template_window", d.Preprocess.Denoise.TemplateWindow)
	l.v.SetDefault("preprocess.denoise.search_window", d.Preprocess.Denoise.SearchWindow)
	l.v.SetDefault("preprocess.clahe.enabled", d.Preprocess.CLAHE.Enabled)
	l.v.SetDefault("preprocess.clahe.clip_limit", d.Preprocess.CLAHE.ClipLimit)
	l.v.SetDefault("preprocess.clahe.tiles_x", d.Preprocess.CLAHE.TilesX)
	l.v.SetDefault("preprocess.clahe.tiles_y", d.Preprocess.CLAHE.TilesY)
	l.v.SetDefault("preprocess.sharpen", d.Preprocess.Sharpen)
	l.v.SetDefault("preprocess.close_kernel", d.Preprocess.CloseKernel)

	l.v.SetDefault("engine.backend", d.Engine.Backend)
	l.v.SetDefault("engine.concurrent_passes", d.Engine.ConcurrentPasses)
	l.v.SetDefault("engine.passes", passDefaults(d.Engine.Passes))
	l.v.SetDefault("engine.num_threads", d.Engine.NumThreads)
	l.v.SetDefault("engine.use_server_model", d.Engine.UseServerModel)
	l.v.SetDefault("engine.detector.model_path", d.Engine.Detector.ModelPath)
	l.v.SetDefault("engine.detector.db_thresh", d.Engine.Detector.DBThresh)
	l.v.SetDefault("engine.detector.box_thresh", d.Engine.Detector.BoxThresh)
	l.v.SetDefault("engine.detector.max_image_size", d.Engine.Detector.MaxImageSize)
	l.v.SetDefault("engine.vision.credentials_file", d.Engine.Vision.CredentialsFile)
	l.v.SetDefault("engine.vision.credentials_json", d.Engine.Vision.CredentialsJSON)

	l.v.SetDefault("dedup.min_confidence", d.Dedup.MinConfidence)
	l.v.SetDefault("dedup.similarity", d.Dedup.Similarity)
	l.v.SetDefault("dedup.distance", d.Dedup.Distance)

	l.v.SetDefault("extract.iqama_mode", d.Extract.IqamaMode)
	l.v.SetDefault("extract.rules_file", d.Extract.RulesFile)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_limit", d.Server.RateLimit)
	l.v.SetDefault("server.rate_burst", d.Server.RateBurst)
	l.v.SetDefault("server.visualization_dir", d.Server.VisualizationDir)

	l.v.SetDefault("output.format", d.Output.Format)
	l.v.SetDefault("output.file", d.Output.File)

	l.v.SetDefault("batch.workers", d.Batch.Workers)
}

func passDefaults(passes []engine.PassConfig) []map[string]any {
	out := make([]map[string]any, len(passes))
	for i, p := range passes {
		out[i] = map[string]any{
			"name":       p.Name,
			"decoder":    p.Decoder,
			"beam_width": p.BeamWidth,
			"width_ths":  p.WidthThreshold,
			"height_ths": p.HeightThreshold,
		}
	}
	return out
}

// GenerateDefaultConfigFile writes the defaults to filename, or
// docverify.yaml when empty.
func GenerateDefaultConfigFile(filename string) error {
	l := NewLoaderWithViper(viper.New())
	l.setDefaults()
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	return l.v.WriteConfigAs(filename)
}

// GetConfigSearchPaths returns the directories searched for docverify.yaml.
func GetConfigSearchPaths() []string {
	paths := []string{"."}
	if configDir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	return append(paths, "/etc/"+ConfigFileName)
}
