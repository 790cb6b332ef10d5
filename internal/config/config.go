package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/uofuseismo/cct-review/internal/catalog"
	"github.com/uofuseismo/cct-review/pkg/models"
)

const (
	ModeProduction  = "production"
	ModeDevelopment = "development"

	// Endpoint URLs can also come from the environment or a .env file.
	EnvProdURL = "CCT_PROD_API_URL"
	EnvDevURL  = "CCT_DEV_API_URL"

	configName = ".cct-review"
)

// Settings is the effective configuration after defaults, file and
// environment have been merged.
type Settings struct {
	Mode         string          `yaml:"mode" json:"mode"`
	Endpoint     string          `yaml:"endpoint" json:"endpoint"`
	Schema       models.Schema   `yaml:"schema" json:"schema"`
	PollInterval time.Duration   `yaml:"poll_interval" json:"pollInterval"`
	Timeout      time.Duration   `yaml:"timeout" json:"timeout"`
	InsecureTLS  bool            `yaml:"insecure_tls" json:"insecureTls"`
	ExporterPort int             `yaml:"exporter_port" json:"exporterPort"`
	Session      *models.Session `yaml:"session,omitempty" json:"session,omitempty"`
}

// InitConfig reads in config file and ENV variables if set.
func InitConfig(cfgFile string) {
	// A missing .env is fine; the URLs may come from the config file.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: failed to load .env file: %v", err)
	}

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".cct-review" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(configName)
	}

	SetDefaults()
	viper.SetEnvPrefix("CCT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("endpoints.production", EnvProdURL)
	_ = viper.BindEnv("endpoints.development", EnvDevURL)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			log.Printf("Warning: failed to read config file: %v", err)
		}
	}
}

func SetDefaults() {
	viper.SetDefault("mode", ModeProduction)
	viper.SetDefault("schema", string(models.SchemaProduction))
	viper.SetDefault("poll_interval", catalog.DefaultInterval)
	viper.SetDefault("timeout", 30*time.Second)
	viper.SetDefault("insecure_tls", false)
	viper.SetDefault("exporter.port", 9110)
}

// Endpoint returns the CCT service URL for the configured mode.
func Endpoint() (string, error) {
	mode := strings.ToLower(viper.GetString("mode"))
	var key, env string
	switch mode {
	case ModeProduction:
		key, env = "endpoints.production", EnvProdURL
	case ModeDevelopment:
		key, env = "endpoints.development", EnvDevURL
	default:
		return "", fmt.Errorf("invalid mode %q (want %s or %s)", mode, ModeProduction, ModeDevelopment)
	}
	url := strings.TrimSpace(viper.GetString(key))
	if url == "" {
		return "", fmt.Errorf("no %s endpoint configured: set %s or %s", mode, key, env)
	}
	return url, nil
}

// Load validates and returns the effective settings.
func Load() (*Settings, error) {
	endpoint, err := Endpoint()
	if err != nil {
		return nil, err
	}
	schema, err := models.ParseSchema(viper.GetString("schema"))
	if err != nil {
		return nil, err
	}
	s := &Settings{
		Mode:         strings.ToLower(viper.GetString("mode")),
		Endpoint:     endpoint,
		Schema:       schema,
		PollInterval: viper.GetDuration("poll_interval"),
		Timeout:      viper.GetDuration("timeout"),
		InsecureTLS:  viper.GetBool("insecure_tls"),
		ExporterPort: viper.GetInt("exporter.port"),
	}
	if s.PollInterval <= 0 {
		s.PollInterval = catalog.DefaultInterval
	}
	if sess, ok := LoadSession(); ok {
		s.Session = &sess
	}
	return s, nil
}

// SaveSession persists the login so later commands can reuse the token.
func SaveSession(s models.Session) error {
	viper.Set("session.user", s.User)
	viper.Set("session.token", s.Token)
	viper.Set("session.permissions", string(s.Permissions))
	return writeConfig()
}

// LoadSession returns the persisted session, if any.
func LoadSession() (models.Session, bool) {
	token := viper.GetString("session.token")
	if token == "" {
		return models.Session{}, false
	}
	return models.Session{
		User:        viper.GetString("session.user"),
		Token:       token,
		Permissions: models.ParsePermission(viper.GetString("session.permissions")),
	}, true
}

// ClearSession removes the persisted session.
func ClearSession() error {
	return SaveSession(models.Session{})
}

// SaveSchema persists the schema selector.
func SaveSchema(schema models.Schema) error {
	viper.Set("schema", string(schema))
	return writeConfig()
}

func writeConfig() error {
	// Ensure the file exists before writing
	if err := viper.WriteConfig(); err != nil {
		// If file doesn't exist, create it
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return viper.SafeWriteConfig()
		}
		// If it exists but failed to write, try writing to default path
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		return viper.WriteConfigAs(filepath.Join(home, configName+".yaml"))
	}
	return nil
}
