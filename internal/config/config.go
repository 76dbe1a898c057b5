package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// AppConfig holds application-specific configuration.
type AppConfig struct {
	ContainersDir      string `mapstructure:"containers_dir"`
	ArgumentsFile      string `mapstructure:"arguments_file"`
	BuildConfigName    string `mapstructure:"build_config_name"`
	RunConfigName      string `mapstructure:"run_config_name"`
	ParallelBuilds     bool   `mapstructure:"parallel_builds"`
	ContinueOnError    bool   `mapstructure:"continue_on_error"`
	ValidateReferences bool   `mapstructure:"validate_references"`
	Hostname           string `mapstructure:"hostname"`
}

// DockerConfig holds container runtime connection settings.
type DockerConfig struct {
	Host string `mapstructure:"host"`
}

// LoggingConfig holds the logging-related configuration.
type LoggingConfig struct {
	Level string `mapstructure:"log_level"`
}

// EtcdConfig holds etcd-related configuration. An empty endpoint list disables the registry.
type EtcdConfig struct {
	Endpoints         []string `mapstructure:"endpoints"`
	PathPrefix        string   `mapstructure:"path_prefix"`
	DialTimeout       float64  `mapstructure:"dial_timeout"`
	LockTTL           float64  `mapstructure:"lock_ttl"`
	LockTimeout       float64  `mapstructure:"lock_timeout"`
	LockRetryInterval float64  `mapstructure:"lock_retry_interval"`
}

func (c EtcdConfig) Enabled() bool {
	return len(c.Endpoints) > 0
}

// Config is the top-level configuration struct.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Docker  DockerConfig  `mapstructure:"docker"`
	Logging LoggingConfig `mapstructure:"log"`
	Etcd    EtcdConfig    `mapstructure:"etcd"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.containers_dir", "../containers")
	v.SetDefault("app.arguments_file", "arguments.json")
	v.SetDefault("app.build_config_name", "build_config")
	v.SetDefault("app.run_config_name", "run_config")
	v.SetDefault("app.parallel_builds", false)
	v.SetDefault("app.continue_on_error", false)
	v.SetDefault("app.validate_references", false)
	v.SetDefault("app.hostname", "")
	v.SetDefault("docker.host", "")
	v.SetDefault("log.log_level", "INFO")
	v.SetDefault("etcd.endpoints", []string{})
	v.SetDefault("etcd.path_prefix", "/container-deployer")
	v.SetDefault("etcd.dial_timeout", 2.0)
	v.SetDefault("etcd.lock_ttl", 300.0)
	v.SetDefault("etcd.lock_timeout", 10.0)
	v.SetDefault("etcd.lock_retry_interval", 0.5)
}

// InitConfig performs the initial configuration: setting defaults, specifying the config file, and reading it.
// An empty configFile looks for config.yaml in the current directory.
func InitConfig(v *viper.Viper, configFile string) error {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config") // Looks for config.yaml
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// If the file is not found, just continue with defaults and env vars.
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return nil
}

// Load unmarshals the configuration into the Config struct.
func Load(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &config, nil
}
