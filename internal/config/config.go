// Package config loads and validates the core's configuration knobs
// via viper, the way the teacher's CLI loads its own settings
// (flags/env/file precedence), generalized into a library-friendly
// form with no global viper instance and no flag binding.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of configuration knobs enumerated in §6,
// covering compression, searchable encryption, integrity validation,
// key rotation, trapdoor lifecycle, rate limiting, result padding,
// and chunking.
type Config struct {
	EnableCompression    bool   `mapstructure:"enable_compression"`
	CompressionAlgorithm string `mapstructure:"compression_algorithm"`
	CompressionLevel     int    `mapstructure:"compression_level"`

	EnableSearchableEncryption bool `mapstructure:"enable_searchable_encryption"`
	EnableIntegrityValidation  bool `mapstructure:"enable_integrity_validation"`
	EnableKeyRotation          bool `mapstructure:"enable_key_rotation"`
	EnablePerfectForwardSecrecy bool `mapstructure:"enable_perfect_forward_secrecy"`
	EnableCompromiseDetection  bool `mapstructure:"enable_compromise_detection"`

	EnableRotation      bool          `mapstructure:"enable_rotation"`
	RotationInterval    time.Duration `mapstructure:"rotation_interval"`
	GracePeriod         time.Duration `mapstructure:"grace_period"`
	EnableRevocation    bool          `mapstructure:"enable_revocation"`
	MaxActiveTrapdoors  int           `mapstructure:"max_active_trapdoors"`
	EnableUsageTracking bool          `mapstructure:"enable_usage_tracking"`
	EnableAnomalyDetection bool       `mapstructure:"enable_anomaly_detection"`
	EnableAuditLogging  bool          `mapstructure:"enable_audit_logging"`
	RotationThreshold   uint64        `mapstructure:"rotation_threshold"`
	RevocationThreshold uint64        `mapstructure:"revocation_threshold"`

	EnableRateLimiting bool          `mapstructure:"enable_rate_limiting"`
	MaxQueriesPerEpoch int           `mapstructure:"max_queries_per_epoch"`
	EpochDuration      time.Duration `mapstructure:"epoch_duration"`

	EnableResultPadding bool  `mapstructure:"enable_result_padding"`
	BucketSizes         []int `mapstructure:"bucket_sizes"`

	ChunkSize   int   `mapstructure:"chunk_size"`
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

// envPrefix namespaces environment variable overrides, e.g.
// ZKIM_CHUNK_SIZE, ZKIM_ENABLE_COMPRESSION.
const envPrefix = "ZKIM"

// Load builds a Config from defaults, an optional config file, and
// ZKIM_-prefixed environment variables, in that order of increasing
// precedence — the same layering the teacher's initConfig applies,
// minus cobra flag binding, which belongs to a host CLI, not this core.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.CompressionLevel = clampCompressionLevel(cfg.CompressionLevel)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("enable_compression", true)
	v.SetDefault("compression_algorithm", "gzip")
	v.SetDefault("compression_level", 6)

	v.SetDefault("enable_searchable_encryption", true)
	v.SetDefault("enable_integrity_validation", true)
	v.SetDefault("enable_key_rotation", true)
	v.SetDefault("enable_perfect_forward_secrecy", true)
	v.SetDefault("enable_compromise_detection", false)

	v.SetDefault("enable_rotation", true)
	v.SetDefault("rotation_interval", time.Hour)
	v.SetDefault("grace_period", 10*time.Minute)
	v.SetDefault("enable_revocation", true)
	v.SetDefault("max_active_trapdoors", 1000)
	v.SetDefault("enable_usage_tracking", true)
	v.SetDefault("enable_anomaly_detection", false)
	v.SetDefault("enable_audit_logging", true)
	v.SetDefault("rotation_threshold", 1000)
	v.SetDefault("revocation_threshold", 10000)

	v.SetDefault("enable_rate_limiting", true)
	v.SetDefault("max_queries_per_epoch", 100)
	v.SetDefault("epoch_duration", time.Hour)

	v.SetDefault("enable_result_padding", true)
	v.SetDefault("bucket_sizes", []int{64, 256, 1024, 4096, 16384, 65536, 262144, 524288, 1048576})

	v.SetDefault("chunk_size", 512*1024)
	v.SetDefault("max_file_size", int64(10)<<30) // 10 GiB
}

// clampCompressionLevel enforces the 0-9 range.
func clampCompressionLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > 9 {
		return 9
	}
	return level
}
