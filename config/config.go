package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type VerifierConfig struct {
	Server struct {
		Host      string `mapstructure:"host" json:"host,omitempty"`
		Port      int64  `mapstructure:"port" json:"port,omitempty"`
		JWTSecret string `mapstructure:"jwt_secret" json:"jwt_secret,omitempty"`
	} `mapstructure:"server" json:"server"`
	Database    DatabaseConfig `mapstructure:"database" json:"database,omitempty"`
	Redis       RedisConfig    `mapstructure:"redis" json:"redis,omitempty"`
	LogFormat   string         `mapstructure:"log_format" json:"log_format,omitempty"`
	NetworkFile string         `mapstructure:"network_file" json:"network_file,omitempty"`
	Engine      EngineConfig   `mapstructure:"engine" json:"engine"`
}

type WorkerConfig struct {
	Database     DatabaseConfig `mapstructure:"database" json:"database,omitempty"`
	Redis        RedisConfig    `mapstructure:"redis" json:"redis,omitempty"`
	HealthPort   int            `mapstructure:"health_port" json:"health_port,omitempty"`
	MetricsPort  int            `mapstructure:"metrics_port" json:"metrics_port,omitempty"`
	LogFormat    string         `mapstructure:"log_format" json:"log_format,omitempty"`
	Engine       EngineConfig   `mapstructure:"engine" json:"engine"`
	Notification struct {
		GatewayURL string `mapstructure:"gateway_url" json:"gateway_url,omitempty"`
	} `mapstructure:"notification" json:"notification"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn" json:"dsn,omitempty"`
}

type RedisConfig struct {
	URI      string `mapstructure:"uri" json:"uri,omitempty"`
	Host     string `mapstructure:"host" json:"host,omitempty"`
	Port     string `mapstructure:"port" json:"port,omitempty"`
	User     string `mapstructure:"user" json:"user,omitempty"`
	Password string `mapstructure:"password" json:"password,omitempty"`
	DB       int    `mapstructure:"db" json:"db,omitempty"`
}

// EngineConfig bundles the tunables of the verification core. Zero values
// are replaced with defaults by ApplyDefaults so tests can inject partial
// configurations.
type EngineConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit" json:"rate_limit"`
	Cooldown  CooldownConfig  `mapstructure:"cooldown" json:"cooldown"`
	Threshold ThresholdConfig `mapstructure:"threshold" json:"threshold"`
	Reward    RewardConfig    `mapstructure:"reward" json:"reward"`
	Trust     TrustConfig     `mapstructure:"trust" json:"trust"`

	TrustRecomputeInterval time.Duration `mapstructure:"trust_recompute_interval" json:"trust_recompute_interval,omitempty"`
	ExpirySweepInterval    time.Duration `mapstructure:"expiry_sweep_interval" json:"expiry_sweep_interval,omitempty"`
}

// RateLimitTier is the per-window report ceiling for one role.
type RateLimitTier struct {
	PerMinute int `mapstructure:"per_minute" json:"per_minute"`
	PerHour   int `mapstructure:"per_hour" json:"per_hour"`
	PerDay    int `mapstructure:"per_day" json:"per_day"`
}

type RateLimitConfig struct {
	User      RateLimitTier `mapstructure:"user" json:"user"`
	Moderator RateLimitTier `mapstructure:"moderator" json:"moderator"`

	// ViolationSuspicionDelta is added to the suspicion score on each
	// rate-limit violation.
	ViolationSuspicionDelta float64 `mapstructure:"violation_suspicion_delta" json:"violation_suspicion_delta"`
}

type CooldownConfig struct {
	Lookback            time.Duration `mapstructure:"lookback" json:"lookback"`
	MinSpacing          time.Duration `mapstructure:"min_spacing" json:"min_spacing"`
	SameKindSpacing     time.Duration `mapstructure:"same_kind_spacing" json:"same_kind_spacing"`
	SameLocationSpacing time.Duration `mapstructure:"same_location_spacing" json:"same_location_spacing"`
	SameLocationRadiusM float64       `mapstructure:"same_location_radius_m" json:"same_location_radius_m"`
}

type ThresholdConfig struct {
	BaseReportCount      int     `mapstructure:"base_report_count" json:"base_report_count"`
	BaseReputation       int     `mapstructure:"base_reputation" json:"base_reputation"`
	CountWeight          float64 `mapstructure:"count_weight" json:"count_weight"`
	ReputationWeight     float64 `mapstructure:"reputation_weight" json:"reputation_weight"`
	HighReputationCutoff int     `mapstructure:"high_reputation_cutoff" json:"high_reputation_cutoff"`
	HighReputationScale  float64 `mapstructure:"high_reputation_scale" json:"high_reputation_scale"`
	HighReputationCap    float64 `mapstructure:"high_reputation_cap" json:"high_reputation_cap"`
	MinReputationPerUser int     `mapstructure:"min_reputation_per_user" json:"min_reputation_per_user"`
}

type RewardConfig struct {
	BaseReward  int           `mapstructure:"base_reward" json:"base_reward"`
	BasePenalty int           `mapstructure:"base_penalty" json:"base_penalty"`
	RecencyTau  time.Duration `mapstructure:"recency_tau" json:"recency_tau"`

	// DiminishingScale is the reputation at which rewards halve.
	DiminishingScale int `mapstructure:"diminishing_scale" json:"diminishing_scale"`

	// RejectSuspicionDelta is the uniform suspicion penalty applied to
	// each reporter when a candidate is rejected.
	RejectSuspicionDelta float64 `mapstructure:"reject_suspicion_delta" json:"reject_suspicion_delta"`
}

type TrustConfig struct {
	ReputationDivisor    float64 `mapstructure:"reputation_divisor" json:"reputation_divisor"`
	BaseMin              float64 `mapstructure:"base_min" json:"base_min"`
	BaseMax              float64 `mapstructure:"base_max" json:"base_max"`
	AccuracyBonusWeight  float64 `mapstructure:"accuracy_bonus_weight" json:"accuracy_bonus_weight"`
	HighReputationCutoff int     `mapstructure:"high_reputation_cutoff" json:"high_reputation_cutoff"`
	HighReputationBonus  float64 `mapstructure:"high_reputation_bonus" json:"high_reputation_bonus"`
	FakeReportPenalty    float64 `mapstructure:"fake_report_penalty" json:"fake_report_penalty"`
	ScoreMin             float64 `mapstructure:"score_min" json:"score_min"`
	ScoreMax             float64 `mapstructure:"score_max" json:"score_max"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		RateLimit: RateLimitConfig{
			User:                    RateLimitTier{PerMinute: 2, PerHour: 10, PerDay: 40},
			Moderator:               RateLimitTier{PerMinute: 6, PerHour: 40, PerDay: 200},
			ViolationSuspicionDelta: 5,
		},
		Cooldown: CooldownConfig{
			Lookback:            5 * time.Minute,
			MinSpacing:          60 * time.Second,
			SameKindSpacing:     180 * time.Second,
			SameLocationSpacing: 300 * time.Second,
			SameLocationRadiusM: 500,
		},
		Threshold: ThresholdConfig{
			BaseReportCount:      3,
			BaseReputation:       150,
			CountWeight:          0.6,
			ReputationWeight:     0.4,
			HighReputationCutoff: 200,
			HighReputationScale:  0.5,
			HighReputationCap:    0.7,
			MinReputationPerUser: 10,
		},
		Reward: RewardConfig{
			BaseReward:           10,
			BasePenalty:          8,
			RecencyTau:           30 * time.Minute,
			DiminishingScale:     100,
			RejectSuspicionDelta: 10,
		},
		Trust: TrustConfig{
			ReputationDivisor:    100,
			BaseMin:              0.5,
			BaseMax:              2.0,
			AccuracyBonusWeight:  0.5,
			HighReputationCutoff: 500,
			HighReputationBonus:  0.25,
			FakeReportPenalty:    0.1,
			ScoreMin:             0.5,
			ScoreMax:             2.5,
		},
		TrustRecomputeInterval: 5 * time.Minute,
		ExpirySweepInterval:    10 * time.Minute,
	}
}

// ApplyDefaults fills in any unset engine tunables.
func (c *EngineConfig) ApplyDefaults() {
	def := DefaultEngineConfig()
	if c.RateLimit.User.PerMinute == 0 {
		c.RateLimit.User = def.RateLimit.User
	}
	if c.RateLimit.Moderator.PerMinute == 0 {
		c.RateLimit.Moderator = def.RateLimit.Moderator
	}
	if c.RateLimit.ViolationSuspicionDelta == 0 {
		c.RateLimit.ViolationSuspicionDelta = def.RateLimit.ViolationSuspicionDelta
	}
	if c.Cooldown.Lookback == 0 {
		c.Cooldown = def.Cooldown
	}
	if c.Threshold.BaseReportCount == 0 {
		c.Threshold = def.Threshold
	}
	if c.Reward.BaseReward == 0 {
		c.Reward = def.Reward
	}
	if c.Trust.ReputationDivisor == 0 {
		c.Trust = def.Trust
	}
	if c.TrustRecomputeInterval == 0 {
		c.TrustRecomputeInterval = def.TrustRecomputeInterval
	}
	if c.ExpirySweepInterval == 0 {
		c.ExpirySweepInterval = def.ExpirySweepInterval
	}
}

func ReadVerifierConfig() (*VerifierConfig, error) {
	configName := os.Getenv("TW_VERIFIER_CONFIG_NAME")
	if configName == "" {
		configName = "config"
	}
	viper.SetConfigName(configName)
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("fail to reading config file, %w", err)
	}
	var cfg VerifierConfig
	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	cfg.Engine.ApplyDefaults()
	return &cfg, nil
}

func ReadWorkerConfig() (*WorkerConfig, error) {
	configName := os.Getenv("TW_WORKER_CONFIG_NAME")
	if configName == "" {
		configName = "config"
	}
	viper.SetConfigName(configName)
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("fail to reading config file, %w", err)
	}
	var cfg WorkerConfig
	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	cfg.Engine.ApplyDefaults()
	return &cfg, nil
}
