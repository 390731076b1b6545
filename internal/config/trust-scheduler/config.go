package trust_scheduler_config

import (
	"time"

	"github.com/NordCoder/Trustwatch/internal/adapters"
	"github.com/NordCoder/Trustwatch/internal/domain/check"
	"github.com/NordCoder/Trustwatch/internal/obs"
	pginfra "github.com/NordCoder/Trustwatch/internal/repository/postgres"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (c *Config) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  c.Log.Level,
		Pretty: c.Log.Pretty,
		App:    c.App.Name,
		Env:    c.App.Env,
		Ver:    c.App.Version,
	}
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type KafkaCfg struct {
	Enable     bool     `mapstructure:"enable"`
	Brokers    []string `mapstructure:"brokers"`
	TrustTopic string   `mapstructure:"trust_topic"`
	NodesTopic string   `mapstructure:"nodes_topic"`
	GroupID    string   `mapstructure:"group_id"`
}

type RedisCfg struct {
	Enable   bool   `mapstructure:"enable"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

type SchedCfg struct {
	Tick                time.Duration `mapstructure:"tick"`
	RefreshEvery        int           `mapstructure:"refresh_every"`
	MetricsAddr         string        `mapstructure:"metrics_addr"`
	GRPCAddr            string        `mapstructure:"grpc_addr"`
	RunImmediately      bool          `mapstructure:"run_immediately"`
	ResultRetryAttempts int           `mapstructure:"result_retry_attempts"`
	ShutdownTimeout     time.Duration `mapstructure:"shutdown_timeout"`
}

type BaselineCfg struct {
	Name        string        `mapstructure:"name"`
	Description string        `mapstructure:"description"`
	Spacing     time.Duration `mapstructure:"spacing"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Server      string        `mapstructure:"server"`
	Port        int           `mapstructure:"port"`
}

func (b *BaselineCfg) AsDefinition() check.Definition {
	return check.Definition{
		Name:        b.Name,
		Description: b.Description,
		Spacing:     b.Spacing,
		Timeout:     b.Timeout,
		Server:      b.Server,
		Port:        b.Port,
		Enabled:     true,
	}
}

type AttestationCfg struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	VerifyTLS bool          `mapstructure:"verify_tls"`
}

type StaticCfg struct {
	Trusted   []string `mapstructure:"trusted"`
	Untrusted []string `mapstructure:"untrusted"`
}

type AdaptersCfg struct {
	Enabled     []string       `mapstructure:"enabled"`
	Attestation AttestationCfg `mapstructure:"attestation"`
	Static      StaticCfg      `mapstructure:"static"`
}

func (a *AdaptersCfg) AsAttestationConfig() adapters.AttestationConfig {
	return adapters.AttestationConfig{
		BaseURL:   a.Attestation.BaseURL,
		Timeout:   a.Attestation.Timeout,
		UserAgent: a.Attestation.UserAgent,
		VerifyTLS: a.Attestation.VerifyTLS,
	}
}

type Config struct {
	App      App            `mapstructure:"app"`
	Log      Log            `mapstructure:"log"`
	OTEL     OTEL           `mapstructure:"otel"`
	DB       pginfra.Config `mapstructure:"db"`
	Kafka    KafkaCfg       `mapstructure:"kafka"`
	Redis    RedisCfg       `mapstructure:"redis"`
	Sched    SchedCfg       `mapstructure:"sched"`
	Baseline BaselineCfg    `mapstructure:"baseline"`
	Adapters AdaptersCfg    `mapstructure:"adapters"`
}
