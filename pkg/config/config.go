package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type SubmitLimitConfig struct {
	RequestsPerMinute int `yaml:"requestsPerMinute"`
	BurstSize         int `yaml:"burstSize"`
}

type RateLimitConfig struct {
	Submit SubmitLimitConfig `yaml:"submit"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	OTLPInsecure bool    `yaml:"otlpInsecure"`
	SampleRatio  float64 `yaml:"sampleRatio"`
}

type Config struct {
	Port                   int             `yaml:"port"`
	RunnerServiceURL       string          `yaml:"runnerServiceUrl"`
	RunnerSubmitPath       string          `yaml:"runnerSubmitPath"`
	RunnerTimeoutSeconds   int             `yaml:"runnerTimeoutSeconds"`
	MaxUploadBytes         int64           `yaml:"maxUploadBytes"`
	MaxRunnerResponseBytes int64           `yaml:"maxRunnerResponseBytes"`
	LogLevel               string          `yaml:"logLevel"`
	LogFormat              string          `yaml:"logFormat"`
	Env                    string          `yaml:"env"`
	CORSAllowedOrigins     []string        `yaml:"corsAllowedOrigins"`
	// TrustedProxies may set X-Forwarded-For; empty means the TCP peer is the client.
	TrustedProxies         []string        `yaml:"trustedProxies"`
	RedisAddr              string          `yaml:"redisAddr"`
	RedisPassword          string          `yaml:"redisPassword"`
	RateLimit              RateLimitConfig `yaml:"rateLimit"`
	Tracing                TracingConfig   `yaml:"tracing"`
}

// LoadConfig reads the yaml file at filePath, then applies env overrides and defaults.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

// LoadConfigOptional behaves like LoadConfig but treats an empty path or a
// missing file as an empty config, so the gateway can run from env alone.
func LoadConfigOptional(filePath string) (*Config, error) {
	if strings.TrimSpace(filePath) != "" {
		c, err := LoadConfig(filePath)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	var c Config
	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("RUNNER_SERVICE_URL"); v != "" {
		c.RunnerServiceURL = v
	}
	if v := os.Getenv("RUNNER_SUBMIT_PATH"); v != "" {
		c.RunnerSubmitPath = v
	}
	if v := os.Getenv("RUNNER_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RunnerTimeoutSeconds = n
		}
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSAllowedOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		c.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		c.Tracing.Enabled = parseBool(v)
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Tracing.ServiceName = v
	}
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.RunnerServiceURL == "" {
		log.Println("Warning: RunnerServiceURL not set")
	}
	c.RunnerServiceURL = strings.TrimRight(c.RunnerServiceURL, "/")
	if c.RunnerSubmitPath == "" {
		c.RunnerSubmitPath = "/run-job"
	}
	if !strings.HasPrefix(c.RunnerSubmitPath, "/") {
		c.RunnerSubmitPath = "/" + c.RunnerSubmitPath
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 32 << 20
	}
	if c.MaxRunnerResponseBytes <= 0 {
		c.MaxRunnerResponseBytes = 16 << 20
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "jobgate"
	}

	log.Printf("Gateway Config: {Port:%d Runner:%s%s Timeout:%ds MaxUpload:%d}\n",
		c.Port, c.RunnerServiceURL, c.RunnerSubmitPath, c.RunnerTimeoutSeconds, c.MaxUploadBytes)
}

func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.RunnerServiceURL) == "" {
		errs = append(errs, "runnerServiceUrl is required")
	} else {
		u, err := url.Parse(c.RunnerServiceURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, "runnerServiceUrl must be a valid http(s) URL")
		}
	}
	if c.RunnerTimeoutSeconds <= 0 {
		errs = append(errs, "runnerTimeoutSeconds is required and must be > 0")
	}
	rl := c.RateLimit.Submit
	if (rl.RequestsPerMinute > 0 || rl.BurstSize > 0) && strings.TrimSpace(c.RedisAddr) == "" {
		errs = append(errs, "redisAddr is required when rateLimit.submit is enabled")
	}
	for _, o := range c.CORSAllowedOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			errs = append(errs, fmt.Sprintf("corsAllowedOrigins entry %q must be * or an http(s) origin", o))
		}
	}
	for _, p := range c.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				errs = append(errs, fmt.Sprintf("trustedProxies entry %q must be an IP or CIDR", p))
			}
		}
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, "tracing.sampleRatio must be within [0, 1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseBool(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v == "true" || v == "1" || v == "yes" || v == "y" || v == "on"
}
