package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"folio/internal/domain"
	"folio/internal/layout"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Layout  LayoutConfig
	Oracle  OracleConfig
	DB      DBConfig
	S3      S3Config
	Redis   RedisConfig
	Catalog CatalogConfig
	JWT     JWTConfig
	CORS    CORSConfig
	Workers WorkersConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LayoutConfig holds the layout refinement settings.
type LayoutConfig struct {
	// MergeThreshold is nil when unset; the merge mode then picks it.
	MergeThreshold      *float64 `mapstructure:"merge_threshold" yaml:"merge_threshold"`
	MergeMode           string   `mapstructure:"merge_mode" yaml:"merge_mode"`
	Policy              string   `mapstructure:"policy" yaml:"policy"`
	ConfidenceWeight    float64  `mapstructure:"confidence_weight" yaml:"confidence_weight"`
	AreaWeight          float64  `mapstructure:"area_weight" yaml:"area_weight"`
	AreaNorm            float64  `mapstructure:"area_norm" yaml:"area_norm"`
	MinBoxArea          float64  `mapstructure:"min_box_area" yaml:"min_box_area"`
	MaxBoxes            int      `mapstructure:"max_boxes" yaml:"max_boxes"`
	DetectionDPI        int      `mapstructure:"detection_dpi" yaml:"detection_dpi"`
	Debug               bool     `mapstructure:"debug" yaml:"debug"`
	Captions            string   `mapstructure:"captions" yaml:"captions"`
	AbstractHook        bool     `mapstructure:"abstract_hook" yaml:"abstract_hook"`
	ListAbstractPenalty float64  `mapstructure:"list_abstract_penalty" yaml:"list_abstract_penalty"`
}

// ToLayout converts the settings into the immutable value the layout core
// runs with.
func (l *LayoutConfig) ToLayout() (layout.Config, error) {
	cfg := layout.DefaultConfig()

	mode, err := domain.ParseMergeMode(l.MergeMode)
	if err != nil {
		return cfg, fmt.Errorf("config.ToLayout: %w", err)
	}
	kind, err := domain.ParsePolicyKind(l.Policy)
	if err != nil {
		return cfg, fmt.Errorf("config.ToLayout: %w", err)
	}

	policy := domain.PolicyOf(kind)
	if l.ConfidenceWeight > 0 || l.AreaWeight > 0 {
		policy.ConfidenceWeight = l.ConfidenceWeight
		policy.AreaWeight = l.AreaWeight
	}
	if l.AreaNorm > 0 {
		policy.AreaNorm = l.AreaNorm
	}

	threshold := layout.DefaultMergeThresholdFor(mode)
	if l.MergeThreshold != nil {
		threshold = *l.MergeThreshold
	}
	cfg = cfg.WithPolicy(policy).WithMergeThreshold(threshold)
	cfg.MergeMode = mode
	if l.MinBoxArea > 0 {
		cfg.MinBoxArea = l.MinBoxArea
	}
	if l.MaxBoxes > 0 {
		cfg.MaxBoxes = l.MaxBoxes
	}
	if l.AbstractHook {
		cfg.AbstractDetector = layout.LooksLikeAbstract
	}
	if l.ListAbstractPenalty > 0 {
		cfg.ListAbstractPenalty = l.ListAbstractPenalty
	}
	cfg.Debug = l.Debug

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config.ToLayout: %w", err)
	}
	return cfg, nil
}

// CaptionMode returns the parsed caption association mode.
func (l *LayoutConfig) CaptionMode() (domain.CaptionMode, error) {
	return domain.ParseCaptionMode(l.Captions)
}

// OracleProviderConfig holds settings for a single caption oracle provider.
type OracleProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// OracleConfig holds the vision caption oracle chain.
type OracleConfig struct {
	Primary   OracleProviderConfig `mapstructure:"primary"`
	Secondary OracleProviderConfig `mapstructure:"secondary"`
	Tertiary  OracleProviderConfig `mapstructure:"tertiary"`
	ImageDPI  int                  `mapstructure:"image_dpi"`
}

// Providers returns the configured providers in fallback order.
func (o *OracleConfig) Providers() []*OracleProviderConfig {
	var out []*OracleProviderConfig
	for _, p := range []*OracleProviderConfig{&o.Primary, &o.Secondary, &o.Tertiary} {
		if p.Provider != "" {
			out = append(out, p)
		}
	}
	return out
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// RedisConfig holds the refined-page cache settings.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// CatalogConfig holds catalog output settings.
type CatalogConfig struct {
	Sink          string `mapstructure:"sink"`
	OutputDir     string `mapstructure:"output_dir"`
	Thumbnails    bool   `mapstructure:"thumbnails"`
	ThumbnailSize int    `mapstructure:"thumbnail_size"`
	// HOCRDir holds page_NNNN.hocr files; empty disables text extraction.
	HOCRDir string `mapstructure:"hocr_dir"`
	HOCRDPI int    `mapstructure:"hocr_dpi"`
}

// JWTConfig holds bearer-token settings for the API.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// WorkersConfig bounds document processing.
type WorkersConfig struct {
	PageConcurrency int           `mapstructure:"page_concurrency"`
	PageTimeout     time.Duration `mapstructure:"page_timeout"`
}

// Load reads configuration from environment variables with the FOLIO_ prefix
// and, when FOLIO_CONFIG_FILE is set, from that YAML file.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.environment", "development")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// Layout defaults
	v.SetDefault("layout.merge_mode", string(domain.MergeModeIoU))
	v.SetDefault("layout.policy", string(domain.PolicyWeighted))
	v.SetDefault("layout.confidence_weight", domain.DefaultConfidenceWeight)
	v.SetDefault("layout.area_weight", domain.DefaultAreaWeight)
	v.SetDefault("layout.area_norm", domain.DefaultAreaNorm)
	v.SetDefault("layout.min_box_area", layout.DefaultMinBoxArea)
	v.SetDefault("layout.max_boxes", layout.DefaultMaxBoxes)
	v.SetDefault("layout.detection_dpi", 200)
	v.SetDefault("layout.debug", false)
	v.SetDefault("layout.captions", string(domain.CaptionsGeometric))
	v.SetDefault("layout.abstract_hook", false)
	v.SetDefault("layout.list_abstract_penalty", layout.DefaultListAbstractPenalty)

	// Oracle defaults
	v.SetDefault("oracle.image_dpi", 150)
	for _, slot := range []string{"primary", "secondary", "tertiary"} {
		v.SetDefault("oracle."+slot+".provider", "")
		v.SetDefault("oracle."+slot+".api_key", "")
		v.SetDefault("oracle."+slot+".default_model", "")
		v.SetDefault("oracle."+slot+".timeout_secs", 120)
	}

	// DB defaults
	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "folio")
	v.SetDefault("db.password", "folio_secret")
	v.SetDefault("db.name", "folio_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "folio-catalogs")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.prefix", "catalogs")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "24h")

	// Catalog defaults
	v.SetDefault("catalog.sink", "local")
	v.SetDefault("catalog.output_dir", "catalogs")
	v.SetDefault("catalog.thumbnails", true)
	v.SetDefault("catalog.thumbnail_size", 256)
	v.SetDefault("catalog.hocr_dir", "")
	v.SetDefault("catalog.hocr_dpi", 300)

	// JWT defaults; an empty secret disables auth.
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "folio")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Worker defaults
	v.SetDefault("workers.page_concurrency", 4)
	v.SetDefault("workers.page_timeout", "60s")

	if path := os.Getenv("FOLIO_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config.Load: reading %s: %w", path, err)
		}
	}

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                    "FOLIO_SERVER_PORT",
		"server.read_timeout":            "FOLIO_SERVER_READ_TIMEOUT",
		"server.write_timeout":           "FOLIO_SERVER_WRITE_TIMEOUT",
		"server.environment":             "FOLIO_SERVER_ENVIRONMENT",
		"log.level":                      "FOLIO_LOG_LEVEL",
		"log.format":                     "FOLIO_LOG_FORMAT",
		"layout.merge_threshold":         "FOLIO_LAYOUT_MERGE_THRESHOLD",
		"layout.merge_mode":              "FOLIO_LAYOUT_MERGE_MODE",
		"layout.policy":                  "FOLIO_LAYOUT_POLICY",
		"layout.confidence_weight":       "FOLIO_LAYOUT_CONFIDENCE_WEIGHT",
		"layout.area_weight":             "FOLIO_LAYOUT_AREA_WEIGHT",
		"layout.area_norm":               "FOLIO_LAYOUT_AREA_NORM",
		"layout.min_box_area":            "FOLIO_LAYOUT_MIN_BOX_AREA",
		"layout.max_boxes":               "FOLIO_LAYOUT_MAX_BOXES",
		"layout.detection_dpi":           "FOLIO_LAYOUT_DETECTION_DPI",
		"layout.debug":                   "FOLIO_LAYOUT_DEBUG",
		"layout.captions":                "FOLIO_LAYOUT_CAPTIONS",
		"layout.abstract_hook":           "FOLIO_LAYOUT_ABSTRACT_HOOK",
		"layout.list_abstract_penalty":   "FOLIO_LAYOUT_LIST_ABSTRACT_PENALTY",
		"oracle.image_dpi":               "FOLIO_ORACLE_IMAGE_DPI",
		"oracle.primary.provider":        "FOLIO_ORACLE_PRIMARY_PROVIDER",
		"oracle.primary.api_key":         "FOLIO_ORACLE_PRIMARY_API_KEY",
		"oracle.primary.default_model":   "FOLIO_ORACLE_PRIMARY_DEFAULT_MODEL",
		"oracle.primary.timeout_secs":    "FOLIO_ORACLE_PRIMARY_TIMEOUT_SECS",
		"oracle.secondary.provider":      "FOLIO_ORACLE_SECONDARY_PROVIDER",
		"oracle.secondary.api_key":       "FOLIO_ORACLE_SECONDARY_API_KEY",
		"oracle.secondary.default_model": "FOLIO_ORACLE_SECONDARY_DEFAULT_MODEL",
		"oracle.secondary.timeout_secs":  "FOLIO_ORACLE_SECONDARY_TIMEOUT_SECS",
		"oracle.tertiary.provider":       "FOLIO_ORACLE_TERTIARY_PROVIDER",
		"oracle.tertiary.api_key":        "FOLIO_ORACLE_TERTIARY_API_KEY",
		"oracle.tertiary.default_model":  "FOLIO_ORACLE_TERTIARY_DEFAULT_MODEL",
		"oracle.tertiary.timeout_secs":   "FOLIO_ORACLE_TERTIARY_TIMEOUT_SECS",
		"db.enabled":                     "FOLIO_DB_ENABLED",
		"db.host":                        "FOLIO_DB_HOST",
		"db.port":                        "FOLIO_DB_PORT",
		"db.user":                        "FOLIO_DB_USER",
		"db.password":                    "FOLIO_DB_PASSWORD",
		"db.name":                        "FOLIO_DB_NAME",
		"db.sslmode":                     "FOLIO_DB_SSLMODE",
		"db.max_open":                    "FOLIO_DB_MAX_OPEN",
		"db.max_idle":                    "FOLIO_DB_MAX_IDLE",
		"s3.region":                      "FOLIO_S3_REGION",
		"s3.bucket":                      "FOLIO_S3_BUCKET",
		"s3.endpoint":                    "FOLIO_S3_ENDPOINT",
		"s3.access_key":                  "FOLIO_S3_ACCESS_KEY",
		"s3.secret_key":                  "FOLIO_S3_SECRET_KEY",
		"s3.prefix":                      "FOLIO_S3_PREFIX",
		"redis.enabled":                  "FOLIO_REDIS_ENABLED",
		"redis.addr":                     "FOLIO_REDIS_ADDR",
		"redis.password":                 "FOLIO_REDIS_PASSWORD",
		"redis.db":                       "FOLIO_REDIS_DB",
		"redis.ttl":                      "FOLIO_REDIS_TTL",
		"catalog.sink":                   "FOLIO_CATALOG_SINK",
		"catalog.output_dir":             "FOLIO_CATALOG_OUTPUT_DIR",
		"catalog.thumbnails":             "FOLIO_CATALOG_THUMBNAILS",
		"catalog.thumbnail_size":         "FOLIO_CATALOG_THUMBNAIL_SIZE",
		"catalog.hocr_dir":               "FOLIO_CATALOG_HOCR_DIR",
		"catalog.hocr_dpi":               "FOLIO_CATALOG_HOCR_DPI",
		"jwt.secret":                     "FOLIO_JWT_SECRET",
		"jwt.issuer":                     "FOLIO_JWT_ISSUER",
		"cors.allowed_origins":           "FOLIO_CORS_ALLOWED_ORIGINS",
		"workers.page_concurrency":       "FOLIO_WORKERS_PAGE_CONCURRENCY",
		"workers.page_timeout":           "FOLIO_WORKERS_PAGE_TIMEOUT",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if FOLIO_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("FOLIO_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.Layout = LayoutConfig{
		MergeMode:           v.GetString("layout.merge_mode"),
		Policy:              v.GetString("layout.policy"),
		ConfidenceWeight:    v.GetFloat64("layout.confidence_weight"),
		AreaWeight:          v.GetFloat64("layout.area_weight"),
		AreaNorm:            v.GetFloat64("layout.area_norm"),
		MinBoxArea:          v.GetFloat64("layout.min_box_area"),
		MaxBoxes:            v.GetInt("layout.max_boxes"),
		DetectionDPI:        v.GetInt("layout.detection_dpi"),
		Debug:               v.GetBool("layout.debug"),
		Captions:            v.GetString("layout.captions"),
		AbstractHook:        v.GetBool("layout.abstract_hook"),
		ListAbstractPenalty: v.GetFloat64("layout.list_abstract_penalty"),
	}
	if v.IsSet("layout.merge_threshold") {
		t := v.GetFloat64("layout.merge_threshold")
		cfg.Layout.MergeThreshold = &t
	}

	providerAt := func(slot string) OracleProviderConfig {
		return OracleProviderConfig{
			Provider:     v.GetString("oracle." + slot + ".provider"),
			APIKey:       v.GetString("oracle." + slot + ".api_key"),
			DefaultModel: v.GetString("oracle." + slot + ".default_model"),
			TimeoutSecs:  v.GetInt("oracle." + slot + ".timeout_secs"),
		}
	}
	cfg.Oracle = OracleConfig{
		Primary:   providerAt("primary"),
		Secondary: providerAt("secondary"),
		Tertiary:  providerAt("tertiary"),
		ImageDPI:  v.GetInt("oracle.image_dpi"),
	}

	cfg.DB = DBConfig{
		Enabled:  v.GetBool("db.enabled"),
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:    v.GetString("s3.region"),
		Bucket:    v.GetString("s3.bucket"),
		Endpoint:  v.GetString("s3.endpoint"),
		AccessKey: v.GetString("s3.access_key"),
		SecretKey: v.GetString("s3.secret_key"),
		Prefix:    v.GetString("s3.prefix"),
	}
	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("redis.enabled"),
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
		TTL:      v.GetDuration("redis.ttl"),
	}
	cfg.Catalog = CatalogConfig{
		Sink:          v.GetString("catalog.sink"),
		OutputDir:     v.GetString("catalog.output_dir"),
		Thumbnails:    v.GetBool("catalog.thumbnails"),
		ThumbnailSize: v.GetInt("catalog.thumbnail_size"),
		HOCRDir:       v.GetString("catalog.hocr_dir"),
		HOCRDPI:       v.GetInt("catalog.hocr_dpi"),
	}
	cfg.JWT = JWTConfig{
		Secret: v.GetString("jwt.secret"),
		Issuer: v.GetString("jwt.issuer"),
	}

	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{AllowedOrigins: corsOrigins}

	cfg.Workers = WorkersConfig{
		PageConcurrency: v.GetInt("workers.page_concurrency"),
		PageTimeout:     v.GetDuration("workers.page_timeout"),
	}

	return cfg, nil
}
