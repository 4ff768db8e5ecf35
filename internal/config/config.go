package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	defaultEnvFile = ".env"
	defaultPrefix  = "GIFT"
	defaultPort    = "8080"

	minSessionKeyLength = 32
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Env       string `envconfig:"ENV" default:"local"`
	Dev       bool   `envconfig:"DEV" default:"false"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	ProjectID string `envconfig:"PROJECT_ID"`

	Server  ServerConfig  `envconfig:"SERVER"`
	Site    SiteConfig    `envconfig:"SITE"`
	Share   ShareConfig   `envconfig:"SHARE"`
	Photos  PhotosConfig  `envconfig:"PHOTOS"`
	Access  AccessConfig  `envconfig:"ACCESS"`
	Session SessionConfig `envconfig:"SESSION"`
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port              string        `envconfig:"PORT"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"10s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// SiteConfig locates templates and content and sets the public origin.
type SiteConfig struct {
	// BaseURL is the origin written into share links. Empty means the request origin.
	BaseURL       string   `envconfig:"BASE_URL"`
	TemplatesDir  string   `envconfig:"TEMPLATES_DIR" default:"templates"`
	PublicDir     string   `envconfig:"PUBLIC_DIR" default:"public"`
	LocalesDir    string   `envconfig:"LOCALES_DIR" default:"locales"`
	ContentFile   string   `envconfig:"CONTENT_FILE" default:"content/landing.yaml"`
	MusicCatalog  string   `envconfig:"MUSIC_CATALOG" default:"content/music.yaml"`
	DefaultLocale string   `envconfig:"DEFAULT_LOCALE" default:"pt"`
	Locales       []string `envconfig:"LOCALES" default:"pt,en"`
	TimeZone      string   `envconfig:"TIME_ZONE" default:"America/Sao_Paulo"`
	AnalyticsID   string   `envconfig:"ANALYTICS_ID"`
}

// ShareConfig controls share links and QR codes.
type ShareConfig struct {
	QRMaxURLLength int           `envconfig:"QR_MAX_URL_LENGTH" default:"1800"`
	SizePolicy     string        `envconfig:"SIZE_POLICY" default:"lite"`
	PhotoPolicy    string        `envconfig:"PHOTO_POLICY" default:"links"`
	QREndpoint     string        `envconfig:"QR_ENDPOINT" default:"https://api.qrserver.com/v1/create-qr-code/"`
	QRSize         int           `envconfig:"QR_SIZE" default:"300"`
	QRColor        string        `envconfig:"QR_COLOR" default:"D42426"`
	QRBackground   string        `envconfig:"QR_BACKGROUND" default:"ffffff"`
	QRMargin       int           `envconfig:"QR_MARGIN" default:"10"`
	QRTimeout      time.Duration `envconfig:"QR_TIMEOUT" default:"5s"`
	QRRetries      int           `envconfig:"QR_RETRIES" default:"3"`
}

// PhotosConfig controls wizard uploads.
type PhotosConfig struct {
	// Bucket stores uploads in Cloud Storage when set; otherwise photos stay inline as data URIs.
	Bucket         string `envconfig:"BUCKET"`
	// PublicURL is the prefix uploaded objects are served from; empty means the bucket's storage.googleapis.com URL.
	PublicURL      string `envconfig:"PUBLIC_URL"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
	MaxDimension   uint   `envconfig:"MAX_DIMENSION" default:"800"`
	JPEGQuality    int    `envconfig:"JPEG_QUALITY" default:"80"`
}

// AccessConfig holds the optional code guarding the wizard. It may be a secret reference.
type AccessConfig struct {
	Code string `envconfig:"CODE"`
}

// SessionConfig holds cookie keys. Keys may be secret references.
type SessionConfig struct {
	Key     string `envconfig:"KEY"`
	CSRFKey string `envconfig:"CSRF_KEY"`
	Secure  bool   `envconfig:"SECURE" default:"false"`
	// Ephemeral reports that keys were generated at startup because none were configured.
	Ephemeral bool `ignored:"true"`
}

// Production reports whether the service runs with production settings.
func (c Config) Production() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// Location loads the configured time zone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Site.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Server.Port
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile string
	prefix  string
	secret  SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides. An empty path disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithPrefix changes the environment variable prefix.
func WithPrefix(prefix string) Option {
	return func(o *loaderOptions) {
		o.prefix = prefix
	}
}

// WithSecretResolver sets the resolver used for secret:// and sm:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the configuration from defaults, the .env file and environment
// variables. Variables already present in the environment win over the .env file.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile: defaultEnvFile,
		prefix:  defaultPrefix,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := loadDotEnv(options.envFile); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := envconfig.Process(options.prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	// Cloud Run injects PORT.
	if cfg.Server.Port == "" {
		cfg.Server.Port = os.Getenv("PORT")
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = defaultPort
	}

	secretFields := []struct {
		name  string
		field *string
	}{
		{"Access.Code", &cfg.Access.Code},
		{"Session.Key", &cfg.Session.Key},
		{"Session.CSRFKey", &cfg.Session.CSRFKey},
	}
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", target.name, err)
		}
		*target.field = resolved
	}

	cfg.Access.Code = NormalizeAccessCode(cfg.Access.Code)
	cfg.Site.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Site.BaseURL), "/")

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	if cfg.Session.Key == "" || cfg.Session.CSRFKey == "" {
		cfg.Session.Ephemeral = true
		if cfg.Session.Key == "" {
			cfg.Session.Key = randomKey()
		}
		if cfg.Session.CSRFKey == "" {
			cfg.Session.CSRFKey = randomKey()
		}
	}

	return cfg, nil
}

// NormalizeAccessCode lowercases and trims a code so comparisons ignore case and surrounding spaces.
func NormalizeAccessCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

// IsSecretReference reports whether value points at Secret Manager.
func IsSecretReference(value string) bool {
	return isSecretReference(value)
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func validateConfig(cfg Config) error {
	var invalid []string

	if cfg.Share.QRMaxURLLength <= 0 {
		invalid = append(invalid, "Share.QRMaxURLLength")
	}
	switch strings.ToLower(cfg.Share.SizePolicy) {
	case "lite", "warn":
	default:
		invalid = append(invalid, "Share.SizePolicy")
	}
	switch strings.ToLower(cfg.Share.PhotoPolicy) {
	case "omit", "links", "all":
	default:
		invalid = append(invalid, "Share.PhotoPolicy")
	}
	if u, err := url.Parse(cfg.Share.QREndpoint); err != nil || u.Scheme == "" || u.Host == "" {
		invalid = append(invalid, "Share.QREndpoint")
	}
	if cfg.Share.QRSize <= 0 {
		invalid = append(invalid, "Share.QRSize")
	}
	if cfg.Site.BaseURL != "" {
		if u, err := url.Parse(cfg.Site.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			invalid = append(invalid, "Site.BaseURL")
		}
	}
	if _, err := time.LoadLocation(cfg.Site.TimeZone); err != nil {
		invalid = append(invalid, "Site.TimeZone")
	}
	if len(cfg.Site.Locales) == 0 {
		invalid = append(invalid, "Site.Locales")
	}
	if cfg.Photos.MaxUploadBytes <= 0 {
		invalid = append(invalid, "Photos.MaxUploadBytes")
	}
	if cfg.Photos.JPEGQuality < 1 || cfg.Photos.JPEGQuality > 100 {
		invalid = append(invalid, "Photos.JPEGQuality")
	}
	if cfg.Production() {
		if len(cfg.Session.Key) < minSessionKeyLength {
			invalid = append(invalid, "Session.Key")
		}
		if len(cfg.Session.CSRFKey) < minSessionKeyLength {
			invalid = append(invalid, "Session.CSRFKey")
		}
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func randomKey() string {
	buf := make([]byte, minSessionKeyLength)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("config: read random key: %v", err))
	}
	return hex.EncodeToString(buf)
}
