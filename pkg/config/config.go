package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	ProviderGoogle = "google"
	ProviderICS    = "ics"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	APIKey    string

	Redis        RedisConfig
	CORS         CORSConfig
	Log          LogConfig
	Calendar     CalendarConfig
	Availability AvailabilityConfig
	Agenda       AgendaConfig
	Bookings     BookingsConfig
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RoomSource binds a room label to its backing calendar (a Google calendar ID or an ICS URL).
type RoomSource struct {
	Name   string
	Source string
}

// CalendarConfig selects and configures the external calendar provider.
type CalendarConfig struct {
	Provider        string
	Timezone        string
	Rooms           []RoomSource
	CredentialsFile string
	APIBaseURL      string
	HTTPTimeout     time.Duration
	CacheTTL        time.Duration
}

// AvailabilityConfig holds the default working window and the optional room policy file.
type AvailabilityConfig struct {
	WindowStart    string
	WindowEnd      string
	RoomPolicyFile string
}

// AgendaConfig controls the default agenda range.
type AgendaConfig struct {
	DefaultDays int
}

// BookingsConfig toggles write-back to the calendar provider.
type BookingsConfig struct {
	Enabled bool
	Workers int
	Retries int
}

// DefaultRooms mirrors the calendars the academy runs today.
var DefaultRooms = []RoomSource{
	{Name: "Sala grande", Source: "dq9te3mprqg1ljp5tnjpb8v6ns@group.calendar.google.com"},
	{Name: "Sala piano", Source: "4lagj76akl5n37gejf030qv3do@group.calendar.google.com"},
	{Name: "Sala picola", Source: "mpncunafqtkig51qm35rs84t28@group.calendar.google.com"},
	{Name: "Sala terraza", Source: "adso7d591imkgl4s1e7vom5npk@group.calendar.google.com"},
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.APIKey = v.GetString("ECM_API_KEY")

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	rooms, err := parseRoomSources(v.GetString("CALENDAR_ROOMS"))
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		rooms = append([]RoomSource(nil), DefaultRooms...)
	}

	provider := strings.ToLower(strings.TrimSpace(v.GetString("CALENDAR_PROVIDER")))
	if provider != ProviderGoogle && provider != ProviderICS {
		return nil, fmt.Errorf("unsupported CALENDAR_PROVIDER %q", provider)
	}

	cfg.Calendar = CalendarConfig{
		Provider:        provider,
		Timezone:        v.GetString("CALENDAR_TIMEZONE"),
		Rooms:           rooms,
		CredentialsFile: v.GetString("GOOGLE_CREDENTIALS_FILE"),
		APIBaseURL:      v.GetString("GOOGLE_API_BASE_URL"),
		HTTPTimeout:     parseDuration(v.GetString("CALENDAR_HTTP_TIMEOUT"), 10*time.Second),
		CacheTTL:        parseDuration(v.GetString("CALENDAR_CACHE_TTL"), 2*time.Minute),
	}

	cfg.Availability = AvailabilityConfig{
		WindowStart:    v.GetString("AVAILABILITY_WINDOW_START"),
		WindowEnd:      v.GetString("AVAILABILITY_WINDOW_END"),
		RoomPolicyFile: v.GetString("ROOM_POLICY_FILE"),
	}

	defaultDays := v.GetInt("AGENDA_DEFAULT_DAYS")
	if defaultDays <= 0 {
		defaultDays = 14
	}
	cfg.Agenda = AgendaConfig{DefaultDays: defaultDays}

	cfg.Bookings = BookingsConfig{
		Enabled: v.GetBool("ENABLE_BOOKINGS"),
		Workers: v.GetInt("BOOKING_WORKERS"),
		Retries: v.GetInt("BOOKING_RETRIES"),
	}

	return cfg, nil
}

// RoomNames returns the configured room labels in declaration order.
func (c CalendarConfig) RoomNames() []string {
	names := make([]string, 0, len(c.Rooms))
	for _, room := range c.Rooms {
		names = append(names, room.Name)
	}
	return names
}

// RoomSourceMap indexes the configured sources by room label.
func (c CalendarConfig) RoomSourceMap() map[string]string {
	out := make(map[string]string, len(c.Rooms))
	for _, room := range c.Rooms {
		out[room.Name] = room.Source
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8000)
	v.SetDefault("API_PREFIX", "")
	v.SetDefault("ECM_API_KEY", "")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CALENDAR_PROVIDER", ProviderGoogle)
	v.SetDefault("CALENDAR_TIMEZONE", "America/Argentina/Buenos_Aires")
	v.SetDefault("CALENDAR_ROOMS", "")
	v.SetDefault("GOOGLE_CREDENTIALS_FILE", "service_account.json")
	v.SetDefault("GOOGLE_API_BASE_URL", "https://www.googleapis.com/calendar/v3")
	v.SetDefault("CALENDAR_HTTP_TIMEOUT", "10s")
	v.SetDefault("CALENDAR_CACHE_TTL", "2m")

	v.SetDefault("AVAILABILITY_WINDOW_START", "14:00")
	v.SetDefault("AVAILABILITY_WINDOW_END", "21:00")
	v.SetDefault("ROOM_POLICY_FILE", "")
	v.SetDefault("AGENDA_DEFAULT_DAYS", 14)

	v.SetDefault("ENABLE_BOOKINGS", false)
	v.SetDefault("BOOKING_WORKERS", 1)
	v.SetDefault("BOOKING_RETRIES", 3)
}

// parseRoomSources reads "Sala grande=id1,Sala piano=id2".
func parseRoomSources(raw string) ([]RoomSource, error) {
	var rooms []RoomSource
	seen := map[string]struct{}{}
	for _, entry := range splitAndTrim(raw) {
		name, source, ok := strings.Cut(entry, "=")
		name = strings.TrimSpace(name)
		source = strings.TrimSpace(source)
		if !ok || name == "" || source == "" {
			return nil, fmt.Errorf("invalid CALENDAR_ROOMS entry %q, expected name=source", entry)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate room %q in CALENDAR_ROOMS", name)
		}
		seen[name] = struct{}{}
		rooms = append(rooms, RoomSource{Name: name, Source: source})
	}
	return rooms, nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
