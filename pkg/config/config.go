package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Solver   SolverConfig
	Tasks    TasksConfig
	Calendar CalendarConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SolverConfig tunes the timetable search without changing constraint semantics.
type SolverConfig struct {
	PeriodsPerDay       int
	DaysPerWeek         int
	WeeksPerSemester    int
	EveningStartPeriod  int
	OptimalIterations   int
	BalancedIterations  int
	BalancedScoreTarget float64
}

// TasksConfig governs the scheduling worker pool and task retention.
type TasksConfig struct {
	Workers        int
	QueueBuffer    int
	EnqueueRetries int
	RetryDelay     time.Duration
	ResultCacheTTL time.Duration
}

// CalendarConfig controls holiday conflict handling during and after a solve.
type CalendarConfig struct {
	StrictHolidayAvoidance bool
	HolidayCacheTTL        time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:   v.GetString("JWT_SECRET"),
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: v.GetString("JWT_AUDIENCE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Solver = SolverConfig{
		PeriodsPerDay:       v.GetInt("SOLVER_PERIODS_PER_DAY"),
		DaysPerWeek:         v.GetInt("SOLVER_DAYS_PER_WEEK"),
		WeeksPerSemester:    v.GetInt("SOLVER_WEEKS_PER_SEMESTER"),
		EveningStartPeriod:  v.GetInt("SOLVER_EVENING_START_PERIOD"),
		OptimalIterations:   v.GetInt("SOLVER_OPTIMAL_ITERATIONS"),
		BalancedIterations:  v.GetInt("SOLVER_BALANCED_ITERATIONS"),
		BalancedScoreTarget: v.GetFloat64("SOLVER_BALANCED_SCORE_TARGET"),
	}

	cfg.Tasks = TasksConfig{
		Workers:        v.GetInt("TASKS_WORKERS"),
		QueueBuffer:    v.GetInt("TASKS_QUEUE_BUFFER"),
		EnqueueRetries: v.GetInt("TASKS_ENQUEUE_RETRIES"),
		RetryDelay:     parseDuration(v.GetString("TASKS_RETRY_DELAY"), time.Second),
		ResultCacheTTL: parseDuration(v.GetString("TASKS_RESULT_CACHE_TTL"), time.Hour),
	}

	cfg.Calendar = CalendarConfig{
		StrictHolidayAvoidance: v.GetBool("CALENDAR_STRICT_HOLIDAY_AVOIDANCE"),
		HolidayCacheTTL:        parseDuration(v.GetString("CALENDAR_HOLIDAY_CACHE_TTL"), 12*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SOLVER_PERIODS_PER_DAY", 12)
	v.SetDefault("SOLVER_DAYS_PER_WEEK", 7)
	v.SetDefault("SOLVER_WEEKS_PER_SEMESTER", 20)
	v.SetDefault("SOLVER_EVENING_START_PERIOD", 9)
	v.SetDefault("SOLVER_OPTIMAL_ITERATIONS", 200000)
	v.SetDefault("SOLVER_BALANCED_ITERATIONS", 5000)
	v.SetDefault("SOLVER_BALANCED_SCORE_TARGET", 85)

	v.SetDefault("TASKS_WORKERS", 2)
	v.SetDefault("TASKS_QUEUE_BUFFER", 16)
	v.SetDefault("TASKS_ENQUEUE_RETRIES", 3)
	v.SetDefault("TASKS_RETRY_DELAY", "1s")
	v.SetDefault("TASKS_RESULT_CACHE_TTL", "1h")

	v.SetDefault("CALENDAR_STRICT_HOLIDAY_AVOIDANCE", false)
	v.SetDefault("CALENDAR_HOLIDAY_CACHE_TTL", "12h")
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
