package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Game     GameConfig     `mapstructure:"game"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
	// AdminIPs limits admin routes to these addresses or CIDR ranges; empty allows any.
	AdminIPs []string `mapstructure:"admin_ips"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

// Speed is a pair of screen-axis speeds in world units per second.
type Speed struct {
	X float64 `mapstructure:"x"`
	Y float64 `mapstructure:"y"`
}

type GameConfig struct {
	TickMs             int           `mapstructure:"tick_ms"`
	LevelsDir          string        `mapstructure:"levels_dir"`
	StartLevel         string        `mapstructure:"start_level"`
	Seed               uint64        `mapstructure:"seed"`
	BreadcrumbInterval float64       `mapstructure:"breadcrumb_interval"`
	BreadcrumbDecay    float64       `mapstructure:"breadcrumb_decay"`
	FollowRange        int           `mapstructure:"follow_range"`
	EnemyHealth        int           `mapstructure:"enemy_health"`
	RespawnDelay       float64       `mapstructure:"respawn_delay"`
	RetreatWait        float64       `mapstructure:"retreat_wait"`
	PlayerSpeed        Speed         `mapstructure:"player_speed"`
	EnemySpeed         Speed         `mapstructure:"enemy_speed"`
	AttackFrame        int           `mapstructure:"attack_frame"`
	StrictActions      bool          `mapstructure:"strict_actions"`
	RoomIdleTimeout    time.Duration `mapstructure:"room_idle_timeout"`
	RankingSize        int           `mapstructure:"ranking_size"`
}

// TickInterval returns TickMs as a duration.
func (g GameConfig) TickInterval() time.Duration {
	return time.Duration(g.TickMs) * time.Millisecond
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AllowedOrigins lists the WebSocket/SSE origins that are permitted.
	// An empty slice allows all origins (useful for local development only).
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/game.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("game.tick_ms", 50)
	v.SetDefault("game.levels_dir", "./data/levels")
	v.SetDefault("game.start_level", "town")
	v.SetDefault("game.seed", 1)
	v.SetDefault("game.breadcrumb_interval", 0.5)
	v.SetDefault("game.breadcrumb_decay", 5.0)
	v.SetDefault("game.follow_range", 8)
	v.SetDefault("game.enemy_health", 2)
	v.SetDefault("game.respawn_delay", 5.0)
	v.SetDefault("game.retreat_wait", 2.0)
	v.SetDefault("game.player_speed.x", 150.0)
	v.SetDefault("game.player_speed.y", 100.0)
	v.SetDefault("game.enemy_speed.x", 80.0)
	v.SetDefault("game.enemy_speed.y", 40.0)
	v.SetDefault("game.attack_frame", 9)
	v.SetDefault("game.strict_actions", false)
	v.SetDefault("game.room_idle_timeout", "5m")
	v.SetDefault("game.ranking_size", 10)
	v.SetDefault("security.jwt_ttl_h", "72h")
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}
