package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 既定値（営業日ベースのウィンドウ幅とクールダウン時間）
const (
	DefaultWindow1WDays  = 5
	DefaultWindow3MDays  = 63
	DefaultWindow1YDays  = 252
	DefaultCooldownHours = 2
	DefaultTimezone      = "Asia/Tokyo"
	DefaultMaxWatchItems = 100
)

// Config アプリ設定
type Config struct {
	App struct {
		Name     string `yaml:"name"`
		Env      string `yaml:"env"`
		Timezone string `yaml:"timezone"`
	} `yaml:"app"`

	Signal struct {
		Window1WDays  int `yaml:"window_1w_days"`
		Window3MDays  int `yaml:"window_3m_days"`
		Window1YDays  int `yaml:"window_1y_days"`
		CooldownHours int `yaml:"cooldown_hours"`
	} `yaml:"signal"`

	Watchlist struct {
		MaxItems int `yaml:"max_items"`
	} `yaml:"watchlist"`

	MarketData struct {
		TimeoutSec int `yaml:"timeout_sec"`
	} `yaml:"market_data"`

	Notify struct {
		DiscordWebhookURL string `yaml:"discord_webhook_url"`
		LineWebhookURL    string `yaml:"line_webhook_url"`
		TimeoutSec        int    `yaml:"timeout_sec"`
		RetryCount        int    `yaml:"retry_count"`
	} `yaml:"notify"`

	Database struct {
		Driver   string `yaml:"driver"` // postgres または memory
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DBName   string `yaml:"dbname"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`

	NATS struct {
		URL      string `yaml:"url"`
		ClientID string `yaml:"client_id"`
	} `yaml:"nats"`

	Scheduler struct {
		DailySpec            string `yaml:"daily_spec"`
		Night21Spec          string `yaml:"night21_spec"`
		WeeklyEarningsSpec   string `yaml:"weekly_earnings_spec"`
		TomorrowEarningsSpec string `yaml:"tomorrow_earnings_spec"`
	} `yaml:"scheduler"`

	API struct {
		Port            string `yaml:"port"`
		ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
		WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	} `yaml:"api"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // json または console
	} `yaml:"log"`
}

// LoadConfig 設定ファイルを読み込む
// 優先順位: OS環境変数 > .env > YAML > 既定値
func LoadConfig(path string) (*Config, error) {
	// .envがあれば環境変数として読み込む（既存の環境変数は上書きしない）
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイル読み込み失敗: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("設定ファイル解析失敗: %w", err)
	}

	applyDefaults(&config)
	overrideFromEnv(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate 設定値の検証（ウィンドウ順序とクールダウンは致命的エラー）
func (c *Config) Validate() error {
	if !(c.Signal.Window1WDays <= c.Signal.Window3MDays && c.Signal.Window3MDays <= c.Signal.Window1YDays) {
		return fmt.Errorf(
			"ウィンドウ幅は 1W <= 3M <= 1Y を満たす必要があります: %d/%d/%d",
			c.Signal.Window1WDays, c.Signal.Window3MDays, c.Signal.Window1YDays,
		)
	}
	if c.Signal.Window1WDays <= 0 {
		return fmt.Errorf("ウィンドウ幅は正の値が必要です: %d", c.Signal.Window1WDays)
	}
	if c.Signal.CooldownHours <= 0 {
		return fmt.Errorf("クールダウン時間は正の値が必要です: %d", c.Signal.CooldownHours)
	}
	if c.Watchlist.MaxItems <= 0 {
		return fmt.Errorf("監視銘柄の上限は正の値が必要です: %d", c.Watchlist.MaxItems)
	}
	return nil
}

// applyDefaults 未指定の設定に既定値を適用する
func applyDefaults(config *Config) {
	if config.App.Timezone == "" {
		config.App.Timezone = DefaultTimezone
	}
	if config.Signal.Window1WDays == 0 {
		config.Signal.Window1WDays = DefaultWindow1WDays
	}
	if config.Signal.Window3MDays == 0 {
		config.Signal.Window3MDays = DefaultWindow3MDays
	}
	if config.Signal.Window1YDays == 0 {
		config.Signal.Window1YDays = DefaultWindow1YDays
	}
	if config.Signal.CooldownHours == 0 {
		config.Signal.CooldownHours = DefaultCooldownHours
	}
	if config.Watchlist.MaxItems == 0 {
		config.Watchlist.MaxItems = DefaultMaxWatchItems
	}
	if config.MarketData.TimeoutSec == 0 {
		config.MarketData.TimeoutSec = 15
	}
	if config.Notify.TimeoutSec == 0 {
		config.Notify.TimeoutSec = 10
	}
	if config.Database.Driver == "" {
		config.Database.Driver = "postgres"
	}
	// cron書式は秒フィールド付き（JST前提、土日は決算系以外スキップ）
	if config.Scheduler.DailySpec == "" {
		config.Scheduler.DailySpec = "0 30 15 * * 1-5"
	}
	if config.Scheduler.Night21Spec == "" {
		config.Scheduler.Night21Spec = "0 0 21 * * 1-5"
	}
	if config.Scheduler.WeeklyEarningsSpec == "" {
		config.Scheduler.WeeklyEarningsSpec = "0 0 21 * * 0"
	}
	if config.Scheduler.TomorrowEarningsSpec == "" {
		config.Scheduler.TomorrowEarningsSpec = "0 5 21 * * *"
	}
	if config.API.Port == "" {
		config.API.Port = "8080"
	}
	if config.API.ReadTimeoutSec == 0 {
		config.API.ReadTimeoutSec = 10
	}
	if config.API.WriteTimeoutSec == 0 {
		config.API.WriteTimeoutSec = 10
	}
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "json"
	}
}

// overrideFromEnv 環境変数で設定を上書きする
func overrideFromEnv(config *Config) {
	if env := os.Getenv("APP_ENV"); env != "" {
		config.App.Env = env
	}
	if env := os.Getenv("APP_TIMEZONE"); env != "" {
		config.App.Timezone = env
	}

	// シグナル判定
	overrideInt(&config.Signal.Window1WDays, "WINDOW_1W_DAYS")
	overrideInt(&config.Signal.Window3MDays, "WINDOW_3M_DAYS")
	overrideInt(&config.Signal.Window1YDays, "WINDOW_1Y_DAYS")
	overrideInt(&config.Signal.CooldownHours, "COOLDOWN_HOURS")

	// 通知先
	if env := os.Getenv("DISCORD_WEBHOOK_URL"); env != "" {
		config.Notify.DiscordWebhookURL = env
	}
	if env := os.Getenv("LINE_WEBHOOK_URL"); env != "" {
		config.Notify.LineWebhookURL = env
	}

	// データベース
	if env := os.Getenv("DB_DRIVER"); env != "" {
		config.Database.Driver = env
	}
	if env := os.Getenv("DB_HOST"); env != "" {
		config.Database.Host = env
	}
	overrideInt(&config.Database.Port, "DB_PORT")
	if env := os.Getenv("DB_USER"); env != "" {
		config.Database.User = env
	}
	if env := os.Getenv("DB_PASSWORD"); env != "" {
		config.Database.Password = env
	}
	if env := os.Getenv("DB_NAME"); env != "" {
		config.Database.DBName = env
	}

	// NATS
	if env := os.Getenv("NATS_URL"); env != "" {
		config.NATS.URL = env
	}
	if env := os.Getenv("NATS_CLIENT_ID"); env != "" {
		config.NATS.ClientID = env
	}

	// API
	if env := os.Getenv("API_PORT"); env != "" {
		config.API.Port = env
	}
}

func overrideInt(target *int, key string) {
	env := os.Getenv(key)
	if env == "" {
		return
	}
	var value int
	fmt.Sscanf(env, "%d", &value)
	if value > 0 {
		*target = value
	}
}

// GetDefaultConfigPath 既定の設定ファイルパスを返す
func GetDefaultConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	return fmt.Sprintf("configs/%s/app.yaml", env)
}
