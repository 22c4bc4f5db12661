package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"idle-miner-sync/internal/models"
	"os"
	"strings"
)

// 默认配置值
const (
	DefaultStore               = "badger"
	DefaultDBPath              = "data/miner"
	DefaultListenAddr          = ":8080"
	DefaultRetryAttempts       = 3
	MaxRetryAttempts           = 3 // 每次持久化最多写入远端 3 次
	DefaultRetryInitialDelayMs = 250
	DefaultTickIntervalMs      = 1000
)

// 可以覆盖配置文件的环境变量
const (
	EnvPlayerID = "MINER_PLAYER_ID"
	EnvStore    = "MINER_STORE"
	EnvDBPath   = "MINER_DB_PATH"
	EnvListen   = "MINER_LISTEN_ADDR"
)

// LoadConfig 从指定路径加载JSON配置文件并解析到Config结构体中。
// 文件不存在时使用默认配置；之后依次应用环境变量覆盖与默认值填充。
func LoadConfig(path string) (*models.Config, error) {
	config := &models.Config{}

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(config); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist):
		// 没有配置文件时完全依赖环境变量与默认值
	default:
		return nil, err
	}

	ApplyEnv(config)
	ApplyDefaults(config)

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv 使用环境变量覆盖配置（godotenv 已在 main 中加载 .env）
func ApplyEnv(config *models.Config) {
	if v := strings.TrimSpace(os.Getenv(EnvPlayerID)); v != "" {
		config.PlayerID = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStore)); v != "" {
		config.Store = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDBPath)); v != "" {
		config.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvListen)); v != "" {
		config.ListenAddr = v
	}
}

// ApplyDefaults 为未设置的字段填充默认值
func ApplyDefaults(config *models.Config) {
	if config.Store == "" {
		config.Store = DefaultStore
	}
	if config.DBPath == "" {
		config.DBPath = DefaultDBPath
	}
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = DefaultRetryAttempts
	}
	if config.RetryInitialDelayMs <= 0 {
		config.RetryInitialDelayMs = DefaultRetryInitialDelayMs
	}
	if config.TickIntervalMs <= 0 {
		config.TickIntervalMs = DefaultTickIntervalMs
	}
	if config.LogConfig.Level == "" {
		config.LogConfig.Level = "info"
	}
	if config.LogConfig.Output == "" {
		config.LogConfig.Output = "console"
	}
}

// Validate 检查配置是否可用
func Validate(config *models.Config) error {
	switch config.Store {
	case "badger", "sqlite":
	default:
		return errors.New("store 必须是 'badger' 或 'sqlite'")
	}
	if config.RetryAttempts > MaxRetryAttempts {
		return fmt.Errorf("retry_attempts 不能超过 %d (当前 %d)", MaxRetryAttempts, config.RetryAttempts)
	}
	for name, dist := range config.Locations {
		if len(dist) == 0 {
			return errors.New("地点 " + name + " 的矿石分布为空")
		}
	}
	for name, wt := range config.WorkerTypes {
		if wt.PeriodSec <= 0 {
			return errors.New("工人 " + name + " 的 period_sec 必须大于 0")
		}
	}
	return nil
}
