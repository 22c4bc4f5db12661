package models

// Config 结构体定义了同步引擎的所有配置参数
type Config struct {
	PlayerID   string `json:"player_id"`   // 玩家ID，通常由环境变量 MINER_PLAYER_ID 覆盖
	Store      string `json:"store"`       // 远端存储: "badger" 或 "sqlite"
	DBPath     string `json:"db_path"`     // 数据库文件路径
	ListenAddr string `json:"listen_addr"` // WebSocket 服务监听地址, e.g. ":8080"

	RetryAttempts       int  `json:"retry_attempts"`         // 持久化最多尝试次数
	RetryInitialDelayMs int  `json:"retry_initial_delay_ms"` // 退避基数（毫秒），第n次尝试前等待 base*2^(n-1)
	RetryJitter         bool `json:"retry_jitter,omitempty"` // 是否为退避加入随机抖动

	TickIntervalMs int   `json:"tick_interval_ms"` // 自动采矿 tick 间隔（毫秒）
	RandomSeed     int64 `json:"random_seed"`      // 奖励随机源种子, 0 表示使用当前时间

	Locations   map[string][]OreWeight `json:"locations,omitempty"`    // 地点 -> 矿石权重分布
	OreValues   map[string]int64       `json:"ore_values,omitempty"`   // 矿石出售单价
	WorkerTypes map[string]WorkerType  `json:"worker_types,omitempty"` // 工人种类定义

	LogConfig LogConfig `json:"log"` // 日志配置
}

// LogConfig 定义了日志相关的配置
type LogConfig struct {
	Level      string `json:"level"`       // 日志级别, e.g., "debug", "info", "warn", "error"
	Output     string `json:"output"`      // 输出模式: "console", "file", "both"
	File       string `json:"file"`        // 日志文件路径
	MaxSize    int    `json:"max_size"`    // 单个日志文件的最大大小 (MB)
	MaxBackups int    `json:"max_backups"` // 保留的旧日志文件最大数量
	MaxAge     int    `json:"max_age"`     // 旧日志文件的最大保留天数
	Compress   bool   `json:"compress"`    // 是否压缩旧日志文件
}

// OreWeight 地点分布中的一个矿石桶，权重之和不必为 100
type OreWeight struct {
	Kind   string  `json:"kind"`
	Weight float64 `json:"weight"`
}

// WorkerType 定义了一种工人的产出能力
type WorkerType struct {
	Power     int64 `json:"power"`      // 每个周期产出的矿石数量
	PeriodSec int   `json:"period_sec"` // 产出周期（秒）
}
