package main

import (
	"context"
	"errors"
	"flag"
	"idle-miner-sync/internal/config"
	"idle-miner-sync/internal/hub"
	"idle-miner-sync/internal/identity"
	"idle-miner-sync/internal/logger"
	"idle-miner-sync/internal/models"
	"idle-miner-sync/internal/persistence"
	"idle-miner-sync/internal/reporter"
	"idle-miner-sync/internal/retry"
	"idle-miner-sync/internal/reward"
	"idle-miner-sync/internal/statemanager"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 5 * time.Second
	drainTimeout    = 15 * time.Second
	openRetryMax    = 30 * time.Second
)

func main() {
	// --- 命令行参数定义 ---
	configPath := flag.String("config", "config.json", "path to the config file")
	playerID := flag.String("player", "", "player id (overrides config and MINER_PLAYER_ID)")
	store := flag.String("store", "", "remote store: badger or sqlite (overrides config)")
	flag.Parse()

	// --- 初始化日志 (提前) ---
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	// --- 加载 .env 文件 ---
	if err := godotenv.Load(); err != nil {
		logger.S().Info("未找到 .env 文件，将从系统环境变量中读取。")
	} else {
		logger.S().Info("成功从 .env 文件加载配置。")
	}

	// --- 加载 JSON 配置 ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.S().Fatalf("无法加载配置文件: %v", err)
	}
	if *playerID != "" {
		cfg.PlayerID = *playerID
	}
	if *store != "" {
		cfg.Store = *store
		if err := config.Validate(cfg); err != nil {
			logger.S().Fatalf("配置无效: %v", err)
		}
	}

	// --- 使用文件中的配置重新初始化日志 ---
	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()

	if cfg.PlayerID == "" {
		logger.S().Fatalf("错误：必须通过 -player 或 %s 设置玩家ID。", config.EnvPlayerID)
	}

	run(cfg)
}

// run 组装同步引擎并运行，直到收到中断信号
func run(cfg *models.Config) {
	logger.S().Infof("--- 启动同步引擎 (store=%s, path=%s) ---", cfg.Store, cfg.DBPath)

	remote, err := persistence.NewRemoteStore(cfg.Store, cfg.DBPath)
	if err != nil {
		logger.S().Fatalf("无法打开远端存储: %v", err)
	}

	policy := retry.Policy{
		MaxAttempts: cfg.RetryAttempts,
		BaseDelay:   time.Duration(cfg.RetryInitialDelayMs) * time.Millisecond,
		Jitter:      cfg.RetryJitter,
	}
	gateway := persistence.NewGateway(remote, policy, logger.L().Named("gateway"))
	defer func() {
		if err := gateway.Close(); err != nil {
			logger.S().Errorf("关闭远端存储失败: %v", err)
		}
	}()

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	resolver := reward.NewResolver(rand.New(rand.NewSource(seed)))
	catalog := reward.NewCatalog(cfg.Locations, cfg.OreValues)

	wsHub := hub.New(logger.L().Named("hub"))
	opts := []statemanager.Option{
		statemanager.WithPresenter(wsHub),
		statemanager.WithNotifier(wsHub),
	}
	if len(cfg.WorkerTypes) > 0 {
		opts = append(opts, statemanager.WithWorkerTypes(cfg.WorkerTypes))
	}
	sm := statemanager.NewStateManager(identity.NewStatic(cfg.PlayerID), gateway, resolver, catalog, logger.L().Named("sync"), opts...)
	wsHub.Bind(sm)

	// 等待中断信号以实现优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	mux := http.NewServeMux()
	mux.Handle("/ws", wsHub)
	server := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		logger.S().Infof("WebSocket 服务监听于 %s/ws", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.S().Errorf("WebSocket 服务异常退出: %v", err)
		}
	}()

	// 远端暂时不可读时不退出: 通知已由 StateManager 推送给客户端，稍后重试
	if !openSession(sm, policy, quit) {
		logger.S().Info("会话打开前收到退出信号。")
		shutdown(server, wsHub)
		return
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		interval := time.Duration(cfg.TickIntervalMs) * time.Millisecond
		if err := sm.Run(runCtx, interval); err != nil && !errors.Is(err, context.Canceled) {
			logger.S().Errorf("自动采矿循环退出: %v", err)
		}
	}()

	<-quit
	logger.S().Info("收到退出信号，正在保存进度...")

	stopRun()
	<-runDone

	shutdown(server, wsHub)

	// 先做最后一次保存，正在进行的持久化由 Close 等待完成
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	defer cancelDrain()
	if result, err := sm.Save(drainCtx); err != nil && !errors.Is(err, models.ErrBusy) {
		logger.S().Warnf("最后一次保存被拒绝: %v", err)
	} else if err == nil && !result.Succeeded {
		logger.S().Warn("最后一次保存失败，本地进度未能写入远端。")
	}
	if err := sm.Close(drainCtx); err != nil {
		logger.S().With(zap.Error(err)).Warn("等待持久化完成超时")
	}

	reporter.GenerateReport(os.Stdout, sm.Snapshot(), catalog)
	logger.S().Info("同步引擎已停止。")
}

// openSession 反复尝试打开会话，直到成功或收到退出信号。
// 只有缺少玩家身份等不可恢复的错误才会终止进程。
func openSession(sm *statemanager.StateManager, policy retry.Policy, quit <-chan os.Signal) bool {
	b := &backoff.Backoff{Min: policy.BaseDelay, Max: openRetryMax, Factor: 2}
	for {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		err := sm.Open(ctx)
		cancel()
		if err == nil {
			return true
		}
		if !errors.Is(err, models.ErrTransientRemote) && !errors.Is(err, context.DeadlineExceeded) {
			logger.S().Fatalf("无法打开玩家会话: %v", err)
		}
		wait := b.Duration()
		logger.S().Warnf("打开玩家会话失败，%s 后重试: %v", wait, err)
		select {
		case <-quit:
			return false
		case <-time.After(wait):
		}
	}
}

// shutdown 关闭 WebSocket 服务并断开所有客户端
func shutdown(server *http.Server, wsHub *hub.Hub) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.S().Warnf("关闭 WebSocket 服务失败: %v", err)
	}
	wsHub.Close()
}
