package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bg-server/common"
	"bg-server/common/logger"
	"bg-server/internal/config"
	infmysql "bg-server/internal/infra/mysql"
	infrds "bg-server/internal/infra/redis"
	"bg-server/internal/model"
	"bg-server/internal/worker"
	_ "bg-server/routers"

	beego "github.com/beego/beego/v2/server/web"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.InitLogger()
	defer logger.Sync()

	// 1. 加载配置（Nacos 优先，本地文件兜底）
	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Printf("[Boot] 加载配置失败: error=%v\n", err)
		os.Exit(1)
	}
	config.Set(cfg)
	config.SetCurrent(cfg)
	if cfg.Server.LogLevel != "" {
		logger.SetLevel(cfg.Server.LogLevel)
	}

	// 配置热更新：仅刷新内存中的动态配置
	if err := config.StartWatch(ctx, func(oldCfg, newCfg *config.Config) {
		config.Set(newCfg)
		config.SetCurrent(newCfg)
	}); err != nil {
		logger.Warn("config watch not started", zap.Error(err))
	}

	// 2. 初始化 MySQL
	db := common.InitDB(cfg.Database.DSN, cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	infmysql.UseDB(db.DB)

	// 3. 落库兜底行：全局计数器与业务配置（首次启动用配置默认值播种）
	seedCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := model.EnsureGlobalStats(seedCtx, infmysql.SQLX()); err != nil {
		logger.Fatalf("ensure global stats failed", zap.Error(err))
	}
	if err := model.EnsureEscrowConfig(seedCtx, infmysql.SQLX(), &model.EscrowConfig{
		Admin:          cfg.Wager.Admin,
		GameService:    cfg.Wager.GameService,
		Denom:          cfg.Wager.Denom,
		RakeBps:        cfg.Wager.RakeBps,
		RakeRecipient:  cfg.Wager.RakeRecipient,
		MinStake:       cfg.Wager.MinStake,
		MaxStake:       cfg.Wager.MaxStake,
		TimeoutSeconds: cfg.Wager.TimeoutSeconds,
	}); err != nil {
		logger.Fatalf("ensure escrow config failed", zap.Error(err))
	}
	escrowEnabled := int8(0)
	if cfg.Wager.EscrowEnabled {
		escrowEnabled = 1
	}
	if err := model.EnsureMatchConfig(seedCtx, infmysql.SQLX(), &model.MatchConfig{
		Admin:         cfg.Wager.Admin,
		EscrowEnabled: escrowEnabled,
		Reporter:      cfg.Wager.Reporter,
	}); err != nil {
		logger.Fatalf("ensure match config failed", zap.Error(err))
	}

	// 4. 初始化 Redis（可选，不可用时各处降级）
	infrds.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := infrds.Ping(ctx, 2*time.Second); err != nil {
		logger.Warn("redis ping failed, degrade to no-cache mode", zap.Error(err))
	}

	// 5. 启动后台任务：Outbox 转账指令分发 + 转账回执消费
	var wg sync.WaitGroup
	worker.StartOutboxDispatcher(ctx, &wg)
	worker.StartInboxConsumer(ctx, &wg)

	// 6. Prometheus 指标端点
	beego.Handler("/metrics", promhttp.Handler())

	if cfg.Server.Port > 0 {
		beego.BConfig.Listen.HTTPPort = cfg.Server.Port
	}
	beego.BConfig.CopyRequestBody = true

	fmt.Printf("[Boot] 服务启动: port=%d\n", beego.BConfig.Listen.HTTPPort)

	go func() {
		<-ctx.Done()
		fmt.Printf("[Boot] 收到退出信号，等待后台任务结束\n")
		wg.Wait()
		os.Exit(0)
	}()

	beego.Run()
}
