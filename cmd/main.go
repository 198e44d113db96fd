package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"

	"cv-ranker/internal/api/handler"
	"cv-ranker/internal/api/router"
	"cv-ranker/internal/config"
	"cv-ranker/internal/constants"
	appCoreLogger "cv-ranker/internal/logger"
	"cv-ranker/internal/outbox"
	"cv-ranker/internal/service"
	"cv-ranker/internal/storage"
	"cv-ranker/internal/tracing"
	"cv-ranker/internal/worker"
)

var (
	version     = "1.0.0"               //nolint:gochecknoglobals
	serviceName = constants.ServiceName //nolint:gochecknoglobals
)

func main() {
	var configPath, sampleConfigPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径，为空时按默认位置查找")
	pflag.StringVar(&sampleConfigPath, "init-config", "", "生成示例配置文件后退出")
	pflag.Parse()

	if sampleConfigPath != "" {
		if err := config.CreateSampleConfig(sampleConfigPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("示例配置已写入 %s\n", sampleConfigPath)
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		initLogger(config.LoggerConfig{Level: "info", Format: "pretty"})
		glog.Fatalf("加载配置失败: %v", err)
	}
	initLogger(cfg.Logger)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var shutdownTracing tracing.ShutdownFunc
	if cfg.Tracing.Enabled {
		name := cfg.Tracing.ServiceName
		if name == "" {
			name = serviceName
		}
		shutdownTracing, err = tracing.InitProvider(ctx, tracing.ProviderConfig{
			Endpoint:    cfg.Tracing.Endpoint,
			Insecure:    cfg.Tracing.Insecure,
			ServiceName: name,
			Version:     version,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			glog.Warnf("初始化链路追踪失败，继续运行: %v", err)
		} else {
			glog.Infof("链路追踪已启用，导出地址: %s", cfg.Tracing.Endpoint)
		}
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	ranker := service.NewRankerFromConfig(cfg.Scoring, appCoreLogger.Component("ranker"))
	rankingService := service.New(ranker,
		service.WithStorage(storageManager),
		service.WithSettings(service.SettingsFromConfig(cfg)),
	)
	glog.Info("排序服务初始化成功")

	// 发件箱依赖 MySQL 写入、RabbitMQ 投递
	var messageRelay *outbox.MessageRelay
	if storageManager.MySQL != nil && storageManager.RabbitMQ != nil {
		messageRelay = outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ, &cfg.Outbox)
		messageRelay.Start()
		glog.Info("消息中继服务已启动")
	}

	var rankingConsumer *worker.RankingConsumer
	if storageManager.RabbitMQ != nil {
		rankingConsumer = worker.NewRankingConsumer(rankingService, storageManager.RabbitMQ, &cfg.RabbitMQ)
		if err := rankingConsumer.Start(ctx); err != nil {
			glog.Fatalf("启动排序请求消费者失败: %v", err)
		}
		glog.Infof("排序请求消费者已启动，队列: %s", cfg.RabbitMQ.RankingRequestQueue)
	}

	tracer, tracingCfg := hertztracing.NewServerTracer()
	h := server.New(
		tracer,
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(hertztracing.ServerMiddleware(tracingCfg))

	rankingHandler := handler.NewRankingHandler(&cfg.Server, rankingService, storageManager)
	router.RegisterRoutes(h, rankingHandler, &cfg.Server)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	// 先停止收消息，再停中继
	if rankingConsumer != nil {
		rankingConsumer.Stop()
		glog.Info("排序请求消费者已停止")
	}
	if messageRelay != nil {
		messageRelay.Stop()
		glog.Info("消息中继服务已停止")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			glog.Warnf("刷新追踪数据失败: %v", err)
		}
	}
	glog.Info("优雅退出完成")
}

// initLogger 初始化全局 zerolog，并把 Hertz 的日志桥接过去
func initLogger(cfg config.LoggerConfig) {
	appCoreLogger.Init(appCoreLogger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		TimeFormat:   cfg.TimeFormat,
		ReportCaller: cfg.ReportCaller,
	})

	glog.SetLogger(hertzadapter.From(appCoreLogger.Logger))
	switch cfg.Level {
	case "debug":
		glog.SetLevel(glog.LevelDebug)
	case "warn":
		glog.SetLevel(glog.LevelWarn)
	case "error":
		glog.SetLevel(glog.LevelError)
	default:
		glog.SetLevel(glog.LevelInfo)
	}
}
