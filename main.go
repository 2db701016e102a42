package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BerniceZTT/leadops/config"
	"github.com/BerniceZTT/leadops/events"
	"github.com/BerniceZTT/leadops/repository"
	"github.com/BerniceZTT/leadops/routes"
	"github.com/BerniceZTT/leadops/service"
	"github.com/BerniceZTT/leadops/utils"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// 加载 .env（可选）
	envErr := godotenv.Load()

	// 加载配置
	cfg := config.LoadConfig()

	// 初始化日志
	utils.InitLogger(cfg.Debug)
	if envErr != nil {
		utils.Logger.Debug().Msg("未找到 .env 文件，使用环境变量")
	}
	utils.SetJWTSecret(cfg.JWTKey)

	// 设置Gin模式
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化数据库
	store, err := openStore(cfg)
	if err != nil {
		utils.Logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("初始化存储失败")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			utils.Logger.Error().Err(err).Msg("关闭存储失败")
		}
	}()

	appCtx, stopApp := context.WithCancel(context.Background())
	defer stopApp()

	// 处理记录发布
	var publisher service.ResolutionPublisher = service.NoopPublisher{}
	var producer *events.Producer
	if cfg.KafkaEnabled() {
		producer = events.NewProducer(events.ProducerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaResolutionTopic,
		})
		publisher = producer
	}

	duplicates := service.NewDuplicateService(store, publisher)
	leads := service.NewLeadService(store)

	// 检测事件消费
	var consumer *events.Consumer
	if cfg.KafkaEnabled() {
		consumer = events.NewConsumer(events.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaAlertTopic,
			GroupID: cfg.KafkaGroupID,
		}, duplicates)
		if err := consumer.Start(appCtx); err != nil {
			utils.Logger.Fatal().Err(err).Msg("启动Kafka消费者失败")
		}
	} else {
		utils.Logger.Info().Msg("未配置 KAFKA_BROKERS，仅通过HTTP接收检测事件")
	}

	// 每日积压检查
	if cfg.BacklogReportHour >= 0 {
		service.ScheduleDailyTaskAt(appCtx, cfg.BacklogReportHour, 0, 0, func() {
			ctx, cancel := context.WithTimeout(appCtx, time.Minute)
			defer cancel()
			_, _ = duplicates.ReportPendingBacklog(ctx)
		})
	}

	// 创建Gin实例并注册路由
	router := routes.NewRouter(routes.Dependencies{
		Store:      store,
		Duplicates: duplicates,
		Leads:      leads,
	}, cfg.CORSOrigins)

	// 设置HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 启动服务器
	go func() {
		utils.Logger.Info().Msgf("服务器启动，监听端口: %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Logger.Fatal().Err(err).Msg("启动服务器失败")
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.Logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		utils.Logger.Error().Err(err).Msg("服务器关闭异常")
	}

	stopApp()
	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			utils.Logger.Error().Err(err).Msg("关闭Kafka消费者失败")
		}
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			utils.Logger.Error().Err(err).Msg("关闭Kafka生产者失败")
		}
	}

	utils.Logger.Info().Msg("服务器已优雅关闭")
}

// openStore 按配置选择存储
func openStore(cfg *config.Config) (repository.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cfg.StoreDriver {
	case config.StoreSQLite:
		st, err := repository.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close(ctx) //nolint:errcheck
			return nil, err
		}
		return st, nil
	case config.StoreMongo:
		st, err := repository.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		utils.Logger.Info().Msg("开始系统初始化...")
		if err := st.InitializeCollections(ctx); err != nil {
			utils.Logger.Error().Err(err).Msg("初始化数据库集合失败")
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
