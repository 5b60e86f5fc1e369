package main

import (
	"os"

	"tokenizermanager/internal/config"
	"tokenizermanager/internal/crypto"
	"tokenizermanager/internal/database"
	"tokenizermanager/internal/logging"
	"tokenizermanager/internal/metrics"
	"tokenizermanager/internal/repository"
	"tokenizermanager/internal/router"
	"tokenizermanager/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	gin.SetMode(gin.ReleaseMode)

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("配置加载失败: %v", err)
	}
	logging.Setup(cfg.LogLevel, os.Stdout)

	if err := database.Init(cfg.DBPath); err != nil {
		logrus.Fatalf("数据库初始化失败: %v", err)
	}
	defer database.Close()

	userService := service.NewUserService()
	if err := userService.EnsureAdmin(); err != nil {
		logrus.WithError(err).Warn("管理员账户创建失败")
	}

	encryptionKey := cfg.EncryptionKey
	if encryptionKey == "" {
		encryptionKey = cfg.JWTSecret
	}
	sealer, err := crypto.NewSealer(encryptionKey)
	if err != nil {
		logrus.WithError(err).Warn("渠道 API Key 加密不可用")
	}

	m := metrics.New()
	r := router.Setup(cfg, m, &router.Services{
		Users:      userService,
		Channels:   service.NewChannelService(sealer),
		Tokenizers: service.NewTokenizerService(&cfg.Tokenizer, m),
		JWT:        service.NewJWTService(),
		UserRepo:   repository.NewUserRepository(),
	})

	port := cfg.ServerPort
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}

	logrus.Infof("服务器启动在 http://0.0.0.0:%s", port)
	if err := r.Run("0.0.0.0:" + port); err != nil {
		logrus.Fatalf("服务器启动失败: %v", err)
	}
}
