package router

import (
	"net/http"
	"strings"
	"time"

	"tokenizermanager/internal/config"
	"tokenizermanager/internal/handler"
	"tokenizermanager/internal/metrics"
	"tokenizermanager/internal/middleware"
	"tokenizermanager/internal/repository"
	"tokenizermanager/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// Services 汇总路由需要的业务服务
type Services struct {
	Users      *service.UserService
	Channels   *service.ChannelService
	Tokenizers *service.TokenizerService
	JWT        *service.JWTService
	UserRepo   repository.UserRepositoryInterface
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	var origins []string
	for _, o := range strings.Split(cfg.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 || origins[0] == "*" {
		corsCfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsCfg.AllowOrigins = origins
	}
	return corsCfg
}

func Setup(cfg *config.Config, m *metrics.Metrics, svc *Services) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(cors.New(corsConfig(cfg)))
	if m != nil {
		r.Use(m.GinMiddleware())
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authLimiter := middleware.NewRateLimiter(cfg.RateLimitAuthRPS, 10)
	adminAuth := middleware.AdminAuth(svc.JWT, svc.UserRepo)

	userHandler := handler.NewUserHandler(svc.Users)
	channelHandler := handler.NewChannelHandler(svc.Channels)
	tokenizerHandler := handler.NewTokenizerHandler(svc.Tokenizers)

	api := r.Group("/api")
	{
		manageAuth := api.Group("/manage/auth")
		manageAuth.Use(authLimiter.RateLimitByIP())
		{
			manageAuth.POST("/login", userHandler.Login)
		}

		tokenizer := api.Group("/tokenizer")
		tokenizer.Use(adminAuth)
		tokenizer.Use(gzip.Gzip(gzip.DefaultCompression))
		{
			tokenizer.GET("/", tokenizerHandler.List)
			tokenizer.GET("/verify", tokenizerHandler.Verify)
			tokenizer.POST("/update", tokenizerHandler.Update)
		}

		admin := api.Group("/admin")
		admin.Use(adminAuth)
		{
			channels := admin.Group("/channels")
			{
				channels.GET("", channelHandler.List)
				channels.POST("", channelHandler.Create)
				channels.GET("/:id", channelHandler.Get)
				channels.PUT("/:id", channelHandler.Update)
				channels.DELETE("/:id", channelHandler.Delete)
				channels.PATCH("/:id/enabled", channelHandler.SetEnabled)
				channels.POST("/:id/test", channelHandler.TestConnection)
			}
		}
	}

	return r
}
