// Package routes 注册模拟前端服务器的路由
package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"live2d_bridge/internal/config"
	"live2d_bridge/internal/handlers"
	"live2d_bridge/internal/middleware"
)

// NewEngine 创建模拟前端服务器引擎并注册所有路由
func NewEngine(cfg *config.Config) *gin.Engine {
	r := gin.New()
	middleware.Setup(r)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	frontendHandler := handlers.NewFrontendHandler(cfg.WebSocket)
	frontendHandler.RegisterRoutes(r)

	return r
}
