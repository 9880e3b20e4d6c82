package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lateware/xm5ctl/internal/api/middleware"
	"github.com/lateware/xm5ctl/internal/session"
)

// RegisterRoutes 注册控制 API 路由。
// 读接口不限流；写接口（会产生耳机命令）挂限流中间件。
func RegisterRoutes(
	r *gin.Engine,
	state *session.State,
	sink CommandSink,
	rl *middleware.RateLimiter,
	logger *zap.Logger,
) {
	if r == nil || state == nil || sink == nil {
		return
	}

	handler := NewHandler(state, sink, logger)

	api := r.Group("/api")
	api.GET("/status", handler.GetStatus)
	api.GET("/battery", handler.GetBattery)
	api.GET("/anc", handler.GetAnc)
	api.GET("/equalizer", handler.GetEqualizer)
	api.GET("/codec", handler.GetCodec)
	api.GET("/soundpressure", handler.GetSoundPressure)

	write := api.Group("")
	if rl != nil {
		write.Use(rl.Middleware())
	}
	write.POST("/anc", handler.SetAnc)
	write.POST("/equalizer/preset", handler.SetEqualizerPreset)
	write.POST("/equalizer/bands", handler.SetEqualizerBands)
	write.POST("/soundpressure/measure", handler.SetSoundPressureMeasure)

	logger.Info("control routes registered", zap.Int("endpoints", 10))
}
