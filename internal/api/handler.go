// Package api 暴露耳机控制与状态查询的 HTTP 接口。
// 读接口直接返回状态缓存快照；写接口把命令排入会话驱动后立即返回 202，
// 实际生效以后续耳机上报刷新缓存为准。
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lateware/xm5ctl/internal/protocol/mdr"
	"github.com/lateware/xm5ctl/internal/session"
)

// CommandSink 命令投递口，由会话驱动实现
type CommandSink interface {
	Submit(ctx context.Context, cmd mdr.Command) error
}

// Handler 控制 API 处理器
type Handler struct {
	state  *session.State
	sink   CommandSink
	logger *zap.Logger
}

// NewHandler 创建控制 API 处理器
func NewHandler(state *session.State, sink CommandSink, logger *zap.Logger) *Handler {
	return &Handler{state: state, sink: sink, logger: logger}
}

// submit 投递命令；会话未就绪或队列阻塞时回 503
func (h *Handler) submit(c *gin.Context, cmds ...mdr.Command) bool {
	for _, cmd := range cmds {
		if err := h.sink.Submit(c.Request.Context(), cmd); err != nil {
			h.logger.Warn("command submit failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session not accepting commands"})
			return false
		}
	}
	return true
}

// GetStatus 返回完整设备状态快照
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.state.Snapshot())
}

// GetBattery 返回缓存电量并触发一次刷新查询
func (h *Handler) GetBattery(c *gin.Context) {
	if c.Query("refresh") == "true" {
		if !h.submit(c,
			mdr.GetBatteryStatus{Type: mdr.BatteryHeadphones},
			mdr.GetBatteryStatus{Type: mdr.BatteryCase}) {
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"battery": h.state.Snapshot().Battery})
}

// GetAnc 返回缓存降噪状态
func (h *Handler) GetAnc(c *gin.Context) {
	if c.Query("refresh") == "true" && !h.submit(c, mdr.GetAncStatus{}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"anc": h.state.Snapshot().Anc})
}

// GetEqualizer 返回缓存均衡器设置
func (h *Handler) GetEqualizer(c *gin.Context) {
	if c.Query("refresh") == "true" && !h.submit(c, mdr.GetEqualizerSettings{}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"equalizer": h.state.Snapshot().Equalizer})
}

// GetCodec 返回缓存音频编码
func (h *Handler) GetCodec(c *gin.Context) {
	if c.Query("refresh") == "true" && !h.submit(c, mdr.GetCodec{}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"codec": h.state.Snapshot().Codec})
}

// GetSoundPressure 返回缓存声压状态并触发读数查询
func (h *Handler) GetSoundPressure(c *gin.Context) {
	if c.Query("refresh") == "true" && !h.submit(c, mdr.GetSoundPressure{}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"sound_pressure": h.state.Snapshot().SoundPressure})
}

type setAncRequest struct {
	Mode           string `json:"mode" binding:"required"`
	VoiceFiltering bool   `json:"voice_filtering"`
	AmbientLevel   uint8  `json:"ambient_level"`
	Dragging       bool   `json:"dragging"`
}

// SetAnc 切换降噪/环境声模式
func (h *Handler) SetAnc(c *gin.Context) {
	var req setAncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, ok := mdr.AncModeFromName(req.Mode)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be one of off/anc/ambient"})
		return
	}
	// 编码器对越界等级会 panic，必须在入口挡掉
	if req.AmbientLevel > 20 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ambient_level must be in [0,20]"})
		return
	}
	if !h.submit(c, mdr.AncSet{
		Dragging:       req.Dragging,
		Mode:           mode,
		VoiceFiltering: req.VoiceFiltering,
		AmbientLevel:   req.AmbientLevel,
	}, mdr.GetAncStatus{}) {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

type setPresetRequest struct {
	Preset string `json:"preset" binding:"required"`
}

// SetEqualizerPreset 切换均衡器预设
func (h *Handler) SetEqualizerPreset(c *gin.Context) {
	var req setPresetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	preset, ok := mdr.EqualizerPresetFromName(req.Preset)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown equalizer preset"})
		return
	}
	if !h.submit(c, mdr.ChangeEqualizerPreset{Preset: preset}, mdr.GetEqualizerSettings{}) {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

// Bands 用指针承接，全零的平坦曲线才能过 required 校验
type setBandsRequest struct {
	Preset string   `json:"preset"`
	Bands  *[6]int8 `json:"bands" binding:"required"`
}

// SetEqualizerBands 写入六段均衡器电平
func (h *Handler) SetEqualizerBands(c *gin.Context) {
	var req setBandsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bands := *req.Bands
	for _, lvl := range bands {
		if lvl < -10 || lvl > 10 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "band levels must be in [-10,10]"})
			return
		}
	}
	preset := mdr.PresetManual
	if req.Preset != "" {
		p, ok := mdr.EqualizerPresetFromName(req.Preset)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown equalizer preset"})
			return
		}
		preset = p
	}
	cmd := mdr.ChangeEqualizerSetting{
		Preset:    preset,
		Bass:      bands[0],
		Band400:   bands[1],
		Band1000:  bands[2],
		Band2500:  bands[3],
		Band6300:  bands[4],
		Band16000: bands[5],
	}
	if !h.submit(c, cmd, mdr.GetEqualizerSettings{}) {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}

type measureRequest struct {
	On *bool `json:"on" binding:"required"`
}

// SetSoundPressureMeasure 开关声压测量
func (h *Handler) SetSoundPressureMeasure(c *gin.Context) {
	var req measureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.submit(c, mdr.SoundPressureMeasure{On: *req.On}) {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"queued": true})
}
