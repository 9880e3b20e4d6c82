package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 协议会话业务指标
type AppMetrics struct {
	BytesReceived    prometheus.Counter
	FramesTotal      *prometheus.CounterVec // labels: result=ok|checksum_error|unknown_type
	PayloadTotal     *prometheus.CounterVec // labels: type, result=ok|error
	CommandsSent     *prometheus.CounterVec // labels: type
	AcksReceived     prometheus.Counter
	HandshakeRetries prometheus.Counter
	ConnectedGauge   prometheus.Gauge // 1=会话事件循环运行中
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mdr_bytes_received_total",
			Help: "Total bytes received from the headset transport.",
		}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mdr_frames_total",
			Help: "Completed frames by validation result.",
		}, []string{"result"}),
		PayloadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mdr_payload_decode_total",
			Help: "Payload decode attempts by payload type and result.",
		}, []string{"type", "result"}),
		CommandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mdr_commands_sent_total",
			Help: "Outbound commands by command type.",
		}, []string{"type"}),
		AcksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mdr_acks_received_total",
			Help: "Ack frames received from the headset.",
		}),
		HandshakeRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mdr_handshake_retries_total",
			Help: "Init handshake retransmissions.",
		}),
		ConnectedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mdr_session_connected",
			Help: "Whether the protocol session event loop is running.",
		}),
	}
	reg.MustRegister(m.BytesReceived, m.FramesTotal, m.PayloadTotal,
		m.CommandsSent, m.AcksReceived, m.HandshakeRetries, m.ConnectedGauge)
	return m
}
