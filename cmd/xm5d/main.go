package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lateware/xm5ctl/internal/api"
	"github.com/lateware/xm5ctl/internal/api/middleware"
	cfgpkg "github.com/lateware/xm5ctl/internal/config"
	"github.com/lateware/xm5ctl/internal/httpserver"
	"github.com/lateware/xm5ctl/internal/logging"
	"github.com/lateware/xm5ctl/internal/metrics"
	"github.com/lateware/xm5ctl/internal/protocol/mdr"
	"github.com/lateware/xm5ctl/internal/session"
	"github.com/lateware/xm5ctl/internal/transport"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "config file path (yaml)")
	flag.Parse()

	// 1) 加载配置
	cfg, err := cfgpkg.Load(configPath)
	if err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	log := zap.L()
	log.Info("xm5d starting",
		zap.String("instance", instanceID()),
		zap.String("transport", cfg.Transport.Kind),
		zap.String("addr", cfg.Transport.Addr))

	// 3) 指标注册与处理器
	reg := metrics.NewRegistry()
	appMetrics := metrics.NewAppMetrics(reg)
	var metricsHandler = metrics.Handler(reg)
	if !cfg.Metrics.Enable {
		metricsHandler = nil
	}

	// 4) 状态缓存与会话
	state := session.NewState()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := newSessionRunner(ctx, cfg, state, appMetrics, log)

	// 5) HTTP 服务：健康检查 + 指标 + 控制 API
	httpSrv := httpserver.New(cfg.HTTP, cfg.Metrics.Path, metricsHandler, state.Connected)
	rl := middleware.NewRateLimiter(cfg.HTTP.CommandRatePerSec, cfg.HTTP.CommandBurst)
	api.RegisterRoutes(httpSrv.Engine(), state, sessions, rl, log)

	go func() {
		log.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpSrv.Start(); err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}()
	go sessions.run()

	// 信号处理，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

// instanceID 生成实例标识，环境变量 XM5_INSTANCE_ID 可覆盖
func instanceID() string {
	if id := os.Getenv("XM5_INSTANCE_ID"); id != "" {
		return id
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("xm5d-%s-%s", hostname, uuid.New().String()[:8])
}

// sessionRunner 维护到耳机的会话：断线重连、载荷消费、开机自检查询。
// api.CommandSink 由它转发到当前活跃的驱动。
type sessionRunner struct {
	ctx   context.Context
	cfg   *cfgpkg.Config
	state *session.State
	m     *metrics.AppMetrics
	log   *zap.Logger

	mu     sync.Mutex
	driver *session.Driver
}

func newSessionRunner(ctx context.Context, cfg *cfgpkg.Config, state *session.State,
	m *metrics.AppMetrics, log *zap.Logger) *sessionRunner {
	return &sessionRunner{
		ctx:   ctx,
		cfg:   cfg,
		state: state,
		m:     m,
		log:   log,
	}
}

// Submit 把 API 侧命令转发给当前活跃驱动；无活跃会话时立即报错
func (r *sessionRunner) Submit(ctx context.Context, cmd mdr.Command) error {
	r.mu.Lock()
	d := r.driver
	r.mu.Unlock()
	if d == nil {
		return errors.New("no active headset session")
	}
	return d.Submit(ctx, cmd)
}

func (r *sessionRunner) setDriver(d *session.Driver) {
	r.mu.Lock()
	r.driver = d
	r.mu.Unlock()
}

// run 无限重连循环，指数退避封顶 30s
func (r *sessionRunner) run() {
	backoff := time.Second
	for {
		if r.ctx.Err() != nil {
			return
		}
		if err := r.runOnce(); err != nil {
			r.log.Warn("session ended", zap.Error(err), zap.Duration("retry_in", backoff))
		} else {
			return // ctx 取消，正常退出
		}

		select {
		case <-r.ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func (r *sessionRunner) runOnce() error {
	stream, err := transport.Dial(r.cfg.Transport, r.log)
	if err != nil {
		return fmt.Errorf("dial transport: %w", err)
	}
	defer stream.Close()

	driver := session.NewDriver(stream, r.cfg.Session, r.log, r.m)
	r.setDriver(driver)

	// 载荷消费：上报一律刷进状态缓存。首个载荷到达即视为会话就绪。
	sessionDone := make(chan struct{})
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-sessionDone:
				return
			case p := <-driver.Payloads():
				r.state.SetConnected(true)
				r.state.Apply(p)
			}
		}
	}()

	// 开机自检：电量、降噪、均衡器、编码各查一轮
	r.bootstrap(driver)

	err = driver.Run(r.ctx)

	// 撤下活跃驱动，API 侧立刻感知会话失效
	r.setDriver(nil)
	r.state.SetConnected(false)
	close(sessionDone)
	<-consumerDone
	return err
}

// bootstrap 入队初始查询。命令在握手完成前排在队列里，完成后逐条上线。
func (r *sessionRunner) bootstrap(d *session.Driver) {
	queries := []mdr.Command{
		mdr.GetBatteryStatus{Type: mdr.BatteryHeadphones},
		mdr.GetBatteryStatus{Type: mdr.BatteryCase},
		mdr.GetAncStatus{},
		mdr.GetEqualizerSettings{},
		mdr.GetCodec{},
	}
	for _, cmd := range queries {
		if err := d.Submit(r.ctx, cmd); err != nil {
			r.log.Warn("bootstrap query dropped", zap.Error(err))
			return
		}
	}
}
