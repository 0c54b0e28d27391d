package rocketmq

import (
	"context"
	"strings"
	"sync"
	"time"

	rmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/apache/rocketmq-clients/golang/v5/credentials"

	"bg-server/common/logger"
	"bg-server/internal/config"

	"go.uber.org/zap"
)

// Publisher 转账指令发布端的最小接口
type Publisher interface {
	Publish(topic string, body []byte) error
}

// Settings 规整后的 MQ 连接参数，取自配置的 rocketmq 段
type Settings struct {
	Endpoint       string
	ConsumerGroup  string
	AccessKey      string
	SecretKey      string
	ProducerTopics []string
	ConsumeTopics  []string
}

// Ready 判断连接参数是否齐备；缺 endpoint 或凭证时 MQ 整体禁用，
// 避免底层 SDK 在签名阶段空指针崩溃
func (s Settings) Ready() bool {
	return s.Endpoint != "" && s.AccessKey != "" && s.SecretKey != ""
}

// CurrentSettings 从全局配置读取并规整 MQ 参数
// 消费 topic 未配置时复用生产 topic 列表
func CurrentSettings() Settings {
	cfg := config.Get()
	if cfg == nil {
		return Settings{}
	}
	mq := cfg.RocketMQ
	s := Settings{
		Endpoint:       sanitizeEndpoint(mq.Endpoint),
		ConsumerGroup:  strings.TrimSpace(mq.ConsumerGroup),
		AccessKey:      strings.TrimSpace(mq.AccessKey),
		SecretKey:      strings.TrimSpace(mq.SecretKey),
		ProducerTopics: splitTopics(mq.ProducerTopics),
	}
	s.ConsumeTopics = splitTopics(mq.ConsumeTopics)
	if len(s.ConsumeTopics) == 0 {
		s.ConsumeTopics = s.ProducerTopics
	}
	return s
}

// sanitizeEndpoint 去掉 scheme，多地址时取第一个
func sanitizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	endpoint = strings.TrimPrefix(strings.TrimPrefix(endpoint, "http://"), "https://")
	if idx := strings.IndexAny(endpoint, ",;"); idx > 0 {
		endpoint = strings.TrimSpace(endpoint[:idx])
	}
	return endpoint
}

// splitTopics 拆分逗号分隔的 topic 列表；RocketMQ topic 不允许 '.'，统一替换为 '_'
func splitTopics(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(strings.ReplaceAll(t, ".", "_"))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

var (
	initOnce sync.Once
	enabled  bool
	prod     rmq.Producer
	pub      Publisher
)

// Enabled 报告生产端是否已成功启动
func Enabled() bool { initOnce.Do(initProducer); return enabled }

// PublisherInstance 返回当前发布端；MQ 禁用时为丢弃增日志的桩实现
func PublisherInstance() Publisher {
	initOnce.Do(initProducer)
	if pub == nil {
		pub = &stubPublisher{}
	}
	return pub
}

type rmqPublisher struct{ p rmq.Producer }

func (r *rmqPublisher) Publish(topic string, body []byte) error {
	if r.p == nil {
		return nil
	}
	msg := &rmq.Message{Topic: topic, Body: body}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := r.p.Send(ctx, msg)
	return err
}

// MQ 禁用时的桩：outbox 行保持 pending，恢复配置后可重投
type stubPublisher struct{}

func (s *stubPublisher) Publish(topic string, body []byte) error {
	logger.Warn("[mq disabled] drop message", zap.String("topic", topic))
	return nil
}

func initProducer() {
	// SDK 默认写文件日志到 /logs，重置为控制台输出
	rmq.ResetLogger()

	s := CurrentSettings()
	if s.Endpoint == "" {
		enabled = false
		pub = &stubPublisher{}
		return
	}
	if !s.Ready() {
		enabled = false
		pub = &stubPublisher{}
		logger.Warn("rocketmq disabled: missing access/secret key while endpoint present")
		return
	}

	cfg := &rmq.Config{Endpoint: s.Endpoint}
	cfg.Credentials = &credentials.SessionCredentials{AccessKey: s.AccessKey, AccessSecret: s.SecretKey}
	logger.Info("rocketmq producer config",
		zap.String("endpoint", s.Endpoint), zap.Strings("topics", s.ProducerTopics))

	var opts []rmq.ProducerOption
	if len(s.ProducerTopics) > 0 {
		opts = append(opts, rmq.WithTopics(s.ProducerTopics...))
	}

	p, err := rmq.NewProducer(cfg, opts...)
	if err != nil {
		logger.Error("rocketmq: producer init failed", zap.Error(err))
		enabled = false
		pub = &stubPublisher{}
		return
	}

	// 异步启动，避免 MQ 不可达时阻塞主流程
	startDone := make(chan error, 1)
	go func() {
		startDone <- p.Start()
	}()

	select {
	case err := <-startDone:
		if err != nil {
			logger.Warn("rocketmq: producer start failed (will use stub publisher)", zap.Error(err))
			enabled = false
			pub = &stubPublisher{}
			return
		}
		prod = p
		pub = &rmqPublisher{p: p}
		enabled = true
		logger.Info("rocketmq enabled", zap.String("endpoint", s.Endpoint))
	case <-time.After(2 * time.Second):
		logger.Warn("rocketmq: producer start timeout (will use stub publisher, messages will be dropped)")
		enabled = false
		pub = &stubPublisher{}
	}
}
