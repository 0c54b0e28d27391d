package rocketmq

import (
	"testing"

	"bg-server/internal/config"
)

// MQ 连接参数取自配置 rocketmq 段并做规整
func TestCurrentSettingsFromConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.RocketMQ.Endpoint = "http://mq1.internal:8081,mq2.internal:8081"
	cfg.RocketMQ.ConsumerGroup = " bg-server-consumer "
	cfg.RocketMQ.ProducerTopics = "transfer.payout, transfer.rake ,"
	cfg.RocketMQ.AccessKey = "ak"
	cfg.RocketMQ.SecretKey = "sk"
	config.Set(cfg)
	defer config.Set(nil)

	s := CurrentSettings()
	if s.Endpoint != "mq1.internal:8081" {
		t.Errorf("Endpoint = %q, want mq1.internal:8081", s.Endpoint)
	}
	if s.ConsumerGroup != "bg-server-consumer" {
		t.Errorf("ConsumerGroup = %q", s.ConsumerGroup)
	}
	if len(s.ProducerTopics) != 2 || s.ProducerTopics[0] != "transfer_payout" || s.ProducerTopics[1] != "transfer_rake" {
		t.Errorf("ProducerTopics = %v", s.ProducerTopics)
	}
	// 消费 topic 未配置时复用生产 topic
	if len(s.ConsumeTopics) != 2 || s.ConsumeTopics[0] != "transfer_payout" {
		t.Errorf("ConsumeTopics = %v", s.ConsumeTopics)
	}
	if !s.Ready() {
		t.Error("settings with endpoint and credentials must be ready")
	}
}

func TestCurrentSettingsWithoutConfig(t *testing.T) {
	config.Set(nil)
	if s := CurrentSettings(); s.Ready() {
		t.Error("nil config must not yield ready settings")
	}
}

// 凭证不全时禁用，避免 SDK 签名阶段崩溃
func TestSettingsReady(t *testing.T) {
	cases := []struct {
		s    Settings
		want bool
	}{
		{Settings{Endpoint: "mq:8081", AccessKey: "ak", SecretKey: "sk"}, true},
		{Settings{Endpoint: "mq:8081", AccessKey: "ak"}, false},
		{Settings{Endpoint: "mq:8081"}, false},
		{Settings{AccessKey: "ak", SecretKey: "sk"}, false},
	}
	for _, c := range cases {
		if got := c.s.Ready(); got != c.want {
			t.Errorf("Ready(%+v) = %v, want %v", c.s, got, c.want)
		}
	}
}
