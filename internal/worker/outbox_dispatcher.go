package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	rmq "github.com/apache/rocketmq-clients/golang/v5"
	"github.com/apache/rocketmq-clients/golang/v5/credentials"

	"bg-server/common/logger"
	"bg-server/internal/config"
	infmysql "bg-server/internal/infra/mysql"
	infmq "bg-server/internal/infra/rocketmq"
	"bg-server/internal/model"

	"go.uber.org/zap"
)

// StartOutboxDispatcher 启动 Outbox 分发器，支持通过 ctx 优雅退出
// 仅当 MQ 已启用时运行。
func StartOutboxDispatcher(ctx context.Context, wg *sync.WaitGroup) {
	if !infmq.Enabled() {
		return
	}
	wg.Add(1)
	pub := infmq.PublisherInstance()
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer wg.Done()

		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// 运维开关：暂停投递时保留 outbox 积压，恢复后继续发送
				if config.GetFeatureFlag("outbox_pause") {
					continue
				}
				c, cancel := context.WithTimeout(ctx, 2*time.Second)
				rows, err := model.ListOutboxPending(c, infmysql.SQLX(), 100)
				cancel()
				if err != nil {
					logger.Warn("outbox: list pending failed", zap.Error(err))
					continue
				}
				for _, r := range rows {
					// publish
					if err := pub.Publish(r.Topic, []byte(r.Payload)); err != nil {
						_ = model.MarkOutboxFailed(ctx, infmysql.SQLX(), r.ID, truncateErr(err))
						continue
					}
					if err := model.MarkOutboxSent(ctx, infmysql.SQLX(), r.ID); err != nil {
						logger.Warn("outbox: mark sent failed", zap.Int64("id", r.ID), zap.Error(err))
					}
				}
			}
		}
	}()
}

func truncateErr(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	if len(b) > 240 {
		return string(b[:240])
	}
	return string(b)
}

// StartInboxConsumer 启动 RocketMQ v5 SimpleConsumer，将银行转账回执可靠落库至 inbox 表（去重）
// 连接参数取自配置 rocketmq 段；endpoint 或凭证缺失时不启动
func StartInboxConsumer(ctx context.Context, wg *sync.WaitGroup) {
	// SDK 默认写文件日志到 /logs，重置为控制台输出
	rmq.ResetLogger()

	s := infmq.CurrentSettings()
	if s.Endpoint == "" {
		return
	}
	if !s.Ready() {
		logger.Warn("[mq] consumer not started: missing access/secret key")
		return
	}
	if s.ConsumerGroup == "" {
		logger.Warn("[mq] consumer not started: empty consumer_group")
		return
	}
	if len(s.ConsumeTopics) == 0 {
		logger.Warn("[mq] consumer not started: empty topics")
		return
	}
	logger.Info("[mq] consumer endpoint", zap.String("endpoint", s.Endpoint))

	cfg := &rmq.Config{Endpoint: s.Endpoint, ConsumerGroup: s.ConsumerGroup}
	cfg.Credentials = &credentials.SessionCredentials{AccessKey: s.AccessKey, AccessSecret: s.SecretKey}

	// 订阅表达式：多个 topic，默认 SUB_ALL
	subs := map[string]*rmq.FilterExpression{}
	for _, t := range s.ConsumeTopics {
		subs[t] = rmq.SUB_ALL
	}

	awaitDuration := 5 * time.Second
	maxMessageNum := int32(16)
	invisibleDuration := 20 * time.Second

	// 尝试启动 SimpleConsumer（带重试，避免容器刚启动未就绪导致一次性失败）
	var sc rmq.SimpleConsumer
	var err error
	for i := 0; i < 6; i++ { // 最长约 6*3s = 18s
		sc, err = rmq.NewSimpleConsumer(cfg,
			rmq.WithAwaitDuration(awaitDuration),
			rmq.WithSubscriptionExpressions(subs),
		)
		if err == nil {
			if e := sc.Start(); e == nil {
				break
			} else {
				err = e
			}
		}
		logger.Warn("[mq] simple consumer start retry", zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(3 * time.Second)
	}
	if err != nil {
		logger.Error("[mq] start simple consumer failed", zap.Error(err))
		return
	}
	logger.Info("[mq] inbox consumer started",
		zap.String("group", s.ConsumerGroup), zap.Strings("topics", s.ConsumeTopics))

	wg.Add(1)

	go func() {
		defer wg.Done()

		defer sc.GracefulStop()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				mvs, err := sc.Receive(ctx, maxMessageNum, invisibleDuration)
				if err != nil {
					// 上下文取消则直接退出
					if ctx.Err() != nil {
						return
					}
					logger.Warn("[mq] receive error", zap.Error(err))
					continue
				}
				for _, mv := range mvs {
					id := mv.GetMessageId()
					topic := mv.GetTopic()
					body := mv.GetBody()
					if err := model.UpsertInbox(ctx, infmysql.SQLX(), id, topic, string(body), time.Now().UnixMilli()); err != nil {
						logger.Warn("[mq] upsert inbox failed", zap.String("id", id), zap.String("topic", topic), zap.Error(err))
						continue
					}
					var payload map[string]any
					if err := json.Unmarshal(body, &payload); err == nil {
						if evt, ok := payload["event"].(string); ok && evt == "transfer_ack" {
							transferNo, _ := payload["transfer_no"].(string)
							status, _ := payload["status"].(string)
							// 回执携带发起侧 trace_id 时透传到日志，打通结算与入账的链路
							ackCtx := ctx
							if tid, _ := payload["trace_id"].(string); tid != "" {
								ackCtx = logger.WithTraceID(ctx, tid)
							}
							logger.InfoCtx(ackCtx, "[mq] consumed transfer ack", zap.String("transfer_no", transferNo), zap.String("status", status))
						}
					}
					if err := sc.Ack(ctx, mv); err != nil {
						logger.Warn("[mq] ack failed", zap.String("id", id), zap.Error(err))
					}
				}
			}
		}
	}()
}
