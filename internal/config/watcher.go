package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/config_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"gopkg.in/yaml.v3"
)

// nacosParams Nacos 连接参数，来自环境变量
// 加载与监听共用同一套参数解析
type nacosParams struct {
	servers []constant.ServerConfig
	client  constant.ClientConfig
	dataID  string
	group   string
}

// nacosParamsFromEnv 解析 NACOS_* 环境变量
// NACOS_SERVER_ADDR 未设置时返回 (nil, nil)，表示未启用配置中心
func nacosParamsFromEnv() (*nacosParams, error) {
	serverAddr := strings.TrimSpace(os.Getenv("NACOS_SERVER_ADDR"))
	if serverAddr == "" {
		return nil, nil
	}

	dataID := strings.TrimSpace(os.Getenv("NACOS_DATA_ID"))
	if dataID == "" {
		return nil, errors.New("NACOS_DATA_ID not set")
	}

	namespace := getEnvOrDefault("NACOS_NAMESPACE", "public")
	group := getEnvOrDefault("NACOS_GROUP", "DEFAULT_GROUP")

	timeoutMS := 5000
	if v := strings.TrimSpace(os.Getenv("NACOS_TIMEOUT_MS")); v != "" {
		if t, err := strconv.Atoi(v); err == nil && t > 0 {
			timeoutMS = t
		}
	}

	var servers []constant.ServerConfig
	for _, addr := range strings.Split(serverAddr, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		parts := strings.Split(addr, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid NACOS_SERVER_ADDR format: %s (expected host:port)", addr)
		}
		port, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid port in NACOS_SERVER_ADDR: %s", parts[1])
		}
		servers = append(servers, constant.ServerConfig{IpAddr: parts[0], Port: port})
	}
	if len(servers) == 0 {
		return nil, errors.New("no valid server address in NACOS_SERVER_ADDR")
	}

	cc := constant.ClientConfig{
		NamespaceId:         namespace,
		TimeoutMs:           uint64(timeoutMS),
		NotLoadCacheAtStart: true,
		LogDir:              "/tmp/nacos/log",
		CacheDir:            "/tmp/nacos/cache",
		LogLevel:            "warn",
	}
	username := strings.TrimSpace(os.Getenv("NACOS_USERNAME"))
	password := strings.TrimSpace(os.Getenv("NACOS_PASSWORD"))
	if username != "" && password != "" {
		cc.Username = username
		cc.Password = password
	}

	return &nacosParams{servers: servers, client: cc, dataID: dataID, group: group}, nil
}

func newNacosClient(p *nacosParams) (config_client.IConfigClient, error) {
	return clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig:  &p.client,
		ServerConfigs: p.servers,
	})
}

// parseConfigPayload 按 dataID 扩展名解析配置内容
// 无法判断格式时先试 YAML 再试 JSON
func parseConfigPayload(dataID, data string) (*Config, error) {
	var cfg Config
	switch filepath.Ext(dataID) {
	case ".json":
		if err := json.Unmarshal([]byte(data), &cfg); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(data), &cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	default:
		if yerr := yaml.Unmarshal([]byte(data), &cfg); yerr != nil {
			if jerr := json.Unmarshal([]byte(data), &cfg); jerr != nil {
				return nil, fmt.Errorf("parse config (tried yaml and json): yaml_err=%v, json_err=%v", yerr, jerr)
			}
		}
	}
	return &cfg, nil
}

// StartWatch 监听配置中心变更，变更时回调 onChange(old, new)
// 仅基础设施配置走热更新；rake/注金区间等业务配置在 MySQL 中由管理接口修改
// Nacos 未配置时跳过监听（本地文件配置不热更）
func StartWatch(ctx context.Context, onChange func(oldCfg, newCfg *Config)) error {
	p, err := nacosParamsFromEnv()
	if err != nil {
		return err
	}
	if p == nil {
		fmt.Println("[Config] Nacos 未配置，跳过配置监听")
		return nil
	}

	client, err := newNacosClient(p)
	if err != nil {
		return fmt.Errorf("create nacos client for watch: %w", err)
	}
	nacosConfigClient = client

	err = client.ListenConfig(vo.ConfigParam{
		DataId: p.dataID,
		Group:  p.group,
		OnChange: func(namespace, group, dataID, data string) {
			fmt.Printf("[Config] Nacos 配置变更: namespace=%s, group=%s, dataId=%s\n",
				namespace, group, dataID)

			newCfg, err := parseConfigPayload(dataID, data)
			if err != nil {
				// 解析失败时保留旧配置，避免把坏配置推给运行中的服务
				fmt.Printf("[Config] 解析 Nacos 配置失败，保留当前配置: error=%v\n", err)
				return
			}

			oldCfg := GetCurrent()
			SetCurrent(newCfg)
			if onChange != nil {
				onChange(oldCfg, newCfg)
			}
			fmt.Println("[Config] Nacos 配置已更新")
		},
	})
	if err != nil {
		return fmt.Errorf("listen nacos config: %w", err)
	}

	fmt.Printf("[Config] Nacos 配置监听已启动: dataId=%s, group=%s\n", p.dataID, p.group)
	return nil
}
