package config

import "testing"

// 配置内容按 dataId 扩展名解析，未知扩展名先试 YAML 再试 JSON
func TestParseConfigPayload(t *testing.T) {
	jsonBody := `{"server":{"port":9090},"rocketmq":{"endpoint":"mq:8081"}}`

	cfg, err := parseConfigPayload("bg-server.json", jsonBody)
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.RocketMQ.Endpoint != "mq:8081" {
		t.Errorf("RocketMQ.Endpoint = %q", cfg.RocketMQ.Endpoint)
	}

	cfg, err = parseConfigPayload("bg-server.yaml", "server:\n  port: 8081\n")
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("Server.Port = %d, want 8081", cfg.Server.Port)
	}

	// 无扩展名时回退解析
	cfg, err = parseConfigPayload("bg-server", jsonBody)
	if err != nil {
		t.Fatalf("fallback parse: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("fallback Server.Port = %d, want 9090", cfg.Server.Port)
	}

	if _, err := parseConfigPayload("bg-server.json", "{not-json"); err == nil {
		t.Error("malformed json must fail")
	}
}

func TestNacosParamsFromEnv(t *testing.T) {
	t.Setenv("NACOS_SERVER_ADDR", "")
	p, err := nacosParamsFromEnv()
	if err != nil || p != nil {
		t.Fatalf("unset server addr: p=%v err=%v, want nil,nil", p, err)
	}

	t.Setenv("NACOS_SERVER_ADDR", "10.0.0.5:8848, 10.0.0.6:8848")
	t.Setenv("NACOS_DATA_ID", "bg-server.yaml")
	p, err = nacosParamsFromEnv()
	if err != nil {
		t.Fatalf("nacosParamsFromEnv: %v", err)
	}
	if len(p.servers) != 2 || p.servers[0].IpAddr != "10.0.0.5" || p.servers[0].Port != 8848 {
		t.Errorf("servers = %+v", p.servers)
	}
	if p.group != "DEFAULT_GROUP" || p.client.NamespaceId != "public" {
		t.Errorf("group = %q, namespace = %q", p.group, p.client.NamespaceId)
	}
	if p.dataID != "bg-server.yaml" {
		t.Errorf("dataID = %q", p.dataID)
	}

	t.Setenv("NACOS_DATA_ID", "")
	if _, err := nacosParamsFromEnv(); err == nil {
		t.Error("missing data id must fail")
	}
}
