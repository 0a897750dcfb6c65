// Package es 提供了与 Elasticsearch 交互的客户端功能。
// 本服务只把推荐与反馈产生的审计事件写入一个专用索引，供事后分析。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"fin-advisor-go/internal/config"
	"fin-advisor-go/pkg/log"
	"fin-advisor-go/pkg/tasks"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

// indexName 保存配置的审计索引名，Init 时设置。
var indexName string

// InitES 初始化 Elasticsearch 客户端并确保审计索引存在。
func InitES(esCfg config.ElasticsearchConfig) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	indexName = esCfg.IndexName
	if indexName == "" {
		indexName = "advisory_audit"
	}
	return createIndexIfNotExists(indexName)
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func createIndexIfNotExists(name string) error {
	res, err := ESClient.Indices.Exists([]string{name})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", name)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", name, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	mapping := `{
		"mappings": {
			"properties": {
				"type":       { "type": "keyword" },
				"user_id":    { "type": "long" },
				"product_id": { "type": "long" },
				"session_id": { "type": "keyword" },
				"score":      { "type": "float" },
				"payload":    { "type": "text" },
				"timestamp":  { "type": "date" }
			}
		}
	}`

	res, err = ESClient.Indices.Create(
		name,
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)

	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", name, err)
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", name, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", name)
	return nil
}

// AuditIndexer 实现 kafka.EventIndexer，把审计事件写入 Elasticsearch。
type AuditIndexer struct{}

// IndexAuditEvent 将单个审计事件索引到 Elasticsearch。
func (AuditIndexer) IndexAuditEvent(ctx context.Context, event tasks.AuditEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index: indexName,
		Body:  bytes.NewReader(eventBytes),
	}

	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引审计事件到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index audit event")
	}

	return nil
}
