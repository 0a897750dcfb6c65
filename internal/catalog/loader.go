// Package catalog 负责在启动时装载产品目录。
// 目录 CSV 由外部目录管理方上传到对象存储，本地文件作为离线兜底。
package catalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"fin-advisor-go/internal/config"
	"fin-advisor-go/internal/model"
	"fin-advisor-go/internal/repository"
	"fin-advisor-go/pkg/log"
	"fin-advisor-go/pkg/storage"
)

// 目录 CSV 的列布局。
var expectedHeader = []string{"code", "name", "category", "tags", "risk_tier", "rate", "min_balance", "annual_fee", "description"}

// Loader 负责获取、校验并入库产品目录。
type Loader struct {
	productRepo repository.ProductRepository
	minioCfg    config.MinIOConfig
	localPath   string
}

// NewLoader 创建一个新的 Loader 实例。
func NewLoader(productRepo repository.ProductRepository, minioCfg config.MinIOConfig, localPath string) *Loader {
	return &Loader{productRepo: productRepo, minioCfg: minioCfg, localPath: localPath}
}

// Load 装载产品目录。优先从对象存储拉取，失败时退回本地文件。
// 目录内容非法时返回错误，调用方应当拒绝启动。
func (l *Loader) Load(ctx context.Context) error {
	reader, source, err := l.open(ctx)
	if err != nil {
		return err
	}
	defer reader.Close()

	products, err := Parse(reader)
	if err != nil {
		return fmt.Errorf("invalid catalog from %s: %w", source, err)
	}

	created, updated := 0, 0
	for i := range products {
		existing, err := l.productRepo.FindByCode(products[i].Code)
		if err != nil {
			return fmt.Errorf("failed to look up product %s: %w", products[i].Code, err)
		}
		if existing == nil {
			if err := l.productRepo.Create(&products[i]); err != nil {
				return fmt.Errorf("failed to create product %s: %w", products[i].Code, err)
			}
			created++
			continue
		}
		products[i].ID = existing.ID
		products[i].CreatedAt = existing.CreatedAt
		if err := l.productRepo.Update(&products[i]); err != nil {
			return fmt.Errorf("failed to update product %s: %w", products[i].Code, err)
		}
		updated++
	}

	log.Infof("产品目录装载完成（来源: %s）：新增 %d，更新 %d", source, created, updated)
	return nil
}

func (l *Loader) open(ctx context.Context) (io.ReadCloser, string, error) {
	if storage.MinioClient != nil && l.minioCfg.CatalogObject != "" {
		obj, err := storage.FetchObject(ctx, l.minioCfg.BucketName, l.minioCfg.CatalogObject)
		if err == nil {
			return obj, "minio:" + l.minioCfg.CatalogObject, nil
		}
		log.Warnf("从对象存储拉取目录失败，退回本地文件: %v", err)
	}

	file, err := os.Open(l.localPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open local catalog %s: %w", l.localPath, err)
	}
	return file, l.localPath, nil
}

// Parse 解析并校验目录 CSV。任何一行非法都会使整个目录被拒绝。
func Parse(r io.Reader) ([]model.Product, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	var products []model.Product
	seen := make(map[string]bool)
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		product, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if seen[product.Code] {
			return nil, fmt.Errorf("line %d: duplicate product code %q", line, product.Code)
		}
		seen[product.Code] = true
		products = append(products, product)
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	return products, nil
}

func checkHeader(header []string) error {
	if len(header) != len(expectedHeader) {
		return fmt.Errorf("expected %d columns, got %d", len(expectedHeader), len(header))
	}
	for i, col := range header {
		if strings.TrimSpace(strings.ToLower(col)) != expectedHeader[i] {
			return fmt.Errorf("column %d: expected %q, got %q", i+1, expectedHeader[i], col)
		}
	}
	return nil
}

func parseRecord(record []string) (model.Product, error) {
	var product model.Product
	if len(record) != len(expectedHeader) {
		return product, fmt.Errorf("expected %d fields, got %d", len(expectedHeader), len(record))
	}

	product.Code = strings.TrimSpace(record[0])
	product.Name = strings.TrimSpace(record[1])
	product.Category = strings.ToLower(strings.TrimSpace(record[2]))
	product.Tags = strings.ToLower(strings.TrimSpace(record[3]))
	product.Description = strings.TrimSpace(record[8])

	if product.Code == "" {
		return product, fmt.Errorf("missing product code")
	}
	if product.Name == "" {
		return product, fmt.Errorf("missing product name")
	}
	if product.Category == "" {
		return product, fmt.Errorf("missing category")
	}

	tier, err := strconv.Atoi(strings.TrimSpace(record[4]))
	if err != nil {
		return product, fmt.Errorf("invalid risk_tier %q", record[4])
	}
	if tier < 1 || tier > 5 {
		return product, fmt.Errorf("risk_tier %d out of range 1-5", tier)
	}
	product.RiskTier = tier

	product.Rate, err = parseFloat(record[5], "rate")
	if err != nil {
		return product, err
	}
	product.MinBalance, err = parseFloat(record[6], "min_balance")
	if err != nil {
		return product, err
	}
	product.AnnualFee, err = parseFloat(record[7], "annual_fee")
	if err != nil {
		return product, err
	}
	return product, nil
}

func parseFloat(raw, name string) (float64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative", name)
	}
	return v, nil
}
