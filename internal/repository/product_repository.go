package repository

import (
	"errors"

	"fin-advisor-go/internal/model"

	"gorm.io/gorm"
)

// ProductRepository 接口定义了产品目录的持久化操作。
type ProductRepository interface {
	FindAll() ([]model.Product, error)
	FindByID(productID uint) (*model.Product, error)
	FindByCode(code string) (*model.Product, error)
	Create(product *model.Product) error
	Update(product *model.Product) error
}

// productRepository 是 ProductRepository 接口的 GORM 实现。
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建一个新的 ProductRepository 实例。
func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

// FindAll 按入库顺序检索所有产品，排序打分时的并列顺序依赖该顺序。
func (r *productRepository) FindAll() ([]model.Product, error) {
	var products []model.Product
	err := r.db.Order("id asc").Find(&products).Error
	return products, err
}

// FindByID 根据产品 ID 查找产品，不存在时返回 (nil, nil)。
func (r *productRepository) FindByID(productID uint) (*model.Product, error) {
	var product model.Product
	err := r.db.First(&product, productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByCode 根据产品编码查找产品，不存在时返回 (nil, nil)。
func (r *productRepository) FindByCode(code string) (*model.Product, error) {
	var product model.Product
	err := r.db.Where("code = ?", code).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// Create 在数据库中创建一个新的产品记录。
func (r *productRepository) Create(product *model.Product) error {
	return r.db.Create(product).Error
}

// Update 更新数据库中一个已存在的产品记录。
func (r *productRepository) Update(product *model.Product) error {
	return r.db.Save(product).Error
}
