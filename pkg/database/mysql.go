package database

import (
	"time"

	"fin-advisor-go/internal/model"
	"fin-advisor-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 数据库连接并迁移表结构
func InitMySQL(dsn string) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 迁移本服务持有的表；产品目录表同样在此建表，数据由 catalog 加载器写入
	if err := DB.AutoMigrate(
		&model.Persona{},
		&model.Product{},
		&model.FeedbackRecord{},
		&model.RecommendationSnapshot{},
	); err != nil {
		log.Fatal("failed to migrate database schema", err)
	}

	log.Info("MySQL 数据库连接成功")
}
