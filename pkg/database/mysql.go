// Package database 管理 MySQL 与 Redis 的连接。
package database

import (
	"time"

	"doc-theme-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 数据库连接并配置连接池。
func InitMySQL(dsn string) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("连接 MySQL 失败", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("获取底层 sql.DB 失败", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("MySQL 连接成功")
}
