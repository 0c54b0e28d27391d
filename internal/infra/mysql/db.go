package mysql

import (
	"database/sql"
	"sync"

	"github.com/jmoiron/sqlx"
)

// 全局 *sql.DB 句柄（由 UseDB 注入），sqlx 包装懒初始化且只做一次
var (
	db     *sql.DB
	once   sync.Once
	sqlxDB *sqlx.DB
)

// UseDB 注入外部初始化好的 *sql.DB（common.InitDB 返回的句柄）
func UseDB(d *sql.DB) {
	if d == nil {
		return
	}
	db = d
}

// DB 返回全局 *sql.DB 句柄
func DB() *sql.DB { return db }

// SQLX 返回 sqlx 包装后的句柄，模型层统一经由它执行查询与事务
func SQLX() *sqlx.DB {
	once.Do(func() {
		if db != nil {
			sqlxDB = sqlx.NewDb(db, "mysql")
		}
	})
	return sqlxDB
}
