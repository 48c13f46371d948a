package database

var schemaSQLite = []string{
	`CREATE TABLE IF NOT EXISTS licenses (
    device_id TEXT PRIMARY KEY,
    tier TEXT NOT NULL DEFAULT 'free',
    credits INTEGER NOT NULL DEFAULT 0,
    unlimited INTEGER NOT NULL DEFAULT 0,
    expires TEXT,
    daily_used INTEGER NOT NULL DEFAULT 0,
    daily_reset TEXT,
    coupon_used TEXT,
    suspended INTEGER NOT NULL DEFAULT 0,
    suspend_reason TEXT,
    total_generations INTEGER NOT NULL DEFAULT 0,
    last_active TEXT,
    created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS coupons (
    code TEXT PRIMARY KEY,
    class TEXT NOT NULL,
    credits INTEGER NOT NULL DEFAULT 0,
    days INTEGER NOT NULL DEFAULT 0,
    unlimited INTEGER NOT NULL DEFAULT 0,
    batch_id TEXT NOT NULL,
    used INTEGER NOT NULL DEFAULT 0,
    used_by TEXT,
    used_at TEXT,
    created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS notifications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    device_id TEXT NOT NULL,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    credits_change INTEGER NOT NULL DEFAULT 0,
    seen INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS usage_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    device_id TEXT NOT NULL,
    text_preview TEXT,
    text_length INTEGER NOT NULL DEFAULT 0,
    voice TEXT,
    ip_address TEXT,
    created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_device_seen ON notifications (device_id, seen)`,
	`CREATE INDEX IF NOT EXISTS idx_usage_logs_device ON usage_logs (device_id)`,
}

var schemaMySQL = []string{
	`CREATE TABLE IF NOT EXISTS licenses (
    device_id VARCHAR(128) PRIMARY KEY,
    tier VARCHAR(8) NOT NULL DEFAULT 'free',
    credits INT NOT NULL DEFAULT 0,
    unlimited TINYINT NOT NULL DEFAULT 0,
    expires VARCHAR(10),
    daily_used INT NOT NULL DEFAULT 0,
    daily_reset VARCHAR(10),
    coupon_used VARCHAR(64),
    suspended TINYINT NOT NULL DEFAULT 0,
    suspend_reason TEXT,
    total_generations BIGINT NOT NULL DEFAULT 0,
    last_active VARCHAR(32),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS coupons (
    code VARCHAR(64) PRIMARY KEY,
    class VARCHAR(16) NOT NULL,
    credits INT NOT NULL DEFAULT 0,
    days INT NOT NULL DEFAULT 0,
    unlimited TINYINT NOT NULL DEFAULT 0,
    batch_id VARCHAR(36) NOT NULL,
    used TINYINT NOT NULL DEFAULT 0,
    used_by VARCHAR(128),
    used_at VARCHAR(32),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS notifications (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    device_id VARCHAR(128) NOT NULL,
    type VARCHAR(16) NOT NULL,
    title VARCHAR(255) NOT NULL,
    message TEXT NOT NULL,
    credits_change INT NOT NULL DEFAULT 0,
    seen TINYINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    KEY idx_notifications_device_seen (device_id, seen)
)`,
	`CREATE TABLE IF NOT EXISTS usage_logs (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    device_id VARCHAR(128) NOT NULL,
    text_preview TEXT,
    text_length INT NOT NULL DEFAULT 0,
    voice VARCHAR(64),
    ip_address VARCHAR(64),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    KEY idx_usage_logs_device (device_id)
)`,
}
