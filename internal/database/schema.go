package database

// Statements are executed one by one; the MySQL driver rejects multi-statement
// strings unless multiStatements is enabled in the DSN.
var mysqlSchema = []string{`
CREATE TABLE IF NOT EXISTS users (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    chat_id BIGINT NOT NULL UNIQUE,
    username VARCHAR(255),
    credits INT NOT NULL DEFAULT 0,
    audio TEXT,
    duration INT NOT NULL DEFAULT 0,
    model_name VARCHAR(255),
    refs INT NOT NULL DEFAULT 0,
    gender VARCHAR(16),
    status VARCHAR(32) NOT NULL DEFAULT 'awaiting_audio',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`, `
CREATE TABLE IF NOT EXISTS generations (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    chat_id BIGINT NOT NULL,
    audio TEXT NOT NULL,
    model_name VARCHAR(255) NOT NULL,
    duration INT NOT NULL,
    pitch INT NOT NULL,
    job_id VARCHAR(128),
    status VARCHAR(16) NOT NULL,
    error TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_generations_chat (chat_id)
)`,
}

var sqliteSchema = []string{`
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_id INTEGER NOT NULL UNIQUE,
    username TEXT,
    credits INTEGER NOT NULL DEFAULT 0,
    audio TEXT,
    duration INTEGER NOT NULL DEFAULT 0,
    model_name TEXT,
    refs INTEGER NOT NULL DEFAULT 0,
    gender TEXT,
    status TEXT NOT NULL DEFAULT 'awaiting_audio',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`, `
CREATE TABLE IF NOT EXISTS generations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_id INTEGER NOT NULL,
    audio TEXT NOT NULL,
    model_name TEXT NOT NULL,
    duration INTEGER NOT NULL,
    pitch INTEGER NOT NULL,
    job_id TEXT,
    status TEXT NOT NULL,
    error TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`, `
CREATE INDEX IF NOT EXISTS idx_generations_chat ON generations (chat_id)`,
}
