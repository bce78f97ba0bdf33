package postgres

// SQL-миграции встроены в код для упрощения деплоя.
// Номера совпадают с миграциями SQLite (internal/db/sqlite/schema.go).

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{1, migration001Users},
	{2, migration002Messages},
	{3, migration003Votes},
	{4, migration004Respekt},
}

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    user_id BIGINT PRIMARY KEY,
    username VARCHAR(255),
    first_name VARCHAR(255) NOT NULL DEFAULT '',
    last_name VARCHAR(255),
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_username ON users(LOWER(username));
CREATE TABLE IF NOT EXISTS chats (
    chat_id BIGINT PRIMARY KEY,
    title VARCHAR(255),
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW()
);
`

var migration002Messages = `
CREATE TABLE IF NOT EXISTS messages (
    chat_id BIGINT NOT NULL,
    message_id BIGINT NOT NULL,
    author_user_id BIGINT NOT NULL,
    message_text TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),
    PRIMARY KEY (chat_id, message_id)
);
CREATE INDEX IF NOT EXISTS idx_messages_author ON messages(author_user_id, chat_id);
`

var migration003Votes = `
CREATE TABLE IF NOT EXISTS votes (
    voter_user_id BIGINT NOT NULL,
    chat_id BIGINT NOT NULL,
    target_message_id BIGINT NOT NULL,
    reply_message_id BIGINT NOT NULL,
    vote SMALLINT NOT NULL CHECK (vote IN (-1, 1)),
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),
    PRIMARY KEY (voter_user_id, chat_id, target_message_id),
    FOREIGN KEY (chat_id, target_message_id) REFERENCES messages(chat_id, message_id)
);
CREATE INDEX IF NOT EXISTS idx_votes_target ON votes(chat_id, target_message_id);
`

var migration004Respekt = `
CREATE TABLE IF NOT EXISTS user_in_chat (
    user_id BIGINT NOT NULL,
    chat_id BIGINT NOT NULL,
    respekt BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),
    PRIMARY KEY (user_id, chat_id)
);
CREATE INDEX IF NOT EXISTS idx_user_in_chat_chat ON user_in_chat(chat_id, respekt DESC);
`
