package sqlite

type migration struct {
	version int
	sql     string
}

// Схема повторяет PostgreSQL-миграции с поправкой на диалект.
var migrations = []migration{
	{1, migration001Users},
	{2, migration002Messages},
	{3, migration003Votes},
	{4, migration004Respekt},
}

var migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    user_id INTEGER PRIMARY KEY,
    username TEXT,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_users_username ON users(username COLLATE NOCASE);
CREATE TABLE IF NOT EXISTS chats (
    chat_id INTEGER PRIMARY KEY,
    title TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

var migration002Messages = `
CREATE TABLE IF NOT EXISTS messages (
    chat_id INTEGER NOT NULL,
    message_id INTEGER NOT NULL,
    author_user_id INTEGER NOT NULL,
    message_text TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (chat_id, message_id)
);
CREATE INDEX IF NOT EXISTS idx_messages_author ON messages(author_user_id, chat_id);
`

var migration003Votes = `
CREATE TABLE IF NOT EXISTS votes (
    voter_user_id INTEGER NOT NULL,
    chat_id INTEGER NOT NULL,
    target_message_id INTEGER NOT NULL,
    reply_message_id INTEGER NOT NULL,
    vote INTEGER NOT NULL CHECK (vote IN (-1, 1)),
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (voter_user_id, chat_id, target_message_id),
    FOREIGN KEY (chat_id, target_message_id) REFERENCES messages(chat_id, message_id)
);
CREATE INDEX IF NOT EXISTS idx_votes_target ON votes(chat_id, target_message_id);
`

var migration004Respekt = `
CREATE TABLE IF NOT EXISTS user_in_chat (
    user_id INTEGER NOT NULL,
    chat_id INTEGER NOT NULL,
    respekt INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, chat_id)
);
CREATE INDEX IF NOT EXISTS idx_user_in_chat_chat ON user_in_chat(chat_id, respekt DESC);
`
