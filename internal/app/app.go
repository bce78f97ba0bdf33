// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: выбирает хранилище по STORAGE_DRIVER, создаёт сервисы,
// обработчики, фильтры и собирает всё в один объект Bot.
package app

import (
	"context"
	"database/sql"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/respekt-bot/internal/bot"
	"serotonyl.ru/respekt-bot/internal/bot/filters"
	"serotonyl.ru/respekt-bot/internal/config"
	"serotonyl.ru/respekt-bot/internal/db/postgres"
	"serotonyl.ru/respekt-bot/internal/db/sqlite"
	"serotonyl.ru/respekt-bot/internal/features/admin"
	"serotonyl.ru/respekt-bot/internal/features/karma"
	"serotonyl.ru/respekt-bot/internal/features/members"
	"serotonyl.ru/respekt-bot/internal/jobs"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	BotAPI    *tgbotapi.BotAPI

	closeDB func()
}

// storage — репозитории, собранные под выбранный драйвер.
type storage struct {
	karma   karma.Store
	members members.Repository
	close   func()
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. Хранилище ===
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// === 2. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		st.close()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	// Debug у tgbotapi пишет сырые апдейты вместе с текстом /login, не включаем
	botAPI.Debug = false
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 3. Сервисы ===
	memberService := members.NewService(st.members)
	karmaService := karma.NewService(st.karma, cfg)
	adminService := admin.NewService(admin.NewRepository(), karmaService, cfg)

	// === 4. Обработчики ===
	memberHandler := members.NewHandler(memberService)
	karmaHandler := karma.NewHandler(karmaService, botAPI)
	adminHandler := admin.NewHandler(adminService, botAPI)

	// === 5. Собираем бота ===
	b := bot.New(
		botAPI, cfg,
		memberService, memberHandler,
		karmaHandler,
		adminHandler,
		filters.NewChatFilter(cfg),
	)

	// === 6. Планировщик задач ===
	scheduler := jobs.NewScheduler(cfg, karmaService, memberService, b.SendMessageToChat)

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		BotAPI:    botAPI,
		closeDB:   st.close,
	}, nil
}

// Close освобождает соединения с базой.
func (a *App) Close() {
	a.closeDB()
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("ошибка открытия SQLite: %w", err)
		}
		return sqliteStorage(db), nil

	default:
		pool, err := postgres.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ошибка миграций: %w", err)
		}
		return postgresStorage(pool), nil
	}
}

func sqliteStorage(db *sql.DB) *storage {
	return &storage{
		karma:   karma.NewSQLiteStore(db),
		members: members.NewSQLiteRepository(db),
		close: func() {
			if err := db.Close(); err != nil {
				log.WithError(err).Warn("Ошибка закрытия SQLite")
			}
		},
	}
}

func postgresStorage(pool *pgxpool.Pool) *storage {
	return &storage{
		karma:   karma.NewPostgresStore(pool),
		members: members.NewPostgresRepository(pool),
		close:   pool.Close,
	}
}
