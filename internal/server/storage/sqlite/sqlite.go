package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abezemskiy/ambient/internal/repositories/data"
	"github.com/abezemskiy/ambient/internal/server/storage"

	_ "github.com/mattn/go-sqlite3"
)

// Open - открывает файл базы SQLite и проверяет соединение.
// Путь может быть задан как обычным именем файла, так и строкой вида "file:...".
func Open(ctx context.Context, path string) (*sql.DB, error) {
	params := "_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	dsn := fmt.Sprintf("file:%s?%s", path, params)
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		dsn = path + sep + params
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database error, %w", err)
	}
	// SQLite допускает только одного писателя
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite database error, %w", err)
	}
	return conn, nil
}

// Store - реализует интерфейс storage.IChannelStorage поверх SQLite.
type Store struct {
	// Поле conn содержит объект соединения с СУБД
	conn *sql.DB
}

// NewStore - возвращает новый экземпляр SQLite-хранилища.
func NewStore(conn *sql.DB) *Store {
	return &Store{
		conn: conn,
	}
}

// Bootstrap - подготавливает БД к работе, создавая необходимые таблицы и индексы.
func (s Store) Bootstrap(ctx context.Context) error {
	// запускаю транзакцию
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction error, %w", err)
	}

	// откат транзакции в случае ошибки
	defer tx.Rollback()

	// создаю таблицу каналов -------------------------
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS channels (
			id INTEGER PRIMARY KEY,
			write_key TEXT NOT NULL,
			read_key TEXT NOT NULL,
			user_key TEXT NOT NULL,
			dev_key TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create table channels error, %w", err)
	}
	_, err = tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS channels_dev ON channels (user_key, dev_key)`)
	if err != nil {
		return fmt.Errorf("create index in channels table error, %w", err)
	}

	// создаю таблицу строк данных -------------------------
	_, err = tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS channel_data (
			id INTEGER PRIMARY KEY AUTOINCREMENT,                                 -- порядок добавления строк
			channel INTEGER NOT NULL REFERENCES channels (id) ON DELETE CASCADE,
			body TEXT NOT NULL                                                    -- строка в формате JSON
		)
	`)
	if err != nil {
		return fmt.Errorf("create table channel_data error, %w", err)
	}
	_, err = tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS channel_data_channel ON channel_data (channel, id)`)
	if err != nil {
		return fmt.Errorf("create index in channel_data table error, %w", err)
	}

	// коммитим транзакцию
	return tx.Commit()
}

// AddChannel - добавляет или заменяет канал. Данные канала сохраняются.
func (s Store) AddChannel(ctx context.Context, ch storage.Channel) error {
	query := `
	INSERT INTO channels (id, write_key, read_key, user_key, dev_key)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		write_key = excluded.write_key,
		read_key = excluded.read_key,
		user_key = excluded.user_key,
		dev_key = excluded.dev_key
	`
	_, err := s.conn.ExecContext(ctx, query, ch.ID, ch.WriteKey, ch.ReadKey, ch.UserKey, ch.DevKey)
	if err != nil {
		return fmt.Errorf("failed to save channel %d, %w", ch.ID, err)
	}
	return nil
}

// GetChannel - поиск канала по идентификатору.
func (s Store) GetChannel(ctx context.Context, id uint32) (storage.Channel, bool, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, write_key, read_key, user_key, dev_key FROM channels WHERE id = ?`, id)
	return scanChannel(row)
}

// FindByDevKey - поиск канала по ключу пользователя и ключу устройства.
func (s Store) FindByDevKey(ctx context.Context, userKey, devKey string) (storage.Channel, bool, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, write_key, read_key, user_key, dev_key FROM channels WHERE user_key = ? AND dev_key = ? LIMIT 1`,
		userKey, devKey)
	return scanChannel(row)
}

func scanChannel(row *sql.Row) (storage.Channel, bool, error) {
	var ch storage.Channel
	err := row.Scan(&ch.ID, &ch.WriteKey, &ch.ReadKey, &ch.UserKey, &ch.DevKey)
	if err == sql.ErrNoRows {
		return storage.Channel{}, false, nil
	}
	if err != nil {
		return storage.Channel{}, false, fmt.Errorf("failed to scan channel, %w", err)
	}
	return ch, true, nil
}

// exists - проверяет наличие канала в рамках транзакции.
func exists(ctx context.Context, tx *sql.Tx, id uint32) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM channels WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check channel %d, %w", id, err)
	}
	return true, nil
}

// AddData - добавляет строки в конец канала. Возвращает false, если канала нет.
func (s Store) AddData(ctx context.Context, id uint32, rows []data.Record) (bool, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction error, %w", err)
	}
	defer tx.Rollback()

	ok, err := exists(ctx, tx, id)
	if err != nil || !ok {
		return false, err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO channel_data (channel, body) VALUES (?, ?)`)
	if err != nil {
		return false, fmt.Errorf("prepare insert error, %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		body, err := json.Marshal(r)
		if err != nil {
			return false, fmt.Errorf("failed to marshal row, %w", err)
		}
		if _, err := stmt.ExecContext(ctx, id, string(body)); err != nil {
			return false, fmt.Errorf("failed to insert row, %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction error, %w", err)
	}
	return true, nil
}

// GetData - возвращает не более n последних строк канала, от новых к старым.
func (s Store) GetData(ctx context.Context, id uint32, n int) ([]data.Record, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT body FROM channel_data WHERE channel = ? ORDER BY id DESC LIMIT ?`, id, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query data of channel %d, %w", id, err)
	}
	defer rows.Close()

	res := make([]data.Record, 0, n)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan row, %w", err)
		}
		var r data.Record
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal row, %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows, %w", err)
	}
	return res, nil
}

// DeleteData - удаляет все строки канала. Возвращает false, если канала нет.
func (s Store) DeleteData(ctx context.Context, id uint32) (bool, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction error, %w", err)
	}
	defer tx.Rollback()

	ok, err := exists(ctx, tx, id)
	if err != nil || !ok {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM channel_data WHERE channel = ?`, id); err != nil {
		return false, fmt.Errorf("failed to delete data of channel %d, %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction error, %w", err)
	}
	return true, nil
}
