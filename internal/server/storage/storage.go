package storage

import (
	"context"

	"github.com/abezemskiy/ambient/internal/repositories/data"
)

// Channel - канал песочницы вместе с ключами доступа.
type Channel struct {
	ID       uint32 `json:"ch"`
	WriteKey string `json:"write_key"`
	ReadKey  string `json:"read_key"`
	UserKey  string `json:"user_key"`
	DevKey   string `json:"dev_key"`
}

type (
	// ChannelFinder - интерфейс для поиска каналов.
	ChannelFinder interface {
		GetChannel(ctx context.Context, id uint32) (Channel, bool, error)                // Поиск канала по идентификатору.
		FindByDevKey(ctx context.Context, userKey, devKey string) (Channel, bool, error) // Поиск канала по ключу пользователя и устройства.
	}

	// DataWriter - интерфейс для добавления строк данных в канал.
	DataWriter interface {
		AddData(ctx context.Context, id uint32, rows []data.Record) (bool, error)
	}

	// DataReader - интерфейс для чтения последних строк канала. Строки возвращаются от новых к старым.
	DataReader interface {
		GetData(ctx context.Context, id uint32, n int) ([]data.Record, error)
	}

	// DataDeleter - интерфейс для удаления всех данных канала.
	DataDeleter interface {
		DeleteData(ctx context.Context, id uint32) (bool, error)
	}

	// IChannelStorage - интерфейс хранилища песочницы.
	IChannelStorage interface {
		ChannelFinder
		DataWriter
		DataReader
		DataDeleter
	}
)
