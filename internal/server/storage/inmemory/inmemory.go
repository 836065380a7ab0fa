package inmemory

import (
	"context"
	"sync"

	"github.com/abezemskiy/ambient/internal/repositories/data"
	"github.com/abezemskiy/ambient/internal/server/storage"
)

// Store - потокобезопасное хранилище каналов и их данных в оперативной памяти.
type Store struct {
	mu       sync.RWMutex
	channels map[uint32]storage.Channel
	rows     map[uint32][]data.Record // строки канала от старых к новым
}

// NewStore - фабричная функция хранилища, заполненного переданными каналами.
func NewStore(channels ...storage.Channel) *Store {
	s := &Store{
		channels: make(map[uint32]storage.Channel, len(channels)),
		rows:     make(map[uint32][]data.Record, len(channels)),
	}
	for _, ch := range channels {
		s.channels[ch.ID] = ch
	}
	return s
}

// AddChannel - добавляет или заменяет канал. Данные канала сохраняются.
func (s *Store) AddChannel(ch storage.Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[ch.ID] = ch
}

// GetChannel - поиск канала по идентификатору.
func (s *Store) GetChannel(_ context.Context, id uint32) (storage.Channel, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.channels[id]
	return ch, ok, nil
}

// FindByDevKey - поиск канала по ключу пользователя и ключу устройства.
func (s *Store) FindByDevKey(_ context.Context, userKey, devKey string) (storage.Channel, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.channels {
		if ch.UserKey == userKey && ch.DevKey == devKey {
			return ch, true, nil
		}
	}
	return storage.Channel{}, false, nil
}

// AddData - добавляет строки в конец канала. Возвращает false, если канала нет.
func (s *Store) AddData(_ context.Context, id uint32, rows []data.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[id]; !ok {
		return false, nil
	}
	s.rows[id] = append(s.rows[id], rows...)
	return true, nil
}

// GetData - возвращает не более n последних строк канала, от новых к старым.
func (s *Store) GetData(_ context.Context, id uint32, n int) ([]data.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.rows[id]
	if n > len(rows) {
		n = len(rows)
	}
	res := make([]data.Record, 0, n)
	for i := len(rows) - 1; i >= len(rows)-n; i-- {
		res = append(res, rows[i])
	}
	return res, nil
}

// DeleteData - удаляет все строки канала. Возвращает false, если канала нет.
func (s *Store) DeleteData(_ context.Context, id uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[id]; !ok {
		return false, nil
	}
	delete(s.rows, id)
	return true, nil
}
