package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/abezemskiy/ambient/internal/repositories/data"
	"github.com/abezemskiy/ambient/internal/server/logger"
	"github.com/abezemskiy/ambient/internal/server/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// createdLayout - формат отметки времени created, который использует сервис.
const createdLayout = "2006-01-02T15:04:05.000Z"

// maxBodySize - ограничение на размер тела запроса.
const maxBodySize = 1 << 20

// now - источник времени для отметки created.
var now = time.Now

// allowedKeys - ключи, которые сохраняются в строке данных.
var allowedKeys = func() map[string]bool {
	keys := map[string]bool{data.KeyCmnt: true}
	for _, k := range data.ParamKeys {
		keys[k] = true
	}
	return keys
}()

// Router - дирижирует обработку запросов к песочнице сервиса.
func Router(stor storage.IChannelStorage) chi.Router {
	r := chi.NewRouter()

	r.Route("/api/v2/channels", func(r chi.Router) {
		r.Get("/", logger.RequestLogger(GetChannelHandler(stor)))

		r.Route("/{id}", func(r chi.Router) {
			r.Post("/data", logger.RequestLogger(SendDataHandler(stor)))
			r.Get("/data", logger.RequestLogger(ReadDataHandler(stor)))
			r.Delete("/data", logger.RequestLogger(DeleteDataHandler(stor)))
			r.Post("/dataarray", logger.RequestLogger(SendDataArrayHandler(stor)))
		})
	})

	r.NotFound(logger.RequestLogger(HandleOtherRequest()))
	return r
}

// channelFromURL - извлекает канал по идентификатору из адреса запроса.
// При ошибке ответ уже записан.
func channelFromURL(res http.ResponseWriter, req *http.Request, stor storage.ChannelFinder) (storage.Channel, bool) {
	id, err := strconv.ParseUint(chi.URLParam(req, "id"), 10, 32)
	if err != nil {
		logger.ServerLog.Error("invalid channel id", zap.String("address", req.URL.String()))
		http.Error(res, "invalid channel id", http.StatusBadRequest)
		return storage.Channel{}, false
	}

	ch, ok, err := stor.GetChannel(req.Context(), uint32(id))
	if err != nil {
		logger.ServerLog.Error("failed to get channel", zap.String("address", req.URL.String()), zap.String("error", err.Error()))
		http.Error(res, fmt.Errorf("failed to get channel, %w", err).Error(), http.StatusInternalServerError)
		return storage.Channel{}, false
	}
	if !ok {
		logger.ServerLog.Error("channel not found", zap.Uint64("channel", id))
		http.Error(res, "channel not found", http.StatusNotFound)
		return storage.Channel{}, false
	}
	return ch, true
}

// normalizeRow - оставляет в строке только известные ключи и ставит отметку времени, если её нет.
func normalizeRow(raw data.Record) data.Record {
	row := make(data.Record, len(raw)+1)
	for k, v := range raw {
		if allowedKeys[k] {
			row[k] = v
		}
	}
	if _, ok := row[data.KeyCreated]; !ok {
		created, _ := json.Marshal(now().UTC().Format(createdLayout))
		row[data.KeyCreated] = created
	}
	return row
}

// writeKeyOf - возвращает значение writeKey из тела запроса.
func writeKeyOf(raw data.Record) string {
	key, _ := raw.Value(data.KeyWriteKey)
	return key
}

// SendData - хэндлер для добавления одной строки данных в канал.
func SendData(res http.ResponseWriter, req *http.Request, stor storage.IChannelStorage) {
	res.Header().Set("Content-Type", "text/plain")
	defer req.Body.Close()

	ch, ok := channelFromURL(res, req, stor)
	if !ok {
		return
	}

	var raw data.Record
	if err := json.NewDecoder(http.MaxBytesReader(res, req.Body, maxBodySize)).Decode(&raw); err != nil {
		logger.ServerLog.Error("failed to parse data", zap.String("address", req.URL.String()), zap.String("error", err.Error()))
		http.Error(res, fmt.Errorf("failed to parse data, %w", err).Error(), http.StatusBadRequest)
		return
	}

	// Проверяю ключ записи
	if writeKeyOf(raw) != ch.WriteKey {
		logger.ServerLog.Error("wrong write key", zap.Uint32("channel", ch.ID))
		http.Error(res, "wrong write key", http.StatusForbidden)
		return
	}

	if _, err := stor.AddData(req.Context(), ch.ID, []data.Record{normalizeRow(raw)}); err != nil {
		logger.ServerLog.Error("failed to save data", zap.Uint32("channel", ch.ID), zap.String("error", err.Error()))
		http.Error(res, fmt.Errorf("failed to save data, %w", err).Error(), http.StatusInternalServerError)
		return
	}
	res.WriteHeader(http.StatusOK)
}

// SendDataHandler - обёртка хэндлера SendData.
func SendDataHandler(stor storage.IChannelStorage) http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		SendData(res, req, stor)
	}
}

// SendDataArray - хэндлер для пакетного добавления строк данных.
// Принимает либо массив строк, либо объект {"writeKey": ..., "data": [...]}. Ключ записи проверяется только во втором случае.
func SendDataArray(res http.ResponseWriter, req *http.Request, stor storage.IChannelStorage) {
	res.Header().Set("Content-Type", "text/plain")
	defer req.Body.Close()

	ch, ok := channelFromURL(res, req, stor)
	if !ok {
		return
	}

	var body bytes.Buffer
	if _, err := body.ReadFrom(http.MaxBytesReader(res, req.Body, maxBodySize)); err != nil {
		logger.ServerLog.Error("failed to read body", zap.String("address", req.URL.String()), zap.String("error", err.Error()))
		http.Error(res, fmt.Errorf("failed to read body, %w", err).Error(), http.StatusBadRequest)
		return
	}

	var rows []data.Record
	trimmed := bytes.TrimSpace(body.Bytes())
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			logger.ServerLog.Error("failed to parse data array", zap.String("error", err.Error()))
			http.Error(res, fmt.Errorf("failed to parse data array, %w", err).Error(), http.StatusBadRequest)
			return
		}
	} else {
		var envelope struct {
			WriteKey string        `json:"writeKey"`
			Data     []data.Record `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			logger.ServerLog.Error("failed to parse data array", zap.String("error", err.Error()))
			http.Error(res, fmt.Errorf("failed to parse data array, %w", err).Error(), http.StatusBadRequest)
			return
		}
		if envelope.WriteKey != ch.WriteKey {
			logger.ServerLog.Error("wrong write key", zap.Uint32("channel", ch.ID))
			http.Error(res, "wrong write key", http.StatusForbidden)
			return
		}
		rows = envelope.Data
	}

	for i := range rows {
		rows[i] = normalizeRow(rows[i])
	}
	if _, err := stor.AddData(req.Context(), ch.ID, rows); err != nil {
		logger.ServerLog.Error("failed to save data", zap.Uint32("channel", ch.ID), zap.String("error", err.Error()))
		http.Error(res, fmt.Errorf("failed to save data, %w", err).Error(), http.StatusInternalServerError)
		return
	}
	res.WriteHeader(http.StatusOK)
}

// SendDataArrayHandler - обёртка хэндлера SendDataArray.
func SendDataArrayHandler(stor storage.IChannelStorage) http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		SendDataArray(res, req, stor)
	}
}

// ReadData - хэндлер для чтения последних n строк канала.
func ReadData(res http.ResponseWriter, req *http.Request, stor storage.IChannelStorage) {
	ch, ok := channelFromURL(res, req, stor)
	if !ok {
		return
	}

	if req.URL.Query().Get(data.KeyReadKey) != ch.ReadKey {
		logger.ServerLog.Error("wrong read key", zap.Uint32("channel", ch.ID))
		http.Error(res, "wrong read key", http.StatusForbidden)
		return
	}

	n := 1
	if s := req.URL.Query().Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			logger.ServerLog.Error("invalid number of rows", zap.String("n", s))
			http.Error(res, "invalid number of rows", http.StatusBadRequest)
			return
		}
		n = v
	}

	rows, err := stor.GetData(req.Context(), ch.ID, n)
	if err != nil {
		logger.ServerLog.Error("failed to get data", zap.Uint32("channel", ch.ID), zap.String("error", err.Error()))
		http.Error(res, fmt.Errorf("failed to get data, %w", err).Error(), http.StatusInternalServerError)
		return
	}

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(res).Encode(rows); err != nil {
		logger.ServerLog.Error("failed to encode data", zap.String("error", err.Error()))
	}
}

// ReadDataHandler - обёртка хэндлера ReadData.
func ReadDataHandler(stor storage.IChannelStorage) http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		ReadData(res, req, stor)
	}
}

// DeleteData - хэндлер для удаления всех данных канала по ключу пользователя.
func DeleteData(res http.ResponseWriter, req *http.Request, stor storage.IChannelStorage) {
	res.Header().Set("Content-Type", "text/plain")

	ch, ok := channelFromURL(res, req, stor)
	if !ok {
		return
	}

	if req.URL.Query().Get(data.KeyUserKey) != ch.UserKey {
		logger.ServerLog.Error("wrong user key", zap.Uint32("channel", ch.ID))
		http.Error(res, "wrong user key", http.StatusForbidden)
		return
	}

	if _, err := stor.DeleteData(req.Context(), ch.ID); err != nil {
		logger.ServerLog.Error("failed to delete data", zap.Uint32("channel", ch.ID), zap.String("error", err.Error()))
		http.Error(res, fmt.Errorf("failed to delete data, %w", err).Error(), http.StatusInternalServerError)
		return
	}
	logger.ServerLog.Info("channel data deleted", zap.Uint32("channel", ch.ID))
	res.WriteHeader(http.StatusOK)
}

// DeleteDataHandler - обёртка хэндлера DeleteData.
func DeleteDataHandler(stor storage.IChannelStorage) http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		DeleteData(res, req, stor)
	}
}

// GetChannel - хэндлер для поиска канала по ключу пользователя и ключу устройства.
// Идентификатор канала в ответе передаётся строкой, как это делает сервис.
func GetChannel(res http.ResponseWriter, req *http.Request, stor storage.IChannelStorage) {
	userKey := req.URL.Query().Get(data.KeyUserKey)
	devKey := req.URL.Query().Get(data.KeyDevKey)
	if userKey == "" || devKey == "" {
		logger.ServerLog.Error("user key and device key must be set", zap.String("address", req.URL.String()))
		http.Error(res, "user key and device key must be set", http.StatusBadRequest)
		return
	}

	ch, ok, err := stor.FindByDevKey(req.Context(), userKey, devKey)
	if err != nil {
		logger.ServerLog.Error("failed to find channel", zap.String("error", err.Error()))
		http.Error(res, fmt.Errorf("failed to find channel, %w", err).Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		logger.ServerLog.Error("channel not found", zap.String("device key", devKey))
		http.Error(res, "channel not found", http.StatusNotFound)
		return
	}

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(http.StatusOK)
	err = json.NewEncoder(res).Encode(map[string]string{
		data.KeyChannel:  strconv.FormatUint(uint64(ch.ID), 10),
		"user":           ch.UserKey,
		data.KeyWriteKey: ch.WriteKey,
		data.KeyReadKey:  ch.ReadKey,
	})
	if err != nil {
		logger.ServerLog.Error("failed to encode channel", zap.String("error", err.Error()))
	}
}

// GetChannelHandler - обёртка хэндлера GetChannel.
func GetChannelHandler(stor storage.IChannelStorage) http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		GetChannel(res, req, stor)
	}
}

// HandleOtherRequest - хэндлер для всех неизвестных запросов.
func HandleOtherRequest() http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		logger.ServerLog.Error("unknown request", zap.String("method", req.Method), zap.String("address", req.URL.String()))
		http.Error(res, "not found", http.StatusNotFound)
	}
}
