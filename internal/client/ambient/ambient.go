package ambient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abezemskiy/ambient/internal/client/logger"
	"github.com/abezemskiy/ambient/internal/client/record"
	"github.com/abezemskiy/ambient/internal/client/transport"
	"github.com/abezemskiy/ambient/internal/common/cert"
	"github.com/abezemskiy/ambient/internal/common/checker"
	"github.com/abezemskiy/ambient/internal/repositories/data"
	repoTransport "github.com/abezemskiy/ambient/internal/repositories/transport"

	"go.uber.org/zap"
)

// DefaultBaseURL - адрес сервиса Ambient.
const DefaultBaseURL = "https://ambidata.io"

// DefaultTimeout - ограничение на один обмен с сервисом по умолчанию.
const DefaultTimeout = transport.DefaultTimeout

var (
	// ErrMalformedResponse - ответ сервиса пуст или не разбирается.
	ErrMalformedResponse = errors.New("ambient: malformed response")
	// ErrNotInitialized - сетевая операция вызвана до Begin.
	ErrNotInitialized = errors.New("ambient: channel is not initialized")

	// ErrOutOfRange - номер поля вне диапазона 1..8.
	ErrOutOfRange = record.ErrOutOfRange
	// ErrTooLong - значение или ключ длиннее допустимого.
	ErrTooLong = record.ErrTooLong
	// ErrBufferTooSmall - запись или ответ не помещаются в буфер.
	ErrBufferTooSmall = data.ErrBufferTooSmall
	// ErrTransport - соединение с сервисом не установлено.
	ErrTransport = transport.ErrTransport
	// ErrHTTPStatus - сервис ответил статусом, отличным от 200.
	ErrHTTPStatus = transport.ErrHTTPStatus
)

// ChannelConfig - параметры канала, задаются при инициализации.
type ChannelConfig struct {
	ChannelID uint32 // идентификатор канала
	WriteKey  string // ключ записи, пустой для клиента только на чтение
	ReadKey   string // ключ чтения, пустой для клиента только на запись
	CACert    string // PEM корневого сертификата сервиса
}

// Option - параметр конструктора клиента.
type Option func(*Client)

// WithRequester - задаёт исполнителя HTTPS запросов вместо стандартного адаптера.
func WithRequester(req repoTransport.Requester) Option {
	return func(c *Client) {
		c.req = req
		c.customRequester = true
	}
}

// WithLogger - задаёт логер клиента. По умолчанию используется logger.ClientLog.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithBaseURL - задаёт адрес сервиса. Нужен для локальной песочницы и тестов.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout - задаёт ограничение на один обмен с сервисом.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// Client - клиент канала Ambient: запись, ожидающая отправки, и операции над REST API сервиса.
// Все операции синхронные. Клиент не защищён от одновременного использования,
// вызовы на одном экземпляре должны упорядочиваться вызывающей стороной.
type Client struct {
	cfg         ChannelConfig
	initialized bool
	rec         *record.Record

	req             repoTransport.Requester
	customRequester bool
	log             *zap.Logger
	baseURL         string
	timeout         time.Duration

	status int
}

// New - фабричная функция клиента. До вызова Begin доступен только поиск канала GetChannel.
func New(opts ...Option) *Client {
	c := &Client{
		rec:     record.New(),
		log:     logger.ClientLog,
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.req == nil {
		c.req = transport.NewHTTPS(cert.ISRGRootX1, c.log)
	}
	return c
}

// Begin - инициализирует канал и очищает запись. Пустой caCert заменяется сертификатом ISRG Root X1.
func (c *Client) Begin(channelID uint32, writeKey, readKey, caCert string) error {
	if !checker.CheckKey(writeKey) {
		return fmt.Errorf("write key, %d bytes, %w", len(writeKey), ErrTooLong)
	}
	if !checker.CheckKey(readKey) {
		return fmt.Errorf("read key, %d bytes, %w", len(readKey), ErrTooLong)
	}
	if caCert == "" {
		caCert = cert.ISRGRootX1
	}

	c.cfg = ChannelConfig{
		ChannelID: channelID,
		WriteKey:  writeKey,
		ReadKey:   readKey,
		CACert:    caCert,
	}
	if !c.customRequester {
		c.req = transport.NewHTTPS(caCert, c.log)
	}
	c.rec.ClearAll()
	c.initialized = true
	return nil
}

// Config - текущие параметры канала.
func (c *Client) Config() ChannelConfig {
	return c.cfg
}

// Status - HTTP статус последнего сетевого запроса. Отрицательное значение означает, что соединение не установлено.
func (c *Client) Status() int {
	return c.status
}

// Record - запись, ожидающая отправки.
func (c *Client) Record() *record.Record {
	return c.rec
}

// SetField - устанавливает значение поля с номером field (1..8).
func (c *Client) SetField(field int, value string) error {
	if err := c.rec.SetField(field, value); err != nil {
		c.log.Error("failed to set field", zap.Int("field", field), zap.String("error", err.Error()))
		return err
	}
	return nil
}

// SetFieldFloat - устанавливает числовое значение поля.
func (c *Client) SetFieldFloat(field int, value float64) error {
	if err := c.rec.SetFieldFloat(field, value); err != nil {
		c.log.Error("failed to set field", zap.Int("field", field), zap.String("error", err.Error()))
		return err
	}
	return nil
}

// SetFieldInt - устанавливает целое значение поля.
func (c *Client) SetFieldInt(field int, value int) error {
	if err := c.rec.SetFieldInt(field, value); err != nil {
		c.log.Error("failed to set field", zap.Int("field", field), zap.String("error", err.Error()))
		return err
	}
	return nil
}

// SetComment - устанавливает комментарий записи.
func (c *Client) SetComment(cmnt string) error {
	if err := c.rec.SetComment(cmnt); err != nil {
		c.log.Error("failed to set comment", zap.String("error", err.Error()))
		return err
	}
	return nil
}

// ClearField - сбрасывает поле. Комментарий сбрасывается вместе с ним.
func (c *Client) ClearField(field int) error {
	if err := c.rec.ClearField(field); err != nil {
		c.log.Error("failed to clear field", zap.Int("field", field), zap.String("error", err.Error()))
		return err
	}
	return nil
}

// ClearAll - сбрасывает все поля и комментарий.
func (c *Client) ClearAll() {
	c.rec.ClearAll()
}

// Send - отправляет запись в канал. Запись очищается при любом исходе, в том числе при ошибке.
func (c *Client) Send(ctx context.Context) error {
	defer c.rec.ClearAll()

	if !c.initialized {
		return ErrNotInitialized
	}
	payload, err := c.rec.JSON(c.cfg.WriteKey)
	if err != nil {
		c.log.Error("failed to serialize record", zap.String("error", err.Error()))
		return err
	}

	_, err = c.do(ctx, repoTransport.Request{
		Method: http.MethodPost,
		URL:    c.channelURL("/data"),
		Body:   payload,
	})
	if err != nil {
		return fmt.Errorf("send data to channel %d, %w", c.cfg.ChannelID, err)
	}
	return nil
}

// BulkSend - отправляет в канал заранее подготовленный JSON с несколькими записями.
// Запись клиента не используется и не изменяется. Возвращает HTTP статус.
func (c *Client) BulkSend(ctx context.Context, payload string) (int, error) {
	if !c.initialized {
		return c.status, ErrNotInitialized
	}

	_, err := c.do(ctx, repoTransport.Request{
		Method: http.MethodPost,
		URL:    c.channelURL("/dataarray"),
		Body:   []byte(payload),
	})
	if err != nil {
		return c.status, fmt.Errorf("bulk send to channel %d, %w", c.cfg.ChannelID, err)
	}
	return c.status, nil
}

// Read - читает n последних записей канала в buf и возвращает количество записанных байт.
// Если ответ не помещается в buf, возвращается ErrBufferTooSmall.
func (c *Client) Read(ctx context.Context, buf []byte, n int) (int, error) {
	if !c.initialized {
		return 0, ErrNotInitialized
	}

	sink := transport.NewBufferSink(buf)
	_, err := c.do(ctx, repoTransport.Request{
		Method: http.MethodGet,
		URL:    c.readURL(n),
		Sink:   sink,
	})
	if err != nil {
		return sink.Len(), fmt.Errorf("read from channel %d, %w", c.cfg.ChannelID, err)
	}
	return sink.Len(), nil
}

// ReadString - читает n последних записей канала и возвращает ответ текстом. При ошибке возвращается пустая строка.
func (c *Client) ReadString(ctx context.Context, n int) (string, error) {
	if !c.initialized {
		return "", ErrNotInitialized
	}

	res, err := c.do(ctx, repoTransport.Request{
		Method:   http.MethodGet,
		URL:      c.readURL(n),
		WantBody: true,
	})
	if err != nil {
		return "", fmt.Errorf("read from channel %d, %w", c.cfg.ChannelID, err)
	}
	return res.Body, nil
}

// ReadRecords - читает n последних записей канала и разбирает их.
func (c *Client) ReadRecords(ctx context.Context, n int) ([]data.Record, error) {
	body, err := c.ReadString(ctx, n)
	if err != nil {
		return nil, err
	}

	var records []data.Record
	if err := json.Unmarshal([]byte(body), &records); err != nil {
		c.log.Error("failed to parse records", zap.String("error", err.Error()))
		return nil, fmt.Errorf("%w, %w", ErrMalformedResponse, err)
	}
	return records, nil
}

// DeleteData - удаляет все данные канала. Удалённые данные не восстанавливаются.
func (c *Client) DeleteData(ctx context.Context, userKey string) error {
	if !c.initialized {
		return ErrNotInitialized
	}

	_, err := c.do(ctx, repoTransport.Request{
		Method: http.MethodDelete,
		URL:    c.channelURL("/data?" + data.KeyUserKey + "=" + url.QueryEscape(userKey)),
	})
	if err != nil {
		return fmt.Errorf("delete data of channel %d, %w", c.cfg.ChannelID, err)
	}
	return nil
}

// GetChannel - получает идентификатор канала и его ключи по ключу пользователя и ключу устройства.
// Из ответа сохраняются только ch, readKey и writeKey. Не требует предварительного вызова Begin.
func (c *Client) GetChannel(ctx context.Context, userKey, devKey string) (data.ChannelInfo, error) {
	res, err := c.do(ctx, repoTransport.Request{
		Method: http.MethodGet,
		URL: fmt.Sprintf("%s/api/v2/channels/?%s=%s&%s=%s", c.baseURL,
			data.KeyUserKey, url.QueryEscape(userKey), data.KeyDevKey, url.QueryEscape(devKey)),
		WantBody: true,
	})
	if err != nil {
		return data.ChannelInfo{}, fmt.Errorf("get channel by device key, %w", err)
	}

	info, err := parseChannelInfo(res.Body)
	if err != nil {
		c.log.Error("failed to parse channel info", zap.String("error", err.Error()))
		return data.ChannelInfo{}, err
	}
	return info, nil
}

func parseChannelInfo(body string) (data.ChannelInfo, error) {
	if strings.TrimSpace(body) == "" {
		return data.ChannelInfo{}, fmt.Errorf("%w, empty body", ErrMalformedResponse)
	}

	// поле ch обязательно, остальные поля ответа отбрасываются
	var raw struct {
		Ch       *data.ChannelID `json:"ch"`
		ReadKey  string          `json:"readKey"`
		WriteKey string          `json:"writeKey"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return data.ChannelInfo{}, fmt.Errorf("%w, %w", ErrMalformedResponse, err)
	}
	if raw.Ch == nil {
		return data.ChannelInfo{}, fmt.Errorf("%w, no channel id", ErrMalformedResponse)
	}
	return data.ChannelInfo{
		Ch:       *raw.Ch,
		ReadKey:  raw.ReadKey,
		WriteKey: raw.WriteKey,
	}, nil
}

// do - выполняет запрос и запоминает полученный статус.
func (c *Client) do(ctx context.Context, req repoTransport.Request) (repoTransport.Response, error) {
	req.Timeout = c.timeout
	res, err := c.req.Do(ctx, req)
	c.status = res.Status
	if err != nil {
		c.log.Error("request failed", zap.String("method", req.Method), zap.Int("status", c.status),
			zap.String("error", err.Error()))
		return res, err
	}
	return res, nil
}

func (c *Client) channelURL(suffix string) string {
	return fmt.Sprintf("%s/api/v2/channels/%d%s", c.baseURL, c.cfg.ChannelID, suffix)
}

func (c *Client) readURL(n int) string {
	if n < 1 {
		n = 1
	}
	return c.channelURL(fmt.Sprintf("/data?%s=%s&n=%d", data.KeyReadKey, url.QueryEscape(c.cfg.ReadKey), n))
}
