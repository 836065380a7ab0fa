package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/abezemskiy/ambient/internal/common/cert"
	"github.com/abezemskiy/ambient/internal/repositories/data"
	repoTransport "github.com/abezemskiy/ambient/internal/repositories/transport"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTimeout - ограничение на обмен запрос-ответ, если запрос не задал своё.
const DefaultTimeout = 30 * time.Second

// RequestIDHeader - заголовок с идентификатором запроса для сопоставления логов.
const RequestIDHeader = "X-Request-Id"

var (
	// ErrTransport - соединение с сервером не установлено.
	ErrTransport = errors.New("transport: connection failed")
	// ErrHTTPStatus - сервер вернул статус, отличный от 200.
	ErrHTTPStatus = errors.New("transport: unexpected http status")
	// ErrEmptyBody - сервер вернул 200 с пустым телом, а ответ ожидался.
	ErrEmptyBody = errors.New("transport: empty response body")
	// ErrBufferTooSmall - тело ответа не поместилось в приёмник.
	ErrBufferTooSmall = data.ErrBufferTooSmall
)

// HTTPError - ответ сервера со статусом, отличным от 200.
type HTTPError struct {
	Code int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("transport: http status %d %s", e.Code, http.StatusText(e.Code))
}

// Is - HTTPError соответствует ErrHTTPStatus.
func (e *HTTPError) Is(target error) bool {
	return target == ErrHTTPStatus
}

// HTTPS - адаптер для выполнения одиночных HTTPS запросов с проверкой сервера по заданному корневому сертификату.
// На каждый запрос создаётся отдельный клиент, соединения между запросами не переиспользуются.
type HTTPS struct {
	caCert string
	log    *zap.Logger
}

// NewHTTPS - фабричная функция адаптера. caCert - PEM корневого сертификата, без него запросы не выполняются.
func NewHTTPS(caCert string, log *zap.Logger) *HTTPS {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPS{
		caCert: caCert,
		log:    log,
	}
}

// Do - выполняет один запрос. Повторные попытки не предпринимаются.
// Response.Status заполняется всегда: HTTP статусом или StatusConnectionFailed.
func (h *HTTPS) Do(ctx context.Context, req repoTransport.Request) (repoTransport.Response, error) {
	res := repoTransport.Response{Status: repoTransport.StatusConnectionFailed}

	// без корневого сертификата соединение не устанавливается
	pool, err := cert.Pool(h.caCert)
	if err != nil {
		h.log.Error("connection failed", zap.String("url", req.URL), zap.String("error", err.Error()))
		return res, fmt.Errorf("%w, %w", ErrTransport, err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New().
		SetTimeout(timeout).
		SetTLSClientConfig(&tls.Config{
			RootCAs:    pool,
			MinVersion: tls.VersionTLS12,
		}).
		SetLogger(h.log.Sugar())
	defer client.GetClient().CloseIdleConnections()

	requestID := uuid.NewString()
	log := h.log.With(zap.String("request id", requestID))

	r := client.R().
		SetContext(ctx).
		SetHeader(RequestIDHeader, requestID)
	if len(req.Body) > 0 {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
		log.Debug("sending", zap.Int("bytes", len(req.Body)), zap.ByteString("payload", req.Body))
	}
	if req.Sink != nil {
		r.SetDoNotParseResponse(true)
	}

	log.Debug("connect to", zap.String("method", req.Method), zap.String("url", req.URL))
	resp, err := r.Execute(req.Method, req.URL)
	if err != nil {
		log.Error("connection failed", zap.String("url", req.URL), zap.String("error", err.Error()))
		return res, fmt.Errorf("%w, %s %s, %w", ErrTransport, req.Method, req.URL, err)
	}
	if req.Sink != nil && resp.RawBody() != nil {
		defer resp.RawBody().Close()
	}

	res.Status = resp.StatusCode()
	if res.Status != http.StatusOK {
		log.Error("https response error", zap.Int("status", res.Status), zap.String("text", http.StatusText(res.Status)))
		return res, &HTTPError{Code: res.Status}
	}

	switch {
	case req.Sink != nil:
		n, err := io.Copy(req.Sink, resp.RawBody())
		res.Written = n
		if err != nil {
			log.Error("failed to write response body", zap.Int64("written", n), zap.String("error", err.Error()))
			return res, fmt.Errorf("failed to write response body, %w", err)
		}
		if n == 0 {
			log.Error("empty response body")
			return res, ErrEmptyBody
		}
		log.Debug("https response", zap.Int("status", res.Status), zap.Int64("written", n))
	case req.WantBody:
		res.Body = resp.String()
		log.Debug("https response", zap.Int("status", res.Status), zap.String("body", res.Body))
	default:
		log.Debug("https response", zap.Int("status", res.Status))
	}
	return res, nil
}
