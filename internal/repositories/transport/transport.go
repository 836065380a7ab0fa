package transport

import (
	"context"
	"io"
	"time"
)

// StatusConnectionFailed - статус, который сохраняется, если до сервера не удалось достучаться.
const StatusConnectionFailed = -1

// Request - параметры одного HTTPS запроса к сервису.
type Request struct {
	Method   string        // HTTP метод
	URL      string        // полный адрес запроса
	Body     []byte        // тело запроса в формате JSON, может отсутствовать
	Sink     io.Writer     // приёмник тела ответа, принадлежит вызывающей стороне
	WantBody bool          // вернуть тело ответа текстом
	Timeout  time.Duration // ограничение на весь обмен запрос-ответ
}

// Response - результат запроса.
type Response struct {
	Status  int    // HTTP статус или StatusConnectionFailed
	Body    string // тело ответа, если было запрошено WantBody
	Written int64  // количество байт, записанных в Sink
}

// Requester - интерфейс для выполнения одного HTTPS запроса без повторов.
type Requester interface {
	Do(ctx context.Context, req Request) (Response, error)
}
