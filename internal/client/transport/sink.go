package transport

// BufferSink - приёмник тела ответа поверх буфера вызывающей стороны.
// Запись, которая не помещается в буфер целиком, отклоняется и ничего не пишет.
type BufferSink struct {
	buf []byte
	n   int
}

// NewBufferSink - фабричная функция приёмника. Буфер остаётся во владении вызывающей стороны.
func NewBufferSink(buf []byte) *BufferSink {
	return &BufferSink{buf: buf}
}

func (s *BufferSink) Write(p []byte) (int, error) {
	if len(p) > len(s.buf)-s.n {
		return 0, ErrBufferTooSmall
	}
	copy(s.buf[s.n:], p)
	s.n += len(p)
	return len(p), nil
}

// Len - количество записанных байт.
func (s *BufferSink) Len() int {
	return s.n
}

// Bytes - записанные данные.
func (s *BufferSink) Bytes() []byte {
	return s.buf[:s.n]
}
