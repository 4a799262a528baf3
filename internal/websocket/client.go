package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Время, которое разрешено писать сообщение клиенту.
	writeWait = 10 * time.Second

	// Время, которое разрешено клиенту читать следующее сообщение.
	pongWait = 30 * time.Second

	// Периодичность отправки ping-сообщений клиенту.
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер входящего сообщения. Клиент ничего не шлет, кроме close.
	maxMessageSize = 512

	// Буфер исходящих событий: старт, до 50 вопросов и завершение
	defaultClientBufferSize = 64
)

// ErrClientClosed клиент отключился или поток уже закрыт
var ErrClientClosed = errors.New("websocket client closed")

// ClientConfig содержит настройки для клиента
type ClientConfig struct {
	BufferSize     int
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// DefaultClientConfig возвращает конфигурацию клиента по умолчанию
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BufferSize:     defaultClientBufferSize,
		PingInterval:   pingPeriod,
		PongWait:       pongWait,
		WriteWait:      writeWait,
		MaxMessageSize: maxMessageSize,
	}
}

// Client односторонний поток событий генерации поверх одного WebSocket соединения.
// Сервер пишет события, клиент только читает; закрытие со стороны клиента отменяет Context().
type Client struct {
	UserID       string
	ConnectionID string

	conn   *websocket.Conn
	config ClientConfig
	send   chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
	done      chan struct{}
}

// NewClient создает клиента и запускает read/write горутины.
// parent ограничивает время жизни потока.
func NewClient(parent context.Context, conn *websocket.Conn, userID string, config ClientConfig) *Client {
	if config.BufferSize <= 0 {
		config.BufferSize = defaultClientBufferSize
	}
	if config.PingInterval <= 0 {
		config.PingInterval = pingPeriod
	}
	if config.PongWait <= 0 {
		config.PongWait = pongWait
	}
	if config.WriteWait <= 0 {
		config.WriteWait = writeWait
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = maxMessageSize
	}

	ctx, cancel := context.WithCancel(parent)
	c := &Client{
		UserID:       userID,
		ConnectionID: uuid.NewString(),
		conn:         conn,
		config:       config,
		send:         make(chan []byte, config.BufferSize),
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
	}

	go c.writePump()
	go c.readPump()
	return c
}

// Context отменяется, когда клиент отключился
func (c *Client) Context() context.Context {
	return c.ctx
}

// SendEvent ставит событие в очередь отправки
func (c *Client) SendEvent(eventType string, data interface{}) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- payload:
		return nil
	default:
		log.Printf("[WebSocket] Буфер клиента %s переполнен, событие %s отброшено", c.ConnectionID, eventType)
		return errors.New("websocket client buffer is full")
	}
}

// Close дописывает очередь, отправляет close frame и ждет завершения записи
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
	select {
	case <-c.done:
	case <-time.After(c.config.WriteWait):
	}
	c.cancel()
}

// readPump нужен только для ping/pong и обнаружения отключения
func (c *Client) readPump() {
	defer c.cancel()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WebSocket] Ошибка чтения (UserID: %q, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WebSocket] Ошибка записи (UserID: %q, ConnID: %s): %v", c.UserID, c.ConnectionID, err)
				c.cancel()
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// NewUpgrader создает Upgrader, пропускающий только разрешенные origin.
// Пустой Origin (не браузер) разрешен.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed["*"] || allowed[origin] {
				return true
			}
			log.Printf("[WebSocket] Отклонен origin: %s", origin)
			return false
		},
		EnableCompression: true,
	}
}
