package status

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sugawarayuuta/sonnet"
)

const (
	INFO = iota
	ERROR
	PROGRESS
)

type Status struct {
	Message  string
	Time     time.Time
	Type     int
	Progress float32
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	b    *Broadcaster
}

func (c *client) writePump() {
	ticker := time.NewTicker(time.Second * 30)
	defer func() {
		ticker.Stop()
		c.b.unregisterClient(c)
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second)); err != nil {
				log.Printf("[status] ws deadline error: %v", err)
				return
			}
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("[status] ws write msg error: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[status] ws write ping error: %v", err)
				return
			}
		}
	}
}

// Broadcaster sends every status to all connected websocket clients.
// Slow clients lose messages instead of blocking emitter.
type Broadcaster struct {
	lock        sync.Mutex
	clients     map[*client]bool
	lastMessage []byte
	history     []Status
}

const historySize = 32

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[*client]bool)}
}

func (b *Broadcaster) NewClient(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, 32), b: b}
	b.lock.Lock()
	b.clients[c] = true
	if b.lastMessage != nil {
		c.send <- b.lastMessage
	}
	b.lock.Unlock()
	go c.writePump()
}

func (b *Broadcaster) unregisterClient(c *client) {
	b.lock.Lock()
	defer b.lock.Unlock()
	delete(b.clients, c)
}

func (b *Broadcaster) Status(msg string, _type int, progress float32) {
	if math.IsNaN(float64(progress)) || math.IsInf(float64(progress), 0) {
		progress = 0
	}
	s := Status{
		Message:  msg,
		Time:     time.Now(),
		Type:     _type,
		Progress: progress,
	}
	data, err := sonnet.Marshal(&s)
	if err != nil {
		log.Printf("[status] marshal error: %v", err)
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()
	b.lastMessage = data
	b.history = append(b.history, s)
	if len(b.history) > historySize {
		b.history = b.history[len(b.history)-historySize:]
	}
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// History returns last messages, oldest first
func (b *Broadcaster) History() []Status {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]Status(nil), b.history...)
}

func (b *Broadcaster) Clients() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.clients)
}

var Default = NewBroadcaster()

func Info(format string, a ...interface{}) {
	Default.Status(fmt.Sprintf(format, a...), INFO, 0.0)
}

func Error(format string, a ...interface{}) {
	Default.Status(fmt.Sprintf(format, a...), ERROR, 0.0)
}

func Progress(progress float32, format string, a ...interface{}) {
	Default.Status(fmt.Sprintf(format, a...), PROGRESS, progress)
}
