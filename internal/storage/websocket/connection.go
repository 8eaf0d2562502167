package websocket

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/m3ts/referee/pkg/streaming"
)

const (
	outboxSize   = 10_000
	ackQueueSize = 16
	maxRedials   = 10
	firstBackoff = time.Second
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
)

var errLinkClosed = errors.New("scoreboard link closed")

// link is the connection to the scoreboard. Each socket has one writer and
// one reader goroutine. When either fails the socket is dropped and the link
// redials, sending the header of the running match first.
type link struct {
	url    string
	outbox chan []byte
	acks   *streaming.Acks
	done   chan struct{} // closed by close
	logger *slog.Logger

	mu     sync.Mutex
	conn   *ws.Conn
	stop   chan struct{} // closed when conn is dropped
	header []byte
	closed bool
}

func newLink(logger *slog.Logger) *link {
	return &link{
		outbox: make(chan []byte, outboxSize),
		acks:   streaming.NewAcks(ackQueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// scoreboardURL adds the shared secret to the endpoint.
func scoreboardURL(rawURL, secret string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", secret)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// open connects for the first time. Later failures are handled by redial.
func (l *link) open(rawURL, secret string) error {
	u, err := scoreboardURL(rawURL, secret)
	if err != nil {
		return err
	}
	l.url = u

	conn, err := l.dial()
	if err != nil {
		return err
	}
	return l.attach(conn)
}

func (l *link) dial() (*ws.Conn, error) {
	conn, _, err := ws.DefaultDialer.Dial(l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// attach makes conn the live socket and starts its loops.
func (l *link) attach(conn *ws.Conn) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		_ = conn.Close()
		return errLinkClosed
	}
	l.conn = conn
	l.stop = make(chan struct{})

	go l.writeLoop(conn, l.stop)
	go l.readLoop(conn)
	return nil
}

// drop discards conn after an I/O error and starts redialing. Only the first
// failure of a socket counts.
func (l *link) drop(conn *ws.Conn, op string, err error) {
	l.mu.Lock()
	if l.closed || l.conn != conn {
		l.mu.Unlock()
		return
	}
	l.conn = nil
	close(l.stop)
	l.mu.Unlock()

	_ = conn.Close()
	l.logger.Warn("Scoreboard connection lost", "op", op, "error", err)
	go l.redial()
}

func (l *link) redial() {
	backoff := firstBackoff
	for attempt := 1; attempt <= maxRedials; attempt++ {
		select {
		case <-l.done:
			return
		case <-time.After(backoff):
		}

		l.logger.Info("Reconnecting to scoreboard", "attempt", attempt, "backoff", backoff)
		err := l.resume()
		if errors.Is(err, errLinkClosed) {
			return
		}
		if err != nil {
			l.logger.Warn("Reconnect failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		l.logger.Info("Scoreboard reconnected", "attempt", attempt)
		return
	}
	l.logger.Error("Scoreboard reconnect failed after max attempts", "maxAttempts", maxRedials)
}

// resume dials and resends the match header before anything queued, so the
// scoreboard knows which match the following messages belong to.
func (l *link) resume() error {
	conn, err := l.dial()
	if err != nil {
		return err
	}

	l.mu.Lock()
	header := l.header
	l.mu.Unlock()

	if header != nil {
		if err := write(conn, header); err != nil {
			_ = conn.Close()
			return fmt.Errorf("resending match header: %w", err)
		}
	}
	return l.attach(conn)
}

func write(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// writeLoop owns all writes to conn and pings the scoreboard while idle.
func (l *link) writeLoop(conn *ws.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-l.done:
			return
		case <-stop:
			return
		case <-ticker.C:
			err = conn.WriteControl(ws.PingMessage, nil, time.Now().Add(writeWait))
		case data := <-l.outbox:
			err = write(conn, data)
		}
		if err != nil {
			l.drop(conn, "write", err)
			return
		}
	}
}

// readLoop hands acknowledgements to the waiting caller. Every pong
// extends the read deadline.
func (l *link) readLoop(conn *ws.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			l.drop(conn, "read", err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		ack, ok := streaming.ParseAck(raw)
		if !ok {
			l.logger.Debug("Ignoring scoreboard message", "raw", string(raw))
			continue
		}
		if !l.acks.Deliver(ack) {
			l.logger.Debug("Ack queue full, dropping", "for", ack.For)
		}
	}
}

// setHeader keeps data to resend after a reconnect. nil forgets it.
func (l *link) setHeader(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.header = data
}

// send queues data for the writer without blocking. It is dropped when the
// outbox is full.
func (l *link) send(data []byte) {
	select {
	case l.outbox <- data:
	default:
		l.logger.Warn("Scoreboard outbox full, dropping message")
	}
}

// await blocks until the scoreboard acknowledges msgType.
func (l *link) await(msgType string) error {
	return l.acks.Await(msgType, ackTimeout, l.done)
}

// close sends a close frame and stops all goroutines.
func (l *link) close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.done)
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn == nil {
		return nil
	}
	_ = conn.WriteControl(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
	return conn.Close()
}
