package extended

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	defaultReconnectDelay = 5 * time.Second
	defaultPingInterval   = 30 * time.Second
)

// StreamClient consumes the Extended websocket feed. Subscriptions are
// remembered and replayed after every reconnect.
type StreamClient struct {
	url            string
	apiKey         string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	subs []streamSubscription
}

type streamSubscription struct {
	Method   string   `json:"method"`
	Channels []string `json:"channels"`
}

func NewStream(env Environment, apiKey string, log *zap.Logger) *StreamClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &StreamClient{
		url:            env.StreamURL,
		apiKey:         apiKey,
		reconnectDelay: defaultReconnectDelay,
		pingInterval:   defaultPingInterval,
		log:            log,
	}
}

func (s *StreamClient) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}
	opts := &websocket.DialOptions{}
	if s.apiKey != "" {
		opts.HTTPHeader = http.Header{"X-Api-Key": {s.apiKey}}
	}
	conn, _, err := websocket.Dial(ctx, s.url, opts)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// SubscribeAccountTrades subscribes to the authenticated per-account fill
// channel.
func (s *StreamClient) SubscribeAccountTrades(ctx context.Context) error {
	return s.subscribe(ctx, "account.trades")
}

func (s *StreamClient) SubscribeOrderbook(ctx context.Context, market string) error {
	return s.subscribe(ctx, "orderbooks."+market)
}

func (s *StreamClient) subscribe(ctx context.Context, channel string) error {
	sub := streamSubscription{Method: "SUBSCRIBE", Channels: []string{channel}}
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("stream not connected")
	}
	return writeJSON(ctx, conn, sub)
}

// Run reads frames until ctx is done, reconnecting with the configured
// delay and replaying subscriptions. Frames that are not JSON objects are
// dropped.
func (s *StreamClient) Run(ctx context.Context, handler func(map[string]any)) error {
	for {
		if err := s.ensureConnected(ctx); err != nil {
			return err
		}
		pingCtx, cancel := context.WithCancel(ctx)
		pingDone := make(chan struct{})
		go func() {
			defer close(pingDone)
			s.pingLoop(pingCtx)
		}()
		err := s.readLoop(ctx, handler)
		cancel()
		<-pingDone
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logReadLoopError(err)
			s.resetConn()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.reconnectDelay):
			}
			continue
		}
	}
}

func (s *StreamClient) ensureConnected(ctx context.Context) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	conn := s.conn
	subs := append([]streamSubscription(nil), s.subs...)
	s.mu.Unlock()
	for _, sub := range subs {
		if err := writeJSON(ctx, conn, sub); err != nil {
			return err
		}
	}
	return nil
}

func (s *StreamClient) readLoop(ctx context.Context, handler func(map[string]any)) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("stream not connected")
	}
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if handler == nil {
			continue
		}
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			s.log.Debug("stream frame dropped", zap.Error(err))
			continue
		}
		handler(frame)
	}
}

func (s *StreamClient) pingLoop(ctx context.Context) {
	s.mu.Lock()
	conn := s.conn
	interval := s.pingInterval
	s.mu.Unlock()
	if conn == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := writeJSON(ctx, conn, pingMessage); err != nil {
				return
			}
		}
	}
}

func (s *StreamClient) logReadLoopError(err error) {
	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure {
		var closeErr websocket.CloseError
		if errors.As(err, &closeErr) {
			s.log.Info("stream read loop ended", zap.Int("status", int(closeErr.Code)), zap.String("reason", closeErr.Reason))
			return
		}
		s.log.Info("stream read loop ended", zap.Error(err))
		return
	}
	s.log.Warn("stream read loop ended", zap.Error(err))
}

func (s *StreamClient) Close() {
	s.resetConn()
}

func (s *StreamClient) resetConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusNormalClosure, "reset")
		s.conn = nil
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

var pingMessage = map[string]any{"method": "PING"}
