package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"fenrir-lob/internal/core"
	"fenrir-lob/internal/engine"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = 5 * time.Second
)

var ErrImproperConversion = errors.New("improper type conversion")

// ClientSession is one connected TCP session. SessionID is a server-assigned
// tag (not tied to any order) so log lines from the same connection can be
// correlated without relying on the remote address surviving reconnects.
type ClientSession struct {
	conn      net.Conn
	sessionID string
}

// ClientMessage links a parsed message to the connection it arrived on.
type ClientMessage struct {
	conn    net.Conn
	message Message
}

// Engine is the subset of internal/core.Engine the wire server drives.
// Admin/config operations (item configs, fee schedule, max orders per
// price) aren't part of this interface: they're operator concerns wired
// directly in cmd/server, never a client-facing message type.
type Engine interface {
	LimitOrders(maker string, orders []core.LimitOrderInput) ([]core.LimitOrderOutcome, error)
	CancelOrders(caller string, cancels []core.CancelInput) error
	ClaimCoins(caller string, orderIDs []uint64) (uint64, error)
	ClaimItems(caller string, orderIDs, itemIDs []uint64) (uint64, error)
	ClaimAll(caller string, coinIDs, itemOrderIDs, itemIDs []uint64) (uint64, uint64, error)
	HighestBid(itemID uint64) (uint64, bool)
	LowestAsk(itemID uint64) (uint64, bool)
	Node(itemID uint64, side engine.Side, price uint64) (uint32, bool)
	MakerOf(orderID uint64) (string, bool)
}

type Server struct {
	address string
	port    int
	engine  Engine
	pool    WorkerPool
	cancel  context.CancelFunc

	sessionsLock sync.Mutex
	sessions     map[string]ClientSession

	messages chan ClientMessage
}

func New(address string, port int, engine Engine) *Server {
	return &Server{
		address:  address,
		port:     port,
		engine:   engine,
		pool:     NewWorkerPool(defaultNWorkers),
		sessions: make(map[string]ClientSession),
		messages: make(chan ClientMessage, 1),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run starts the listener, the worker pool, and the session handler, and
// blocks accepting connections until ctx is canceled.
func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})

	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().Str("address", listener.Addr().String()).Msg("server running")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				log.Error().Err(err).Msg("error accepting client")
				continue
			}
			sessionID := uuid.New().String()
			log.Info().Str("address", conn.RemoteAddr().String()).Str("session", sessionID).Msg("new client added")
			s.addSession(conn, sessionID)
			s.pool.AddTask(conn)
		}
	}
}

// sessionHandler drains parsed messages off the shared channel and routes
// each to its handler, one at a time — this is the call-serializing choke
// point the engine's own locking assumes sits in front of it.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case cm := <-s.messages:
			if err := s.handleMessage(cm); err != nil {
				log.Error().Err(err).Str("address", cm.conn.RemoteAddr().String()).Msg("error handling message")
				s.writeReport(cm.conn, SerializeErrorReport(err))
			}
		}
	}
}

func (s *Server) handleMessage(cm ClientMessage) error {
	switch m := cm.message.(type) {
	case BaseMessage:
		return nil // heartbeat, nothing to do
	case LimitOrdersMessage:
		outcomes, err := s.engine.LimitOrders(m.Maker, m.Orders)
		if err != nil {
			return err
		}
		return s.writeReport(cm.conn, SerializeLimitOrdersReport(outcomes))
	case CancelOrdersMessage:
		if err := s.engine.CancelOrders(m.Caller, m.Cancels); err != nil {
			return err
		}
		return s.writeReport(cm.conn, SerializeCancelReport())
	case ClaimCoinsMessage:
		amount, err := s.engine.ClaimCoins(m.Caller, m.OrderIDs)
		if err != nil {
			return err
		}
		return s.writeReport(cm.conn, SerializeClaimCoinsReport(amount))
	case ClaimItemsMessage:
		amount, err := s.engine.ClaimItems(m.Caller, m.OrderIDs, m.ItemIDs)
		if err != nil {
			return err
		}
		return s.writeReport(cm.conn, SerializeClaimItemsReport(amount))
	case ClaimAllMessage:
		coins, items, err := s.engine.ClaimAll(m.Caller, m.CoinOrderIDs, m.ItemOrderIDs, m.ItemIDs)
		if err != nil {
			return err
		}
		return s.writeReport(cm.conn, SerializeClaimAllReport(coins, items))
	case QueryMessage:
		return s.handleQuery(cm.conn, m)
	default:
		return ErrInvalidMessageType
	}
}

func (s *Server) handleQuery(conn net.Conn, m QueryMessage) error {
	var found bool
	var value uint64
	switch m.Query {
	case QueryHighestBid:
		value, found = s.engine.HighestBid(m.ItemID)
	case QueryLowestAsk:
		value, found = s.engine.LowestAsk(m.ItemID)
	case QueryNode:
		var offset uint32
		offset, found = s.engine.Node(m.ItemID, m.Side, m.Price)
		value = uint64(offset)
	case QueryMakerOf:
		var maker string
		maker, found = s.engine.MakerOf(m.OrderID)
		if found {
			return s.writeReport(conn, append([]byte{byte(QueryReportType), 1}, maker...))
		}
		return s.writeReport(conn, SerializeQueryReport(false, 0))
	default:
		return ErrInvalidMessageType
	}
	return s.writeReport(conn, SerializeQueryReport(found, value))
}

func (s *Server) writeReport(conn net.Conn, payload []byte) error {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()

	if _, err := conn.Write(payload); err != nil {
		delete(s.sessions, conn.RemoteAddr().String())
		return fmt.Errorf("unable to write report: %w", err)
	}
	return nil
}

// handleConnection reads exactly one message off conn, forwards it for
// handling, then re-enqueues the connection so the next message on it gets
// its own turn through the pool. Any error here is fatal to this
// connection, not to the pool.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("failed setting deadline")
		return s.closeSession(conn)
	}

	buf := make([]byte, maxRecvSize)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buf)
		if err != nil {
			log.Info().Err(err).Str("address", conn.RemoteAddr().String()).Msg("connection closed")
			return s.closeSession(conn)
		}

		message, err := parseMessage(buf[:n])
		if err != nil {
			log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("error parsing message")
			s.writeReport(conn, SerializeErrorReport(err))
			s.pool.AddTask(conn)
			return nil
		}

		s.messages <- ClientMessage{conn: conn, message: message}
		s.pool.AddTask(conn)
	}
	return nil
}

func (s *Server) closeSession(conn net.Conn) error {
	s.removeSession(conn)
	if err := conn.Close(); err != nil {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("error closing connection")
	}
	return nil
}

func (s *Server) addSession(conn net.Conn, sessionID string) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	s.sessions[conn.RemoteAddr().String()] = ClientSession{conn: conn, sessionID: sessionID}
}

func (s *Server) removeSession(conn net.Conn) {
	s.sessionsLock.Lock()
	defer s.sessionsLock.Unlock()
	delete(s.sessions, conn.RemoteAddr().String())
}
