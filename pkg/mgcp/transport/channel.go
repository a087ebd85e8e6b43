package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/arzzra/mgcp_control/pkg/logging"
	"github.com/arzzra/mgcp_control/pkg/mgcp/message"
	"github.com/arzzra/mgcp_control/pkg/mgcp/subject"
)

// maxDatagramSize максимальный размер MGCP датаграммы
const maxDatagramSize = 8192

// ChannelConfig конфигурация управляющего канала
type ChannelConfig struct {
	// ListenAddr локальный адрес (host:port)
	ListenAddr string
	// CallAgentAddr адрес call agent'а для исходящих запросов (NTFY)
	CallAgentAddr string
}

// Channel управляющий UDP канал контроллера.
//
// Входящие датаграммы разбираются кодеком и доставляются приемнику
// (медиатору) с направлением Incoming. Канал наблюдает медиатор:
// исходящие ответы отправляются источнику соответствующего запроса,
// исходящие запросы — call agent'у.
type Channel struct {
	config ChannelConfig
	parser Parser
	sink   subject.Observer
	logger logging.Logger

	conn *net.UDPConn

	mu        sync.Mutex
	peers     map[int]*net.UDPAddr // id транзакции → источник запроса
	callAgent *net.UDPAddr
	closed    bool
	done      chan struct{}
}

// NewChannel создает канал; sink — приемник входящих сообщений (медиатор)
func NewChannel(config ChannelConfig, parser Parser, sink subject.Observer, logger logging.Logger) *Channel {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if parser == nil {
		parser = NewCodec()
	}
	return &Channel{
		config: config,
		parser: parser,
		sink:   sink,
		logger: logger.WithComponent("transport"),
		peers:  make(map[int]*net.UDPAddr),
		done:   make(chan struct{}),
	}
}

// Start открывает сокет и запускает цикл чтения
func (ch *Channel) Start() error {
	if ch.config.CallAgentAddr != "" {
		addr, err := net.ResolveUDPAddr("udp", ch.config.CallAgentAddr)
		if err != nil {
			return fmt.Errorf("ошибка разрешения адреса call agent: %w", err)
		}
		ch.callAgent = addr
	}

	lc := net.ListenConfig{Control: controlSocket}
	packetConn, err := lc.ListenPacket(context.Background(), "udp", ch.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("ошибка открытия управляющего сокета: %w", err)
	}
	ch.conn = packetConn.(*net.UDPConn)

	ch.logger.Info("управляющий канал открыт",
		logging.String("addr", ch.conn.LocalAddr().String()))
	go ch.readLoop()
	return nil
}

// Stop закрывает канал
func (ch *Channel) Stop() {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return
	}
	ch.closed = true
	ch.mu.Unlock()

	if ch.conn != nil {
		ch.conn.Close()
	}
	<-ch.done
}

// LocalAddr фактический локальный адрес канала
func (ch *Channel) LocalAddr() net.Addr {
	if ch.conn == nil {
		return nil
	}
	return ch.conn.LocalAddr()
}

// readLoop цикл чтения датаграмм
func (ch *Channel) readLoop() {
	defer close(ch.done)
	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := ch.conn.ReadFromUDP(buf)
		if err != nil {
			ch.mu.Lock()
			closed := ch.closed
			ch.mu.Unlock()
			if !closed {
				ch.logger.Error("ошибка чтения датаграммы", logging.Err(err))
			}
			return
		}

		msg, err := ch.parser.Parse(buf[:n])
		if err != nil {
			ch.logger.Warn("некорректная датаграмма отброшена",
				logging.Err(err),
				logging.String("from", addr.String()))
			continue
		}

		if req, ok := msg.(*message.Request); ok {
			ch.rememberPeer(req.Transaction, addr)
		}
		ch.sink.OnMessage(msg, message.Incoming)
	}
}

// rememberPeer запоминает источник запроса для адресации ответа
func (ch *Channel) rememberPeer(transactionID int, addr *net.UDPAddr) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.peers[transactionID] = addr
}

// OnMessage реализует subject.Observer: исходящие сообщения медиатора
// сериализуются и отправляются в сеть
func (ch *Channel) OnMessage(msg message.Message, direction message.Direction) {
	if direction != message.Outgoing || ch.conn == nil {
		return
	}

	data, err := ch.parser.Serialize(msg)
	if err != nil {
		ch.logger.Error("ошибка сериализации сообщения", logging.Err(err))
		return
	}

	var dest *net.UDPAddr
	switch msg.(type) {
	case *message.Response:
		ch.mu.Lock()
		dest = ch.peers[msg.TransactionID()]
		delete(ch.peers, msg.TransactionID())
		ch.mu.Unlock()
		if dest == nil {
			ch.logger.Warn("нет адресата для ответа",
				logging.Int("transaction", msg.TransactionID()))
			return
		}
	case *message.Request:
		dest = ch.callAgent
		if dest == nil {
			ch.logger.Warn("адрес call agent не настроен, запрос отброшен",
				logging.Int("transaction", msg.TransactionID()))
			return
		}
	}

	if _, err := ch.conn.WriteToUDP(data, dest); err != nil {
		ch.logger.Error("ошибка отправки датаграммы", logging.Err(err),
			logging.String("to", dest.String()))
	}
}
