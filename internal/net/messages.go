package net

import (
	"encoding/binary"
	"errors"

	"fenrir-lob/internal/core"
	"fenrir-lob/internal/engine"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short")
)

// MessageType identifies the client-to-server frame kind. The wire surface
// mirrors the command/query split of internal/core.Engine; admin commands
// (item configs, fee schedule, max orders per price) are operator concerns
// wired directly in cmd/server rather than exposed to clients, the same way
// this protocol's predecessor never put order-book configuration on the wire.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	LimitOrdersMsg
	CancelOrdersMsg
	ClaimCoinsMsg
	ClaimItemsMsg
	ClaimAllMsg
	QueryMsg
)

// QueryType selects which read-only surface a QueryMessage addresses.
type QueryType uint8

const (
	QueryHighestBid QueryType = iota
	QueryLowestAsk
	QueryNode
	QueryMakerOf
)

// ReportType identifies the server-to-client frame kind.
type ReportType uint8

const (
	LimitOrdersReportType ReportType = iota
	CancelReportType
	ClaimCoinsReportType
	ClaimItemsReportType
	ClaimAllReportType
	QueryReportType
	ErrorReportType
)

// Message is any parsed client frame.
type Message interface {
	GetType() MessageType
}

type BaseMessage struct {
	TypeOf MessageType
}

func (m BaseMessage) GetType() MessageType { return m.TypeOf }

const baseMessageHeaderLen = 2

// parseMessage dispatches on the 2-byte type header and parses the rest of
// the frame accordingly.
func parseMessage(msg []byte) (Message, error) {
	if len(msg) < baseMessageHeaderLen {
		return nil, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(msg[0:2]))
	body := msg[2:]
	switch typeOf {
	case Heartbeat:
		return BaseMessage{TypeOf: Heartbeat}, nil
	case LimitOrdersMsg:
		return parseLimitOrders(body)
	case CancelOrdersMsg:
		return parseCancelOrders(body)
	case ClaimCoinsMsg:
		return parseClaimCoins(body)
	case ClaimItemsMsg:
		return parseClaimItems(body)
	case ClaimAllMsg:
		return parseClaimAll(body)
	case QueryMsg:
		return parseQuery(body)
	default:
		return nil, ErrInvalidMessageType
	}
}

// readLenPrefixedString reads a uint8-length-prefixed string starting at
// offset, returning the string and the offset just past it.
func readLenPrefixedString(msg []byte, offset int) (string, int, error) {
	if offset+1 > len(msg) {
		return "", 0, ErrMessageTooShort
	}
	n := int(msg[offset])
	offset++
	if offset+n > len(msg) {
		return "", 0, ErrMessageTooShort
	}
	return string(msg[offset : offset+n]), offset + n, nil
}

func putLenPrefixedString(buf []byte, offset int, s string) int {
	buf[offset] = byte(len(s))
	offset++
	copy(buf[offset:], s)
	return offset + len(s)
}

// --- limit_orders ---

const limitOrderRecordLen = 1 + 8 + 8 + 8 // side + item_id + price + quantity

type LimitOrdersMessage struct {
	BaseMessage
	Maker  string
	Orders []core.LimitOrderInput
}

func parseLimitOrders(msg []byte) (LimitOrdersMessage, error) {
	m := LimitOrdersMessage{BaseMessage: BaseMessage{TypeOf: LimitOrdersMsg}}

	maker, offset, err := readLenPrefixedString(msg, 0)
	if err != nil {
		return LimitOrdersMessage{}, err
	}
	m.Maker = maker

	if offset+2 > len(msg) {
		return LimitOrdersMessage{}, ErrMessageTooShort
	}
	count := int(binary.BigEndian.Uint16(msg[offset : offset+2]))
	offset += 2

	if offset+count*limitOrderRecordLen > len(msg) {
		return LimitOrdersMessage{}, ErrMessageTooShort
	}
	m.Orders = make([]core.LimitOrderInput, count)
	for i := 0; i < count; i++ {
		rec := msg[offset : offset+limitOrderRecordLen]
		side := engine.Ask
		if rec[0] == 0 {
			side = engine.Bid
		}
		m.Orders[i] = core.LimitOrderInput{
			Side:     side,
			ItemID:   binary.BigEndian.Uint64(rec[1:9]),
			Price:    binary.BigEndian.Uint64(rec[9:17]),
			Quantity: binary.BigEndian.Uint64(rec[17:25]),
		}
		offset += limitOrderRecordLen
	}
	return m, nil
}

func (m LimitOrdersMessage) Serialize() []byte {
	size := baseMessageHeaderLen + 1 + len(m.Maker) + 2 + len(m.Orders)*limitOrderRecordLen
	buf := make([]byte, size)
	binary.BigEndian.PutUint16(buf[0:2], uint16(LimitOrdersMsg))
	offset := putLenPrefixedString(buf, 2, m.Maker)
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(m.Orders)))
	offset += 2
	for _, o := range m.Orders {
		side := byte(1)
		if o.Side == engine.Bid {
			side = 0
		}
		buf[offset] = side
		binary.BigEndian.PutUint64(buf[offset+1:offset+9], o.ItemID)
		binary.BigEndian.PutUint64(buf[offset+9:offset+17], o.Price)
		binary.BigEndian.PutUint64(buf[offset+17:offset+25], o.Quantity)
		offset += limitOrderRecordLen
	}
	return buf
}

// --- cancel_orders ---

const cancelOrderRecordLen = 8 + 1 + 8 + 8 // order_id + side + item_id + price

type CancelOrdersMessage struct {
	BaseMessage
	Caller  string
	Cancels []core.CancelInput
}

func parseCancelOrders(msg []byte) (CancelOrdersMessage, error) {
	m := CancelOrdersMessage{BaseMessage: BaseMessage{TypeOf: CancelOrdersMsg}}

	caller, offset, err := readLenPrefixedString(msg, 0)
	if err != nil {
		return CancelOrdersMessage{}, err
	}
	m.Caller = caller

	if offset+2 > len(msg) {
		return CancelOrdersMessage{}, ErrMessageTooShort
	}
	count := int(binary.BigEndian.Uint16(msg[offset : offset+2]))
	offset += 2

	if offset+count*cancelOrderRecordLen > len(msg) {
		return CancelOrdersMessage{}, ErrMessageTooShort
	}
	m.Cancels = make([]core.CancelInput, count)
	for i := 0; i < count; i++ {
		rec := msg[offset : offset+cancelOrderRecordLen]
		side := engine.Ask
		if rec[8] == 0 {
			side = engine.Bid
		}
		m.Cancels[i] = core.CancelInput{
			OrderID: binary.BigEndian.Uint64(rec[0:8]),
			Side:    side,
			ItemID:  binary.BigEndian.Uint64(rec[9:17]),
			Price:   binary.BigEndian.Uint64(rec[17:25]),
		}
		offset += cancelOrderRecordLen
	}
	return m, nil
}

func (m CancelOrdersMessage) Serialize() []byte {
	size := baseMessageHeaderLen + 1 + len(m.Caller) + 2 + len(m.Cancels)*cancelOrderRecordLen
	buf := make([]byte, size)
	binary.BigEndian.PutUint16(buf[0:2], uint16(CancelOrdersMsg))
	offset := putLenPrefixedString(buf, 2, m.Caller)
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(m.Cancels)))
	offset += 2
	for _, c := range m.Cancels {
		binary.BigEndian.PutUint64(buf[offset:offset+8], c.OrderID)
		side := byte(1)
		if c.Side == engine.Bid {
			side = 0
		}
		buf[offset+8] = side
		binary.BigEndian.PutUint64(buf[offset+9:offset+17], c.ItemID)
		binary.BigEndian.PutUint64(buf[offset+17:offset+25], c.Price)
		offset += cancelOrderRecordLen
	}
	return buf
}

// --- claim_coins / claim_items / claim_all ---

type ClaimCoinsMessage struct {
	BaseMessage
	Caller   string
	OrderIDs []uint64
}

func parseIDList(msg []byte, offset int) ([]uint64, int, error) {
	if offset+2 > len(msg) {
		return nil, 0, ErrMessageTooShort
	}
	count := int(binary.BigEndian.Uint16(msg[offset : offset+2]))
	offset += 2
	if offset+count*8 > len(msg) {
		return nil, 0, ErrMessageTooShort
	}
	ids := make([]uint64, count)
	for i := 0; i < count; i++ {
		ids[i] = binary.BigEndian.Uint64(msg[offset : offset+8])
		offset += 8
	}
	return ids, offset, nil
}

func putIDList(buf []byte, offset int, ids []uint64) int {
	binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(ids)))
	offset += 2
	for _, id := range ids {
		binary.BigEndian.PutUint64(buf[offset:offset+8], id)
		offset += 8
	}
	return offset
}

func parseClaimCoins(msg []byte) (ClaimCoinsMessage, error) {
	m := ClaimCoinsMessage{BaseMessage: BaseMessage{TypeOf: ClaimCoinsMsg}}
	caller, offset, err := readLenPrefixedString(msg, 0)
	if err != nil {
		return ClaimCoinsMessage{}, err
	}
	m.Caller = caller
	ids, _, err := parseIDList(msg, offset)
	if err != nil {
		return ClaimCoinsMessage{}, err
	}
	m.OrderIDs = ids
	return m, nil
}

func (m ClaimCoinsMessage) Serialize() []byte {
	size := baseMessageHeaderLen + 1 + len(m.Caller) + 2 + len(m.OrderIDs)*8
	buf := make([]byte, size)
	binary.BigEndian.PutUint16(buf[0:2], uint16(ClaimCoinsMsg))
	offset := putLenPrefixedString(buf, 2, m.Caller)
	putIDList(buf, offset, m.OrderIDs)
	return buf
}

// ClaimItemsMessage carries OrderIDs/ItemIDs as parallel arrays: entry i
// claims item ItemIDs[i] credited to order OrderIDs[i]. The two arrays must
// be the same length; core.Engine.ClaimItems enforces this.
type ClaimItemsMessage struct {
	BaseMessage
	Caller   string
	OrderIDs []uint64
	ItemIDs  []uint64
}

func parseClaimItems(msg []byte) (ClaimItemsMessage, error) {
	m := ClaimItemsMessage{BaseMessage: BaseMessage{TypeOf: ClaimItemsMsg}}
	caller, offset, err := readLenPrefixedString(msg, 0)
	if err != nil {
		return ClaimItemsMessage{}, err
	}
	m.Caller = caller
	orderIDs, offset, err := parseIDList(msg, offset)
	if err != nil {
		return ClaimItemsMessage{}, err
	}
	m.OrderIDs = orderIDs
	itemIDs, _, err := parseIDList(msg, offset)
	if err != nil {
		return ClaimItemsMessage{}, err
	}
	m.ItemIDs = itemIDs
	return m, nil
}

func (m ClaimItemsMessage) Serialize() []byte {
	size := baseMessageHeaderLen + 1 + len(m.Caller) + 2 + len(m.OrderIDs)*8 + 2 + len(m.ItemIDs)*8
	buf := make([]byte, size)
	binary.BigEndian.PutUint16(buf[0:2], uint16(ClaimItemsMsg))
	offset := putLenPrefixedString(buf, 2, m.Caller)
	offset = putIDList(buf, offset, m.OrderIDs)
	putIDList(buf, offset, m.ItemIDs)
	return buf
}

// ClaimAllMessage carries three independent arrays per claim_all(coin_ids,
// item_order_ids, item_ids): CoinOrderIDs feeds claim_coins, while
// ItemOrderIDs/ItemIDs are ClaimItemsMessage's parallel pair.
type ClaimAllMessage struct {
	BaseMessage
	Caller       string
	CoinOrderIDs []uint64
	ItemOrderIDs []uint64
	ItemIDs      []uint64
}

func parseClaimAll(msg []byte) (ClaimAllMessage, error) {
	m := ClaimAllMessage{BaseMessage: BaseMessage{TypeOf: ClaimAllMsg}}
	caller, offset, err := readLenPrefixedString(msg, 0)
	if err != nil {
		return ClaimAllMessage{}, err
	}
	m.Caller = caller
	coinOrderIDs, offset, err := parseIDList(msg, offset)
	if err != nil {
		return ClaimAllMessage{}, err
	}
	m.CoinOrderIDs = coinOrderIDs
	itemOrderIDs, offset, err := parseIDList(msg, offset)
	if err != nil {
		return ClaimAllMessage{}, err
	}
	m.ItemOrderIDs = itemOrderIDs
	itemIDs, _, err := parseIDList(msg, offset)
	if err != nil {
		return ClaimAllMessage{}, err
	}
	m.ItemIDs = itemIDs
	return m, nil
}

func (m ClaimAllMessage) Serialize() []byte {
	size := baseMessageHeaderLen + 1 + len(m.Caller) +
		2 + len(m.CoinOrderIDs)*8 +
		2 + len(m.ItemOrderIDs)*8 +
		2 + len(m.ItemIDs)*8
	buf := make([]byte, size)
	binary.BigEndian.PutUint16(buf[0:2], uint16(ClaimAllMsg))
	offset := putLenPrefixedString(buf, 2, m.Caller)
	offset = putIDList(buf, offset, m.CoinOrderIDs)
	offset = putIDList(buf, offset, m.ItemOrderIDs)
	putIDList(buf, offset, m.ItemIDs)
	return buf
}

// --- read-only query surface ---

type QueryMessage struct {
	BaseMessage
	Query   QueryType
	ItemID  uint64
	Side    engine.Side
	Price   uint64
	OrderID uint64
}

const queryMessageLen = 1 + 8 + 1 + 8 + 8

func parseQuery(msg []byte) (QueryMessage, error) {
	if len(msg) < queryMessageLen {
		return QueryMessage{}, ErrMessageTooShort
	}
	side := engine.Ask
	if msg[9] == 0 {
		side = engine.Bid
	}
	return QueryMessage{
		BaseMessage: BaseMessage{TypeOf: QueryMsg},
		Query:       QueryType(msg[0]),
		ItemID:      binary.BigEndian.Uint64(msg[1:9]),
		Side:        side,
		Price:       binary.BigEndian.Uint64(msg[10:18]),
		OrderID:     binary.BigEndian.Uint64(msg[18:26]),
	}, nil
}

func (m QueryMessage) Serialize() []byte {
	buf := make([]byte, baseMessageHeaderLen+queryMessageLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(QueryMsg))
	buf[2] = byte(m.Query)
	binary.BigEndian.PutUint64(buf[3:11], m.ItemID)
	side := byte(1)
	if m.Side == engine.Bid {
		side = 0
	}
	buf[11] = side
	binary.BigEndian.PutUint64(buf[12:20], m.Price)
	binary.BigEndian.PutUint64(buf[20:28], m.OrderID)
	return buf
}

// --- reports ---

const matchRecordLen = 8 + 8 + 8 // order_id + quantity + price

type LimitOrderOutcomeRecord struct {
	OrderID        uint64
	RestedPrice    uint64
	Residual       uint64
	Cost           uint64
	Matches        []engine.Match
	FailedToAdd    bool
	FailedQuantity uint64
}

func SerializeLimitOrdersReport(outcomes []core.LimitOrderOutcome) []byte {
	size := 1 + 2
	for _, o := range outcomes {
		size += 8 + 8 + 8 + 8 + 2 + len(o.Matches)*matchRecordLen + 1
		if o.FailedToAdd != nil {
			size += 8
		}
	}
	buf := make([]byte, size)
	buf[0] = byte(LimitOrdersReportType)
	binary.BigEndian.PutUint16(buf[1:3], uint16(len(outcomes)))
	offset := 3
	for _, o := range outcomes {
		binary.BigEndian.PutUint64(buf[offset:offset+8], o.OrderID)
		binary.BigEndian.PutUint64(buf[offset+8:offset+16], o.RestedPrice)
		binary.BigEndian.PutUint64(buf[offset+16:offset+24], o.Residual)
		binary.BigEndian.PutUint64(buf[offset+24:offset+32], o.Cost)
		offset += 32
		binary.BigEndian.PutUint16(buf[offset:offset+2], uint16(len(o.Matches)))
		offset += 2
		for _, m := range o.Matches {
			binary.BigEndian.PutUint64(buf[offset:offset+8], m.OrderID)
			binary.BigEndian.PutUint64(buf[offset+8:offset+16], m.Quantity)
			binary.BigEndian.PutUint64(buf[offset+16:offset+24], m.Price)
			offset += matchRecordLen
		}
		if o.FailedToAdd != nil {
			buf[offset] = 1
			offset++
			binary.BigEndian.PutUint64(buf[offset:offset+8], o.FailedToAdd.Quantity)
			offset += 8
		} else {
			buf[offset] = 0
			offset++
		}
	}
	return buf
}

func SerializeClaimCoinsReport(amount uint64) []byte {
	buf := make([]byte, 1+8)
	buf[0] = byte(ClaimCoinsReportType)
	binary.BigEndian.PutUint64(buf[1:9], amount)
	return buf
}

// SerializeClaimItemsReport reports the total raw item quantity paid out
// across every (order_id, item_id) pair in the claim; items of different ids
// carry no fee split, so a single summed total is all the caller needs to
// reconcile the batch.
func SerializeClaimItemsReport(amount uint64) []byte {
	buf := make([]byte, 1+8)
	buf[0] = byte(ClaimItemsReportType)
	binary.BigEndian.PutUint64(buf[1:9], amount)
	return buf
}

func SerializeClaimAllReport(coins, items uint64) []byte {
	buf := make([]byte, 1+8+8)
	buf[0] = byte(ClaimAllReportType)
	binary.BigEndian.PutUint64(buf[1:9], coins)
	binary.BigEndian.PutUint64(buf[9:17], items)
	return buf
}

func SerializeQueryReport(found bool, value uint64) []byte {
	buf := make([]byte, 1+1+8)
	buf[0] = byte(QueryReportType)
	if found {
		buf[1] = 1
	}
	binary.BigEndian.PutUint64(buf[2:10], value)
	return buf
}

func SerializeCancelReport() []byte {
	return []byte{byte(CancelReportType)}
}

func SerializeErrorReport(err error) []byte {
	msg := err.Error()
	buf := make([]byte, 1+4+len(msg))
	buf[0] = byte(ErrorReportType)
	binary.BigEndian.PutUint32(buf[1:5], uint32(len(msg)))
	copy(buf[5:], msg)
	return buf
}
