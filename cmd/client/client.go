package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"

	"fenrir-lob/internal/core"
	"fenrir-lob/internal/engine"
	fenrirNet "fenrir-lob/internal/net"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "Address of the matching engine server")
	caller := flag.String("caller", "", "Caller account (compulsory)")
	action := flag.String("action", "limit", "Action to perform: ['limit', 'cancel', 'claim-coins', 'claim-items', 'claim-all', 'highest-bid', 'lowest-ask']")

	itemID := flag.Uint64("item", 1, "Item id")
	sideStr := flag.String("side", "buy", "Order side: 'buy' or 'sell'")
	price := flag.Uint64("price", 100, "Limit price")
	qtyStr := flag.String("qty", "10", "Quantity or comma-separated list (e.g. 10,20,50)")

	orderID := flag.Uint64("order", 0, "Order id (required for 'cancel')")
	ordersStr := flag.String("orders", "", "Comma-separated order ids (required for claim actions)")
	itemsStr := flag.String("items", "", "Comma-separated item ids, parallel to -orders (claim-items/claim-all; defaults to -item repeated)")
	coinOrdersStr := flag.String("coin-orders", "", "Comma-separated order ids for the coin leg of claim-all (defaults to -orders)")

	flag.Parse()

	if *caller == "" {
		fmt.Println("Error: -caller is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("Failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s as '%s'\n", *serverAddr, *caller)

	go readReports(conn)

	side := engine.Bid
	if strings.ToLower(*sideStr) == "sell" {
		side = engine.Ask
	}

	switch strings.ToLower(*action) {
	case "limit":
		quantities := parseUint64List(*qtyStr)
		orders := make([]core.LimitOrderInput, 0, len(quantities))
		for _, q := range quantities {
			orders = append(orders, core.LimitOrderInput{
				Side: side, ItemID: *itemID, Price: *price, Quantity: q,
			})
		}
		msg := fenrirNet.LimitOrdersMessage{Maker: *caller, Orders: orders}
		if err := send(conn, msg.Serialize()); err != nil {
			log.Printf("Failed to send limit_orders: %v", err)
		} else {
			fmt.Printf("-> Sent %d limit order(s) on item %d\n", len(orders), *itemID)
		}

	case "cancel":
		if *orderID == 0 {
			log.Fatal("Error: -order is required for cancel")
		}
		msg := fenrirNet.CancelOrdersMessage{
			Caller: *caller,
			Cancels: []core.CancelInput{
				{OrderID: *orderID, Side: side, ItemID: *itemID, Price: *price},
			},
		}
		if err := send(conn, msg.Serialize()); err != nil {
			log.Printf("Failed to send cancel_orders: %v", err)
		} else {
			fmt.Printf("-> Sent cancel for order %d\n", *orderID)
		}

	case "claim-coins":
		ids := parseUint64List(*ordersStr)
		msg := fenrirNet.ClaimCoinsMessage{Caller: *caller, OrderIDs: ids}
		if err := send(conn, msg.Serialize()); err != nil {
			log.Printf("Failed to send claim_coins: %v", err)
		}

	case "claim-items":
		orderIDs := parseUint64List(*ordersStr)
		itemIDs := parallelItemIDs(*itemsStr, *itemID, len(orderIDs))
		msg := fenrirNet.ClaimItemsMessage{Caller: *caller, OrderIDs: orderIDs, ItemIDs: itemIDs}
		if err := send(conn, msg.Serialize()); err != nil {
			log.Printf("Failed to send claim_items: %v", err)
		}

	case "claim-all":
		itemOrderIDs := parseUint64List(*ordersStr)
		itemIDs := parallelItemIDs(*itemsStr, *itemID, len(itemOrderIDs))
		coinOrderIDs := itemOrderIDs
		if *coinOrdersStr != "" {
			coinOrderIDs = parseUint64List(*coinOrdersStr)
		}
		msg := fenrirNet.ClaimAllMessage{Caller: *caller, CoinOrderIDs: coinOrderIDs, ItemOrderIDs: itemOrderIDs, ItemIDs: itemIDs}
		if err := send(conn, msg.Serialize()); err != nil {
			log.Printf("Failed to send claim_all: %v", err)
		}

	case "highest-bid":
		msg := fenrirNet.QueryMessage{Query: fenrirNet.QueryHighestBid, ItemID: *itemID}
		send(conn, msg.Serialize())

	case "lowest-ask":
		msg := fenrirNet.QueryMessage{Query: fenrirNet.QueryLowestAsk, ItemID: *itemID}
		send(conn, msg.Serialize())

	default:
		log.Fatalf("Unknown action: %s", *action)
	}

	fmt.Println("\nListening for reports... (Press Ctrl+C to exit)")
	select {}
}

func send(conn net.Conn, buf []byte) error {
	_, err := conn.Write(buf)
	return err
}

// parallelItemIDs returns the item id list to pair against a claim's order
// ids: an explicit -items list if given, else a single item id repeated n
// times (the common case of claiming one item id across several orders).
func parallelItemIDs(itemsStr string, defaultItemID uint64, n int) []uint64 {
	if itemsStr != "" {
		return parseUint64List(itemsStr)
	}
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = defaultItemID
	}
	return ids
}

func parseUint64List(input string) []uint64 {
	var result []uint64
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if val, err := strconv.ParseUint(p, 10, 64); err == nil {
			result = append(result, val)
		} else {
			log.Printf("Warning: Invalid value '%s', skipping.", p)
		}
	}
	return result
}

// readReports continuously reads and prints report frames from the server.
// Each Read is treated as one frame: this reference client never needs to
// reassemble a report across multiple TCP reads.
func readReports(conn net.Conn) {
	buf := make([]byte, 64*1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if err != io.EOF {
				log.Printf("Connection lost: %v", err)
			}
			os.Exit(0)
		}
		printReport(buf[:n])
	}
}

func printReport(msg []byte) {
	if len(msg) == 0 {
		return
	}
	switch fenrirNet.ReportType(msg[0]) {
	case fenrirNet.LimitOrdersReportType:
		printLimitOrdersReport(msg[1:])
	case fenrirNet.CancelReportType:
		fmt.Println("\n[CANCEL] ok")
	case fenrirNet.ClaimCoinsReportType:
		amount := binary.BigEndian.Uint64(msg[1:9])
		fmt.Printf("\n[CLAIM COINS] %d\n", amount)
	case fenrirNet.ClaimItemsReportType:
		amount := binary.BigEndian.Uint64(msg[1:9])
		fmt.Printf("\n[CLAIM ITEMS] amount=%d\n", amount)
	case fenrirNet.ClaimAllReportType:
		coins := binary.BigEndian.Uint64(msg[1:9])
		items := binary.BigEndian.Uint64(msg[9:17])
		fmt.Printf("\n[CLAIM ALL] coins=%d items=%d\n", coins, items)
	case fenrirNet.QueryReportType:
		found := msg[1] != 0
		value := binary.BigEndian.Uint64(msg[2:10])
		fmt.Printf("\n[QUERY] found=%v value=%d\n", found, value)
	case fenrirNet.ErrorReportType:
		n := binary.BigEndian.Uint32(msg[1:5])
		fmt.Printf("\n[SERVER ERROR] %s\n", string(msg[5:5+n]))
	default:
		fmt.Printf("\n[UNKNOWN REPORT] %v\n", msg)
	}
}

func printLimitOrdersReport(body []byte) {
	count := binary.BigEndian.Uint16(body[0:2])
	offset := 2
	for i := 0; i < int(count); i++ {
		orderID := binary.BigEndian.Uint64(body[offset : offset+8])
		restedPrice := binary.BigEndian.Uint64(body[offset+8 : offset+16])
		residual := binary.BigEndian.Uint64(body[offset+16 : offset+24])
		cost := binary.BigEndian.Uint64(body[offset+24 : offset+32])
		offset += 32
		matchCount := binary.BigEndian.Uint16(body[offset : offset+2])
		offset += 2
		offset += int(matchCount) * 24
		failedToAdd := body[offset]
		offset++
		if failedToAdd == 1 {
			offset += 8
		}
		fmt.Printf("\n[LIMIT ORDER %d] order_id=%d rested_price=%d residual=%d cost=%d matches=%d\n",
			i, orderID, restedPrice, residual, cost, matchCount)
	}
}
