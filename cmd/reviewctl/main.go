// reviewctl sends one operator command to a running reconciler and prints
// the reply.
//
// Usage:
//
//	reviewctl status
//	reviewctl pending
//	reviewctl resolved rec_1a2b3c
//
// The daemon address comes from COMMAND_ADDR (default localhost:8085).
package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		log.Fatal("usage: reviewctl <command> [args]")
	}
	line := strings.Join(os.Args[1:], " ")

	addr := os.Getenv("COMMAND_ADDR")
	if addr == "" {
		addr = "localhost:8085"
	}
	url := "ws://" + addr + "/commands"

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("connect %s: %v", url, err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		log.Fatalf("send: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	_, reply, err := conn.ReadMessage()
	if err != nil {
		log.Fatalf("read reply: %v", err)
	}
	fmt.Println(string(reply))
}
