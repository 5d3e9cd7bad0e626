package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/chatchum/relay/internal/client"
	"github.com/chatchum/relay/pkg/protocol"
)

func main() {
	serverAddr := flag.String("server", "ws://localhost:8080", "WebSocket server address (e.g., ws://localhost:8080)")
	username := flag.String("username", "", "Username for chat")
	flag.Parse()

	if *username == "" {
		log.Fatal("Username is required. Use -username flag")
	}

	c := client.NewWebSocket(*serverAddr, *username)

	if err := c.Connect(); err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}
	defer c.Disconnect()

	if err := c.Register(5 * time.Second); err != nil {
		log.Fatalf("Failed to register: %v", err)
	}
	log.Printf("Connected to %s as %s", *serverAddr, *username)

	go func() {
		for frame := range c.Frames() {
			switch frame.Type {
			case protocol.KindMessage:
				fmt.Printf("[%s -> %s]: %s\n", frame.From, frame.To, frame.Content)
			case protocol.KindUserList:
				fmt.Printf("*** online: %s ***\n", strings.Join(frame.Users, ", "))
			case protocol.KindHistory:
				fmt.Printf("--- history with %s (%d messages) ---\n", frame.With, len(frame.Messages))
				for _, entry := range frame.Messages {
					fmt.Printf("  [%s -> %s]: %s\n", entry.From, entry.To, entry.Content)
				}
			case protocol.KindPong:
				fmt.Println("*** pong ***")
			case protocol.KindError:
				fmt.Printf("!!! %s\n", frame.Reason)
			}
		}
	}()

	fmt.Println("Commands: /msg <user> <text>, /users, /history <user>, /ping, quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}

		switch {
		case strings.HasPrefix(line, "/msg "):
			parts := strings.SplitN(strings.TrimPrefix(line, "/msg "), " ", 2)
			if len(parts) != 2 {
				fmt.Println("Usage: /msg <user> <text>")
				continue
			}
			if err := c.Send(parts[0], parts[1]); err != nil {
				log.Printf("Failed to send message: %v", err)
			}
		case line == "/users":
			if err := c.RequestUsers(); err != nil {
				log.Printf("Failed to request users: %v", err)
			}
		case strings.HasPrefix(line, "/history "):
			with := strings.TrimSpace(strings.TrimPrefix(line, "/history "))
			if err := c.RequestHistory(with); err != nil {
				log.Printf("Failed to request history: %v", err)
			}
		case line == "/ping":
			if err := c.Ping(); err != nil {
				log.Printf("Failed to ping: %v", err)
			}
		default:
			fmt.Println("Unknown command. Try /msg, /users, /history, /ping or quit")
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Error reading input: %v", err)
	}
	log.Println("Disconnected from server")
}
