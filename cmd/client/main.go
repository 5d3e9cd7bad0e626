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
	serverAddr := flag.String("server", "localhost:7454", "Server address (e.g., localhost:7454)")
	username := flag.String("username", "", "Username for chat")
	flag.Parse()

	if *username == "" {
		log.Fatal("Username is required. Use -username flag")
	}

	c := client.New(*serverAddr, *username)

	if err := c.Connect(); err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}
	defer c.Disconnect()

	if err := c.Register(5 * time.Second); err != nil {
		log.Fatalf("Failed to register: %v", err)
	}
	log.Printf("Connected to %s as %s", *serverAddr, *username)

	go printFrames(c.Frames())

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
		if err := handleCommand(c, line); err != nil {
			log.Printf("Failed to send: %v", err)
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Error reading input: %v", err)
	}
	log.Println("Disconnected from server")
}

func handleCommand(c *client.Client, line string) error {
	switch {
	case strings.HasPrefix(line, "/msg "):
		parts := strings.SplitN(strings.TrimPrefix(line, "/msg "), " ", 2)
		if len(parts) != 2 {
			fmt.Println("Usage: /msg <user> <text>")
			return nil
		}
		return c.Send(parts[0], parts[1])
	case line == "/users":
		return c.RequestUsers()
	case strings.HasPrefix(line, "/history "):
		return c.RequestHistory(strings.TrimSpace(strings.TrimPrefix(line, "/history ")))
	case line == "/ping":
		return c.Ping()
	default:
		fmt.Println("Unknown command. Try /msg, /users, /history, /ping or quit")
		return nil
	}
}

func printFrames(frames <-chan protocol.Frame) {
	for frame := range frames {
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
}
