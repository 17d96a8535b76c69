package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gxvn1/GxvnsChatApp/internal/client"
	"github.com/gxvn1/GxvnsChatApp/internal/logging"
	"github.com/gxvn1/GxvnsChatApp/internal/protocol"
)

const pollInterval = 100 * time.Millisecond

func main() {
	url := flag.String("url", "ws://localhost:8765/ws", "server WebSocket URL")
	username := flag.String("username", "", "account name")
	password := flag.String("password", "", "account password")
	flag.Parse()

	if *username == "" || *password == "" {
		log.Fatal("both -username and -password are required")
	}

	// Keep the terminal for chat; only warnings and errors reach stderr.
	logging.InitLogger("warn", "text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(*url, *username, *password, clockwork.NewRealClock())

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	lines := readStdin(ctx)

	fmt.Printf("connecting to %s as %s\n", *url, *username)
	fmt.Println("commands: /msg <user> <text>, /group <name> <text>, /newgroup <name> <a,b,c>, /addfriend <user>; plain text broadcasts")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nbye")
			return

		case err := <-runErr:
			if errors.Is(err, client.ErrAuthRejected) {
				log.Fatalf("login rejected: %v", err)
			}
			if !errors.Is(err, context.Canceled) {
				log.Fatalf("connection loop ended: %v", err)
			}
			return

		case line, ok := <-lines:
			if !ok {
				stop()
				continue
			}
			if env := parseLine(line); env != nil {
				if err := c.Send(env); err != nil {
					fmt.Printf("! not sent: %v\n", err)
				}
			}

		case <-ticker.C:
			drainEvents(c)
		}
	}
}

func readStdin(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// parseLine turns one terminal line into an envelope, or nil when the line is
// empty or the command is incomplete.
func parseLine(line string) *protocol.Envelope {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if !strings.HasPrefix(line, "/") {
		return &protocol.Envelope{Type: protocol.TypeMessage, Content: line}
	}

	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "/msg":
		to, text, ok := splitArg(rest)
		if !ok {
			fmt.Println("usage: /msg <user> <text>")
			return nil
		}
		return &protocol.Envelope{Type: protocol.TypeMessage, To: to, Content: text}

	case "/group":
		group, text, ok := splitArg(rest)
		if !ok {
			fmt.Println("usage: /group <name> <text>")
			return nil
		}
		return &protocol.Envelope{Type: protocol.TypeMessage, Group: group, Content: text}

	case "/newgroup":
		name, memberList, ok := splitArg(rest)
		if !ok {
			fmt.Println("usage: /newgroup <name> <a,b,c>")
			return nil
		}
		var members []string
		for _, m := range strings.Split(memberList, ",") {
			if m = strings.TrimSpace(m); m != "" {
				members = append(members, m)
			}
		}
		return &protocol.Envelope{Type: protocol.TypeCreateGroup, GroupName: name, Members: members}

	case "/addfriend":
		friend := strings.TrimSpace(rest)
		if friend == "" {
			fmt.Println("usage: /addfriend <user>")
			return nil
		}
		return &protocol.Envelope{Type: protocol.TypeAddFriend, Friend: friend}

	default:
		fmt.Printf("unknown command %s\n", cmd)
		return nil
	}
}

func splitArg(rest string) (first, remainder string, ok bool) {
	first, remainder, found := strings.Cut(strings.TrimSpace(rest), " ")
	remainder = strings.TrimSpace(remainder)
	return first, remainder, found && first != "" && remainder != ""
}

// drainEvents empties the client's event queue onto the terminal.
func drainEvents(c *client.Client) {
	for {
		select {
		case ev := <-c.Events():
			render(ev)
		default:
			return
		}
	}
}

func render(ev client.Event) {
	switch {
	case ev.State == client.StateAuthenticated && ev.Envelope != nil:
		fmt.Printf("* logged in as %s", ev.Envelope.Username)
		if len(ev.Envelope.Friends) > 0 {
			fmt.Printf(" (friends: %s)", strings.Join(ev.Envelope.Friends, ", "))
		}
		fmt.Println()

	case ev.Err != nil:
		if ev.RetryIn > 0 {
			fmt.Printf("* disconnected, retrying in %s\n", ev.RetryIn)
		} else {
			fmt.Printf("* disconnected: %v\n", ev.Err)
		}

	case ev.Envelope != nil:
		renderEnvelope(ev.Envelope)
	}
}

func renderEnvelope(env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeMessage:
		switch {
		case env.Group != "":
			fmt.Printf("[%s] %s: %s\n", env.Group, env.Username, env.Content)
		case env.To != "":
			fmt.Printf("(dm) %s: %s\n", env.Username, env.Content)
		default:
			fmt.Printf("%s: %s\n", env.Username, env.Content)
		}
	case protocol.TypeUserOnline:
		fmt.Printf("* %s is online\n", env.Username)
	case protocol.TypeUserOffline:
		fmt.Printf("* %s went offline\n", env.Username)
	case protocol.TypeGroupCreated:
		fmt.Printf("* group %s created by %s (%s)\n", env.GroupName, env.Creator, strings.Join(env.Members, ", "))
	case protocol.TypeFriendAdded:
		fmt.Printf("* %s is now your friend\n", env.Friend)
	case protocol.TypeFriendRequest:
		fmt.Printf("* %s added you as a friend\n", env.From)
	case protocol.TypeSystem:
		fmt.Printf("* %s\n", env.Content)
	case protocol.TypeCallRequest:
		fmt.Printf("* incoming call from %s\n", env.Username)
	case protocol.TypeScreenShare:
		fmt.Printf("* %s started a screen share\n", env.Username)
	}
}
