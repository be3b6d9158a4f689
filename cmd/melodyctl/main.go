// Package main provides the remote control CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	apiconnect "github.com/osa030/melody/internal/api/connect"
)

var (
	app      = kingpin.New("melodyctl", "melody remote control client")
	server   = app.Flag("server", "Server address").Default("http://localhost:7419").String()
	token    = app.Flag("token", "Control token (or set MELODY_CONTROL_TOKEN env)").Envar("MELODY_CONTROL_TOKEN").String()
	jsonFlag = app.Flag("json", "Print raw JSON").Bool()

	// exec command
	execCmd  = app.Command("exec", "Run a player command, e.g. exec search miles davis")
	execLine = execCmd.Arg("command", "Command and arguments").Required().Strings()

	// status command
	statusCmd = app.Command("status", "Get player status")

	// subscribe command
	subscribeCmd = app.Command("subscribe", "Subscribe to notifications")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Create client
	client := apiconnect.NewControlClient(http.DefaultClient, *server, *token)

	ctx := context.Background()

	// Execute command
	switch command {
	case execCmd.FullCommand():
		execute(ctx, client, strings.Join(*execLine, " "))
	case statusCmd.FullCommand():
		status(ctx, client)
	case subscribeCmd.FullCommand():
		subscribe(ctx, client)
	}
}

func execute(ctx context.Context, client *apiconnect.ControlClient, line string) {
	out, err := client.Execute(ctx, line)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(out)
}

func status(ctx context.Context, client *apiconnect.ControlClient) {
	s, err := client.GetStatus(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if *jsonFlag {
		printJSON(s)
		return
	}

	m := s.AsMap()
	fmt.Println("\n=== PLAYER STATUS ===")
	fmt.Printf("Session: %v (%v)\n", m["session_id"], m["phase"])
	if started, ok := m["started_at"]; ok {
		fmt.Printf("Started: %v\n", started)
	}
	fmt.Printf("Listeners: %v\n", m["subscribers"])
	fmt.Printf("State: %v\n", m["state"])
	fmt.Printf("Catalog: %v\n", m["catalog"])
	fmt.Printf("Autoplay: %v\n", m["autoplay"])
	fmt.Printf("Volume: %v%%\n", m["volume"])
	fmt.Printf("Queue: %v of %v\n", m["position"], m["queue_length"])

	if t, ok := m["track"].(map[string]any); ok {
		fmt.Println("\nCurrently Playing:")
		printTrack(t)
		if elapsed, ok := m["elapsed_sec"].(float64); ok {
			fmt.Printf("  Elapsed: %s\n", formatSeconds(elapsed))
		}
		if file, ok := m["file"].(string); ok {
			fmt.Printf("  File: %s\n", file)
		}
	} else {
		fmt.Println("\nNo track currently playing")
	}
	fmt.Println()
}

func subscribe(ctx context.Context, client *apiconnect.ControlClient) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := client.Subscribe(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer stream.Close()

	fmt.Println("Subscribed to notifications. Press Ctrl+C to exit.")

	// Handle shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nUnsubscribing...")
		cancel()
	}()

	// Receive notifications
	for stream.Receive() {
		if *jsonFlag {
			printJSON(stream.Msg())
			continue
		}
		printNotification(stream.Msg().AsMap())
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		fmt.Printf("Stream error: %v\n", err)
	}
}

func printNotification(n map[string]any) {
	fmt.Printf("\n[Sequence: %v] ", n["sequence_no"])

	switch n["type"] {
	case "initial_state":
		fmt.Println("=== INITIAL STATE ===")
	case "track_loading":
		fmt.Println("=== LOADING ===")
	case "track_started":
		fmt.Println("=== TRACK STARTED ===")
	case "track_ended":
		fmt.Println("=== TRACK ENDED ===")
	case "track_stopped":
		fmt.Println("=== STOPPED ===")
	case "queue_refilled":
		fmt.Println("=== QUEUE REFILLED ===")
	case "queue_ended":
		fmt.Println("=== QUEUE ENDED ===")
	case "error":
		fmt.Println("=== ERROR ===")
	default:
		fmt.Printf("=== %v ===\n", n["type"])
	}

	if state, ok := n["state"]; ok {
		fmt.Printf("State: %v\n", state)
	}
	if t, ok := n["track"].(map[string]any); ok {
		printTrack(t)
	}
	if msg, ok := n["message"]; ok {
		fmt.Printf("Message: %v\n", msg)
	}
}

func printTrack(t map[string]any) {
	fmt.Printf("  Track ID: %v\n", t["id"])
	fmt.Printf("  Title: %v\n", t["title"])
	fmt.Printf("  Artists: %v\n", t["artists"])
	if album, _ := t["album"].(string); album != "" {
		fmt.Printf("  Album: %s\n", album)
	}
	if d, ok := t["duration_sec"].(float64); ok {
		fmt.Printf("  Duration: %s\n", formatSeconds(d))
	}
	fmt.Printf("  URL: %v\n", t["url"])
}

func formatSeconds(sec float64) string {
	total := int(sec)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func printJSON(s *structpb.Struct) {
	b, err := protojson.MarshalOptions{Multiline: true}.Marshal(s)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Println(string(b))
}
