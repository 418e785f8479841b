package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"linguachat/client/internal/app"
	"linguachat/client/internal/config"
	"linguachat/client/internal/models"
)

const usage = `Usage: admin <command> [args]

Commands:
  rooms                       list chat rooms
  users                       refresh and print the identity directory
  history <room> [language]   print the message history of a room
  set-language <room> <lang>  store the display language of a room
  languages                   list supported display languages`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	switch command {
	case "rooms":
		rooms, err := a.Backend.ListRooms(ctx)
		if err != nil {
			return err
		}
		for _, room := range rooms {
			fmt.Printf("%s\t%s\t%d members\n", room.ID, room.Name, len(room.Members))
		}

	case "users":
		if err := a.Directory.Refresh(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		fmt.Printf("%d identities known\n", a.Directory.Len())

	case "history":
		if len(args) < 1 {
			return fmt.Errorf("usage: admin history <room> [language]")
		}
		lang := models.LanguageOriginal
		if len(args) > 1 {
			if lang, err = models.ParseLanguage(args[1]); err != nil {
				return err
			}
		}
		_ = a.Directory.Refresh(ctx)
		messages, err := a.Backend.FetchHistory(ctx, args[0], lang)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		for _, msg := range messages {
			name := msg.Sender.DisplayName
			if name == "" {
				name = a.Directory.Resolve(msg.Sender.ID)
			}
			if err := enc.Encode(map[string]string{"id": msg.ID, "sender": name, "text": msg.Text()}); err != nil {
				return err
			}
		}

	case "set-language":
		if len(args) < 2 {
			return fmt.Errorf("usage: admin set-language <room> <lang>")
		}
		lang, err := models.ParseLanguage(args[1])
		if err != nil {
			return err
		}
		if err := a.Backend.SetLanguage(ctx, args[0], lang); err != nil {
			return err
		}
		fmt.Printf("Language of room %s set to %s\n", args[0], lang)

	case "languages":
		for _, lang := range models.SupportedLanguages {
			fmt.Println(lang)
		}

	default:
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}
	return nil
}
