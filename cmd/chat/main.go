package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"nexus-rag/internal/chat"
	"nexus-rag/internal/config"
	"nexus-rag/internal/domain"
	"nexus-rag/internal/query"
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	client := query.NewHTTPClient(cfg.APIBaseURL, cfg.APIKey, logger)
	store := chat.NewFileStore(cfg.ChatCachePath)

	manager, err := chat.NewManager(client, store, cfg.TeamID, logger)
	if err != nil {
		log.Fatalf("cargar sesiones: %v", err)
	}

	// Presencia mientras el cliente está abierto; se detiene al salir o
	// al cambiar de equipo.
	heartbeat := chat.StartHeartbeat(ctx, client, cfg.TeamID, cfg.HeartbeatInterval(), logger)
	defer heartbeat.Stop()

	// Imprime los incrementos del stream según llegan.
	var printed int
	manager.OnUpdate = func(session *domain.ChatSession) {
		msg := session.LastMessage()
		if msg == nil || msg.Role != domain.RoleAssistant {
			return
		}
		if len(msg.Content) > printed {
			fmt.Print(msg.Content[printed:])
			printed = len(msg.Content)
		}
	}

	fmt.Println("===== NEXUS Chat =====")
	fmt.Println("Comandos: /new /list /select N /rename titulo /delete /quit")

	for {
		fmt.Print("\n> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := runCommand(ctx, manager, line); quit {
				return
			}
			continue
		}

		printed = 0
		msg, err := manager.Send(ctx, line)
		switch {
		case errors.Is(err, chat.ErrSendInFlight):
			fmt.Println("Ya hay una pregunta en curso.")
			continue
		case err != nil:
			fmt.Printf("\nError: %v\n", err)
			continue
		}
		fmt.Println()
		for _, cit := range msg.Citations {
			fmt.Printf("  [Source: %s, page %d]\n", cit.FileName, cit.Page)
		}
	}
}

func runCommand(ctx context.Context, manager *chat.Manager, line string) bool {
	parts := strings.SplitN(line, " ", 2)
	arg := ""
	if len(parts) > 1 {
		arg = strings.TrimSpace(parts[1])
	}

	switch parts[0] {
	case "/quit":
		return true
	case "/new":
		session := manager.NewChat()
		fmt.Printf("Sesión nueva: %s\n", session.ID)
	case "/list":
		for i, s := range manager.Sessions() {
			marker := " "
			if active := manager.Active(); active != nil && active.ID == s.ID {
				marker = "*"
			}
			fmt.Printf("%s [%d] %s (%d mensajes)\n", marker, i+1, s.Title, len(s.Messages))
		}
	case "/select":
		sessions := manager.Sessions()
		idx, err := strconv.Atoi(arg)
		if err != nil || idx < 1 || idx > len(sessions) {
			fmt.Println("Selección inválida.")
			return false
		}
		if err := manager.SelectChat(sessions[idx-1].ID); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	case "/rename":
		active := manager.Active()
		if active == nil {
			fmt.Println("No hay sesión activa.")
			return false
		}
		if err := manager.RenameChat(active.ID, arg); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	case "/delete":
		active := manager.Active()
		if active == nil {
			fmt.Println("No hay sesión activa.")
			return false
		}
		if err := manager.DeleteChat(ctx, active.ID); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	default:
		fmt.Println("Comando desconocido.")
	}
	return false
}
