package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/tatianab/prairie/internal/config"
	"github.com/tatianab/prairie/internal/engine"
	"github.com/tatianab/prairie/internal/models"
	"github.com/tatianab/prairie/internal/session"
	"github.com/tatianab/prairie/internal/store"
)

const maxTurns = 10

// stdoutRenderer prints everything the session shows the player.
type stdoutRenderer struct{}

func (stdoutRenderer) RenderTurn(v session.TurnView) {
	if v.CommandEcho != "" {
		fmt.Printf("> %s\n", v.CommandEcho)
	}
	fmt.Printf("%s\n\n", v.NarrativeText)
	if v.IsConclusion {
		fmt.Println("--- The story has concluded ---")
	}
}

func (stdoutRenderer) RenderMessage(msg string) { fmt.Printf("[system] %s\n", msg) }
func (stdoutRenderer) RenderError(msg string)   { fmt.Printf("[error] %s\n", msg) }
func (stdoutRenderer) RequestConfiguration() {
	fmt.Println("[system] the narrator has no API key; set PRAIRIE_API_KEY")
}

func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.APIKey == "" || cfg.GeminiAPIKey == "" {
		log.Fatal("PRAIRIE_API_KEY and GEMINI_API_KEY must both be set")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// The narrator plays from a throwaway world.
	kv := store.NewMemoryStore()
	ctrl := session.New(session.Config{
		World:    models.NewWorldState(kv, models.WithLogger(logger)),
		Client:   engine.NewEngine(cfg.EngineConfig()),
		Renderer: stdoutRenderer{},
		Settings: kv,
		Logger:   logger,
	})
	if err := ctrl.Configure(cfg.Provider, cfg.APIKey); err != nil {
		log.Fatalf("Failed to configure narrator: %v", err)
	}

	playerClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create player client: %v", err)
	}
	defer playerClient.Close()
	playerModel := playerClient.GenerativeModel("gemini-2.5-flash")

	ctrl.Start()
	for turn := 1; turn <= maxTurns; turn++ {
		fmt.Printf("--- Turn %d ---\n", turn)

		command := getPlayerCommand(ctx, playerModel, ctrl.World())
		err := ctrl.Submit(ctx, command)
		switch {
		case errors.Is(err, session.ErrConcluded):
			return
		case err != nil:
			fmt.Printf("Turn failed: %v\n", err)
			return
		}

		world := ctrl.World()
		pos := world.Position()
		names := make([]string, 0, len(world.Inventory()))
		for _, item := range world.Inventory() {
			names = append(names, item.Name)
		}
		fmt.Printf("Location: x=%d, y=%d  Inventory: %v\n\n", pos.X, pos.Y, names)

		if ctrl.State() == session.Concluded {
			fmt.Println("Game Ended.")
			return
		}
	}
}

func getPlayerCommand(ctx context.Context, model *genai.GenerativeModel, world *models.WorldState) string {
	var history strings.Builder
	for _, t := range world.DisplayedTurns() {
		if t.Command != "" {
			fmt.Fprintf(&history, "You: %s\n", t.Command)
		}
		fmt.Fprintf(&history, "Narrator: %s\n", t.Response)
	}

	prompt := fmt.Sprintf(`You are playing a text adventure set on an endless, dreamlike prairie.
Short commands work best, such as "go north", "take the feather" or "drop the lantern".

History:
%s
What is your next command? Return ONLY the command, no extra commentary.`, history.String())

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "look around"
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "look around"
	}
	return strings.TrimSpace(fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]))
}
