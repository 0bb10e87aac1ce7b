// ParaFlow - conversation-driven PARA organizer
// Chats locally, extracts projects/areas/resources/archive suggestions,
// and pushes confirmed elements into a Notion workspace.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/paraflow/paraflow/pkg/config"
	"github.com/paraflow/paraflow/pkg/extract"
	"github.com/paraflow/paraflow/pkg/gateway"
	"github.com/paraflow/paraflow/pkg/notion"
	"github.com/paraflow/paraflow/pkg/para"
	"github.com/paraflow/paraflow/pkg/providers"
	"github.com/paraflow/paraflow/pkg/pusher"
	"github.com/paraflow/paraflow/pkg/settings"
	"github.com/paraflow/paraflow/pkg/transcribe"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const (
	appName = "paraflow"

	// defaultUserID keys local CLI state in the settings store. The gateway
	// uses per-request user IDs instead.
	defaultUserID = "cli"
)

// formatVersion returns the version string with optional git commit
func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// formatBuildInfo returns build time and go version info
func formatBuildInfo() (build string, goVer string) {
	if buildTime != "" {
		build = buildTime
	}
	goVer = goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return
}

func printVersion() {
	fmt.Printf("%s %s\n", appName, formatVersion())
	build, goVer := formatBuildInfo()
	if build != "" {
		fmt.Printf("  Build: %s\n", build)
	}
	if goVer != "" {
		fmt.Printf("  Go: %s\n", goVer)
	}
}

func main() {
	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".paraflow", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}

func validateRuntimeConfig(cfg *config.Config) error {
	if err := providers.ValidateProviderConfig(cfg); err != nil {
		return fmt.Errorf("%w (set it in %s or via environment)", err, getConfigPath())
	}
	return nil
}

func runOnboard() error {
	configPath := getConfigPath()
	reader := bufio.NewReader(os.Stdin)

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Print("Overwrite? (y/n): ")
		response, readErr := reader.ReadString('\n')
		if readErr != nil {
			fmt.Println("Aborted.")
			return nil
		}
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(configPath, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Print("Set up a persona now? It seeds your PARA databases later. (y/n): ")
	answer, _ := reader.ReadString('\n')
	if a := strings.ToLower(strings.TrimSpace(answer)); a == "y" || a == "yes" {
		if err := collectPersona(reader, cfg); err != nil {
			fmt.Printf("Persona not saved: %v\n", err)
		}
	}

	fmt.Printf("%s is ready!\n", appName)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add your API key to", configPath)
	fmt.Println("     Get one at: https://openrouter.ai/keys")
	fmt.Println("  2. Connect Notion: paraflow notion connect --token <secret>")
	fmt.Println("  3. Provision PARA databases: paraflow notion provision")
	fmt.Println("  4. Chat locally: paraflow chat")
	fmt.Println("  5. Run gateway: paraflow gateway")
	return nil
}

func collectPersona(reader *bufio.Reader, cfg *config.Config) error {
	ask := func(prompt string) string {
		fmt.Print(prompt)
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}
	askList := func(prompt string) []string {
		raw := ask(prompt)
		if raw == "" {
			return nil
		}
		var out []string
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	}

	persona := settings.Persona{
		Name:            ask("Name: "),
		Age:             ask("Age: "),
		Occupation:      ask("Occupation: "),
		Interests:       askList("Interests (comma-separated): "),
		CurrentProjects: askList("Current projects (comma-separated): "),
		WorkStyle:       ask("Work style: "),
	}

	store, err := settings.NewStore(cfg.StoragePath())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.PutPersona(context.Background(), defaultUserID, persona); err != nil {
		return err
	}
	fmt.Println("Persona saved.")
	return nil
}

// chatSession holds state for one local REPL run: the rolling conversation,
// the working set of suggestions, and the push path for confirmations.
type chatSession struct {
	cfg       *config.Config
	provider  providers.LLMProvider
	extractor *extract.Extractor
	store     *settings.Store
	userID    string

	ws      *para.WorkingSet
	history []providers.Message
}

func runChat(message, userID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := validateRuntimeConfig(cfg); err != nil {
		return err
	}

	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}

	extractor := extract.New(provider, extract.Options{
		Model:       cfg.Assistant.Model,
		Temperature: cfg.Extraction.Temperature,
		MaxTokens:   cfg.Extraction.MaxTokens,
		Timeout:     cfg.Extraction.Timeout(),
	})

	store, err := settings.NewStore(cfg.StoragePath())
	if err != nil {
		return fmt.Errorf("opening settings store: %w", err)
	}
	defer store.Close()

	sess := &chatSession{
		cfg:       cfg,
		provider:  provider,
		extractor: extractor,
		store:     store,
		userID:    userID,
		ws:        para.NewWorkingSet(),
	}

	if strings.TrimSpace(message) != "" {
		return sess.turn(context.Background(), message)
	}

	fmt.Printf("%s Interactive mode (Ctrl+C to exit)\n", appName)
	fmt.Println("Commands: /suggestions, /confirm <id>, /reject <id>, exit")
	fmt.Println()
	sess.interactive()
	return nil
}

func (s *chatSession) interactive() {
	prompt := fmt.Sprintf("%s You: ", appName)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), ".paraflow_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})

	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		s.simpleInteractive(prompt)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if !s.handleLine(line) {
			return
		}
	}
}

func (s *chatSession) simpleInteractive(prompt string) {
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print(prompt)
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if !s.handleLine(line) {
			return
		}
	}
}

// handleLine dispatches one REPL line. Returns false when the session ends.
func (s *chatSession) handleLine(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}
	if input == "exit" || input == "quit" {
		fmt.Println("Goodbye!")
		return false
	}

	ctx := context.Background()

	switch {
	case input == "/suggestions":
		s.printSuggestions()
	case strings.HasPrefix(input, "/confirm "):
		id := strings.TrimSpace(strings.TrimPrefix(input, "/confirm "))
		if err := s.confirm(ctx, id); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	case strings.HasPrefix(input, "/reject "):
		id := strings.TrimSpace(strings.TrimPrefix(input, "/reject "))
		if err := s.ws.Reject(id); err != nil {
			fmt.Printf("Error: %v\n", err)
		} else {
			fmt.Println("Rejected.")
		}
	default:
		if err := s.turn(ctx, input); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
	return true
}

// turn runs one chat exchange: assistant reply first, then a fresh
// extraction pass over the whole conversation.
func (s *chatSession) turn(ctx context.Context, input string) error {
	s.history = append(s.history, providers.Message{Role: "user", Content: input})

	resp, err := s.provider.Chat(ctx, s.history, s.cfg.Assistant.Model, map[string]any{
		"temperature": s.cfg.Assistant.Temperature,
		"max_tokens":  s.cfg.Assistant.MaxTokens,
	})
	if err != nil {
		// Drop the failed turn so a retry does not double the message.
		s.history = s.history[:len(s.history)-1]
		return err
	}

	fmt.Printf("\n%s %s\n\n", appName, resp.Content)
	s.history = append(s.history, providers.Message{Role: "assistant", Content: resp.Content})

	conversation := make([]para.Message, len(s.history))
	for i, m := range s.history {
		conversation[i] = para.Message{Role: m.Role, Content: m.Content}
	}

	prior := s.ws.Suggestions()
	before := prior.Len()
	seq := s.ws.NextSeq()
	batch := s.extractor.ExtractPara(ctx, conversation)
	s.ws.Apply(seq, batch)
	current := s.ws.Suggestions()

	if after := current.Len(); after > before {
		fmt.Printf("(%d new suggestion(s), /suggestions to review)\n\n", after-before)
	}
	return nil
}

func (s *chatSession) printSuggestions() {
	suggestions := s.ws.Suggestions()
	if suggestions.Len() == 0 {
		fmt.Println("No pending suggestions.")
		return
	}
	for _, cat := range para.Categories {
		els := suggestions.ListFor(cat)
		if len(els) == 0 {
			continue
		}
		fmt.Printf("%s:\n", strings.ToUpper(string(cat)))
		for _, el := range els {
			line := fmt.Sprintf("  [%s] %s", el.ID, el.Title)
			if el.DueDate != "" {
				line += " (due " + el.DueDate + ")"
			}
			if el.Priority != "" {
				line += " !" + el.Priority
			}
			fmt.Println(line)
		}
	}
}

// confirm pushes the element to the remote store first, then commits it
// locally. Without a Notion binding the element is committed locally only.
func (s *chatSession) confirm(ctx context.Context, id string) error {
	el, ok := s.ws.Find(id)
	if !ok {
		return fmt.Errorf("no suggestion with id %q", id)
	}

	binding, err := s.store.Binding(ctx, s.userID)
	if errors.Is(err, settings.ErrNotConfigured) {
		if _, err := s.ws.Confirm(id); err != nil {
			return err
		}
		fmt.Printf("Confirmed %q locally. Run `paraflow notion connect` to sync to Notion.\n", el.Title)
		return nil
	}
	if err != nil {
		return err
	}

	client, err := notion.NewClient(binding.Token, notion.Options{
		APIBase: s.cfg.Notion.APIBase,
		Version: s.cfg.Notion.Version,
	})
	if err != nil {
		return err
	}

	writer := pusher.NewWriter(client, nil)
	page, err := writer.PushElement(ctx, el, binding)
	if err != nil {
		return fmt.Errorf("pushing %q: %w", el.Title, err)
	}
	if _, err := s.ws.Confirm(id); err != nil {
		return err
	}

	if page != nil {
		fmt.Printf("Confirmed and pushed %q (page %s).\n", el.Title, page.ID)
	} else {
		fmt.Printf("Confirmed %q.\n", el.Title)
	}
	return nil
}

func runNotionConnect(token, pageID, userID string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("--token is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := settings.NewStore(cfg.StoragePath())
	if err != nil {
		return fmt.Errorf("opening settings store: %w", err)
	}
	defer store.Close()

	err = store.PutSettings(context.Background(), settings.UserSettings{
		UserID:       userID,
		NotionToken:  token,
		NotionPageID: strings.TrimSpace(pageID),
	})
	if err != nil {
		return err
	}

	fmt.Println("Notion token saved.")
	fmt.Println("Next: paraflow notion provision")
	return nil
}

func runNotionProvision(userID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := settings.NewStore(cfg.StoragePath())
	if err != nil {
		return fmt.Errorf("opening settings store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	saved, err := store.GetSettings(ctx, userID)
	if errors.Is(err, settings.ErrNotConfigured) {
		return fmt.Errorf("no Notion token saved; run `paraflow notion connect --token <secret>` first")
	}
	if err != nil {
		return err
	}

	client, err := notion.NewClient(saved.NotionToken, notion.Options{
		APIBase: cfg.Notion.APIBase,
		Version: cfg.Notion.Version,
	})
	if err != nil {
		return err
	}

	var persona *settings.Persona
	if p, ok, err := store.GetPersona(ctx, userID); err == nil && ok {
		persona = &p
	}

	provisioner := pusher.NewProvisioner(client, nil)
	fw, err := provisioner.EnsureFramework(ctx, userID, persona)
	if err != nil {
		return fmt.Errorf("provisioning PARA framework: %w", err)
	}

	err = store.PutSettings(ctx, settings.UserSettings{
		UserID:      userID,
		ProjectsDB:  fw.ProjectsDB,
		AreasDB:     fw.AreasDB,
		ResourcesDB: fw.ResourcesDB,
		ArchiveDB:   fw.ArchiveDB,
	})
	if err != nil {
		return fmt.Errorf("saving database bindings: %w", err)
	}

	if fw.Created {
		fmt.Printf("Created PARA framework (%d seed row(s)).\n", fw.SeededRows)
	} else {
		fmt.Println("Found existing PARA framework.")
	}
	fmt.Println("  Projects: ", fw.ProjectsDB)
	fmt.Println("  Areas:    ", fw.AreasDB)
	fmt.Println("  Resources:", fw.ResourcesDB)
	fmt.Println("  Archive:  ", fw.ArchiveDB)
	return nil
}

func runGateway(debug bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := validateRuntimeConfig(cfg); err != nil {
		return err
	}

	zapCfg := zap.NewProductionConfig()
	if debug {
		zapCfg = zap.NewDevelopmentConfig()
	}
	logger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	provider, err := providers.CreateProvider(cfg)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}

	extractor := extract.New(provider, extract.Options{
		Model:       cfg.Assistant.Model,
		Temperature: cfg.Extraction.Temperature,
		MaxTokens:   cfg.Extraction.MaxTokens,
		Timeout:     cfg.Extraction.Timeout(),
		Logger:      logger,
	})

	store, err := settings.NewStore(cfg.StoragePath())
	if err != nil {
		return fmt.Errorf("opening settings store: %w", err)
	}
	defer store.Close()

	// Transcription rides on the OpenAI audio endpoint and is optional:
	// without a key the gateway serves everything except /api/transcribe.
	var transcriber gateway.Transcriber
	if key := strings.TrimSpace(cfg.Providers.OpenAI.APIKey); key != "" {
		apiBase := strings.TrimSpace(cfg.Providers.OpenAI.APIBase)
		if apiBase == "" {
			apiBase = "https://api.openai.com/v1"
		}
		tc, err := transcribe.NewClient(apiBase, key, transcribe.Options{})
		if err != nil {
			logger.Warn("transcription disabled", zap.Error(err))
		} else {
			transcriber = tc
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := gateway.NewServer(cfg, extractor, store, transcriber, logger)

	fmt.Printf("✓ Gateway started on %s:%d\n", cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := srv.Run(ctx); err != nil {
		return err
	}
	fmt.Println("✓ Gateway stopped")
	return nil
}

func runStatus() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	configPath := getConfigPath()

	fmt.Printf("%s Status\n", appName)
	fmt.Printf("Version: %s\n", formatVersion())
	build, _ := formatBuildInfo()
	if build != "" {
		fmt.Printf("Build: %s\n", build)
	}
	fmt.Println()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Println("Config:", configPath, "✓")
	} else {
		fmt.Println("Config:", configPath, "✗")
	}

	storagePath := cfg.StoragePath()
	if _, err := os.Stat(storagePath); err == nil {
		fmt.Println("State DB:", storagePath, "✓")
	} else {
		fmt.Println("State DB:", storagePath, "not initialized")
	}

	fmt.Printf("Provider: %s\n", providers.ActiveProviderName(cfg))
	fmt.Printf("Model: %s\n", cfg.Assistant.Model)

	status := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "not set"
	}
	providerReady := validateRuntimeConfig(cfg) == nil
	fmt.Println("Provider key:", status(providerReady))

	notionReady := false
	if store, err := settings.NewStore(storagePath); err == nil {
		if _, err := store.Binding(context.Background(), defaultUserID); err == nil {
			notionReady = true
		}
		store.Close()
	}
	fmt.Println("Notion bound:", status(notionReady))
	fmt.Println("Chat ready:", status(providerReady))
	fmt.Println("Push ready:", status(providerReady && notionReady))
	return nil
}
