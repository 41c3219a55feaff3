package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/codeatlas-ai/codeatlas/internal/agent"
	"github.com/codeatlas-ai/codeatlas/internal/history"
	"github.com/spf13/cobra"
)

var (
	chatNoHistory   bool
	chatCriticality bool
)

var chatCmd = &cobra.Command{
	Use:   "chat <path>",
	Short: "Interactive question-answering session about a repository",
	Long: `Start a REPL bound to the repository at <path>. The agent answers with
evidence from the repository's files, knowledge graph, and search index.
Type 'exit' or press Ctrl-D to quit.`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatNoHistory, "no-history", false, "do not persist the conversation")
	chatCmd.Flags().BoolVar(&chatCriticality, "criticality", false, "attach an impact ranking to each answer")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	handle, err := a.registry.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	if _, err := a.registry.Graph(handle); err != nil {
		return fmt.Errorf("repository %s has no graph yet; run 'codeatlas ingest %s' first", handle.Name, handle.Path)
	}

	orch, client, err := a.newAgent(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	var store *history.Store
	var conv *history.Conversation
	if !chatNoHistory {
		store, err = history.Open(cfg.Storage.HistoryPath)
		if err != nil {
			return err
		}
		defer store.Close()
		conv, err = store.Begin(ctx, handle.Hash, handle.Name)
		if err != nil {
			return err
		}
	}

	session := orch.NewSession(handle, func(e agent.Event) {
		switch e.State {
		case agent.StateActing:
			fmt.Printf("  > %s\n", e.Tool)
		case agent.StateToolError:
			fmt.Printf("  ! %s failed\n", e.Tool)
		case agent.StateHalted:
			fmt.Println("  ! iteration limit reached")
		}
	})

	fmt.Printf("Chatting about %s. Type 'exit' to quit.\n", handle.Name)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("\n? ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}

		answer, err := session.Ask(ctx, question, agent.AskOptions{Criticality: chatCriticality})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}

		fmt.Println()
		if answer.Incomplete {
			fmt.Println("[incomplete answer]")
		}
		fmt.Println(answer.Text)
		printCriticality(answer)

		if store != nil {
			if err := store.Append(ctx, conv.ID, "user", question, false); err != nil {
				logger.WithError(err).Warn("failed to persist question")
			}
			if err := store.Append(ctx, conv.ID, "assistant", answer.Text, answer.Incomplete); err != nil {
				logger.WithError(err).Warn("failed to persist answer")
			}
		}
	}

	if conv != nil {
		fmt.Printf("\nConversation saved: %s\n", conv.ID)
	}
	return scanner.Err()
}

func printCriticality(answer *agent.Answer) {
	if answer.Criticality == nil || len(answer.Criticality.Assessments) == 0 {
		return
	}
	fmt.Printf("\nCriticality (seed %s):\n", answer.Criticality.Seed)
	for _, a := range answer.Criticality.Assessments {
		fmt.Printf("  %-6s %-30s %s\n", a.Level, a.Name, a.Justification)
	}
}
