package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/autama/autama/backend/internal/model/persona"
	"github.com/autama/autama/backend/internal/nucleus"
	chatservice "github.com/autama/autama/backend/internal/service/chat"
	"github.com/autama/autama/backend/internal/service/engine"
)

var (
	chatPersona     string
	chatTemperature float64
	chatTopK        int
	chatTopP        float64
	chatMaxLength   int
	chatMaxHistory  int
	chatNoSample    bool
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to an Autama in the terminal",
	Long: `Start an interactive conversation with an Autama. Each line you type
is one turn; an empty line or Ctrl-D ends the conversation.

Examples:
  autamactl chat
  autamactl chat --persona <id> --no-sample`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatPersona, "persona", "", "persona id (default is the first persona)")
	chatCmd.Flags().Float64Var(&chatTemperature, "temperature", 0, "sampling temperature")
	chatCmd.Flags().IntVar(&chatTopK, "top-k", 0, "keep only the k most likely tokens, 0 disables")
	chatCmd.Flags().Float64Var(&chatTopP, "top-p", 0, "nucleus filtering threshold, 0 disables")
	chatCmd.Flags().IntVar(&chatMaxLength, "max-length", 0, "maximum reply length in tokens")
	chatCmd.Flags().IntVar(&chatMaxHistory, "max-history", 0, "previous exchanges kept as context")
	chatCmd.Flags().BoolVar(&chatNoSample, "no-sample", false, "greedy decoding")
	rootCmd.AddCommand(chatCmd)
}

// samplingFactory starts sessions with per-invocation sampling settings.
type samplingFactory struct {
	engine   *engine.Engine
	sampling nucleus.SamplingConfig
}

func (f samplingFactory) NewSession(p persona.Persona) (*nucleus.Session, error) {
	return f.engine.NewSessionWith(p, f.sampling)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sampling := samplingOverrides(cmd, a.Engine.Sampling())
	if err := sampling.Validate(); err != nil {
		return err
	}

	p, err := pickPersona(ctx, a.Personas, chatPersona)
	if err != nil {
		return err
	}

	chat := chatservice.NewService(a.Personas, a.Messages, samplingFactory{engine: a.Engine, sampling: sampling}, a.Config.Nucleus.ModelTimeout)
	session, err := chat.CreateSession(ctx, p.ID, "")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Talking to %s (%s)\n", p.Name, strings.Join(p.Traits, " "))

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}

		turn, err := chat.Converse(ctx, session.ID, line)
		switch {
		case errors.Is(err, nucleus.ErrEncoding):
			fmt.Fprintf(out, "! %v\n", err)
			continue
		case err != nil:
			return err
		}
		fmt.Fprintf(out, "%s: %s\n", p.Name, turn.Reply.Content)
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func samplingOverrides(cmd *cobra.Command, s nucleus.SamplingConfig) nucleus.SamplingConfig {
	flags := cmd.Flags()
	if flags.Changed("temperature") {
		s.Temperature = chatTemperature
	}
	if flags.Changed("top-k") {
		s.TopK = chatTopK
	}
	if flags.Changed("top-p") {
		s.TopP = chatTopP
	}
	if flags.Changed("max-length") {
		s.MaxLength = chatMaxLength
	}
	if flags.Changed("max-history") {
		s.MaxHistory = chatMaxHistory
	}
	if flags.Changed("no-sample") {
		s.NoSample = chatNoSample
	}
	return s
}

func pickPersona(ctx context.Context, store persona.Store, id string) (persona.Persona, error) {
	if id != "" {
		return store.FindByID(ctx, id)
	}
	all, err := store.List(ctx)
	if err != nil {
		return persona.Persona{}, err
	}
	if len(all) == 0 {
		return persona.Persona{}, persona.ErrNotFound
	}
	return all[0], nil
}

