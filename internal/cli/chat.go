package cli

import (
	"context"
	"errors"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tOgg1/loom/internal/chattui"
	"github.com/tOgg1/loom/internal/composer"
	"github.com/tOgg1/loom/internal/dispatch"
	"github.com/tOgg1/loom/internal/events"
	"github.com/tOgg1/loom/internal/history"
	"github.com/tOgg1/loom/internal/logging"
	"github.com/tOgg1/loom/internal/models"
	"github.com/tOgg1/loom/internal/queue"
	"github.com/tOgg1/loom/internal/status"
)

var (
	chatConversation string
	chatAgent        string
	chatModel        string
	chatVariant      string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the compose view for a conversation",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatConversation, "conversation", "default", "conversation to attach to")
	chatCmd.Flags().StringVar(&chatAgent, "agent", "coder", "agent to route submissions to")
	chatCmd.Flags().StringVar(&chatModel, "model", "default", "model to route submissions to")
	chatCmd.Flags().StringVar(&chatVariant, "variant", "", "optional model variant")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if !hasTTY() {
		return errors.New("the chat view requires an interactive terminal")
	}

	cfg := GetConfig()
	logger := logging.Component("chat")

	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	pub := events.NewPublisher()
	defer pub.Close()

	q := queue.New(pub)
	gate := dispatch.NewGate(pub)
	feed := status.NewFeed(pub)

	d := dispatch.NewDispatcher(q, gate, feed, loopbackSender(feed), pub,
		dispatch.WithRecorder(history.NewRepository(store)),
		dispatch.WithNotifier(func(detail string) {
			logger.Warn().Str("detail", detail).Msg("send rejected")
		}),
	)

	opts := chattui.Options{
		Collapse: composer.CollapsePolicy{
			MinLines: cfg.Compose.CollapsePasteMinLines,
			MaxChars: cfg.Compose.CollapsePasteMaxChars,
			Disabled: cfg.Compose.DisablePasteCollapse,
		},
		PreviewWidth:    cfg.Queue.PreviewWidth,
		InterruptWindow: cfg.Dispatch.InterruptResetDelay,
	}

	model := chattui.NewModel(chatConversation, chattui.SubmitDefaults{
		Agent:   chatAgent,
		Model:   chatModel,
		Variant: chatVariant,
	}, q, gate, feed, d, opts, pub)
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// loopbackSender is the built-in transport: it accepts every message and
// simulates the agent turn by driving the status feed busy, then idle.
// Real transports replace it through dispatch.Sender.
func loopbackSender(feed *status.Feed) dispatch.Sender {
	logger := logging.Component("transport")
	return dispatch.SenderFunc(func(ctx context.Context, msg models.QueuedMessage) error {
		logger.Info().
			Str("conversation_id", msg.ConversationID).
			Str("agent", msg.Agent).
			Int("parts", len(msg.Parts)).
			Msg("message accepted")

		go func() {
			feed.Set(msg.ConversationID, models.ConversationStatus{State: models.ConversationStateRunning})
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
			feed.Set(msg.ConversationID, models.ConversationStatus{State: models.ConversationStateIdle})
		}()
		return nil
	})
}
