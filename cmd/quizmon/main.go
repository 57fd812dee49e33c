// quizmon watches one quiz session from the terminal. It drives the same
// adaptive monitor the dashboard uses and prints every update until
// interrupted.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	quizadmin "github.com/digitalsoupmedia/quiz-program-sub001"
	"github.com/digitalsoupmedia/quiz-program-sub001/types"
)

var (
	baseURL      string
	token        string
	caPath       string
	baseInterval time.Duration
	maxInterval  time.Duration
	debug        bool
)

var rootCmd = &cobra.Command{
	Use:   "quizmon <session-id>",
	Short: "Watch a live quiz session from the terminal",
	Long: `quizmon polls the quiz-program administration API for one session and
prints every status and participant change until interrupted.

Polling slows down by itself while the API is unreachable or rate limiting,
and recovers to the base interval on the first successful poll.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&baseURL, "base-url", "", "admin API base URL (or QUIZADMIN_BASE_URL)")
	rootCmd.Flags().StringVar(&token, "token", "", "admin bearer token (or QUIZADMIN_TOKEN)")
	rootCmd.Flags().StringVar(&caPath, "ca", "", "pinned CA bundle for private deployments")
	rootCmd.Flags().DurationVar(&baseInterval, "base-interval", 20*time.Second, "poll interval while the API is healthy")
	rootCmd.Flags().DurationVar(&maxInterval, "max-interval", 2*time.Minute, "poll interval ceiling while the API is failing")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "log every request")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	// .env is optional; explicit flags and real environment win.
	_ = godotenv.Load()
	if baseURL == "" {
		baseURL = os.Getenv("QUIZADMIN_BASE_URL")
	}
	if token == "" {
		token = os.Getenv("QUIZADMIN_TOKEN")
	}

	sessionID, err := types.ParseSessionID(args[0])
	if err != nil {
		return fmt.Errorf("session-id %q: %w", args[0], err)
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()

	client, err := quizadmin.New(quizadmin.Config{
		BaseURL: baseURL,
		Token:   token,
		CAPath:  caPath,
	}, logger)
	if err != nil {
		return err
	}

	monitor, err := quizadmin.NewMonitor(client, quizadmin.MonitorConfig{
		BaseInterval: baseInterval,
		MaxInterval:  maxInterval,
		OnSessionUpdate: func(s types.SessionSnapshot) {
			logger.Info().
				Str("status", string(s.Status)).
				Int("participants", s.ParticipantCount).
				Str("title", s.Title).
				Msg("session")
		},
		OnParticipantsUpdate: func(ps []types.ParticipantSnapshot) {
			logger.Info().
				Str("progress", summarize(ps)).
				Msg("participants")
		},
	}, logger)
	if err != nil {
		return err
	}

	if err := monitor.Start(sessionID); err != nil {
		return err
	}
	defer monitor.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	snap := client.Stats()
	logger.Info().
		Int("polled", snap.Calls).
		Str("health", string(snap.Health)).
		Msg("shutting down")
	return nil
}

// summarize compresses a participant list into "joined=2 started=5" form,
// so a big session stays one line per poll.
func summarize(ps []types.ParticipantSnapshot) string {
	counts := make(map[types.ParticipantStatus]int)
	for _, p := range ps {
		counts[p.Status]++
	}

	parts := make([]string, 0, len(counts))
	for status, n := range counts {
		parts = append(parts, fmt.Sprintf("%s=%d", status, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}
