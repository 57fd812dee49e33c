package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	quizadmin "github.com/digitalsoupmedia/quiz-program-sub001"
	"github.com/digitalsoupmedia/quiz-program-sub001/types"
)

func main() {
	log.Println("🚀 Starting example quiz-session dashboard")

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	// Create the API client. The token comes from whatever performed the
	// admin login; here it is taken from the environment.
	client, err := quizadmin.New(quizadmin.Config{
		BaseURL: "https://quiz.example.org/api",
		Token:   os.Getenv("QUIZADMIN_TOKEN"),
	}, logger)
	if err != nil {
		log.Fatalf("❌ Failed to create client: %v", err)
	}

	// Example 1: one-off reads, no monitor involved.
	log.Println("📖 Example 1: direct reads")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sessionID := types.SessionID(42)
	if snapshot, err := client.GetSession(ctx, sessionID); err != nil {
		log.Printf("⚠️  Session read failed: %v", err)
	} else {
		log.Printf("   Session %d is %s with %d participants",
			snapshot.ID, snapshot.Status, snapshot.ParticipantCount)
	}

	// Example 2: the adaptive monitor. Polls every 20s while the API is
	// healthy, backs off to 120s while it is not.
	log.Println("📡 Example 2: adaptive session monitor")
	monitor, err := quizadmin.NewMonitor(client, quizadmin.MonitorConfig{
		OnSessionUpdate: func(s types.SessionSnapshot) {
			log.Printf("   Session update: status=%s participants=%d", s.Status, s.ParticipantCount)
		},
		OnParticipantsUpdate: func(ps []types.ParticipantSnapshot) {
			for _, p := range ps {
				log.Printf("   Participant: %s (%s) %s", p.DisplayName, p.Affiliation, p.Status)
			}
		},
	}, logger)
	if err != nil {
		log.Fatalf("❌ Failed to create monitor: %v", err)
	}

	if err := monitor.Start(sessionID); err != nil {
		log.Fatalf("❌ Failed to start monitor: %v", err)
	}
	defer monitor.Stop()

	log.Println("✅ Monitor running! First poll in 20s")
	log.Println("   Press Ctrl+C to stop")

	// Wait for interrupt
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// Example 3: connection health over the last hour.
	snap := client.Stats()
	log.Printf("📊 Polled %d times, %.0f%% success, connection %s",
		snap.Calls, snap.SuccessRate*100, snap.Health)

	log.Println("🛑 Shutting down...")
}
