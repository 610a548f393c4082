// Command trivai-client is the native desktop client: microphone straight to
// the live host, host audio to the local PulseAudio output, transcript and
// waveform rendered in the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kyousukehsm/TrivAI/audio"
	"github.com/kyousukehsm/TrivAI/gemini"
	"github.com/kyousukehsm/TrivAI/session"
	"github.com/kyousukehsm/TrivAI/transcript"

	"github.com/joho/godotenv"
)

var barGlyphs = []rune(" ▁▂▃▄▅▆▇█")

func main() {
	_ = godotenv.Load()

	device := flag.String("device", "", "capture source ID (default source when empty)")
	voice := flag.String("voice", gemini.DefaultHostVoice, "host voice name")
	flag.Parse()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal("GEMINI_API_KEY not set")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proxy, err := gemini.NewProxy(ctx, apiKey)
	if err != nil {
		log.Fatalf("Failed to create proxy: %v", err)
	}
	proxy.SetVoice(*voice)

	// No output device is not fatal: the session runs silent with the
	// scheduler still tracking timing and speaking state.
	var sched *audio.Scheduler
	sink, err := audio.NewPulseSink()
	if err != nil {
		log.Printf("🔇 No playback device, running silent: %v", err)
		sched = audio.NewScheduler(audio.NewClock(), nil)
	} else {
		sched = audio.NewScheduler(audio.NewClock(), sink)
	}

	live := session.NewLiveSession(
		&session.GeminiChannel{Proxy: proxy},
		&session.MicSource{DeviceHint: *device},
		sched,
		session.Callbacks{
			OnConnectionState: func(state session.State, err error) {
				if err != nil {
					log.Printf("🔌 %s: %v", state, err)
					return
				}
				log.Printf("🔌 %s", state)
			},
			OnTranscript: printLatestTurn,
		},
	)

	if err := live.Connect(ctx, session.DefaultSystemPrompt); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}

	viz := audio.NewVisualizer(24, sched, sched.Speaking)
	go renderWaveform(ctx, viz, sched)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println()
	log.Println("Disconnecting...")
	live.Disconnect()
}

// printLatestTurn rewrites the current line with the newest turn, so delta
// updates to the same turn render in place.
func printLatestTurn(turns []transcript.Turn) {
	if len(turns) == 0 {
		return
	}
	last := turns[len(turns)-1]
	text := last.Text
	if len(text) > 100 {
		text = "…" + text[len(text)-99:]
	}
	fmt.Printf("\r\033[K[%s] %s", last.Role, text)
}

// renderWaveform draws the output energy bars while the host is speaking.
func renderWaveform(ctx context.Context, viz *audio.Visualizer, sched *audio.Scheduler) {
	clock := audio.NewClock()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !sched.Speaking() {
				continue
			}
			levels := viz.Frame(clock.Now())
			var sb strings.Builder
			for _, lv := range levels {
				idx := int(lv * float32(len(barGlyphs)-1))
				if idx >= len(barGlyphs) {
					idx = len(barGlyphs) - 1
				}
				sb.WriteRune(barGlyphs[idx])
			}
			fmt.Printf("\r\033[K🔊 %s", sb.String())
		}
	}
}
