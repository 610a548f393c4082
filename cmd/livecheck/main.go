// Command livecheck is a connectivity smoke test for the Live channel: it
// opens a session, sends one second of tone as if it were microphone audio,
// and logs whatever comes back.
package main

import (
	"context"
	"log"
	"math"
	"os"
	"time"

	"github.com/kyousukehsm/TrivAI/audio"
	"github.com/kyousukehsm/TrivAI/gemini"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Fatal("GEMINI_API_KEY not set")
	}

	proxy, err := gemini.NewProxy(context.Background(), apiKey)
	if err != nil {
		log.Fatalf("Failed to create proxy: %v", err)
	}
	defer proxy.Close()

	// Set up callbacks
	proxy.OnAudioRaw = func(base64Data string) {
		log.Printf("🔊 Received audio: %d base64 chars", len(base64Data))
	}
	proxy.OnUserTranscript = func(text string) {
		log.Printf("🎤 Heard: %s", text)
	}
	proxy.OnHostTranscript = func(text string) {
		log.Printf("💬 Host: %s", text)
	}
	proxy.OnComplete = func() {
		log.Println("✅ Turn complete")
	}
	proxy.OnError = func(err error) {
		log.Printf("❌ Error: %v", err)
	}

	ctx := context.Background()
	err = proxy.Open(ctx, "You are a helpful assistant. Keep responses brief.", nil)
	if err != nil {
		log.Fatalf("Failed to open: %v", err)
	}

	// One second of 440Hz tone at the capture rate, sent frame by frame.
	tone := make([]float32, audio.CaptureRate)
	for i := range tone {
		tone[i] = 0.2 * float32(math.Sin(2*math.Pi*440*float64(i)/float64(audio.CaptureRate)))
	}
	raw := audio.SamplesToBytes(tone)

	frameBytes := audio.FrameSamples * 2
	for off := 0; off < len(raw); off += frameBytes {
		end := off + frameBytes
		if end > len(raw) {
			end = len(raw)
		}
		if err := proxy.Send(raw[off:end]); err != nil {
			log.Fatalf("Failed to send audio: %v", err)
		}
	}
	if err := proxy.SendStreamEnd(); err != nil {
		log.Fatalf("Failed to end stream: %v", err)
	}

	// Wait for response
	log.Println("Waiting for response...")
	time.Sleep(10 * time.Second)
	log.Println("Done")
}
