package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kyousukehsm/TrivAI/audio"
	"github.com/kyousukehsm/TrivAI/functions"
	"github.com/kyousukehsm/TrivAI/gemini"
	"github.com/kyousukehsm/TrivAI/messages"
	"github.com/kyousukehsm/TrivAI/transcript"
	"github.com/kyousukehsm/TrivAI/trivia"

	"github.com/gorilla/websocket"
	"google.golang.org/genai"
)

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
	requestTimeout  = 30 * time.Second
)

// GameDefaults are the per-deployment knobs for question generation and the
// host voice. A next_question control may override topic and difficulty.
type GameDefaults struct {
	Topic       string
	Personality string
	Difficulty  string
	Voice       string
}

// ClientSession represents a single player's websocket connection. It bridges
// the browser to the live audio core: inbound binary PCM feeds a RemoteCapture,
// scheduled playback flows back out as audio messages, and the quiz-mode
// request/response calls (questions, answers, name check) ride the same socket.
type ClientSession struct {
	ID         string
	ClientConn *websocket.Conn

	apiKey        string
	systemPrompt  string
	tools         []*genai.Tool
	maxBufferSize int
	defaults      GameDefaults

	generator trivia.Generator
	speech    trivia.Synthesizer
	moderator trivia.Moderator

	CreatedAt    time.Time
	LastActivity time.Time

	// Use a channel for non-blocking writes
	writeChan chan *messages.ServerMessage

	mu      sync.RWMutex
	closed  bool
	proxy   *gemini.Proxy
	live    *LiveSession
	remote  *RemoteCapture
	current *trivia.Question
	asked   []string
	player  string

	CloseChan chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClientSession creates a session and its GenAI client. The Live channel
// itself is opened by Start, so a failed live connect still leaves the quiz
// mode usable.
func NewClientSession(id string, clientConn *websocket.Conn, geminiKey, systemPrompt string, maxBufferSize int, tools []*genai.Tool, defaults GameDefaults) (*ClientSession, error) {
	ctx, cancel := context.WithCancel(context.Background())

	proxy, err := gemini.NewProxy(ctx, geminiKey)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create Gemini proxy: %w", err)
	}

	// Configure WebSocket for better performance
	clientConn.SetReadLimit(512 * 1024) // 512KB max message
	clientConn.EnableWriteCompression(true)
	clientConn.SetCompressionLevel(6)

	cs := &ClientSession{
		ID:            id,
		ClientConn:    clientConn,
		apiKey:        geminiKey,
		systemPrompt:  systemPrompt,
		tools:         tools,
		maxBufferSize: maxBufferSize,
		defaults:      defaults,
		generator:     gemini.NewGenerator(proxy.Client()),
		speech:        gemini.NewSpeech(proxy.Client()),
		moderator:     gemini.NewModerator(proxy.Client()),
		CreatedAt:     time.Now(),
		LastActivity:  time.Now(),
		writeChan:     make(chan *messages.ServerMessage, writeBufferSize),
		proxy:         proxy,
		CloseChan:     make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
	return cs, nil
}

// Start begins the bidirectional message handling and opens the live channel.
func (cs *ClientSession) Start() {
	go cs.writePump()
	cs.queueMessage(messages.NewStatusMessage(cs.ID, "connected", "Session established"))
	go cs.handleClientMessages()
	go cs.startLive(cs.ctx)
}

// startLive builds one live connection attempt: a fresh capture bridge, a
// scheduler paced against the socket, and the session state machine around
// them. Safe to call again after a previous attempt has settled.
func (cs *ClientSession) startLive(ctx context.Context) {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return
	}
	if cs.live != nil && !cs.live.State().Terminal() {
		cs.mu.Unlock()
		return
	}

	proxy := cs.proxy
	if proxy == nil {
		var err error
		proxy, err = gemini.NewProxy(ctx, cs.apiKey)
		if err != nil {
			cs.mu.Unlock()
			log.Printf("❌ [%s] Failed to create Gemini proxy: %v", cs.ID[:8], err)
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeSessionFailed, err.Error()))
			return
		}
		cs.proxy = proxy
	}
	proxy.SetVoice(cs.defaults.Voice)
	proxy.OnComplete = func() {
		cs.queueMessage(messages.NewStatusMessage(cs.ID, "turn_complete", ""))
	}
	proxy.OnToolCall = cs.handleToolCalls

	remote := NewRemoteCapture(cs.maxBufferSize)
	sched := audio.NewScheduler(audio.NewClock(), &wsSink{session: cs})
	live := NewLiveSession(&GeminiChannel{Proxy: proxy, Tools: cs.tools}, remote, sched, Callbacks{
		OnConnectionState: cs.handleLiveState,
		OnSpeaking: func(speaking bool) {
			cs.queueMessage(messages.NewSpeakingMessage(cs.ID, speaking))
		},
		OnTranscript: func(turns []transcript.Turn) {
			cs.queueMessage(messages.NewTranscriptMessage(cs.ID, turns))
		},
	})
	cs.live = live
	cs.remote = remote
	cs.mu.Unlock()

	if err := live.Connect(ctx, cs.systemPrompt); err != nil {
		log.Printf("❌ [%s] Live connect failed: %v", cs.ID[:8], err)
	}
}

// handleLiveState relays lifecycle changes to the client. A settled live
// session consumed its proxy, so the next connect builds a fresh one.
func (cs *ClientSession) handleLiveState(state State, err error) {
	switch state {
	case StateConnecting:
		cs.queueMessage(messages.NewStatusMessage(cs.ID, "live_connecting", ""))
	case StateOpen:
		log.Printf("🎙️ [%s] Live channel open", cs.ID[:8])
		cs.queueMessage(messages.NewStatusMessage(cs.ID, "live_open", ""))
	case StateClosed:
		cs.queueMessage(messages.NewStatusMessage(cs.ID, "live_closed", ""))
		cs.retireProxy()
	case StateError:
		msg := "live channel failed"
		if err != nil {
			msg = err.Error()
		}
		log.Printf("❌ [%s] Live channel error: %s", cs.ID[:8], msg)
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeLiveError, msg))
		cs.retireProxy()
	}
}

func (cs *ClientSession) retireProxy() {
	cs.mu.Lock()
	cs.proxy = nil
	cs.mu.Unlock()
}

// writePump handles all outgoing messages in a single goroutine
func (cs *ClientSession) writePump() {
	defer func() {
		// Send close message before exiting
		cs.ClientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
		cs.ClientConn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	}()

	for {
		select {
		case <-cs.CloseChan:
			return
		case msg := <-cs.writeChan:
			if err := cs.writeMessage(msg); err != nil {
				return
			}

			n := len(cs.writeChan)
			for i := 0; i < n; i++ {
				select {
				case msg := <-cs.writeChan:
					if err := cs.writeMessage(msg); err != nil {
						return
					}
				default:
					// No more messages, continue outer loop
				}
			}
		}
	}
}

func (cs *ClientSession) writeMessage(msg *messages.ServerMessage) error {
	data, err := messages.Marshal(msg)
	if err != nil {
		log.Printf("⚠️ [%s] Failed to marshal message: %v", cs.ID[:8], err)
		return nil
	}
	cs.ClientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return cs.ClientConn.WriteMessage(websocket.TextMessage, data)
}

// queueMessage adds a message to the write queue (non-blocking). writeChan is
// never closed, so a writer racing Close drops the message instead of
// panicking on a closed channel.
func (cs *ClientSession) queueMessage(msg *messages.ServerMessage) {
	select {
	case <-cs.CloseChan:
		// Session is shutting down, drop
	case cs.writeChan <- msg:
		cs.mu.Lock()
		cs.LastActivity = time.Now()
		cs.mu.Unlock()
	default:
		// Queue full, drop message (shouldn't happen with proper sizing)
	}
}

// Close terminates the session and cleans up resources
func (cs *ClientSession) Close() error {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return nil
	}
	cs.closed = true
	live := cs.live
	cs.mu.Unlock()

	cs.cancel()

	// Tearing down the live session stops capture, the proxy and playback
	if live != nil {
		live.Disconnect()
	}

	// Signal close: writePump drains on this, and queueMessage callers
	// start dropping. The write channel itself stays open.
	close(cs.CloseChan)

	// Close client connection - don't write close message as writePump is stopped
	if cs.ClientConn != nil {
		cs.ClientConn.Close()
	}

	return nil
}

func (cs *ClientSession) handleClientMessages() {
	defer cs.Close()

	for {
		select {
		case <-cs.CloseChan:
			return
		default:
			messageType, message, err := cs.ClientConn.ReadMessage()
			if err != nil {
				return
			}

			cs.mu.Lock()
			cs.LastActivity = time.Now()
			cs.mu.Unlock()

			// Binary messages are raw 16kHz PCM capture frames
			if messageType == websocket.BinaryMessage {
				cs.pushAudio(message)
				continue
			}

			var clientMsg messages.ClientMessage
			if err := messages.Unmarshal(message, &clientMsg); err != nil {
				cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid message format"))
				continue
			}

			cs.processClientMessage(&clientMsg)
		}
	}
}

// pushAudio feeds capture bytes to the live bridge. Audio arriving with no
// open live session is discarded, matching the capture window invariant.
func (cs *ClientSession) pushAudio(raw []byte) {
	cs.mu.RLock()
	remote := cs.remote
	cs.mu.RUnlock()
	if remote == nil {
		return
	}
	if err := remote.Push(raw); err != nil {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeBufferFull,
			fmt.Sprintf("Audio buffer full (max %d bytes)", cs.maxBufferSize)))
	}
}

func (cs *ClientSession) processClientMessage(msg *messages.ClientMessage) {
	switch msg.Type {
	case "audio":
		var payload messages.AudioPayload
		if err := messages.Unmarshal(msg.Payload, &payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid audio payload"))
			return
		}
		audioBytes, err := base64.StdEncoding.DecodeString(payload.Data)
		if err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid base64 audio data"))
			return
		}
		cs.pushAudio(audioBytes)

	case "control":
		var payload messages.ControlPayload
		if err := messages.Unmarshal(msg.Payload, &payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid control payload"))
			return
		}
		cs.handleControlMessage(&payload)

	case "join":
		var payload messages.JoinPayload
		if err := messages.Unmarshal(msg.Payload, &payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid join payload"))
			return
		}
		go cs.handleJoin(payload.Name)

	case "answer":
		var payload messages.AnswerPayload
		if err := messages.Unmarshal(msg.Payload, &payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid answer payload"))
			return
		}
		go cs.handleAnswer(payload.Index)

	default:
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Unknown message type: "+msg.Type))
	}
}

func (cs *ClientSession) handleControlMessage(payload *messages.ControlPayload) {
	switch payload.Action {
	case "ping":
		cs.queueMessage(messages.NewStatusMessage(cs.ID, "pong", ""))

	case "connect":
		go cs.startLive(cs.ctx)

	case "disconnect":
		cs.mu.RLock()
		live := cs.live
		cs.mu.RUnlock()
		if live != nil {
			live.Disconnect()
		}

	case "end_turn":
		cs.handleEndTurn()

	case "next_question":
		go cs.handleNextQuestion(payload.Topic, payload.Difficulty)

	default:
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Unknown control action: "+payload.Action))
	}
}

// handleEndTurn signals the end of the player's audio stream so the host
// responds without waiting for silence detection.
func (cs *ClientSession) handleEndTurn() {
	cs.mu.RLock()
	proxy := cs.proxy
	live := cs.live
	cs.mu.RUnlock()

	if proxy == nil || live == nil || !live.Connected() {
		log.Printf("⚠️ [%s] end_turn received but live channel not open, ignoring", cs.ID[:8])
		return
	}
	if err := proxy.SendStreamEnd(); err != nil {
		log.Printf("❌ [%s] Failed to send stream end: %v", cs.ID[:8], err)
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeLiveError, err.Error()))
	}
}

// handleNextQuestion generates one question, never repeating an asked text.
// Generation failure falls back to a canned question rather than stalling
// the round.
func (cs *ClientSession) handleNextQuestion(topic, difficulty string) {
	if topic == "" {
		topic = cs.defaults.Topic
	}
	if difficulty == "" {
		difficulty = cs.defaults.Difficulty
	}

	cs.mu.RLock()
	exclude := make([]string, len(cs.asked))
	copy(exclude, cs.asked)
	cs.mu.RUnlock()

	ctx, cancel := context.WithTimeout(cs.ctx, requestTimeout)
	defer cancel()

	q, err := cs.generator.Generate(ctx, topic, cs.defaults.Personality, difficulty, exclude)
	if err != nil {
		log.Printf("❌ [%s] Question generation failed, using fallback: %v", cs.ID[:8], err)
		q = trivia.FallbackQuestion()
	}

	cs.mu.Lock()
	cs.current = q
	cs.asked = append(cs.asked, q.Text)
	cs.mu.Unlock()

	cs.queueMessage(messages.NewQuestionMessage(cs.ID, q))
}

// handleAnswer scores the open question and returns the host's line, spoken
// when the synthesizer has quota and captioned-only when it does not.
func (cs *ClientSession) handleAnswer(index int) {
	cs.mu.Lock()
	q := cs.current
	cs.current = nil
	cs.mu.Unlock()

	if q == nil {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "No open question to answer"))
		return
	}

	correct := index == q.AnswerIndex
	line := q.IncorrectResponse
	if correct {
		line = q.CorrectResponse
	}

	ctx, cancel := context.WithTimeout(cs.ctx, requestTimeout)
	defer cancel()

	audioData, err := cs.speech.Synthesize(ctx, line, cs.defaults.Voice)
	if err != nil {
		log.Printf("❌ [%s] Speech synthesis failed: %v", cs.ID[:8], err)
		audioData = ""
	}

	cs.queueMessage(messages.NewAnswerResultMessage(cs.ID, messages.AnswerResultPayload{
		Correct:      correct,
		AnswerIndex:  q.AnswerIndex,
		HostLine:     line,
		Audio:        audioData,
		VoiceOffline: audioData == "",
	}))
}

// handleJoin screens the requested display name. The moderator fails open,
// so a transport error never locks a player out.
func (cs *ClientSession) handleJoin(name string) {
	ctx, cancel := context.WithTimeout(cs.ctx, requestTimeout)
	defer cancel()

	if !cs.moderator.Check(ctx, name) {
		log.Printf("🚫 [%s] Rejected player name", cs.ID[:8])
		cs.queueMessage(messages.NewStatusMessage(cs.ID, "name_rejected", "That name is not allowed, pick another"))
		return
	}

	cs.mu.Lock()
	cs.player = name
	cs.mu.Unlock()
	cs.queueMessage(messages.NewStatusMessage(cs.ID, "joined", name))
}

// PlayerName returns the moderated display name, empty before a join.
func (cs *ClientSession) PlayerName() string {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.player
}

// IsClosed returns whether the session is closed
func (cs *ClientSession) IsClosed() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.closed
}

// handleToolCalls processes function calls from Gemini and sends responses
func (cs *ClientSession) handleToolCalls(functionCalls []*genai.FunctionCall) {
	var responses []*genai.FunctionResponse

	for _, fc := range functionCalls {
		log.Printf("🔧 [%s] Function call: %s (id: %s)", cs.ID[:8], fc.Name, fc.ID)

		var response map[string]any

		switch fc.Name {
		case "GetGameRules":
			rules := functions.GetGameRules()
			response = map[string]any{"output": rules}

		default:
			response = map[string]any{"error": fmt.Sprintf("Unknown function: %s", fc.Name)}
			log.Printf("⚠️ [%s] Unknown function called: %s", cs.ID[:8], fc.Name)
		}

		responses = append(responses, &genai.FunctionResponse{
			ID:       fc.ID,
			Name:     fc.Name,
			Response: response,
		})
	}

	cs.mu.RLock()
	proxy := cs.proxy
	cs.mu.RUnlock()
	if proxy == nil {
		return
	}
	if err := proxy.SendToolResponse(responses); err != nil {
		log.Printf("❌ [%s] Failed to send tool response: %v", cs.ID[:8], err)
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeLiveError, err.Error()))
	}
}

// wsSink carries paced playback PCM back over the websocket, so the client
// hears audio at the same cadence the scheduler cursor promises.
type wsSink struct {
	session *ClientSession
}

func (w *wsSink) Write(pcm []byte) error {
	w.session.queueMessage(messages.NewAudioMessage(w.session.ID, base64.StdEncoding.EncodeToString(pcm)))
	return nil
}

func (w *wsSink) Close() error { return nil }
