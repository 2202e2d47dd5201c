package narration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/almawell/alma/domain/repositories"
)

// fakeEngine is a scriptable synthesis engine: it can hold a specific chunk
// open until cancellation or fail a specific chunk with an error event.
type fakeEngine struct {
	mu         sync.Mutex
	utterances []repositories.Utterance
	holdCall   int
	failCall   int
	voices     []repositories.Voice
	cancels    int
	pings      int
}

func (f *fakeEngine) Speak(ctx context.Context, u repositories.Utterance) (<-chan repositories.SynthesisEvent, error) {
	f.mu.Lock()
	f.utterances = append(f.utterances, u)
	n := len(f.utterances)
	f.mu.Unlock()

	ch := make(chan repositories.SynthesisEvent, 2)
	go func() {
		defer close(ch)
		ch <- repositories.SynthesisEvent{Kind: repositories.SynthesisEventStarted}
		if n == f.holdCall {
			<-ctx.Done()
			ch <- repositories.SynthesisEvent{Kind: repositories.SynthesisEventCanceled}
			return
		}
		if n == f.failCall {
			ch <- repositories.SynthesisEvent{Kind: repositories.SynthesisEventError, Err: errors.New("engine glitch")}
			return
		}
		ch <- repositories.SynthesisEvent{Kind: repositories.SynthesisEventEnded}
	}()
	return ch, nil
}

func (f *fakeEngine) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeEngine) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
}

func (f *fakeEngine) Resume() {}

func (f *fakeEngine) Voices(ctx context.Context) ([]repositories.Voice, error) {
	return f.voices, nil
}

func (f *fakeEngine) speakCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.utterances)
}

func testConfig() Config {
	return Config{
		Language:         "es-ES",
		MaxChunkChars:    200,
		InterChunkPause:  time.Millisecond,
		ErrorResumePause: time.Millisecond,
		WatchdogInterval: time.Hour,
	}
}

func collectUntilFinished(t *testing.T, p *Player) []Event {
	t.Helper()
	var log []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-p.Events():
			log = append(log, ev)
			if ev.Kind == EventFinished {
				return log
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for finished event, log so far: %+v", log)
		}
	}
}

func TestPlayerSequentialOrdering(t *testing.T) {
	engine := &fakeEngine{}
	player := NewPlayer(engine, testConfig(), zap.NewNop())

	player.Speak(context.Background(), "Primera. Segunda. Tercera. Cuarta.")

	log := collectUntilFinished(t, player)
	if log[0].TotalChunks != 4 {
		t.Fatalf("Expected 4 chunks, got %d", log[0].TotalChunks)
	}

	// onEnd for chunk i must precede onStart for chunk i+1.
	lastEnded := 0
	for _, ev := range log {
		switch ev.Kind {
		case EventChunkStarted:
			if ev.Chunk != lastEnded+1 {
				t.Errorf("Chunk %d started before chunk %d ended", ev.Chunk, ev.Chunk-1)
			}
		case EventChunkEnded:
			lastEnded = ev.Chunk
		}
	}
	if lastEnded != 4 {
		t.Errorf("Expected all 4 chunks to end, last ended = %d", lastEnded)
	}

	final := log[len(log)-1]
	if final.Interrupted {
		t.Error("Completed narration must not report interruption")
	}
	if player.Speaking() {
		t.Error("Speaking should be false after completion")
	}
}

func TestPlayerCancelMidChunk(t *testing.T) {
	engine := &fakeEngine{holdCall: 2}
	player := NewPlayer(engine, testConfig(), zap.NewNop())

	player.Speak(context.Background(), "Uno. Dos. Tres. Cuatro.")

	// Wait until chunk 2 is audibly in flight.
	deadline := time.After(5 * time.Second)
	for started := false; !started; {
		select {
		case ev := <-player.Events():
			if ev.Kind == EventChunkStarted && ev.Chunk == 2 {
				started = true
			}
		case <-deadline:
			t.Fatal("Chunk 2 never started")
		}
	}

	player.Cancel()
	if player.Speaking() {
		t.Error("Speaking must flip to false immediately on cancel")
	}

	log := collectUntilFinished(t, player)
	final := log[len(log)-1]
	if !final.Interrupted {
		t.Error("Canceled narration must report interruption")
	}
	if engine.speakCount() != 2 {
		t.Errorf("Chunks 3 and 4 must never play, engine saw %d chunks", engine.speakCount())
	}
}

func TestPlayerSkipsErroredChunk(t *testing.T) {
	engine := &fakeEngine{failCall: 2}
	player := NewPlayer(engine, testConfig(), zap.NewNop())

	player.Speak(context.Background(), "Uno. Dos. Tres.")
	log := collectUntilFinished(t, player)

	var ended []int
	for _, ev := range log {
		if ev.Kind == EventChunkEnded {
			ended = append(ended, ev.Chunk)
		}
	}
	if len(ended) != 2 || ended[0] != 1 || ended[1] != 3 {
		t.Errorf("Expected chunks 1 and 3 to end around the failed chunk, got %v", ended)
	}
	if log[len(log)-1].Interrupted {
		t.Error("A skipped chunk is not an interruption")
	}
	if engine.speakCount() != 3 {
		t.Errorf("All chunks should have been attempted, engine saw %d", engine.speakCount())
	}
}

func TestPlayerSilentWhenOnlyMarkers(t *testing.T) {
	engine := &fakeEngine{}
	player := NewPlayer(engine, testConfig(), zap.NewNop())

	utterance := player.Speak(context.Background(),
		"[TAREA_INICIO]\nTitulo: x\nDescripcion: y\n[TAREA_FIN]")

	log := collectUntilFinished(t, player)
	if len(log) != 1 || log[0].Kind != EventFinished || log[0].TotalChunks != 0 {
		t.Errorf("Expected a lone finished event with no chunks, got %+v", log)
	}
	if log[0].Utterance != utterance {
		t.Errorf("Finished event must carry utterance %d, got %d", utterance, log[0].Utterance)
	}
	if engine.speakCount() != 0 {
		t.Errorf("Engine must not be invoked for a silent utterance, saw %d", engine.speakCount())
	}
}

func TestPlayerEventsCarryUtteranceID(t *testing.T) {
	engine := &fakeEngine{}
	player := NewPlayer(engine, testConfig(), zap.NewNop())

	first := player.Speak(context.Background(), "Primera.")
	firstLog := collectUntilFinished(t, player)

	second := player.Speak(context.Background(), "Segunda.")
	secondLog := collectUntilFinished(t, player)

	if first == second {
		t.Fatalf("Utterance ids must differ, both were %d", first)
	}
	for _, ev := range firstLog {
		if ev.Utterance != first {
			t.Errorf("First utterance event carries id %d, want %d", ev.Utterance, first)
		}
	}
	for _, ev := range secondLog {
		if ev.Utterance != second {
			t.Errorf("Second utterance event carries id %d, want %d", ev.Utterance, second)
		}
	}
}

func TestPlayerVoiceResolution(t *testing.T) {
	engine := &fakeEngine{voices: []repositories.Voice{
		{ID: "en-1", Language: "en-US", Gender: "female"},
		{ID: "es-m", Language: "es-ES", Gender: "male"},
		{ID: "es-f", Language: "es-ES", Gender: "female"},
	}}
	config := testConfig()
	config.VoiceGender = "female"
	player := NewPlayer(engine, config, zap.NewNop())

	player.Speak(context.Background(), "Hola.")
	collectUntilFinished(t, player)

	engine.mu.Lock()
	defer engine.mu.Unlock()
	if len(engine.utterances) != 1 || engine.utterances[0].Voice.ID != "es-f" {
		t.Errorf("Expected the es female voice, got %+v", engine.utterances)
	}
}

func TestPlayerWatchdogPingsEngine(t *testing.T) {
	engine := &fakeEngine{holdCall: 1}
	config := testConfig()
	config.WatchdogInterval = 5 * time.Millisecond
	player := NewPlayer(engine, config, zap.NewNop())

	player.Speak(context.Background(), "Una oración que se queda sonando.")
	time.Sleep(50 * time.Millisecond)

	engine.mu.Lock()
	pings := engine.pings
	engine.mu.Unlock()
	if pings == 0 {
		t.Error("Watchdog should have pinged the engine while speaking")
	}

	player.Cancel()
	collectUntilFinished(t, player)
}
