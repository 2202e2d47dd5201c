package breathing

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func fastConfig() Config {
	return Config{
		Inhale: 4 * time.Millisecond,
		Hold:   7 * time.Millisecond,
		Exhale: 8 * time.Millisecond,
		Rest:   2 * time.Millisecond,
		Cycles: 3,
		Tick:   time.Millisecond,
	}
}

func drainUntilDone(t *testing.T, r *Runner) []Event {
	t.Helper()
	var log []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-r.Events():
			log = append(log, ev)
			if ev.Kind == EventDone {
				return log
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for done event, %d events so far", len(log))
		}
	}
}

func TestRunnerCompletesThreeCycles(t *testing.T) {
	runner := NewRunner(fastConfig(), zap.NewNop())
	runner.Start(context.Background())

	log := drainUntilDone(t, runner)
	done := log[len(log)-1]
	if done.Skipped {
		t.Error("A completed exercise must not report skipped")
	}

	wantPhases := []Phase{PhaseInhale, PhaseHold, PhaseExhale, PhaseRest}
	var phases []Event
	for _, ev := range log {
		if ev.Kind == EventPhase {
			phases = append(phases, ev)
		}
	}
	if len(phases) != 12 {
		t.Fatalf("Expected 4 phases x 3 cycles, got %d", len(phases))
	}
	for i, ev := range phases {
		if ev.Phase != wantPhases[i%4] {
			t.Errorf("Phase %d: got %s, want %s", i, ev.Phase, wantPhases[i%4])
		}
		if ev.Cycle != i/4+1 {
			t.Errorf("Phase %d: got cycle %d, want %d", i, ev.Cycle, i/4+1)
		}
	}

	if runner.Running() {
		t.Error("Running should be false after completion")
	}
}

func TestRunnerCountdownDescends(t *testing.T) {
	runner := NewRunner(fastConfig(), zap.NewNop())
	runner.Start(context.Background())
	log := drainUntilDone(t, runner)

	// First inhale counts 4, 3, 2, 1.
	var counts []int
	for _, ev := range log {
		if ev.Kind == EventCountdown && ev.Phase == PhaseInhale && ev.Cycle == 1 {
			counts = append(counts, ev.Remaining)
		}
	}
	want := []int{4, 3, 2, 1}
	if len(counts) != len(want) {
		t.Fatalf("Expected %v, got %v", want, counts)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, counts)
		}
	}
}

func TestRunnerSkip(t *testing.T) {
	config := fastConfig()
	config.Inhale = time.Hour
	runner := NewRunner(config, zap.NewNop())
	runner.Start(context.Background())

	// Let the first phase begin, then bail out.
	select {
	case <-runner.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("Exercise never started")
	}
	runner.Skip()

	log := drainUntilDone(t, runner)
	if !log[len(log)-1].Skipped {
		t.Error("A skipped exercise must report skipped")
	}
	if runner.Running() {
		t.Error("Running should be false after skip")
	}
}

func TestRunnerIgnoresDoubleStart(t *testing.T) {
	config := fastConfig()
	config.Inhale = time.Hour
	runner := NewRunner(config, zap.NewNop())
	runner.Start(context.Background())
	runner.Start(context.Background())

	runner.Skip()
	log := drainUntilDone(t, runner)

	dones := 0
	for _, ev := range log {
		if ev.Kind == EventDone {
			dones++
		}
	}
	if dones != 1 {
		t.Errorf("Expected exactly one done event, got %d", dones)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	if c.Inhale != 4*time.Second || c.Hold != 7*time.Second || c.Exhale != 8*time.Second {
		t.Errorf("Unexpected phase defaults: %+v", c)
	}
	if c.Rest != 2*time.Second || c.Cycles != 3 || c.Tick != time.Second {
		t.Errorf("Unexpected defaults: %+v", c)
	}
}
