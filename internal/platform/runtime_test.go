package platform

import (
	"context"
	"errors"
	"testing"
	"time"

	"spikegrid/internal/model"
	"spikegrid/internal/network"
	"spikegrid/internal/storage"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt := NewRuntime(Config{
		Store:         storage.NewMemoryStore(),
		Network:       network.Config{Workers: 2, Seed: 1},
		ClockInterval: time.Millisecond,
	})
	if err := rt.Init(context.Background()); err != nil {
		t.Fatalf("init runtime: %v", err)
	}
	t.Cleanup(rt.Stop)
	return rt
}

func TestRuntimeRequiresStore(t *testing.T) {
	rt := NewRuntime(Config{})
	if err := rt.Init(context.Background()); err == nil {
		t.Fatal("expected init without store to fail")
	}
	if _, err := rt.Network(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := rt.StartClock(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestRuntimeClockRecoversNeurons(t *testing.T) {
	rt := newTestRuntime(t)
	nw, err := rt.Network()
	if err != nil {
		t.Fatalf("network: %v", err)
	}
	id, err := nw.CreateNeuron(model.CellPosition{}, model.NeuronGeneric)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := nw.Inject(id, 100); err != nil {
		t.Fatalf("inject: %v", err)
	}
	if err := nw.Settle(context.Background()); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if err := rt.StartClock(); err != nil {
		t.Fatalf("start clock: %v", err)
	}
	if err := rt.StartClock(); err != nil {
		t.Fatalf("second start should be a no-op: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return nw.Stats().Recovering == 0 })
	rt.StopClock()

	rec, _ := nw.Neuron(id)
	if rec.Phase != model.PhaseResting || rec.Potential != -65 {
		t.Fatalf("expected neuron back at rest, got %+v", rec)
	}
	if nw.Stats().Ticks < 8 {
		t.Fatalf("expected the clock to tick at least 8 times, got %d", nw.Stats().Ticks)
	}
	if tasks := rt.supervisor.Tasks(); len(tasks) != 0 {
		t.Fatalf("expected clock task stopped, got %v", tasks)
	}
}

func TestRuntimeRecordsRewardHistory(t *testing.T) {
	rt := newTestRuntime(t)
	nw, _ := rt.Network()
	rew, err := nw.CreateNeuron(model.CellPosition{}, model.NeuronReward)
	if err != nil {
		t.Fatalf("create reward neuron: %v", err)
	}
	if _, err := nw.Stimulate(context.Background(), rew, 10); err != nil {
		t.Fatalf("stimulate: %v", err)
	}
	res, err := rt.Step()
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if res.RewardValue != 1 {
		t.Fatalf("expected reward 1, got %+v", res)
	}
	if _, err := rt.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}
	history := rt.RewardHistory()
	if len(history) != 2 || history[0] != 0 || history[1] != 1 {
		t.Fatalf("expected history [0 1], got %v", history)
	}
}

func TestRuntimeSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	src := NewRuntime(Config{Store: store, Network: network.Config{Workers: 2, Seed: 1}})
	if err := src.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(src.Stop)

	nw, _ := src.Network()
	a, _ := nw.CreateNeuron(model.CellPosition{}, model.NeuronGeneric)
	b, _ := nw.CreateNeuron(model.CellPosition{X: 1}, model.NeuronGeneric)
	if _, err := nw.ConnectWithStrength(a, b, 50); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := nw.ApplyReward(true, 1); err != nil {
		t.Fatalf("reward: %v", err)
	}

	summary, err := src.SaveSnapshot(ctx, "trained")
	if err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if summary.Label != "trained" || summary.NeuronCount != 2 || summary.SynapseCount != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	list, err := src.ListSnapshots(ctx)
	if err != nil || len(list) != 1 || list[0].ID != summary.ID {
		t.Fatalf("unexpected list: %+v err=%v", list, err)
	}
	if history, ok, err := src.StoredRewardHistory(ctx, summary.ID); err != nil || !ok || len(history) != 1 {
		t.Fatalf("expected stored reward history, got %v ok=%v err=%v", history, ok, err)
	}

	// A second runtime over the same store starts empty and restores.
	dst := NewRuntime(Config{Store: store, Network: network.Config{Workers: 2, Seed: 2}})
	if err := dst.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(dst.Stop)
	if err := dst.LoadSnapshot(ctx, summary.ID); err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	restored, _ := dst.Network()
	rec, ok := restored.SynapseBetween(a, b)
	if !ok || rec.Strength != 70 || rec.Age != 1 {
		t.Fatalf("unexpected restored synapse: %+v ok=%v", rec, ok)
	}

	if err := dst.LoadSnapshot(ctx, "missing"); !errors.Is(err, ErrUnknownSnapshot) {
		t.Fatalf("expected ErrUnknownSnapshot, got %v", err)
	}
	if err := dst.DeleteSnapshot(ctx, summary.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := dst.DeleteSnapshot(ctx, summary.ID); !errors.Is(err, ErrUnknownSnapshot) {
		t.Fatalf("expected ErrUnknownSnapshot, got %v", err)
	}
}

func TestRuntimeStopIsIdempotent(t *testing.T) {
	rt := newTestRuntime(t)
	if err := rt.StartClock(); err != nil {
		t.Fatalf("start clock: %v", err)
	}
	rt.Stop()
	rt.Stop()
	if _, err := rt.Network(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized after stop, got %v", err)
	}
	if _, err := rt.Step(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized from step, got %v", err)
	}
}
