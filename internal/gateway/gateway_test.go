package gateway_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"guessrank/internal/gateway"
	"guessrank/internal/metrics"
	"guessrank/internal/services"
	"guessrank/internal/testsupport"
	"guessrank/internal/transform"
)

type fakeTransformer struct {
	dir string
	run func(ctx context.Context, output string) error
}

func (f *fakeTransformer) OutputPath(input string) string {
	return filepath.Join(f.dir, filepath.Base(input)+".out")
}

func (f *fakeTransformer) Transform(ctx context.Context, input string) (transform.Result, error) {
	out := f.OutputPath(input)
	if err := os.WriteFile(out, []byte("partial"), 0o644); err != nil {
		return transform.Result{}, err
	}
	if err := f.run(ctx, out); err != nil {
		return transform.Result{}, err
	}
	return transform.Result{Path: out}, nil
}

func TestGatewayTimeoutRemovesOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Transform.TimeoutSeconds = 1
	dir := t.TempDir()
	fake := &fakeTransformer{dir: dir, run: func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	gw := gateway.New(cfg, fake, metrics.New(), nil)

	start := time.Now()
	_, err := gw.Transform(context.Background(), "clip.mp4", nil)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("timeout not enforced")
	}
	testsupport.AssertMissing(t, fake.OutputPath("clip.mp4"))
	if active, _ := gw.Gate().Stats(); active != 0 {
		t.Fatal("slot not released after timeout")
	}
}

func TestGatewayQueueTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Transform.QueueTimeoutSeconds = 1
	fake := &fakeTransformer{dir: t.TempDir(), run: func(context.Context, string) error { return nil }}
	gw := gateway.New(cfg, fake, nil, nil)
	hold, err := gw.Gate().Acquire(context.Background(), nil)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer hold()

	var positions []int
	start := time.Now()
	_, err = gw.Transform(context.Background(), "clip.mp4", func(pos int) { positions = append(positions, pos) })
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout while queued, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("queue timeout not enforced")
	}
	if len(positions) == 0 || positions[0] != 1 {
		t.Fatalf("expected queued position 1, got %v", positions)
	}
	if _, waiting := gw.Gate().Stats(); waiting != 0 {
		t.Fatalf("timed out waiter left in queue: %d", waiting)
	}
}

func TestGatewayFailureIsExternal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	fake := &fakeTransformer{dir: t.TempDir(), run: func(context.Context, string) error {
		return errors.New("boom")
	}}
	gw := gateway.New(cfg, fake, nil, nil)

	_, err := gw.Transform(context.Background(), "clip.mp4", nil)
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external failure, got %v", err)
	}
	testsupport.AssertMissing(t, fake.OutputPath("clip.mp4"))
}

func TestGatewaySuccessKeepsOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithConcurrency(3))
	fake := &fakeTransformer{dir: t.TempDir(), run: func(context.Context, string) error { return nil }}
	gw := gateway.New(cfg, fake, nil, nil)
	if gw.Gate().Limit() != 3 {
		t.Fatalf("expected K=3, got %d", gw.Gate().Limit())
	}

	result, err := gw.Transform(context.Background(), "clip.mp4", nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if _, err := os.Stat(result.Path); err != nil {
		t.Fatalf("output should remain: %v", err)
	}
}
