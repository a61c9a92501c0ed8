package stage

import (
	"context"
	"testing"
)

func TestCheckAllSkipsNil(t *testing.T) {
	checks := CheckAll(context.Background(),
		CheckerFunc(func(context.Context) Health { return Healthy("store") }),
		nil,
		CheckerFunc(func(context.Context) Health { return Unhealthy("ffmpeg", "not found") }),
	)
	if len(checks) != 2 {
		t.Fatalf("expected 2 results, got %d", len(checks))
	}
	if !checks[0].Ready || checks[1].Ready || checks[1].Detail != "not found" {
		t.Fatalf("unexpected results %+v", checks)
	}
}
