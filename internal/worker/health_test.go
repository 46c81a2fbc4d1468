package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-compilex/internal/store"
	"github.com/aescanero/dago-node-compilex/pkg/compilex"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", p.err)
}

func get(t *testing.T, hs *HealthServer, path string) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	hs.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return rec.Code, body
}

func TestHealthHealthy(t *testing.T) {
	templates := store.NewMemory()
	_ = templates.Put(context.Background(), "a", "x")
	compiler := compilex.New().Extend("shout", func(statement, body string, attrs map[string]any) (string, error) {
		return body, nil
	})

	hs := NewHealthServer(0, fakePinger{}, templates, compiler, zap.NewNop())

	code, body := get(t, hs, "/health")
	if code != http.StatusOK || body.Status != "healthy" {
		t.Fatalf("got %d %+v", code, body)
	}
	if body.Checks["redis"] != "healthy" || body.Checks["templates"] != "healthy: 1 stored" {
		t.Fatalf("checks = %v", body.Checks)
	}
	if want := []string{"each", "if", "shout", "unless"}; !reflect.DeepEqual(body.Directives, want) {
		t.Fatalf("directives = %v, want %v", body.Directives, want)
	}

	code, body = get(t, hs, "/ready")
	if code != http.StatusOK || body.Status != "ready" {
		t.Fatalf("ready got %d %+v", code, body)
	}
}

func TestHealthUnhealthy(t *testing.T) {
	hs := NewHealthServer(0, fakePinger{err: errors.New("connection refused")}, nil, nil, zap.NewNop())

	code, body := get(t, hs, "/health")
	if code != http.StatusServiceUnavailable || body.Status != "unhealthy" {
		t.Fatalf("got %d %+v", code, body)
	}
	if _, ok := body.Checks["templates"]; ok {
		t.Fatal("templates check reported without a store")
	}

	code, body = get(t, hs, "/ready")
	if code != http.StatusServiceUnavailable || body.Status != "not ready" {
		t.Fatalf("ready got %d %+v", code, body)
	}
}

func TestHealthStopWithoutStart(t *testing.T) {
	hs := NewHealthServer(0, fakePinger{}, nil, nil, zap.NewNop())
	if err := hs.Stop(); err != nil {
		t.Fatal(err)
	}
}
