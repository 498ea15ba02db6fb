package providers

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestNewRedisProvider(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("password")

	client := NewRedisProvider(mr.Addr(), "password")
	if client == nil {
		t.Fatal("Expected redis client to be non-nil")
	}
	defer client.Close()

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
