package bus

import (
	"context"
	"sync"
	"testing"
)

func TestKafkaBusConnectedFlagConcurrency(t *testing.T) {
	// Connect only constructs readers; no broker is dialed until Read.
	b := NewKafkaBus([]string{"localhost:9092"}, []string{"titan.signals"}, "titangate", "")
	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				_ = b.IsConnected()
			}
		}()
	}
	_ = b.Close()
	wg.Wait()

	if b.IsConnected() {
		t.Fatal("still connected after close")
	}
}

func TestKafkaBusConnectValidation(t *testing.T) {
	if err := NewKafkaBus(nil, []string{"t"}, "g", "").Connect(context.Background()); err == nil {
		t.Fatal("connect without brokers did not error")
	}
	if err := NewKafkaBus([]string{"localhost:9092"}, nil, "g", "").Connect(context.Background()); err == nil {
		t.Fatal("connect without topics did not error")
	}
}
