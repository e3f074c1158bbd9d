package term

import (
	"strings"
	"sync"
	"testing"
)

func TestSurfaceRendersWrittenText(t *testing.T) {
	s := NewSurface(4, 20)

	if _, err := s.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out, err := s.RenderString()
	if err != nil {
		t.Fatalf("RenderString: %v", err)
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("rendered output %q does not contain \"hello\"", out)
	}
}

func TestSurfaceCursorAdvances(t *testing.T) {
	s := NewSurface(4, 20)
	s.Write([]byte("ab"))

	x, y := s.Cursor()
	if x != 2 || y != 0 {
		t.Errorf("cursor = (%d, %d), want (2, 0)", x, y)
	}
}

func TestSurfaceReplayKeepsChunkOrder(t *testing.T) {
	s := NewSurface(4, 20)
	s.Replay([][]byte{[]byte("ab"), []byte("cd")})

	out, err := s.RenderString()
	if err != nil {
		t.Fatalf("RenderString: %v", err)
	}
	if !strings.Contains(out, "abcd") {
		t.Errorf("rendered output %q does not contain \"abcd\"", out)
	}
}

func TestSurfaceResize(t *testing.T) {
	s := NewSurface(4, 20)
	s.Resize(10, 40)

	rows, cols := s.Dimensions()
	if rows != 10 || cols != 40 {
		t.Errorf("dimensions = (%d, %d), want (10, 40)", rows, cols)
	}
}

func TestSurfaceConcurrentWrites(t *testing.T) {
	s := NewSurface(24, 80)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Write([]byte("x"))
			}
		}()
	}
	wg.Wait()

	if _, err := s.RenderString(); err != nil {
		t.Errorf("RenderString after concurrent writes: %v", err)
	}
}
