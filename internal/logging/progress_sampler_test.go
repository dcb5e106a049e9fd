package logging

import (
	"sync"
	"testing"
)

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 5},
		{"default bucket size for negative", -1, 5},
		{"custom bucket size", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSampler_NilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(5, 10) {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSampler_Buckets(t *testing.T) {
	s := NewProgressSampler(10)
	total := 100

	var logged []int
	for done := 1; done <= total; done++ {
		if s.ShouldLog(done, total) {
			logged = append(logged, done)
		}
	}
	want := []int{1, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	if len(logged) != len(want) {
		t.Fatalf("logged %v, want %v", logged, want)
	}
	for i := range want {
		if logged[i] != want[i] {
			t.Fatalf("logged %v, want %v", logged, want)
		}
	}
}

func TestProgressSampler_FinalAlwaysLogs(t *testing.T) {
	s := NewProgressSampler(50)
	if !s.ShouldLog(1, 3) {
		t.Fatal("first item should log")
	}
	if !s.ShouldLog(2, 3) {
		t.Fatal("crossing 50% should log")
	}
	if !s.ShouldLog(3, 3) {
		t.Fatal("final item should log")
	}
	if s.ShouldLog(3, 3) {
		t.Fatal("repeated final item should not log")
	}
}

func TestProgressSampler_Reset(t *testing.T) {
	s := NewProgressSampler(5)
	s.ShouldLog(10, 10)
	s.Reset()
	if !s.ShouldLog(1, 10) {
		t.Fatal("expected log after reset")
	}
}

func TestProgressSampler_Concurrent(t *testing.T) {
	s := NewProgressSampler(5)
	var wg sync.WaitGroup
	for i := 1; i <= 200; i++ {
		wg.Add(1)
		go func(done int) {
			defer wg.Done()
			s.ShouldLog(done, 200)
		}(i)
	}
	wg.Wait()
	if s.ShouldLog(200, 200) {
		t.Fatal("final bucket should already be recorded")
	}
}

func TestZeroTotalAlwaysLogs(t *testing.T) {
	s := NewProgressSampler(5)
	if !s.ShouldLog(0, 0) {
		t.Fatal("expected empty batch to log")
	}
}
