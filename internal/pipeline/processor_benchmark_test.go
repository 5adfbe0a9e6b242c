package pipeline

import (
	"context"
	"testing"

	"github.com/dunamismax/bgremove/internal/domain"
)

func benchmarkProcess(b *testing.B, format domain.OutputFormat) {
	source := buildTestPNG(b, 1920, 1080)
	processor, err := NewProcessor(greenScreen)
	if err != nil {
		b.Fatalf("new processor: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := processor.Process(context.Background(), source, format); err != nil {
			b.Fatalf("process: %v", err)
		}
	}
}

func BenchmarkProcessPNG(b *testing.B) {
	benchmarkProcess(b, domain.FormatPNG)
}

func BenchmarkProcessJPEG(b *testing.B) {
	benchmarkProcess(b, domain.FormatJPEG)
}

func BenchmarkProcessWEBP(b *testing.B) {
	benchmarkProcess(b, domain.FormatWEBP)
}
