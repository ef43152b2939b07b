package mocks

import (
	"testing"
)

func TestDataGeneratorGenerate(t *testing.T) {
	gen := NewDataGenerator(42)
	config := DefaultConfig()
	config.Count = 100

	data := gen.Generate(config)

	if len(data) != 100 {
		t.Fatalf("expected 100 bars, got %d", len(data))
	}

	for i, d := range data {
		if d.Symbol != config.Symbol {
			t.Errorf("bar %d: expected symbol %s, got %s", i, config.Symbol, d.Symbol)
		}

		if d.Open <= 0 || d.High <= 0 || d.Low <= 0 || d.Close <= 0 {
			t.Errorf("bar %d: non-positive OHLC: O=%f H=%f L=%f C=%f", i, d.Open, d.High, d.Low, d.Close)
		}

		if d.High < d.Low {
			t.Errorf("bar %d: high %f below low %f", i, d.High, d.Low)
		}

		if i > 0 {
			if !d.Time.After(data[i-1].Time) {
				t.Errorf("bar %d: timestamps not increasing", i)
			}

			if d.Time.Sub(data[i-1].Time) != config.Interval {
				t.Errorf("bar %d: interval %v, expected %v", i, d.Time.Sub(data[i-1].Time), config.Interval)
			}
		}
	}
}

func TestDataGeneratorIsDeterministic(t *testing.T) {
	config := DefaultConfig()
	config.Count = 50

	first := NewDataGenerator(7).Generate(config)
	second := NewDataGenerator(7).Generate(config)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("bar %d differs between runs with the same seed", i)
		}
	}
}

func TestGenerateQuotes(t *testing.T) {
	gen := NewDataGenerator(42)
	config := DefaultConfig()
	config.Count = 200
	config.Symbol = "NIFTY"

	quotes := gen.GenerateQuotes(config, 0.001)

	if len(quotes) != 200 {
		t.Fatalf("expected 200 quotes, got %d", len(quotes))
	}

	for i, q := range quotes {
		if q.Instrument != "NIFTY" {
			t.Errorf("quote %d: instrument %s", i, q.Instrument)
		}

		if q.Bid >= q.Ask {
			t.Errorf("quote %d: bid %f not below ask %f", i, q.Bid, q.Ask)
		}

		if q.Last < q.Bid || q.Last > q.Ask {
			t.Errorf("quote %d: last %f outside [%f, %f]", i, q.Last, q.Bid, q.Ask)
		}

		if q.High < q.Low {
			t.Errorf("quote %d: high %f below low %f", i, q.High, q.Low)
		}

		if i > 0 && q.Volume < quotes[i-1].Volume {
			t.Errorf("quote %d: session volume decreased from %f to %f", i, quotes[i-1].Volume, q.Volume)
		}
	}
}

func TestGenerateMultiSymbol(t *testing.T) {
	gen := NewDataGenerator(42)
	config := DefaultConfig()
	config.Count = 10

	data := gen.GenerateMultiSymbol([]string{"NIFTY", "BANKNIFTY"}, config)

	if len(data) != 20 {
		t.Fatalf("expected 20 bars total, got %d", len(data))
	}

	symbols := map[string]int{}
	for _, d := range data {
		symbols[d.Symbol]++
	}

	if symbols["NIFTY"] != 10 || symbols["BANKNIFTY"] != 10 {
		t.Errorf("uneven bars per symbol: %v", symbols)
	}
}

func BenchmarkGenerate10K(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = Generate10K("BENCH")
	}
}
