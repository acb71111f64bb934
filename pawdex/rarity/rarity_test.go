package rarity

import (
	"math"
	"math/rand"
	"testing"
)

func TestSampleDistribution(t *testing.T) {
	tests := []struct {
		name  string
		table Table
	}{
		{
			name:  "default table",
			table: DefaultTable,
		},
		{
			name: "uniform",
			table: Table{
				{Common, 1},
				{Rare, 1},
				{Epic, 1},
			},
		},
		{
			name: "skewed integers",
			table: Table{
				{Common, 90},
				{Rare, 9},
				{Epic, 1},
			},
		},
	}

	const draws = 200_000

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSampler(rand.New(rand.NewSource(42)))
			counts := make(map[Tier]int)
			for i := 0; i < draws; i++ {
				tier, err := s.Sample(tt.table)
				if err != nil {
					t.Fatalf("Sample() error = %v", err)
				}
				counts[tier]++
			}

			total := tt.table.Total()
			for _, w := range tt.table {
				want := w.Value / total
				got := float64(counts[w.Tier]) / draws
				// 3-sigma binomial tolerance plus a small floor for the
				// rarest tiers.
				tolerance := 3*math.Sqrt(want*(1-want)/draws) + 0.0005
				if math.Abs(got-want) > tolerance {
					t.Errorf("tier %s: got proportion %.5f, want %.5f (±%.5f)", w.Tier, got, want, tolerance)
				}
			}
		})
	}
}

func TestSampleZeroWeightNeverDrawn(t *testing.T) {
	table := Table{
		{Common, 1},
		{Rare, 0},
		{Epic, 1},
	}

	s := NewSampler(rand.New(rand.NewSource(7)))
	for i := 0; i < 50_000; i++ {
		tier, err := s.Sample(table)
		if err != nil {
			t.Fatalf("Sample() error = %v", err)
		}
		if tier == Rare {
			t.Fatalf("drew zero-weight tier on iteration %d", i)
		}
	}
}

func TestSampleEmptyTable(t *testing.T) {
	s := NewSeededSampler(1)

	tier, err := s.Sample(nil)
	if err == nil {
		t.Fatal("Sample(nil) expected error, got nil")
	}
	if tier != Common {
		t.Errorf("Sample(nil) tier = %v, want %v", tier, Common)
	}

	tier, err = s.Sample(Table{{Rare, 0}})
	if err == nil {
		t.Fatal("Sample(zero weights) expected error, got nil")
	}
	if tier != Common {
		t.Errorf("Sample(zero weights) tier = %v, want %v", tier, Common)
	}
}

// fixedSource returns a preset sequence of values.
type fixedSource struct {
	values []float64
	i      int
}

func (f *fixedSource) Float64() float64 {
	v := f.values[f.i%len(f.values)]
	f.i++
	return v
}

func TestSampleBoundaries(t *testing.T) {
	table := Table{
		{Common, 0.5},
		{Rare, 0.5},
	}

	tests := []struct {
		name string
		draw float64
		want Tier
	}{
		{name: "zero draws first tier", draw: 0, want: Common},
		{name: "just under boundary", draw: 0.4999, want: Common},
		{name: "at boundary", draw: 0.5, want: Rare},
		{name: "residual falls to last tier", draw: 0.9999999999, want: Rare},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSampler(&fixedSource{values: []float64{tt.draw}})
			got, err := s.Sample(table)
			if err != nil {
				t.Fatalf("Sample() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Sample() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseTier(t *testing.T) {
	for v := 0; v <= 4; v++ {
		if _, err := ParseTier(v); err != nil {
			t.Errorf("ParseTier(%d) unexpected error: %v", v, err)
		}
	}
	for _, v := range []int{-1, 5, 42} {
		if _, err := ParseTier(v); err == nil {
			t.Errorf("ParseTier(%d) expected error", v)
		}
	}
}
