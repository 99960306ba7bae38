package embedding

import (
	"context"
	"math"
	"testing"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	emb := NewMockEmbedder(16)
	defer emb.Close()

	a, err := emb.Embed(ctx, "a person surfing")
	if err != nil {
		t.Fatal(err)
	}
	b, err := emb.Embed(ctx, "a person surfing")
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestMockEmbedder_UnitNorm(t *testing.T) {
	emb := NewMockEmbedder(32)
	defer emb.Close()
	v, err := emb.Embed(context.Background(), "sunset over mountains")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 32 {
		t.Fatalf("len = %d, want 32", len(v))
	}
	var sum float64
	for _, x := range v {
		sum += float64(x * x)
	}
	if math.Abs(sum-1.0) > 1e-5 {
		t.Errorf("norm^2 = %f, want 1.0", sum)
	}
}

func TestMockEmbedder_DefaultDimensions(t *testing.T) {
	emb := NewMockEmbedder(0)
	if emb.Dimensions() != 768 {
		t.Errorf("Dimensions() = %d, want 768", emb.Dimensions())
	}
}
