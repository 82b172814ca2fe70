//go:build !integration

package prompts

import "testing"

func TestLoad_EmbeddedCatalog(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	list := c.List()
	if len(list) == 0 {
		t.Fatal("expected a non-empty catalog")
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Category > list[i].Category {
			t.Errorf("expected catalog ordered by category, got %q before %q", list[i-1].Category, list[i].Category)
		}
	}
	p, ok := c.Get(" Copy-Vendas ")
	if !ok || p.Title == "" {
		t.Errorf("expected copy-vendas to be found, got %+v", p)
	}
}

func TestParse(t *testing.T) {
	t.Run("should reject duplicate slugs", func(t *testing.T) {
		_, err := Parse([]byte("prompts:\n  - {slug: a, body: x}\n  - {slug: A, body: y}\n"))
		if err == nil {
			t.Error("expected duplicate slug error")
		}
	})

	t.Run("should reject entries without body", func(t *testing.T) {
		_, err := Parse([]byte("prompts:\n  - {slug: a, title: T}\n"))
		if err == nil {
			t.Error("expected missing body error")
		}
	})

	t.Run("should keep lookups consistent after sorting", func(t *testing.T) {
		c, err := Parse([]byte("prompts:\n  - {slug: z, category: b, body: zz}\n  - {slug: a, category: a, body: aa}\n"))
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if p, _ := c.Get("z"); p.Body != "zz" {
			t.Errorf("unexpected prompt %+v", p)
		}
	})
}
