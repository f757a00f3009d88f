//go:build !integration

package i18n

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestTranslator(t *testing.T) {
	translator, err := newTranslatorFromBytes([]byte("greeting: Xin chào\nwelcome_user: Xin chào %s"))
	if err != nil {
		t.Fatalf("newTranslatorFromBytes failed: %v", err)
	}

	t.Run("should translate a simple key", func(t *testing.T) {
		if got := translator.T("greeting"); got != "Xin chào" {
			t.Errorf("wanted 'Xin chào', got '%s'", got)
		}
	})

	t.Run("should return key if not found", func(t *testing.T) {
		if got := translator.T("nonexistent_key"); got != "nonexistent_key" {
			t.Errorf("wanted 'nonexistent_key', got '%s'", got)
		}
	})

	t.Run("should format arguments correctly", func(t *testing.T) {
		if got := translator.T("welcome_user", "An"); got != "Xin chào An" {
			t.Errorf("wanted 'Xin chào An', got '%s'", got)
		}
	})
}

func TestNewTranslator_FromFS(t *testing.T) {
	fsys := fstest.MapFS{"locales/xx.yaml": {Data: []byte("a: b")}}
	tr, err := NewTranslator(fsys, "xx")
	if err != nil {
		t.Fatal(err)
	}
	if tr.T("a") != "b" || tr.Lang() != "xx" {
		t.Errorf("unexpected translator %+v", tr)
	}
	if _, err := NewTranslator(fsys, "zz"); err == nil {
		t.Error("expected an error for a missing catalogue")
	}
}

func TestEmbeddedCataloguesAreComplete(t *testing.T) {
	vi, err := New("vi")
	if err != nil {
		t.Fatalf("vi: %v", err)
	}
	en, err := New("en")
	if err != nil {
		t.Fatalf("en: %v", err)
	}
	for key := range vi.translations {
		if _, ok := en.translations[key]; !ok {
			t.Errorf("en is missing %q", key)
		}
	}
	for key := range en.translations {
		if _, ok := vi.translations[key]; !ok {
			t.Errorf("vi is missing %q", key)
		}
	}

	fr, err := New("fr")
	if err != nil || fr.Lang() != "vi" {
		t.Fatalf("unknown language should fall back to vi, got %v %v", fr, err)
	}
	if !strings.Contains(vi.T("key_created", "K", "∞", "∞", "now"), "`K`") {
		t.Error("key_created should quote the key")
	}
}
