package i18n

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"ru":    "ru",
		"kz":    "kz",
		"kk":    "kz",
		"kk-KZ": "kz",
		"en":    "ru",
		"":      "ru",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestT(t *testing.T) {
	if got := T("ru", "bot.error"); !strings.Contains(got, "ошибка") {
		t.Errorf("ru bot.error = %q", got)
	}
	if ru, kz := T("ru", "status.classifying"), T("kz", "status.classifying"); ru == kz {
		t.Errorf("kz string not localized: %q", kz)
	}
	// Unknown keys come back verbatim.
	if got := T("ru", "no.such.key"); got != "no.such.key" {
		t.Errorf("missing key = %q", got)
	}
	// Unknown languages read the Russian catalog.
	if got := T("en", "bot.error"); got != T("ru", "bot.error") {
		t.Errorf("fallback = %q", got)
	}
}

func TestTf(t *testing.T) {
	got := Tf("ru", "status.module_start", "Финансы")
	if !strings.Contains(got, "Финансы") {
		t.Errorf("formatted = %q", got)
	}
	balance := Tf("ru", "finance.balance", "295 000", "300 000", "5 000")
	for _, part := range []string{"295 000", "300 000", "5 000"} {
		if !strings.Contains(balance, part) {
			t.Errorf("balance %q missing %q", balance, part)
		}
	}
	if strings.Contains(balance, "%!") {
		t.Errorf("format verb mismatch: %q", balance)
	}
}

func TestCatalogsCoverSameKeys(t *testing.T) {
	loadOnce.Do(load)
	// Every formatted key must carry the same number of verbs in both
	// languages, or Tf output breaks for one of them.
	for key, ru := range translations["ru"] {
		kz, ok := translations["kz"][key]
		if !ok {
			// Kazakh falls back to Russian; a hole is allowed.
			continue
		}
		if strings.Count(ru, "%s") != strings.Count(kz, "%s") {
			t.Errorf("verb count differs for %q: ru=%q kz=%q", key, ru, kz)
		}
	}
}
