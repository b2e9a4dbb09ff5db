package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(DefaultLang); err != nil {
		t.Fatalf("Init: %v", err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslatePortuguese(t *testing.T) {
	ctx := initLang(t, "pt")

	got := T(ctx, "AppTitle")
	if got != "Análise de Desempenho por Descritor" {
		t.Errorf("T(AppTitle) = %q", got)
	}

	got = T(ctx, "ColCorrect")
	if got != "Acertos" {
		t.Errorf("T(ColCorrect) = %q, want 'Acertos'", got)
	}
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "Performance Analysis by Descriptor" {
		t.Errorf("T(AppTitle) = %q", got)
	}
}

func TestDefaultWithoutLocalizer(t *testing.T) {
	initLang(t, "en")

	got := T(context.Background(), "ColSchool")
	if got != "Escola" {
		t.Errorf("T(ColSchool) without localizer = %q, want 'Escola'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "SheetCount", 1)
	if got1 != "1 sheet" {
		t.Errorf("Tp(SheetCount, 1) = %q, want '1 sheet'", got1)
	}

	got5 := Tp(ctx, "SheetCount", 5)
	if got5 != "5 sheets" {
		t.Errorf("Tp(SheetCount, 5) = %q, want '5 sheets'", got5)
	}

	ctx = initLang(t, "pt")
	if got := Tp(ctx, "StudentCount", 3); got != "3 alunos" {
		t.Errorf("Tp(StudentCount, 3) = %q, want '3 alunos'", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "pt")

	got := Td(ctx, "SheetHeading", map[string]any{"Sheet": "Alfredo"})
	if got != "Escola: Alfredo" {
		t.Errorf("Td(SheetHeading) = %q, want 'Escola: Alfredo'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestSupported(t *testing.T) {
	initLang(t, "pt")

	for lang, want := range map[string]bool{
		"pt":    true,
		"pt-BR": true,
		"en":    true,
		"en-US": true,
		"ru":    false,
		"!!":    false,
	} {
		if got := Supported(lang); got != want {
			t.Errorf("Supported(%q) = %v, want %v", lang, got, want)
		}
	}
}

func TestMiddleware(t *testing.T) {
	initLang(t, "pt")

	var got string
	h := Middleware("pt")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ColStudents")
	}))

	tests := []struct {
		name   string
		url    string
		accept string
		want   string
	}{
		{"default", "/", "", "Alunos"},
		{"accept header", "/", "en-US,en;q=0.9", "Students"},
		{"query wins", "/?lang=pt", "en-US", "Alunos"},
		{"unsupported query ignored", "/?lang=ru", "", "Alunos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
