package view

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/carlog/carlog/internal/model"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func TestNew_ParsesEveryPage(t *testing.T) {
	t.Parallel()
	r := newTestRenderer(t)

	for _, page := range []string{PageHome, PageRegister, PageLogin, PageDashboard, PageAddService, PageViewServices, PageError} {
		if _, ok := r.pages[page]; !ok {
			t.Errorf("page %q not parsed", page)
		}
	}
	if _, ok := r.pages["layout"]; ok {
		t.Error("layout should not be a page on its own")
	}
}

func TestRender_UnknownPage(t *testing.T) {
	t.Parallel()
	r := newTestRenderer(t)

	rec := httptest.NewRecorder()
	if err := r.Render(rec, http.StatusOK, "nope", nil); err == nil {
		t.Error("expected error for unknown page")
	}
	if rec.Body.Len() != 0 {
		t.Error("nothing should be written for an unknown page")
	}
}

func TestRender_NavigationFollowsIdentity(t *testing.T) {
	t.Parallel()
	r := newTestRenderer(t)

	tests := []struct {
		name    string
		user    *model.User
		want    []string
		notWant []string
	}{
		{"anonymous", nil, []string{`href="/login"`, `href="/register"`}, []string{`href="/logout"`}},
		{"authenticated", &model.User{ID: 1, Username: "alice"}, []string{`href="/logout"`, `href="/dashboard"`}, []string{`href="/login"`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			if err := r.Render(rec, http.StatusOK, PageHome, &Page{User: tt.user}); err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			body := rec.Body.String()
			for _, s := range tt.want {
				if !strings.Contains(body, s) {
					t.Errorf("body missing %s", s)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(body, s) {
					t.Errorf("body should not contain %s", s)
				}
			}
		})
	}
}

func TestRender_FlashesAndStatus(t *testing.T) {
	t.Parallel()
	r := newTestRenderer(t)

	rec := httptest.NewRecorder()
	page := &Page{
		Flashes: []model.Flash{{Category: model.FlashDanger, Message: "Login unsuccessful. Check your email and password."}},
		Form:    map[string]string{"email": "a@x.com"},
	}
	if err := r.Render(rec, http.StatusOK, PageLogin, page); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `class="alert alert-danger"`) {
		t.Error("flash should use the danger style")
	}
	if !strings.Contains(body, "Login unsuccessful. Check your email and password.") {
		t.Error("flash message missing")
	}
	if !strings.Contains(body, `value="a@x.com"`) {
		t.Error("email should be refilled")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestRender_EscapesUserContent(t *testing.T) {
	t.Parallel()
	r := newTestRenderer(t)

	rec := httptest.NewRecorder()
	page := &Page{
		User: &model.User{ID: 1, Username: "<b>alice</b>"},
		Records: []*model.MaintenanceRecord{{
			ID: 1, Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			ServiceType: "<script>alert(1)</script>", Cost: 10, Notes: `"quoted" & <i>notes</i>`,
		}},
	}
	if err := r.Render(rec, http.StatusOK, PageViewServices, page); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	body := rec.Body.String()
	if strings.Contains(body, "<script>alert(1)</script>") || strings.Contains(body, "<i>notes</i>") {
		t.Error("user content must be escaped")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("escaped service type missing")
	}
}

func TestRender_ViewServices(t *testing.T) {
	t.Parallel()
	r := newTestRenderer(t)

	t.Run("empty", func(t *testing.T) {
		rec := httptest.NewRecorder()
		if err := r.Render(rec, http.StatusOK, PageViewServices, &Page{User: &model.User{ID: 1}}); err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		if !strings.Contains(rec.Body.String(), "No maintenance records yet.") {
			t.Error("empty state message missing")
		}
	})

	t.Run("records", func(t *testing.T) {
		rec := httptest.NewRecorder()
		page := &Page{
			User: &model.User{ID: 1},
			Records: []*model.MaintenanceRecord{
				{ID: 2, Date: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), ServiceType: "Oil Change", Cost: 49.99},
				{ID: 1, Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), ServiceType: "Tire Rotation", Cost: 20},
			},
		}
		if err := r.Render(rec, http.StatusOK, PageViewServices, page); err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		body := rec.Body.String()
		for _, s := range []string{"2024-03-10", "Oil Change", "$49.99", "Tire Rotation", "$20.00"} {
			if !strings.Contains(body, s) {
				t.Errorf("body missing %q", s)
			}
		}
		if strings.Index(body, "Oil Change") > strings.Index(body, "Tire Rotation") {
			t.Error("records should render in the given order")
		}
	})
}

func TestRender_ErrorPage(t *testing.T) {
	t.Parallel()
	r := newTestRenderer(t)

	rec := httptest.NewRecorder()
	if err := r.Render(rec, http.StatusNotFound, PageError, &Page{Status: 404, Message: "Page not found."}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Page not found.") {
		t.Error("error message missing")
	}
}
