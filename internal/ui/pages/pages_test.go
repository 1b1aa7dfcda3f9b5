package pages

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordqvist/hnfweb/internal/domain/model"
)

func mustRender(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestAllPagesRender(t *testing.T) {
	data := Data{Flashes: []string{"Login successful!"}}
	cases := map[string]func(Data) templ.Component{
		"home":        Home,
		"inspiration": Inspiration,
		"about":       About,
		"contact":     Contact,
		"login":       Login,
		"register":    Register,
		"admin":       Admin,
		"not_found":   NotFound,
	}
	for name, page := range cases {
		t.Run(name, func(t *testing.T) {
			html := mustRender(t, page(data))
			assert.Contains(t, html, "<!DOCTYPE html>")
			assert.Contains(t, html, "Login successful!")
		})
	}
}

func TestNavShowsAdminLinksOnlyWhenLoggedIn(t *testing.T) {
	html := mustRender(t, Home(Data{}))
	assert.NotContains(t, html, `href="/logout"`)

	html = mustRender(t, Home(Data{AdminLoggedIn: true}))
	assert.Contains(t, html, `href="/logout"`)
	assert.Contains(t, html, `href="/admin"`)
}

// Значения формы и flash-сообщения экранируются.
func TestContactEscapesValues(t *testing.T) {
	html := mustRender(t, Contact(Data{
		Form:    map[string]string{"message": "<script>alert(1)</script>"},
		Flashes: []string{"<b>x</b>"},
	}))
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.NotContains(t, html, "<b>x</b>")
}

func TestInspirationGallery(t *testing.T) {
	alt := "Kitchen"
	html := mustRender(t, Inspiration(Data{Images: []*model.Image{
		{ID: 1, URL: "https://cdn.test/inspiration/a.jpg", AltText: &alt, IsActive: true},
		{ID: 2, URL: "https://cdn.test/inspiration/b.jpg", IsActive: true},
	}}))
	assert.Contains(t, html, `src="https://cdn.test/inspiration/a.jpg"`)
	assert.Contains(t, html, `alt="Kitchen"`)
	assert.Contains(t, html, `src="https://cdn.test/inspiration/b.jpg"`)

	empty := mustRender(t, Inspiration(Data{}))
	assert.Contains(t, empty, "No images yet")
}

func TestAdminPage(t *testing.T) {
	html := mustRender(t, Admin(Data{
		AdminLoggedIn:  true,
		AdminEmail:     "admin@example.com",
		StorageEnabled: true,
		MaxUploadMB:    10,
		Images: []*model.Image{
			{ID: 7, URL: "https://cdn.test/a.jpg", CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), IsActive: false},
		},
	}))
	assert.Contains(t, html, "admin@example.com")
	assert.Contains(t, html, `action="/admin/upload"`)
	assert.Contains(t, html, `action="/admin/images/7/activate"`)
	assert.Contains(t, html, `action="/admin/images/7/delete"`)
	assert.Contains(t, html, "2024-05-01 10:00")

	noStorage := mustRender(t, Admin(Data{AdminLoggedIn: true}))
	assert.Contains(t, noStorage, "Image storage is not configured.")
	assert.NotContains(t, noStorage, `action="/admin/upload"`)
}
