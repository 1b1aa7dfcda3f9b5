// Пакет pages — HTML-страницы сайта.
// Шаблоны встроены в бинарник и отдаются как templ.Component,
// поэтому обработчики рендерят их так же, как сгенерированные templ-компоненты.
package pages

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"time"

	"github.com/a-h/templ"

	"github.com/nordqvist/hnfweb/internal/domain/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Data — данные, общие для всех страниц, и поля отдельных страниц.
type Data struct {
	// Title — заголовок вкладки.
	Title string
	// Nav — активный пункт меню.
	Nav string
	// Flashes — одноразовые сообщения пользователю.
	Flashes []string
	// AdminLoggedIn / AdminEmail — состояние входа.
	AdminLoggedIn bool
	AdminEmail    string

	// Form — значения формы для повторного показа после ошибки.
	Form map[string]string

	// Images — изображения галереи или админки.
	Images []*model.Image
	// StorageEnabled — настроено ли объектное хранилище.
	StorageEnabled bool
	// MaxUploadMB — ограничение размера загрузки для подсказки в форме.
	MaxUploadMB int64
}

// Value возвращает значение поля формы.
func (d Data) Value(field string) string {
	return d.Form[field]
}

var funcs = template.FuncMap{
	"year": func() int { return time.Now().Year() },
	"date": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
}

// templates — по одному набору на страницу: base.html + страница.
var templates = mustParse()

func mustParse() map[string]*template.Template {
	base := template.Must(template.New("base.html").Funcs(funcs).ParseFS(templateFS, "templates/base.html"))

	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		panic(err)
	}

	set := make(map[string]*template.Template, len(names))
	for _, name := range names {
		page := path.Base(name)
		if page == "base.html" {
			continue
		}
		t := template.Must(template.Must(base.Clone()).ParseFS(templateFS, name))
		set[page] = t
	}
	return set
}

// render оборачивает шаблон страницы в templ.Component.
func render(page string, data Data) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		t, ok := templates[page]
		if !ok {
			return fmt.Errorf("шаблон %s не найден", page)
		}
		return t.ExecuteTemplate(w, "base.html", data)
	})
}

// Home — главная страница.
func Home(data Data) templ.Component {
	data.Title, data.Nav = "HNF Webshop", "home"
	return render("home.html", data)
}

// Inspiration — публичная галерея активных изображений.
func Inspiration(data Data) templ.Component {
	data.Title, data.Nav = "Inspiration", "inspiration"
	return render("inspiration.html", data)
}

// About — страница «О нас».
func About(data Data) templ.Component {
	data.Title, data.Nav = "About", "about"
	return render("about.html", data)
}

// Contact — контактная форма.
func Contact(data Data) templ.Component {
	data.Title, data.Nav = "Contact", "contact"
	return render("contact.html", data)
}

// Login — форма входа.
func Login(data Data) templ.Component {
	data.Title, data.Nav = "Login", "login"
	return render("login.html", data)
}

// Register — форма создания учётной записи администратора.
func Register(data Data) templ.Component {
	data.Title, data.Nav = "Register", "admin"
	return render("register.html", data)
}

// Admin — панель администратора: загрузка и список всех изображений.
func Admin(data Data) templ.Component {
	data.Title, data.Nav = "Admin", "admin"
	return render("admin.html", data)
}

// NotFound — страница 404.
func NotFound(data Data) templ.Component {
	data.Title = "Page not found"
	return render("not_found.html", data)
}
