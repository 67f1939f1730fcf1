package pages

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/oaiiae/contacts-web/flows"
)

// SEO is the metadata of a page.
type SEO struct {
	Title       string
	Description string
	Lang        string // defaults to "en"
}

//go:embed templates/*.html
var templatesFS embed.FS

const phoneFieldPrefix = "phone."

var funcs = template.FuncMap{
	"add":      func(a, b int) int { return a + b },
	"sub":      func(a, b int) int { return a - b },
	"join":     strings.Join,
	"editPath": flows.EditPath,
	"phoneField": func(ref flows.PhoneRef) string {
		return phoneFieldPrefix + ref.String()
	},
	"pageURL": func(q flows.ListQuery, page int) string {
		values := url.Values{}
		if q.Search != "" {
			values.Set("search", q.Search)
		}
		values.Set("page", strconv.Itoa(page))
		values.Set("pageSize", strconv.Itoa(q.PageSize))
		return flows.ListPath + "?" + values.Encode()
	},
}

var templates = map[string]*template.Template{
	"list":     parse("list"),
	"create":   parse("create"),
	"edit":     parse("edit"),
	"notfound": parse("notfound"),
}

func parse(name string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).ParseFS(templatesFS,
		"templates/layout.html",
		"templates/side_image.html",
		"templates/"+name+".html",
	))
}

type layout struct {
	SEO     SEO
	Notices []flows.Notice
	Refresh int // seconds, 0 disables
	Content any
}

// render writes the named page with status.
func (p *Pages) render(w http.ResponseWriter, r *http.Request, status int, name string, data layout) {
	if data.SEO.Lang == "" {
		data.SEO.Lang = "en"
	}

	var buf bytes.Buffer
	if err := templates[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		p.report(r, http.StatusInternalServerError, "could not render "+name, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
