package app

import (
	"html/template"
	"net/http"

	"console/cmd/internal/auth/gate"
)

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>console</title></head>
<body>
{{if .SignedIn}}<p>Signed in as {{.Name}} &lt;{{.Email}}&gt;</p>
{{else}}<p>Not signed in.</p>{{end}}
{{if .Login}}<p>Sign in with a JSON POST of {"email","password"} to <code>/api/auth/login</code>.</p>{{end}}
{{if .Error}}<p role="alert">Session error: {{.Error}}</p>{{end}}
</body></html>
`))

type pageData struct {
	SignedIn bool
	Name     string
	Email    string
	Login    bool
	Error    string
}

// pagesHandler renders the placeholder console pages behind the gate. Paths
// the gate does not cover are not pages.
func pagesHandler(loginPath string, isPage func(path string) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isPage(r.URL.Path) {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		data := pageData{Login: r.URL.Path == loginPath}
		if view, ok := gate.ViewFromContext(r.Context()); ok {
			data.Error = view.Error
			if view.User != nil {
				data.SignedIn = true
				data.Name = view.User.Name
				data.Email = view.User.Email
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = pageTmpl.Execute(w, data)
	})
}
