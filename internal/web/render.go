package web

import (
	"html/template"
	"io"

	"github.com/labstack/echo/v4"

	"supatodo/internal/output"
)

var funcs = template.FuncMap{"title": output.Title}

type renderer struct {
	t *template.Template
}

func newRenderer() *renderer {
	return &renderer{t: template.Must(template.New("page").Funcs(funcs).Parse(pageTemplate))}
}

// Render implements echo.Renderer.
func (r *renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.t.ExecuteTemplate(w, name, data)
}

const pageTemplate = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>supatodo</title>
{{- if .Loading}}
<meta http-equiv="refresh" content="1">
{{- end}}
<style>
body { font-family: sans-serif; max-width: 36rem; margin: 2rem auto; }
li { list-style: none; display: flex; gap: .5rem; align-items: center; }
li.done span { text-decoration: line-through; color: #888; }
dialog { border: 1px solid #c33; }
</style>
</head>
<body>
{{- if .Alert}}
<dialog open id="alert">
<p><strong>Error</strong></p>
<p>{{.Alert}}</p>
<form method="get" action="/"><button>OK</button></form>
</dialog>
{{- else if .SignIn}}
<h1>supatodo</h1>
<form method="post" action="/signin">
<input type="hidden" name="_csrf" value="{{$.CSRF}}">
<input type="email" name="email" placeholder="you@example.com" required>
<input type="password" name="password" placeholder="Password" required>
<button>Sign in</button>
</form>
{{- else if .Loading}}
<p>Loading todos...</p>
{{- else}}
<h1>Todos</h1>
<p>{{.Done}} done, {{.Pending}} pending</p>
<form method="post" action="/todos">
<input type="hidden" name="_csrf" value="{{$.CSRF}}">
<input name="title" value="{{.Draft}}" placeholder="What needs to be done?" autofocus>
<button>Add</button>
</form>
{{- if not .Tasks}}
<p class="empty">No todos yet. Add one above!</p>
{{- end}}
<ul>
{{- range .Tasks}}
<li{{if .Completed}} class="done"{{end}}>
<form method="post" action="/todos/{{.ID}}/toggle"><input type="hidden" name="_csrf" value="{{$.CSRF}}"><button>{{if .Completed}}&#9745;{{else}}&#9744;{{end}}</button></form>
<span>{{title .Title}}</span>
<form method="post" action="/todos/{{.ID}}/delete"><input type="hidden" name="_csrf" value="{{$.CSRF}}"><button>Delete</button></form>
</li>
{{- end}}
</ul>
<form method="post" action="/signout"><input type="hidden" name="_csrf" value="{{$.CSRF}}"><button>Sign out</button></form>
{{- end}}
</body>
</html>
`
