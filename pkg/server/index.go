package server

import (
	"embed"
	"html/template"
	"net/http"
)

//go:embed static
var staticFS embed.FS

// indexTemplate renders the landing page: one live panel per attached
// component, each backed by its own websocket stream.
var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="/static/styles.css">
</head>
<body>
  <header>
    <h1>{{.Title}}</h1>
  </header>
  <main id="panels">
    {{range .Components}}
    <section class="panel" data-stream="{{.}}">
      <h2>{{.}}</h2>
      <pre class="feed"></pre>
    </section>
    {{end}}
  </main>
  <script src="/static/app.js"></script>
</body>
</html>
`))

type indexData struct {
	Title      string
	Components []string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := indexData{
		Title:      s.config.Title,
		Components: s.ComponentNames(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		s.logger.Error("index render failed", "error", err)
	}
}
