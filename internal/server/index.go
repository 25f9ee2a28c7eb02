package server

import (
	"html/template"
	"net/http"
)

// indexTmpl lists the views from manifest.js, so it works the same when the
// views directory is opened from disk.
var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>dockscreen views</title>
<script src="{{.Prefix}}manifest.js"></script>
<style>
body { font-family: 'Segoe UI', Tahoma, Geneva, sans-serif; margin: 2em; color: #2c3e50; }
li { margin: 0.3em 0; }
.muted { color: #7f8c8d; font-size: 0.85em; }
</style>
</head>
<body>
<h1>Docking views</h1>
<p class="muted" id="generated"></p>
<ul id="pages"></ul>
<script>
(function () {
  var m = window.VIEWS_MANIFEST;
  var list = document.getElementById("pages");
  if (!m) {
    list.innerHTML = "<li>No manifest found. Run the report stage first.</li>";
    return;
  }
  document.getElementById("generated").textContent = "Generated " + m.generated_at + " ({{.Version}})";
  m.pages.forEach(function (p) {
    var li = document.createElement("li");
    var a = document.createElement("a");
    a.href = {{.Prefix}} + p.file.split("/").pop();
    a.textContent = p.name;
    li.appendChild(a);
    list.appendChild(li);
  });
})();
</script>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, map[string]string{"Prefix": viewsPrefix, "Version": s.version}); err != nil {
		s.logger.Error("render index", "error", err)
	}
}
