package report

import (
	"fmt"
	"html/template"
	"os"
)

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Name}} docked pose</title>
<script src="{{.ViewerScript}}"></script>
<style>html, body { margin: 0; height: 100%; } #viewport { width: 100%; height: 100%; }</style>
</head>
<body>
<div id="viewport"></div>
<script>
(function () {
  var receptor = {{.Receptor}};
  var ligand = {{.Ligand}};
  var stage = new NGL.Stage("viewport", { backgroundColor: "white" });
  window.addEventListener("resize", function () { stage.handleResize(); });
  Promise.all([
    stage.loadFile(new Blob([receptor], { type: "text/plain" }), { ext: "pdbqt", name: "receptor" }),
    stage.loadFile(new Blob([ligand], { type: "text/plain" }), { ext: "pdbqt", name: {{.Name}} })
  ]).then(function (components) {
    components[0].addRepresentation("cartoon", { color: "silver", opacity: 0.7 });
    components[1].addRepresentation("ball+stick");
    components[1].autoView();
  });
})();
</script>
</body>
</html>
`))

var overlayTmpl = template.Must(template.New("overlay").Parse(`
<div style="position: absolute; top: 20px; left: 20px; background: rgba(255,255,255,0.9);
            padding: 20px; border-radius: 10px; font-family: 'Segoe UI', Tahoma, Geneva, sans-serif;
            border: 1px solid #333; box-shadow: 5px 5px 15px rgba(0,0,0,0.3); z-index: 1000;">
    <h2 style="margin-top:0; color: #2c3e50;">Docking analysis: {{.Name}}</h2>
    <p><b>Target:</b> {{.Target}}</p>
    <p><b>Binding affinity:</b> <span style="color: #e74c3c; font-size: 1.3em; font-weight: bold;">{{.Affinity}} kcal/mol</span></p>
    <p><b>Ligand efficiency:</b> {{.Efficiency}} (kcal/mol/heavy-atom)</p>
    <p><b>Heavy atoms:</b> {{.HeavyAtoms}}</p>
    <hr>
    <p style="font-size: 0.85em; color: #7f8c8d;">
        Pipeline: {{.Pipeline}}<br>
        Engine: {{.Engine}} | Search depth: {{.Exhaustiveness}}
    </p>
</div>
`))

// View is everything one ligand page shows.
type View struct {
	Name           string
	ViewerScript   string
	Receptor       string // receptor structure text
	Ligand         string // docked ligand structure text
	Target         string
	Metrics        Metrics
	Pipeline       string
	Engine         string
	Exhaustiveness int
}

// WriteView writes the standalone page to path, closes it, and only then
// appends the information overlay.
func WriteView(path string, v View) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create view: %w", err)
	}
	if err := pageTmpl.Execute(f, v); err != nil {
		f.Close()
		return fmt.Errorf("render view %s: %w", v.Name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close view: %w", err)
	}
	return appendOverlay(path, v)
}

func appendOverlay(path string, v View) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open view for overlay: %w", err)
	}
	err = overlayTmpl.Execute(f, map[string]any{
		"Name":           v.Name,
		"Target":         v.Target,
		"Affinity":       v.Metrics.AffinityText(),
		"Efficiency":     v.Metrics.EfficiencyText(),
		"HeavyAtoms":     v.Metrics.HeavyAtoms,
		"Pipeline":       v.Pipeline,
		"Engine":         v.Engine,
		"Exhaustiveness": v.Exhaustiveness,
	})
	if err != nil {
		f.Close()
		return fmt.Errorf("render overlay %s: %w", v.Name, err)
	}
	return f.Close()
}
