package plan

import (
	"bytes"
	"fmt"
	"maps"
	"strings"
	"sync"
	"text/template"

	"github.com/expr-lang/expr"

	"github.com/slok/stackup/internal/model"
)

// funcMap has the functions available in plan templates.
var funcMap = template.FuncMap{
	"lower":      strings.ToLower,
	"upper":      strings.ToUpper,
	"trim":       strings.TrimSpace,
	"replace":    strings.ReplaceAll,
	"contains":   strings.Contains,
	"hasPrefix":  strings.HasPrefix,
	"hasSuffix":  strings.HasSuffix,
	"trimPrefix": strings.TrimPrefix,
	"trimSuffix": strings.TrimSuffix,
	"default":    defaultValue,
	"quote":      ShellQuote,
}

func defaultValue(def, v string) string {
	if v == "" {
		return def
	}
	return v
}

// ShellQuote returns s as a single quoted shell word.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Vars are the run variables used to render templates and evaluate conditions.
// Prompt answers are added while the run progresses, so it's safe for concurrent use.
type Vars struct {
	host model.Host

	mu   sync.Mutex
	vals map[string]string
}

// NewVars returns the run variables. Plan variables are templates that can only
// use the host variables. Overrides are used as they are and take precedence.
func NewVars(host model.Host, planVars, overrides map[string]string) (*Vars, error) {
	base := &Vars{host: host, vals: map[string]string{}}
	v := &Vars{host: host, vals: map[string]string{}}

	for k, tmpl := range planVars {
		val, err := base.Render(tmpl)
		if err != nil {
			return nil, fmt.Errorf("could not render var %q: %w", k, err)
		}
		v.vals[k] = val
	}
	maps.Copy(v.vals, overrides)

	return v, nil
}

// Set sets a variable.
func (v *Vars) Set(key, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vals[key] = value
}

// Get returns a variable.
func (v *Vars) Get(key string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	val, ok := v.vals[key]
	return val, ok
}

func (v *Vars) data() map[string]any {
	v.mu.Lock()
	defer v.mu.Unlock()

	vars := make(map[string]any, len(v.vals))
	for k, val := range v.vals {
		vars[k] = val
	}

	data := make(map[string]any, len(v.vals)+6)
	maps.Copy(data, vars)
	data["distro"] = v.host.Distro
	data["distro_version"] = v.host.DistroVersion
	data["pm"] = string(v.host.PackageManager)
	data["user"] = v.host.User
	data["root"] = v.host.Root
	data["vars"] = vars

	return data
}

// Render executes a text template with the run variables. Missing variables are an error.
func (v *Vars) Render(tmpl string) (string, error) {
	if !strings.Contains(tmpl, "{{") {
		return tmpl, nil
	}

	t, err := parseTemplate(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, v.data()); err != nil {
		return "", fmt.Errorf("could not execute template: %w", err)
	}
	return buf.String(), nil
}

// RenderAll renders a list of templates.
func (v *Vars) RenderAll(tmpls []string) ([]string, error) {
	if tmpls == nil {
		return nil, nil
	}

	res := make([]string, 0, len(tmpls))
	for _, tmpl := range tmpls {
		r, err := v.Render(tmpl)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, nil
}

// Eval evaluates a boolean condition. Empty conditions are true.
func (v *Vars) Eval(cond string) (bool, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return true, nil
	}

	env := v.data()
	program, err := expr.Compile(cond, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("could not compile condition %q: %w", cond, err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("could not evaluate condition %q: %w", cond, err)
	}

	res, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q is not a boolean (got %T)", cond, out)
	}
	return res, nil
}

func parseTemplate(tmpl string) (*template.Template, error) {
	t, err := template.New("plan").Funcs(funcMap).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("could not parse template: %w", err)
	}
	return t, nil
}

func checkCondition(cond string) error {
	if strings.TrimSpace(cond) == "" {
		return nil
	}
	if _, err := expr.Compile(cond, expr.AsBool()); err != nil {
		return fmt.Errorf("invalid condition %q: %w", cond, err)
	}
	return nil
}
