package templating

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"text/template"

	"muster-gateway/internal/api"

	"github.com/Masterminds/sprig/v3"
)

// sigilPattern matches the plain `$VAR` shorthand form described in ,
// distinct from a full `{{ ... }}` template expression.
var sigilPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// Resolver expands env_template/headers_template values using a
// SecretProvider for `$VAR` lookups and the process environment as a
// fallback, plus the full sprig FuncMap for any value written as a
// text/template expression.
type Resolver struct {
	secrets api.SecretProvider
	funcMap template.FuncMap
}

// NewResolver builds a Resolver backed by the given SecretProvider. secrets
// may be nil, in which case only process environment variables resolve.
func NewResolver(secrets api.SecretProvider) *Resolver {
	r := &Resolver{secrets: secrets}
	fm := sprig.TxtFuncMap()
	fm["secret"] = r.lookupSecret
	r.funcMap = fm
	return r
}

func (r *Resolver) lookupSecret(name string) (string, error) {
	if r.secrets != nil {
		if v, ok := r.secrets.Secret(name); ok {
			return v, nil
		}
	}
	if v, ok := os.LookupEnv(name); ok {
		return v, nil
	}
	return "", fmt.Errorf("secret %q not found", name)
}

// Resolve expands a single template string. Plain `$VAR` sigils are
// substituted first (secret, then process env, then left untouched if
// neither resolves — matching "resolved at spawn/request time" without
// failing a whole service over one missing optional variable); the result
// is then run through text/template with the sprig FuncMap so authors can
// also write `{{ env "HOME" }}`-style expressions.
func (r *Resolver) Resolve(raw string) (string, error) {
	substituted := sigilPattern.ReplaceAllStringFunc(raw, func(match string) string {
		name := sigilPattern.FindStringSubmatch(match)[1]
		if v, err := r.lookupSecret(name); err == nil {
			return v
		}
		return match
	})

	tmpl, err := template.New("value").Funcs(r.funcMap).Parse(substituted)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, nil); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

// ResolveMap resolves every value of a name->template map, e.g. a service's
// EnvTemplate or HeadersTemplate.
func (r *Resolver) ResolveMap(templates map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(templates))
	for k, v := range templates {
		resolved, err := r.Resolve(v)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}
