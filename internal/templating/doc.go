// Package templating resolves the `$VAR` sigils and text/template
// expressions that can appear in a ServiceDefinition's EnvTemplate and
// HeadersTemplate, using the Masterminds/sprig/v3 FuncMap, narrowed to this
// single job: turning a template string plus a SecretProvider into a
// resolved string at spawn/request time.
package templating
